package sql

import (
	"context"
	"database/sql"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
)

func (s *SQL) GetBlockHeader(ctx context.Context, blockHash *chainhash.Hash) (*model.BlockHeader, *model.BlockHeaderMeta, error) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("GetBlockHeader").AddTime(start)
	}()

	if entry, ok := s.headerCache.Get(*blockHash); ok {
		return entry.header, entry.meta, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := `
		SELECT
		 b.id
		,b.version
		,b.block_time
		,b.n_bits
		,b.nonce
		,b.previous_hash
		,b.merkle_root
		,b.height
		,b.chain_work
		,b.tx_count
		,b.size_in_bytes
		,b.miner
		,b.invalid
		FROM blocks b
		WHERE b.hash = $1
	`

	blockHeader := &model.BlockHeader{}
	blockHeaderMeta := &model.BlockHeaderMeta{}

	var (
		hashPrevBlock  []byte
		hashMerkleRoot []byte
		nBits          []byte
	)

	if err := s.db.QueryRowContext(ctx, q, blockHash[:]).Scan(
		&blockHeaderMeta.ID,
		&blockHeader.Version,
		&blockHeader.Timestamp,
		&nBits,
		&blockHeader.Nonce,
		&hashPrevBlock,
		&hashMerkleRoot,
		&blockHeader.Height,
		&blockHeaderMeta.ChainWork,
		&blockHeaderMeta.TxCount,
		&blockHeaderMeta.SizeInBytes,
		&blockHeaderMeta.Miner,
		&blockHeaderMeta.Invalid,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, errors.NewBlockNotFoundError("block %s not found", blockHash.String(), err)
		}

		return nil, nil, errors.NewStorageError("failed to get block header %s", blockHash.String(), err)
	}

	bits, err := model.NewNBitFromSlice(nBits)
	if err != nil {
		return nil, nil, errors.NewProcessingError("failed to convert nBits", err)
	}

	blockHeader.Bits = *bits
	blockHeaderMeta.Height = blockHeader.Height

	blockHeader.HashPrevBlock, err = chainhash.NewHash(hashPrevBlock)
	if err != nil {
		return nil, nil, errors.NewProcessingError("failed to convert hashPrevBlock", err)
	}

	blockHeader.HashMerkleRoot, err = chainhash.NewHash(hashMerkleRoot)
	if err != nil {
		return nil, nil, errors.NewProcessingError("failed to convert hashMerkleRoot", err)
	}

	s.headerCache.Add(*blockHash, &cachedHeader{header: blockHeader, meta: blockHeaderMeta})

	return blockHeader, blockHeaderMeta, nil
}
