package sql

import (
	"context"
	"database/sql"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
)

// GetBestBlockHeader returns the valid block with the most cumulative chain
// work. Ties break on the lowest id, so between two equally heavy tips the
// one stored first stays best.
func (s *SQL) GetBestBlockHeader(ctx context.Context) (*model.BlockHeader, *model.BlockHeaderMeta, error) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("GetBestBlockHeader").AddTime(start)
	}()

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
		WHERE b.invalid = false
		ORDER BY b.chain_work DESC, b.id ASC
		LIMIT 1
	`

	blockHeader := &model.BlockHeader{}
	blockHeaderMeta := &model.BlockHeaderMeta{}

	var (
		hashPrevBlock  []byte
		hashMerkleRoot []byte
		nBits          []byte
	)

	if err := s.db.QueryRowContext(ctx, q).Scan(
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
			return nil, nil, errors.NewBlockNotFoundError("no blocks in store", err)
		}

		return nil, nil, errors.NewStorageError("failed to get best block header", err)
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

	return blockHeader, blockHeaderMeta, nil
}
