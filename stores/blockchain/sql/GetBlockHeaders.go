package sql

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
)

// GetBlockHeaders returns up to numberOfHeaders headers walking the parent
// links backwards from blockHashFrom, newest first. A hash that is not in
// the store yields an empty result rather than an error, which is what a
// locator probe wants.
func (s *SQL) GetBlockHeaders(ctx context.Context, blockHashFrom *chainhash.Hash, numberOfHeaders uint64) ([]*model.BlockHeader, []*model.BlockHeaderMeta, error) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("GetBlockHeaders").AddTime(start)
	}()

	blockHeaders := make([]*model.BlockHeader, 0, numberOfHeaders)
	blockHeaderMetas := make([]*model.BlockHeaderMeta, 0, numberOfHeaders)

	if numberOfHeaders == 0 {
		return blockHeaders, blockHeaderMetas, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	maxDepth, err := safeconversion.Uint64ToInt64(numberOfHeaders - 1)
	if err != nil {
		return nil, nil, errors.NewInvalidArgumentError("invalid number of headers %d", numberOfHeaders, err)
	}

	q := `
		WITH RECURSIVE ChainBlocks AS (
			SELECT
			 id, parent_id, version, block_time, n_bits, nonce, previous_hash, merkle_root,
			 height, chain_work, tx_count, size_in_bytes, miner, invalid, 0 AS depth
			FROM blocks
			WHERE hash = $1
			UNION ALL
			SELECT
			 b.id, b.parent_id, b.version, b.block_time, b.n_bits, b.nonce, b.previous_hash, b.merkle_root,
			 b.height, b.chain_work, b.tx_count, b.size_in_bytes, b.miner, b.invalid, cb.depth + 1
			FROM blocks b
			INNER JOIN ChainBlocks cb ON b.id = cb.parent_id
			WHERE cb.depth < $2
		)
		SELECT
		 id
		,version
		,block_time
		,n_bits
		,nonce
		,previous_hash
		,merkle_root
		,height
		,chain_work
		,tx_count
		,size_in_bytes
		,miner
		,invalid
		FROM ChainBlocks
		ORDER BY depth ASC
	`

	rows, err := s.db.QueryContext(ctx, q, blockHashFrom[:], maxDepth)
	if err != nil {
		return nil, nil, errors.NewStorageError("failed to get block headers from %s", blockHashFrom.String(), err)
	}

	defer rows.Close()

	for rows.Next() {
		blockHeader := &model.BlockHeader{}
		blockHeaderMeta := &model.BlockHeaderMeta{}

		var (
			hashPrevBlock  []byte
			hashMerkleRoot []byte
			nBits          []byte
		)

		if err = rows.Scan(
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
			return nil, nil, errors.NewStorageError("failed to scan block header", err)
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

		blockHeaders = append(blockHeaders, blockHeader)
		blockHeaderMetas = append(blockHeaderMetas, blockHeaderMeta)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, errors.NewStorageError("failed to iterate block headers", err)
	}

	return blockHeaders, blockHeaderMetas, nil
}
