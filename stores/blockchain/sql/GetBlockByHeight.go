package sql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
)

// GetBlockByHeight returns the block at the given height on the current main
// chain. The query walks the parent links down from the best block rather
// than selecting on the height column, so blocks on abandoned forks at the
// same height are never returned.
func (s *SQL) GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("GetBlockByHeight").AddTime(start)
	}()

	cacheID := chainhash.DoubleHashH([]byte(fmt.Sprintf("GetBlockByHeight-%d", height)))

	op := s.responseCache.begin(cacheID)
	if item := op.get(); item != nil {
		if block, ok := item.Value().(*model.Block); ok && block != nil {
			return block, nil
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := `
		WITH RECURSIVE ChainBlocks AS (
			SELECT id, parent_id, height
			FROM blocks
			WHERE id = (
				SELECT id FROM blocks
				WHERE invalid = false
				ORDER BY chain_work DESC, id ASC
				LIMIT 1
			)
			UNION ALL
			SELECT b.id, b.parent_id, b.height
			FROM blocks b
			INNER JOIN ChainBlocks cb ON b.id = cb.parent_id
			WHERE cb.height > $1
		)
		SELECT
		 b.block_data
		FROM blocks b
		WHERE b.id = (SELECT id FROM ChainBlocks WHERE height = $1 LIMIT 1)
	`

	var blockData []byte

	if err := s.db.QueryRowContext(ctx, q, height).Scan(
		&blockData,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewBlockNotFoundError("no block at height %d on the main chain", height, err)
		}

		return nil, errors.NewStorageError("failed to get block at height %d", height, err)
	}

	block, err := model.NewBlockFromBytes(blockData)
	if err != nil {
		return nil, errors.NewProcessingError("failed to deserialize block at height %d", height, err)
	}

	op.set(block, s.cacheTTL)

	return block, nil
}
