package sql

import (
	"context"

	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
)

// GetBlockStats aggregates over the current main chain only, blocks on
// abandoned forks are not counted.
func (s *SQL) GetBlockStats(ctx context.Context) (*model.BlockStats, error) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("GetBlockStats").AddTime(start)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := `
		WITH RECURSIVE ChainBlocks AS (
			SELECT id, parent_id, tx_count, height, size_in_bytes
			FROM blocks
			WHERE id = (
				SELECT id FROM blocks
				WHERE invalid = false
				ORDER BY chain_work DESC, id ASC
				LIMIT 1
			)
			UNION ALL
			SELECT b.id, b.parent_id, b.tx_count, b.height, b.size_in_bytes
			FROM blocks b
			INNER JOIN ChainBlocks cb ON b.id = cb.parent_id
		)
		SELECT
		 count(1)
		,coalesce(sum(tx_count), 0)
		,coalesce(max(height), 0)
		,coalesce(avg(size_in_bytes), 0)
		,coalesce(avg(tx_count), 0)
		FROM ChainBlocks
	`

	blockStats := &model.BlockStats{}

	if err := s.db.QueryRowContext(ctx, q).Scan(
		&blockStats.BlockCount,
		&blockStats.TxCount,
		&blockStats.MaxHeight,
		&blockStats.AvgBlockSize,
		&blockStats.AvgTxCountPerBlock,
	); err != nil {
		return nil, errors.NewStorageError("failed to get block stats", err)
	}

	return blockStats, nil
}
