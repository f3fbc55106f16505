package sql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/errors"
)

func (s *SQL) GetBlockExists(ctx context.Context, blockHash *chainhash.Hash) (bool, error) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("GetBlockExists").AddTime(start)
	}()

	if s.headerCache.Contains(*blockHash) {
		return true, nil
	}

	// negative and uncached positive results go through the response cache,
	// which a new block invalidates
	cacheID := chainhash.DoubleHashH([]byte(fmt.Sprintf("GetBlockExists-%s", blockHash.String())))

	op := s.responseCache.begin(cacheID)
	if item := op.get(); item != nil {
		if exists, ok := item.Value().(bool); ok {
			return exists, nil
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := `
		SELECT
	     b.height
		FROM blocks b
		WHERE b.hash = $1
	`

	var height uint32

	if err := s.db.QueryRowContext(ctx, q, blockHash[:]).Scan(
		&height,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			op.set(false, s.cacheTTL)
			return false, nil
		}

		return false, errors.NewStorageError("failed to check block %s exists", blockHash.String(), err)
	}

	op.set(true, s.cacheTTL)

	return true, nil
}
