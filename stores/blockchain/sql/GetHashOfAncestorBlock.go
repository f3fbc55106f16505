package sql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/errors"
)

// GetHashOfAncestorBlock returns the hash of the block depth generations
// before the given block. Depth 1 is the parent, depth 2 the grandparent.
// The walk follows the block's own chain, so it works on forks as well as
// on the main chain.
func (s *SQL) GetHashOfAncestorBlock(ctx context.Context, hash *chainhash.Hash, depth int) (*chainhash.Hash, error) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("GetHashOfAncestorBlock").AddTime(start)
	}()

	cacheID := chainhash.DoubleHashH([]byte(fmt.Sprintf("GetHashOfAncestorBlock-%s-%d", hash.String(), depth)))

	op := s.responseCache.begin(cacheID)
	if item := op.get(); item != nil {
		if ancestorHash, ok := item.Value().(*chainhash.Hash); ok {
			return ancestorHash, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	q := `
		WITH RECURSIVE ChainBlocks AS (
			SELECT id, hash, parent_id, 0 AS depth
			FROM blocks
			WHERE hash = $1
			UNION ALL
			SELECT b.id, b.hash, b.parent_id, cb.depth + 1
			FROM blocks b
			INNER JOIN ChainBlocks cb ON b.id = cb.parent_id
			WHERE cb.depth < $2
		)
		SELECT
		 hash
		FROM ChainBlocks
		WHERE depth = $2
		LIMIT 1
	`

	var pastHash []byte

	if err := s.db.QueryRowContext(ctx, q, hash[:], depth).Scan(
		&pastHash,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewBlockNotFoundError("can't get hash %d blocks before %s", depth, hash.String(), err)
		}

		return nil, errors.NewStorageError("can't get hash %d blocks before %s", depth, hash.String(), err)
	}

	ph, err := chainhash.NewHash(pastHash)
	if err != nil {
		return nil, errors.NewProcessingError("failed to convert ancestor hash", err)
	}

	op.set(ph, s.cacheTTL)

	return ph, nil
}
