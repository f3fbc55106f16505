package sql

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/errors"
)

// InvalidateBlock marks the block and every descendant invalid in one
// statement. Descendants must be covered too: a child of an invalid block
// would otherwise still carry its inherited chain work and could be picked
// as the best block.
func (s *SQL) InvalidateBlock(ctx context.Context, blockHash *chainhash.Hash) error {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("InvalidateBlock").AddTime(start)
	}()

	s.logger.Infof("InvalidateBlock %s", blockHash.String())

	exists, err := s.GetBlockExists(ctx, blockHash)
	if err != nil {
		return errors.NewStorageError("error checking block exists", err)
	}

	if !exists {
		return errors.NewBlockNotFoundError("block %s not found", blockHash.String())
	}

	q := `
		UPDATE blocks
		SET invalid = true
		WHERE id IN (
			WITH RECURSIVE Descendants AS (
				SELECT id FROM blocks WHERE hash = $1
				UNION ALL
				SELECT b.id FROM blocks b
				INNER JOIN Descendants d ON b.parent_id = d.id
			)
			SELECT id FROM Descendants
		)
	`

	if _, err = s.db.ExecContext(ctx, q, blockHash[:]); err != nil {
		return errors.NewStorageError("error updating block %s to invalid", blockHash.String(), err)
	}

	// markings changed for an unknown set of blocks, drop everything cached
	s.headerCache.Purge()
	s.responseCache.deleteAll()

	return nil
}
