package sql

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/errors"
)

// RevalidateBlock clears the invalid marking from the block and every
// descendant, undoing an InvalidateBlock on the same hash. The caller is
// responsible for re-resolving the best chain afterwards.
func (s *SQL) RevalidateBlock(ctx context.Context, blockHash *chainhash.Hash) error {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("RevalidateBlock").AddTime(start)
	}()

	s.logger.Infof("RevalidateBlock %s", blockHash.String())

	exists, err := s.GetBlockExists(ctx, blockHash)
	if err != nil {
		return errors.NewStorageError("error checking block exists", err)
	}

	if !exists {
		return errors.NewBlockNotFoundError("block %s not found", blockHash.String())
	}

	q := `
		UPDATE blocks
		SET invalid = false
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
		return errors.NewStorageError("error updating block %s to valid", blockHash.String(), err)
	}

	s.headerCache.Purge()
	s.responseCache.deleteAll()

	return nil
}
