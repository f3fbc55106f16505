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

func (s *SQL) GetBlock(ctx context.Context, blockHash *chainhash.Hash) (*model.Block, error) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("GetBlock").AddTime(start)
	}()

	cacheID := chainhash.DoubleHashH([]byte(fmt.Sprintf("GetBlock-%s", blockHash.String())))

	op := s.responseCache.begin(cacheID)
	if item := op.get(); item != nil {
		if block, ok := item.Value().(*model.Block); ok && block != nil {
			return block, nil
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := `
		SELECT
		 b.block_data
		FROM blocks b
		WHERE b.hash = $1
	`

	var blockData []byte

	if err := s.db.QueryRowContext(ctx, q, blockHash[:]).Scan(
		&blockData,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewBlockNotFoundError("block %s not found", blockHash.String(), err)
		}

		return nil, errors.NewStorageError("failed to get block %s", blockHash.String(), err)
	}

	block, err := model.NewBlockFromBytes(blockData)
	if err != nil {
		return nil, errors.NewProcessingError("failed to deserialize block %s", blockHash.String(), err)
	}

	op.set(block, s.cacheTTL)

	return block, nil
}
