package sql

import (
	"context"
	"database/sql"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/lib/pq"
	"github.com/ordishs/gocore"
	"modernc.org/sqlite"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
	"github.com/emberchain/embernode/services/blockchain/work"
)

// StoreBlock persists a block and returns its database id.
//
// The parent block must already be stored; the genesis block, recognised by
// its zero previous hash, is the only block stored without one. The block's
// cumulative chain work is computed here from the parent's stored work, and
// a block whose parent is marked invalid inherits the marking, so a fork
// built on a rejected block can never outweigh the main chain.
func (s *SQL) StoreBlock(ctx context.Context, block *model.Block) (uint64, error) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("StoreBlock").AddTime(start)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var miner string

	if coinbase := block.CoinbaseTx(); coinbase != nil {
		var err error

		miner, err = model.ExtractCoinbaseMiner(coinbase)
		if err != nil {
			s.logger.Warnf("error extracting miner from coinbase tx: %v", err)
		}
	}

	newBlockID, chainWork, invalid, err := s.storeBlock(ctx, block, miner)
	if err != nil {
		return 0, err
	}

	newBlockIDUint32, err := safeconversion.Uint64ToUint32(newBlockID)
	if err != nil {
		return 0, errors.NewProcessingError("failed to convert newBlockID", err)
	}

	meta := &model.BlockHeaderMeta{
		ID:          newBlockIDUint32,
		Height:      block.Header.Height,
		TxCount:     block.TransactionCount(),
		SizeInBytes: block.SizeInBytes(),
		ChainWork:   chainWork,
		Miner:       miner,
		Invalid:     invalid,
	}

	s.headerCache.Add(*block.Hash(), &cachedHeader{header: block.Header, meta: meta})
	s.responseCache.deleteAll()

	return newBlockID, nil
}

func (s *SQL) storeBlock(ctx context.Context, block *model.Block, miner string) (uint64, []byte, bool, error) {
	var (
		parentID             interface{}
		previousChainWork    []byte
		previousBlockInvalid bool
	)

	genesis := block.Header.HashPrevBlock.IsEqual(&chainhash.Hash{})

	if genesis {
		if block.Header.Height != 0 {
			return 0, nil, false, errors.NewBlockInvalidError("block %s has no previous block but height %d", block.Hash().String(), block.Header.Height)
		}

		previousChainWork = make([]byte, 32)
	} else {
		previousBlockID, prevChainWork, previousHeight, prevInvalid, err := s.getPreviousBlockInfo(ctx, *block.Header.HashPrevBlock)
		if err != nil {
			return 0, nil, false, err
		}

		if block.Header.Height != previousHeight+1 {
			return 0, nil, false, errors.NewBlockInvalidError("block %s has height %d, the parent is at height %d", block.Hash().String(), block.Header.Height, previousHeight)
		}

		parentID = previousBlockID
		previousChainWork = prevChainWork
		previousBlockInvalid = prevInvalid
	}

	cumulativeChainWork, err := calculateChainWork(previousChainWork, block)
	if err != nil {
		return 0, nil, false, err
	}

	q := `
INSERT INTO blocks (
	parent_id
	,version
	,hash
	,previous_hash
	,merkle_root
	,block_time
	,n_bits
	,nonce
	,height
	,chain_work
	,tx_count
	,size_in_bytes
	,block_data
	,miner
	,invalid
) VALUES ($1, $2 ,$3 ,$4 ,$5 ,$6 ,$7 ,$8 ,$9 ,$10 ,$11 ,$12 ,$13 ,$14, $15)
RETURNING id
`

	rows, err := s.db.QueryContext(ctx, q,
		parentID,
		block.Header.Version,
		block.Hash().CloneBytes(),
		block.Header.HashPrevBlock.CloneBytes(),
		block.Header.HashMerkleRoot.CloneBytes(),
		block.Header.Timestamp,
		block.Header.Bits.CloneBytes(),
		block.Header.Nonce,
		block.Header.Height,
		cumulativeChainWork,
		block.TransactionCount(),
		block.SizeInBytes(),
		block.Bytes(),
		miner,
		previousBlockInvalid,
	)
	if err != nil {
		return 0, nil, false, s.parseSQLError(err, block)
	}

	defer rows.Close()

	if !rows.Next() {
		return 0, nil, false, errors.NewBlockExistsError("block already exists: %s", block.Hash().String())
	}

	var newBlockID uint64
	if err = rows.Scan(&newBlockID); err != nil {
		return 0, nil, false, errors.NewStorageError("failed to scan new block id", err)
	}

	return newBlockID, cumulativeChainWork, previousBlockInvalid, nil
}

// getPreviousBlockInfo returns the database id, stored chain work, height
// and invalid marking of the block with the given hash, serving from the
// header cache when it can.
func (s *SQL) getPreviousBlockInfo(ctx context.Context, prevBlockHash chainhash.Hash) (id uint64, chainWork []byte, height uint32, invalid bool, err error) {
	if entry, ok := s.headerCache.Get(prevBlockHash); ok {
		return uint64(entry.meta.ID), entry.meta.ChainWork, entry.meta.Height, entry.meta.Invalid, nil
	}

	q := `
		SELECT
		 b.id
		,b.chain_work
		,b.height
		,b.invalid
		FROM blocks b
		WHERE b.hash = $1
	`

	if err = s.db.QueryRowContext(ctx, q, prevBlockHash[:]).Scan(
		&id,
		&chainWork,
		&height,
		&invalid,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, 0, false, errors.NewBlockParentNotFoundError("previous block %s not found", prevBlockHash.String(), err)
		}

		return 0, nil, 0, false, errors.NewStorageError("failed to get previous block %s", prevBlockHash.String(), err)
	}

	return id, chainWork, height, invalid, nil
}

// parseSQLError translates backend specific constraint violations into a
// BlockExistsError; the unique index on hash is the only constraint an
// insert can trip.
func (*SQL) parseSQLError(err error, block *model.Block) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return errors.NewBlockExistsError("block already exists in the database: %s", block.Hash().String(), err)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code()&0xff) == SQLITE_CONSTRAINT {
		return errors.NewBlockExistsError("block already exists in the database: %s", block.Hash().String(), err)
	}

	return errors.NewStorageError("failed to store block", err)
}

// calculateChainWork adds the work of the block to the parent's cumulative
// work. Chain work is stored big endian so the lexicographic index order on
// chain_work matches the numeric order.
func calculateChainWork(previousChainWork []byte, block *model.Block) ([]byte, error) {
	prevWorkHash, err := chainhash.NewHash(bt.ReverseBytes(previousChainWork))
	if err != nil {
		return nil, errors.NewProcessingError("failed to convert previous chain work for block %s", block.Hash().String(), err)
	}

	cumulative, err := work.CalculateWork(prevWorkHash, block.Header.Bits)
	if err != nil {
		return nil, errors.NewProcessingError("failed to calculate chain work for block %s", block.Hash().String(), err)
	}

	return bt.ReverseBytes(cumulative.CloneBytes()), nil
}
