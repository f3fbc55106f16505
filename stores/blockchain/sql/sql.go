// Package sql implements the blockchain.Store interface on SQL backends.
// Postgres serves production deployments, sqlite serves dev mode and
// sqlitememory serves tests. The same statements run on all three engines.
//
// Blocks are indexed by hash and linked through parent_id; the genesis block
// is the only row with a NULL parent_id, which is also what terminates the
// recursive chain walks. The current best block is never stored anywhere, it
// is the result of ORDER BY chain_work DESC, id ASC over valid blocks.
package sql

import (
	"context"
	"database/sql"
	"net/http"
	"net/url"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/lib/pq"
	"github.com/ordishs/gocore"
	_ "modernc.org/sqlite"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
	"github.com/emberchain/embernode/settings"
	"github.com/emberchain/embernode/ulogger"
	"github.com/emberchain/embernode/util"
)

// SQLITE_CONSTRAINT is the primary result code sqlite reports for any
// constraint violation. modernc.org/sqlite returns the extended code, the
// primary code is its low byte.
const SQLITE_CONSTRAINT = 19

const (
	headerCacheSize = 1024
	defaultCacheTTL = 2 * time.Minute
)

type cachedHeader struct {
	header *model.BlockHeader
	meta   *model.BlockHeaderMeta
}

type SQL struct {
	db     *sql.DB
	engine util.SQLEngine
	logger ulogger.Logger

	// headerCache holds recently touched headers by block hash. The invalid
	// marking changes for whole subtrees at once, so InvalidateBlock and
	// RevalidateBlock purge it wholesale rather than track which entries
	// are affected.
	headerCache *lru.Cache[chainhash.Hash, *cachedHeader]

	// responseCache holds derived query results. Any write to the blocks
	// table bumps its generation, see generational_cache.go.
	responseCache *generationalCache
	cacheTTL      time.Duration
}

func init() {
	gocore.NewStat("blockchain")
}

func New(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*SQL, error) {
	db, err := util.InitSQLDB(logger, storeURL, tSettings)
	if err != nil {
		return nil, errors.NewStorageError("failed to init sql db", err)
	}

	engine := util.SQLEngine(storeURL.Scheme)

	switch engine {
	case util.Postgres:
		if err = createPostgresSchema(db); err != nil {
			return nil, err
		}

	case util.Sqlite, util.SqliteMemory:
		if err = createSqliteSchema(db); err != nil {
			return nil, err
		}

	default:
		return nil, errors.NewStorageError("unknown database engine: %s", engine)
	}

	headerCache, err := lru.New[chainhash.Hash, *cachedHeader](headerCacheSize)
	if err != nil {
		return nil, errors.NewStorageError("failed to create header cache", err)
	}

	return &SQL{
		db:            db,
		engine:        engine,
		logger:        logger,
		headerCache:   headerCache,
		responseCache: newGenerationalCache(),
		cacheTTL:      defaultCacheTTL,
	}, nil
}

func (s *SQL) GetDB() *sql.DB {
	return s.db
}

func (s *SQL) GetDBEngine() util.SQLEngine {
	return s.engine
}

func (s *SQL) Health(ctx context.Context, _ bool) (int, string, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return http.StatusServiceUnavailable, "SQL Blockchain Store", err
	}

	return http.StatusOK, "SQL Blockchain Store", nil
}

func (s *SQL) Close(_ context.Context) error {
	s.responseCache.stop()

	return s.db.Close()
}

func createPostgresSchema(db *sql.DB) error {
	if _, err := db.Exec(`
      CREATE TABLE IF NOT EXISTS blocks (
	    id              BIGSERIAL PRIMARY KEY
		,parent_id	    BIGINT NULL REFERENCES blocks(id)
        ,version        INTEGER NOT NULL
	    ,hash           BYTEA NOT NULL
	    ,previous_hash  BYTEA NOT NULL
	    ,merkle_root    BYTEA NOT NULL
        ,block_time     BIGINT NOT NULL
        ,n_bits         BYTEA NOT NULL
        ,nonce          BIGINT NOT NULL
	    ,height         BIGINT NOT NULL
        ,chain_work     BYTEA NOT NULL
		,tx_count       BIGINT NOT NULL
		,size_in_bytes  BIGINT NOT NULL
		,block_data     BYTEA NOT NULL
		,miner          TEXT NOT NULL DEFAULT ''
		,invalid        BOOLEAN NOT NULL DEFAULT false
    	,inserted_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	  );
	`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create blocks table", err)
	}

	if _, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_blocks_hash ON blocks (hash);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create ux_blocks_hash index", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_chain_work_id ON blocks (chain_work DESC, id ASC);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create idx_chain_work_id index", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_blocks_parent_id ON blocks (parent_id);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create idx_blocks_parent_id index", err)
	}

	return nil
}

func createSqliteSchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS blocks (
		 id           INTEGER PRIMARY KEY AUTOINCREMENT
		,parent_id	  INTEGER NULL REFERENCES blocks(id)
        ,version        INTEGER NOT NULL
	    ,hash           BLOB NOT NULL
	    ,previous_hash  BLOB NOT NULL
	    ,merkle_root    BLOB NOT NULL
        ,block_time		BIGINT NOT NULL
        ,n_bits         BLOB NOT NULL
        ,nonce          BIGINT NOT NULL
	    ,height         BIGINT NOT NULL
        ,chain_work     BLOB NOT NULL
		,tx_count       BIGINT NOT NULL
		,size_in_bytes  BIGINT NOT NULL
		,block_data     BLOB NOT NULL
		,miner          TEXT NOT NULL DEFAULT ''
		,invalid        BOOLEAN NOT NULL DEFAULT false
        ,inserted_at    TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	  );
	`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create blocks table", err)
	}

	if _, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_blocks_hash ON blocks (hash);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create ux_blocks_hash index", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_chain_work_id ON blocks (chain_work DESC, id ASC);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create idx_chain_work_id index", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_blocks_parent_id ON blocks (parent_id);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create idx_blocks_parent_id index", err)
	}

	return nil
}
