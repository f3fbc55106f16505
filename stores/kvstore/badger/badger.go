// Package badger implements the kvstore interfaces on top of BadgerDB.
package badger

import (
	"context"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/stores/kvstore"
	"github.com/emberchain/embernode/ulogger"
	"github.com/ordishs/go-utils/expiringmap"
	"github.com/ordishs/gocore"
)

type Badger struct {
	store  *badger.DB
	logger ulogger.Logger
	// cache is per store, values are mutable and two stores must never
	// serve each other's keys
	cache *expiringmap.ExpiringMap[string, []byte]
}

type loggerWrapper struct {
	ulogger.Logger
}

func (l loggerWrapper) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

func New(logger ulogger.Logger, dir string) (*Badger, error) {
	bLogger := loggerWrapper{logger}
	opts := badger.DefaultOptions(dir).
		WithLogger(bLogger).
		WithLoggingLevel(badger.ERROR).WithNumMemtables(32).
		WithMetricsEnabled(true)

	// low memory options
	if gocore.Config().GetBool("badger_limitMemoryLow") {
		opts.WithBaseTableSize(1 << 20)
		opts.WithNumMemtables(1)
		opts.WithNumLevelZeroTables(1)
		opts.WithNumLevelZeroTablesStall(2)
		opts.WithSyncWrites(false)
	} else if gocore.Config().GetBool("badger_limitMemoryMedium") {
		opts.WithBaseTableSize(1 << 22)
		opts.WithNumMemtables(2)
		opts.WithNumLevelZeroTables(2)
		opts.WithNumLevelZeroTablesStall(4)
		opts.WithSyncWrites(false)
	}

	s, err := badger.Open(opts)
	if err != nil {
		return nil, errors.NewStorageError("failed to open badger store in %s", dir, err)
	}

	badgerStore := &Badger{
		store:  s,
		logger: logger,
		cache:  expiringmap.New[string, []byte](1 * time.Minute),
	}

	return badgerStore, nil
}

func (s *Badger) Health(ctx context.Context, _ bool) (int, string, error) {
	if _, err := s.Exists(ctx, []byte("health")); err != nil {
		return http.StatusInternalServerError, "Badger KV Store", err
	}

	return http.StatusOK, "Badger KV Store", nil
}

func (s *Badger) Close(_ context.Context) error {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("kvstore_badger", true).NewStat("Close").AddTime(start)
	}()

	return s.store.Close()
}

func (s *Badger) Set(_ context.Context, key []byte, value []byte) error {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("kvstore_badger", true).NewStat("Set").AddTime(start)
	}()

	if err := s.store.Update(func(tx *badger.Txn) error {
		return tx.Set(key, value)
	}); err != nil {
		return errors.NewStorageError("failed to set data", err)
	}

	s.cache.Set(string(key), value)

	return nil
}

func (s *Badger) Get(_ context.Context, key []byte) ([]byte, error) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("kvstore_badger", true).NewStat("Get").AddTime(start)
	}()

	cached, ok := s.cache.Get(string(key))
	if ok {
		return cached, nil
	}

	var result []byte

	err := s.store.View(func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return errors.NewNotFoundError("badger key not found [%x]", key, err)
			}

			return err
		}

		// the item value is only valid inside the transaction
		result, err = item.ValueCopy(nil)

		return err
	})

	return result, err
}

func (s *Badger) Exists(_ context.Context, key []byte) (bool, error) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("kvstore_badger", true).NewStat("Exists").AddTime(start)
	}()

	if _, ok := s.cache.Get(string(key)); ok {
		return true, nil
	}

	err := s.store.View(func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (s *Badger) Del(_ context.Context, key []byte) error {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("kvstore_badger", true).NewStat("Del").AddTime(start)
	}()

	err := s.store.Update(func(tx *badger.Txn) error {
		return tx.Delete(key)
	})

	s.cache.Delete(string(key))

	return err
}

type batchOp struct {
	key   []byte
	value []byte
	del   bool
}

// Batch wraps a badger write batch and keeps the read cache coherent when
// the batch is committed.
type Batch struct {
	store *Badger
	wb    *badger.WriteBatch
	ops   []batchOp
}

func (s *Badger) NewBatch() kvstore.Batch {
	return &Batch{
		store: s,
		wb:    s.store.NewWriteBatch(),
	}
}

func (b *Batch) Set(key []byte, value []byte) error {
	if err := b.wb.Set(key, value); err != nil {
		return errors.NewStorageError("failed to add set to batch", err)
	}

	b.ops = append(b.ops, batchOp{key: key, value: value})

	return nil
}

func (b *Batch) Del(key []byte) error {
	if err := b.wb.Delete(key); err != nil {
		return errors.NewStorageError("failed to add delete to batch", err)
	}

	b.ops = append(b.ops, batchOp{key: key, del: true})

	return nil
}

func (b *Batch) Commit(_ context.Context) error {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("kvstore_badger", true).NewStat("Commit").AddTime(start)
	}()

	if err := b.wb.Flush(); err != nil {
		return errors.NewStorageError("failed to commit batch", err)
	}

	// the cache must not keep serving values from before the commit
	for _, op := range b.ops {
		if op.del {
			b.store.cache.Delete(string(op.key))
		} else {
			b.store.cache.Set(string(op.key), op.value)
		}
	}

	b.ops = nil

	return nil
}

func (b *Batch) Cancel() {
	b.wb.Cancel()
	b.ops = nil
}
