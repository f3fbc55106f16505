// Package memory implements the kvstore interfaces with a mutex-protected
// map. It is used by tests and by networks that do not need persistence.
package memory

import (
	"context"
	"net/http"
	"sync"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/stores/kvstore"
)

type Memory struct {
	mu sync.RWMutex
	kv map[string][]byte
}

func New() *Memory {
	return &Memory{
		kv: make(map[string][]byte),
	}
}

func (m *Memory) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, "Memory KV Store", nil
}

func (m *Memory) Close(_ context.Context) error {
	// The lock is to ensure that no other operations are happening while we close the store
	m.mu.Lock()
	defer m.mu.Unlock()

	// noop
	return nil
}

func (m *Memory) Get(_ context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.kv[string(key)]
	if !ok {
		return nil, errors.NewNotFoundError("key not found [%x]", key)
	}

	return value, nil
}

func (m *Memory) Exists(_ context.Context, key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.kv[string(key)]

	return ok, nil
}

func (m *Memory) Set(_ context.Context, key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.kv[string(key)] = value

	return nil
}

func (m *Memory) Del(_ context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.kv, string(key))

	return nil
}

type batchOp struct {
	key   string
	value []byte
	del   bool
}

// Batch buffers mutations and applies them under a single write lock, so a
// reader sees either none or all of the batch.
type Batch struct {
	store *Memory
	ops   []batchOp
	done  bool
}

func (m *Memory) NewBatch() kvstore.Batch {
	return &Batch{store: m}
}

func (b *Batch) Set(key []byte, value []byte) error {
	b.ops = append(b.ops, batchOp{key: string(key), value: value})
	return nil
}

func (b *Batch) Del(key []byte) error {
	b.ops = append(b.ops, batchOp{key: string(key), del: true})
	return nil
}

func (b *Batch) Commit(_ context.Context) error {
	if b.done {
		return errors.NewStorageError("batch has already been committed or cancelled")
	}

	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	for _, op := range b.ops {
		if op.del {
			delete(b.store.kv, op.key)
		} else {
			b.store.kv[op.key] = op.value
		}
	}

	b.done = true
	b.ops = nil

	return nil
}

func (b *Batch) Cancel() {
	b.done = true
	b.ops = nil
}
