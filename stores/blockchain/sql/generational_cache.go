package sql

import (
	"sync/atomic"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/jellydator/ttlcache/v3"
)

// generationalCache wraps ttlcache with a generation counter so that a query
// result computed before an invalidation can never be written back after it.
//
// Without the counter: a reader misses, runs its query, the blocks table
// changes and the cache is flushed, then the reader stores its now stale
// result. With the counter the reader captures the generation before the
// query and the write is dropped when the generation has moved on.
type generationalCache struct {
	ttlCache   *ttlcache.Cache[chainhash.Hash, any]
	generation atomic.Uint64
	stopped    atomic.Bool
}

func newGenerationalCache() *generationalCache {
	gc := &generationalCache{
		ttlCache: ttlcache.New[chainhash.Hash, any](
			ttlcache.WithDisableTouchOnHit[chainhash.Hash, any](),
		),
	}

	go gc.ttlCache.Start()

	return gc
}

// begin captures the current generation for a get, query, set sequence.
func (gc *generationalCache) begin(key chainhash.Hash) *cacheOperation {
	return &cacheOperation{
		cache:      gc,
		key:        key,
		generation: gc.generation.Load(),
	}
}

// deleteAll clears every entry and bumps the generation, invalidating any
// operation still in flight.
func (gc *generationalCache) deleteAll() {
	gc.ttlCache.DeleteAll()
	gc.generation.Add(1)
}

// stop halts the cleanup goroutine. Safe to call more than once.
func (gc *generationalCache) stop() {
	if gc.stopped.CompareAndSwap(false, true) {
		gc.ttlCache.Stop()
	}
}

type cacheOperation struct {
	cache      *generationalCache
	key        chainhash.Hash
	generation uint64
}

func (co *cacheOperation) get() *ttlcache.Item[chainhash.Hash, any] {
	return co.cache.ttlCache.Get(co.key)
}

// set writes the value unless the cache was invalidated after begin.
func (co *cacheOperation) set(value any, ttl time.Duration) bool {
	if co.generation == co.cache.generation.Load() {
		co.cache.ttlCache.Set(co.key, value, ttl)
		return true
	}

	return false
}
