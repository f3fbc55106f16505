// Package kvstore defines a small key-value storage abstraction for stores
// that keep mutable state under structured keys, such as the UTXO set. It
// deliberately exposes only what those stores need: point reads, point
// writes and atomic multi-key batches.
//
// Implementations of this interface include:
//   - badger: persistent storage backed by BadgerDB
//   - memory: map-backed storage for tests and throwaway networks
//
// Stores are created through the factory subpackage from a URL, for example
// badger:///data/utxos or memory:///.
package kvstore

import "context"

// Store is the interface implemented by all key-value backends.
type Store interface {
	// Health checks the health status of the store.
	// Returns an HTTP status code, a description and any error encountered.
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// Get retrieves the value stored under key. A missing key returns an
	// error with code NOT_FOUND.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Exists reports whether key is present without reading its value.
	Exists(ctx context.Context, key []byte) (bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key []byte, value []byte) error

	// Del removes key. Deleting a missing key is not an error.
	Del(ctx context.Context, key []byte) error

	// NewBatch returns an empty write batch. Mutations added to the batch
	// are not visible until Commit applies them atomically.
	NewBatch() Batch

	// Close releases all resources held by the store.
	Close(ctx context.Context) error
}

// Batch collects writes and deletes to be applied in a single atomic commit.
// A batch is not safe for concurrent use and must not be reused after
// Commit or Cancel.
type Batch interface {
	// Set adds a write of value under key to the batch.
	Set(key []byte, value []byte) error

	// Del adds a delete of key to the batch.
	Del(key []byte) error

	// Commit atomically applies all batched mutations.
	Commit(ctx context.Context) error

	// Cancel discards the batch.
	Cancel()
}
