// Package factory creates key-value stores from a connection URL.
package factory

import (
	"net/url"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/stores/kvstore"
	"github.com/emberchain/embernode/stores/kvstore/badger"
	"github.com/emberchain/embernode/stores/kvstore/memory"
	"github.com/emberchain/embernode/ulogger"
)

// NewStore creates a key-value store for the given URL. Supported schemes
// are badger:///path/to/dir and memory:///.
func NewStore(logger ulogger.Logger, storeURL *url.URL) (kvstore.Store, error) {
	switch storeURL.Scheme {
	case "memory":
		return memory.New(), nil

	case "badger":
		store, err := badger.New(logger, storeURL.Path)
		if err != nil {
			return nil, errors.NewStorageError("error creating badger kv store", err)
		}

		return store, nil

	default:
		return nil, errors.NewStorageError("unknown scheme: %s", storeURL.Scheme)
	}
}
