package blockchain

import (
	"net/url"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/settings"
	"github.com/emberchain/embernode/stores/blockchain/sql"
	"github.com/emberchain/embernode/ulogger"
)

func NewStore(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (Store, error) {
	switch storeURL.Scheme {
	case "postgres":
		fallthrough
	case "sqlitememory":
		fallthrough
	case "sqlite":
		return sql.New(logger, storeURL, tSettings)
	}

	return nil, errors.NewStorageError("unknown scheme: %s", storeURL.Scheme)
}
