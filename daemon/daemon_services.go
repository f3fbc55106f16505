package daemon

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/services/blockchain"
	"github.com/emberchain/embernode/services/mempool"
	"github.com/emberchain/embernode/services/miner"
	"github.com/emberchain/embernode/services/validator"
	"github.com/emberchain/embernode/settings"
	blockchain_store "github.com/emberchain/embernode/stores/blockchain"
	"github.com/emberchain/embernode/stores/kvstore/factory"
	"github.com/emberchain/embernode/stores/utxo"
	"github.com/emberchain/embernode/stores/utxo/kv"
	"github.com/emberchain/embernode/ulogger"
	"github.com/emberchain/embernode/util/servicemanager"
)

// daemonStores holds the store handles so they can be closed after the
// services that use them have stopped.
type daemonStores struct {
	mu              sync.Mutex
	blockchainStore blockchain_store.Store
	utxoStore       utxo.Store
}

// daemonServices holds the built services. TestDaemon reaches them directly,
// the node binary only ever talks to them through the service manager.
type daemonServices struct {
	mu         sync.Mutex
	blockchain *blockchain.Blockchain
	mempool    *mempool.Mempool
	miner      *miner.Miner
}

// startServices opens the stores and registers the services in dependency
// order: the blockchain first, then the mempool that prunes against it,
// then the miner that feeds it.
func (d *Daemon) startServices(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, sm *servicemanager.ServiceManager, args []string, readyCh chan<- struct{}) error {
	createLogger := d.loggerFactory

	// A -miner flag on the command line overrides the settings toggle.
	for _, arg := range args {
		switch arg {
		case "-miner=1":
			tSettings.Miner.Enabled = true
		case "-miner=0":
			tSettings.Miner.Enabled = false
		}
	}

	profilerAddr := tSettings.ProfilerAddr
	if profilerAddr != "" && !pprofRegistered.Load() {
		pprofRegistered.Store(true)

		go func() {
			logger.Infof("Profiler listening on http://%s/debug/pprof", profilerAddr)

			gocore.RegisterStatsHandlers()
			logger.Infof("StatsServer listening on http://%s/stats", profilerAddr)

			server := &http.Server{
				Addr:         profilerAddr,
				Handler:      nil,
				ReadTimeout:  60 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			logger.Fatalf("%v", server.ListenAndServe())
		}()
	}

	blockchainStoreURL := tSettings.BlockChain.StoreURL
	if blockchainStoreURL == nil {
		return errors.NewConfigurationError("blockchain store url not set")
	}

	blockchainStore, err := blockchain_store.NewStore(createLogger("bcsql"), blockchainStoreURL, tSettings)
	if err != nil {
		return err
	}

	utxoStoreURL := tSettings.UtxoStore.StoreURL
	if utxoStoreURL == nil {
		return errors.NewConfigurationError("utxo store url not set")
	}

	kvStore, err := factory.NewStore(createLogger("utxokv"), utxoStoreURL)
	if err != nil {
		return err
	}

	utxoStore := kv.New(createLogger("utxos"), kvStore)

	d.stores.mu.Lock()
	d.stores.blockchainStore = blockchainStore
	d.stores.utxoStore = utxoStore
	d.stores.mu.Unlock()

	txValidator := validator.New(createLogger("valid"), tSettings)

	blockchainService, err := blockchain.New(createLogger("bchn"), tSettings, blockchainStore, utxoStore, txValidator)
	if err != nil {
		return err
	}

	if err = sm.AddService("Blockchain", blockchainService); err != nil {
		return err
	}

	mempoolService := mempool.New(createLogger("mpool"), tSettings, txValidator, utxoStore, blockchainService)

	if err = sm.AddService("Mempool", mempoolService); err != nil {
		return err
	}

	minerService, err := miner.New(createLogger("miner"), tSettings, blockchainService, mempoolService)
	if err != nil {
		return err
	}

	if err = sm.AddService("Miner", minerService); err != nil {
		return err
	}

	d.services.mu.Lock()
	d.services.blockchain = blockchainService
	d.services.mempool = mempoolService
	d.services.miner = minerService
	d.services.mu.Unlock()

	if readyCh != nil {
		sm.WaitForServiceToBeReady()
		close(readyCh)
	}

	return nil
}

// closeStores is called once the services have stopped. Close order mirrors
// shutdown order: the UTXO set first, the block index last.
func (d *Daemon) closeStores(logger ulogger.Logger) {
	d.stores.mu.Lock()
	blockchainStore := d.stores.blockchainStore
	utxoStore := d.stores.utxoStore
	d.stores.blockchainStore = nil
	d.stores.utxoStore = nil
	d.stores.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if utxoStore != nil {
		logger.Debugf("closing utxo store")

		if err := utxoStore.Close(ctx); err != nil {
			logger.Warnf("error closing utxo store: %v", err)
		}
	}

	if blockchainStore != nil {
		logger.Debugf("closing blockchain store")

		if err := blockchainStore.Close(ctx); err != nil {
			logger.Warnf("error closing blockchain store: %v", err)
		}
	}
}
