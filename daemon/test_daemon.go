package daemon

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/embernode/crypto"
	"github.com/emberchain/embernode/model"
	"github.com/emberchain/embernode/services/blockchain"
	"github.com/emberchain/embernode/services/mempool"
	"github.com/emberchain/embernode/settings"
	"github.com/emberchain/embernode/ulogger"
	"github.com/emberchain/embernode/util/test"
)

// TestDaemon boots a complete node on in-memory stores. Tests drive it
// through the same service handles the daemon wired together, so whatever
// they observe went through the real startup path.
type TestDaemon struct {
	Ctx        context.Context
	Logger     *ulogger.ErrorTestLogger
	Settings   *settings.Settings
	Blockchain *blockchain.Blockchain
	Mempool    *mempool.Mempool

	// MinerPrivKey controls the miner's coinbase outputs when the miner is
	// enabled, so tests can spend mined coins.
	MinerPrivKey     *btcec.PrivateKey
	MinerLockingHash [model.LockingHashSize]byte

	d         *Daemon
	ctxCancel context.CancelFunc
}

// TestOptions configures the test daemon.
type TestOptions struct {
	// EnableMiner runs the miner service, which also makes the daemon mine
	// the genesis block during startup.
	EnableMiner bool

	// SettingsOverrideFunc mutates the settings after the in-memory store
	// defaults have been applied and before the daemon starts.
	SettingsOverrideFunc func(*settings.Settings)
}

// NewTestDaemon starts a node and blocks until every service is ready.
func NewTestDaemon(t *testing.T, opts TestOptions) *TestDaemon {
	ctx, cancel := context.WithCancel(context.Background())

	tSettings := test.CreateBaseTestSettings()
	tSettings.BlockChain.StoreURL = mustParseURL(t, "sqlitememory:///blockchain")
	tSettings.UtxoStore.StoreURL = mustParseURL(t, "memory:///")
	tSettings.HealthListenAddress = "localhost:0"
	tSettings.Miner.Enabled = opts.EnableMiner

	var (
		minerPrivKey     *btcec.PrivateKey
		minerLockingHash [model.LockingHashSize]byte
	)

	if opts.EnableMiner {
		privKey, err := crypto.GeneratePrivateKey()
		require.NoError(t, err)

		minerPrivKey = privKey
		minerLockingHash = crypto.HashPublicKey(privKey.PubKey().SerializeCompressed())
		tSettings.Miner.WalletAddress = crypto.EncodeAddress(tSettings.ChainCfgParams.PubKeyHashAddrID, minerLockingHash)
	}

	if opts.SettingsOverrideFunc != nil {
		opts.SettingsOverrideFunc(tSettings)
	}

	logger := ulogger.NewErrorTestLogger(t)

	d := New(
		WithContext(ctx),
		WithLoggerFactory(func(_ string) ulogger.Logger {
			return logger
		}),
	)

	readyCh := make(chan struct{})

	go d.Start(logger, nil, tSettings, readyCh)

	select {
	case <-readyCh:
	case <-time.After(30 * time.Second):
		cancel()
		t.Fatal("timed out waiting for the daemon to become ready")
	}

	d.services.mu.Lock()
	blockchainService := d.services.blockchain
	mempoolService := d.services.mempool
	d.services.mu.Unlock()

	require.NotNil(t, blockchainService)
	require.NotNil(t, mempoolService)

	return &TestDaemon{
		Ctx:              ctx,
		Logger:           logger,
		Settings:         tSettings,
		Blockchain:       blockchainService,
		Mempool:          mempoolService,
		MinerPrivKey:     minerPrivKey,
		MinerLockingHash: minerLockingHash,
		d:                d,
		ctxCancel:        cancel,
	}
}

// Stop shuts the node down and waits for it to finish.
func (td *TestDaemon) Stop(t *testing.T) {
	err := td.d.Stop(30 * time.Second)

	td.ctxCancel()
	td.Logger.Shutdown()

	require.NoError(t, err)
}

// WaitForBlockHeight blocks until the chain reaches at least the given
// height.
func (td *TestDaemon) WaitForBlockHeight(t *testing.T, height uint32, timeout time.Duration) {
	require.Eventually(t, func() bool {
		current, err := td.Blockchain.GetHeight(td.Ctx)

		return err == nil && current >= height
	}, timeout, 10*time.Millisecond, "chain did not reach height %d", height)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	u, err := url.Parse(raw)
	require.NoError(t, err)

	return u
}
