package tconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/embernode/util/test"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(nil)

	assert.Equal(t, "daemon", cfg.Suite.Name)
	assert.Equal(t, "ERROR", cfg.Suite.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Suite.Timeout)

	assert.Equal(t, "regtest", cfg.Node.Network)
	assert.Equal(t, "sqlitememory:///blockchain", cfg.Node.BlockchainStoreURL)
	assert.Equal(t, "memory:///", cfg.Node.UtxoStoreURL)
	assert.False(t, cfg.Node.MinerEnabled)
	assert.Equal(t, 20*time.Millisecond, cfg.Node.CandidateInterval)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("EMBER_NODE_MINERENABLED", "true")
	t.Setenv("EMBER_NODE_CANDIDATEINTERVAL", "250ms")
	t.Setenv("EMBER_SUITE_LOGLEVEL", "DEBUG")

	cfg := Load(nil)

	assert.True(t, cfg.Node.MinerEnabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Node.CandidateInterval)
	assert.Equal(t, "DEBUG", cfg.Suite.LogLevel)
}

func TestLoadKvOverridesEnv(t *testing.T) {
	t.Setenv("EMBER_NODE_NETWORK", "testnet")

	cfg := Load(map[string]any{
		KeyNodeNetwork: "regtest",
	})

	assert.Equal(t, "regtest", cfg.Node.Network)
}

func TestApplySettings(t *testing.T) {
	cfg := Load(map[string]any{
		KeyNodeMinerEnabled:      true,
		KeyNodeCandidateInterval: 100 * time.Millisecond,
		KeyNodeUtxoStoreURL:      "badger:///tmp/utxos",
	})

	tSettings := test.CreateBaseTestSettings()
	cfg.ApplySettings(tSettings)

	require.NotNil(t, tSettings.UtxoStore.StoreURL)
	assert.Equal(t, "badger", tSettings.UtxoStore.StoreURL.Scheme)
	assert.True(t, tSettings.Miner.Enabled)
	assert.Equal(t, 100*time.Millisecond, tSettings.Miner.CandidateInterval)
}

func TestStringYAMLRoundTrips(t *testing.T) {
	cfg := Load(nil)

	out := cfg.StringYAML()
	assert.Contains(t, out, "suite:")
	assert.Contains(t, out, "node:")
	assert.Contains(t, out, "network: regtest")
}
