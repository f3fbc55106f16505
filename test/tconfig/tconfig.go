// Package tconfig loads the configuration for daemon level tests through
// viper: defaults first, then an optional config file named by
// EMBER_TCONFIG_FILE, then EMBER_ prefixed environment variables, then
// programmatic overrides. Tests unmarshal the result into TConfig and apply
// it to the node settings they boot with.
package tconfig

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/emberchain/embernode/settings"
)

// TConfig holds the flat configuration for a test run.
type TConfig struct {
	viper *viper.Viper

	// Suite holds the meta information for a test suite.
	Suite ConfigSuite `mapstructure:"suite" json:"suite" yaml:"suite"`

	// Node holds the settings overrides for the nodes under test.
	Node ConfigNode `mapstructure:"node" json:"node" yaml:"node"`
}

// ConfigSuite carries suite wide knobs.
type ConfigSuite struct {
	Name     string        `mapstructure:"name" json:"name" yaml:"name"`
	LogLevel string        `mapstructure:"loglevel" json:"loglevel" yaml:"loglevel"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
}

// ConfigNode carries the node settings a test is allowed to vary.
type ConfigNode struct {
	Network            string        `mapstructure:"network" json:"network" yaml:"network"`
	BlockchainStoreURL string        `mapstructure:"blockchainstoreurl" json:"blockchainstoreurl" yaml:"blockchainstoreurl"`
	UtxoStoreURL       string        `mapstructure:"utxostoreurl" json:"utxostoreurl" yaml:"utxostoreurl"`
	MinerEnabled       bool          `mapstructure:"minerenabled" json:"minerenabled" yaml:"minerenabled"`
	CandidateInterval  time.Duration `mapstructure:"candidateinterval" json:"candidateinterval" yaml:"candidateinterval"`
}

// Load builds a TConfig. The kv overrides, when given, win over environment
// variables and config file values.
func Load(kv map[string]any) TConfig {
	c := TConfig{}
	c.initViper()

	for key, value := range kv {
		c.Set(key, value)
	}

	if err := c.viper.Unmarshal(&c); err != nil {
		panic(err)
	}

	return c
}

// Set overrides a single key. It must be called before Load's unmarshal has
// run to be visible in the struct fields, so tests normally pass overrides
// to Load instead.
func (c *TConfig) Set(k string, v any) {
	c.viper.Set(k, v)
}

// ApplySettings copies the node overrides onto the given settings. It is
// shaped to be used as a settings override hook when booting a test daemon.
func (c *TConfig) ApplySettings(tSettings *settings.Settings) {
	if u := mustParseURL(c.Node.BlockchainStoreURL); u != nil {
		tSettings.BlockChain.StoreURL = u
	}

	if u := mustParseURL(c.Node.UtxoStoreURL); u != nil {
		tSettings.UtxoStore.StoreURL = u
	}

	tSettings.Miner.Enabled = c.Node.MinerEnabled

	if c.Node.CandidateInterval > 0 {
		tSettings.Miner.CandidateInterval = c.Node.CandidateInterval
	}

	if c.Suite.LogLevel != "" {
		tSettings.LogLevel = c.Suite.LogLevel
	}
}

// StringYAML returns the config in yaml format, for logging a suite's
// effective configuration.
func (c *TConfig) StringYAML() string {
	strYAML, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("Error marshalling to YAML: %v\n", err)
	}

	return string(strYAML)
}

func (c *TConfig) initViper() {
	if c.viper != nil {
		return
	}

	c.viper = viper.New()
	c.viper.SetEnvPrefix("ember")
	c.viper.AutomaticEnv()
	c.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	c.viper.SetDefault(KeySuiteName, "daemon")
	c.viper.SetDefault(KeySuiteLogLevel, "ERROR")
	c.viper.SetDefault(KeySuiteTimeout, 30*time.Second)

	c.viper.SetDefault(KeyNodeNetwork, "regtest")
	c.viper.SetDefault(KeyNodeBlockchainStoreURL, "sqlitememory:///blockchain")
	c.viper.SetDefault(KeyNodeUtxoStoreURL, "memory:///")
	c.viper.SetDefault(KeyNodeMinerEnabled, false)
	c.viper.SetDefault(KeyNodeCandidateInterval, 20*time.Millisecond)

	// An explicit config file has to be a good one.
	if configFile := os.Getenv("EMBER_TCONFIG_FILE"); configFile != "" {
		c.viper.SetConfigFile(configFile)

		if err := c.viper.ReadInConfig(); err != nil {
			panic(err)
		}
	}
}

func mustParseURL(raw string) *url.URL {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}

	return u
}
