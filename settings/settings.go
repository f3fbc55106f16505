package settings

import (
	"time"

	"github.com/emberchain/embernode/chaincfg"
)

// NewSettings reads every setting through gocore, so values can come from
// settings.conf or the environment, and falls back to the defaults below.
// A network name that does not resolve to chain parameters is fatal.
func NewSettings() *Settings {
	network := getString("network", "mainnet")

	params, err := chaincfg.GetChainParams(network)
	if err != nil {
		panic(err)
	}

	return &Settings{
		ClientName:          getString("clientName", "embernode"),
		DataFolder:          getString("dataFolder", "data"),
		Network:             network,
		ChainCfgParams:      params,
		LogLevel:            getString("logLevel", "INFO"),
		HealthListenAddress: getString("health_httpListenAddress", ":8090"),
		ProfilerAddr:        getString("profilerAddr", ""),
		BlockChain: BlockChainSettings{
			StoreURL:             getURL("blockchain_store", "sqlite:///blockchain"),
			MaxReorgDepth:        getInt("blockchain_maxReorgDepth", 100),
			RejectedCacheTTL:     getDuration("blockchain_rejectedCacheTTL", 10*time.Minute),
			PostgresMaxIdleConns: getInt("blockchain_postgresMaxIdleConns", 10),
			PostgresMaxOpenConns: getInt("blockchain_postgresMaxOpenConns", 80),
		},
		UtxoStore: UtxoStoreSettings{
			StoreURL: getURL("utxostore", "memory:///"),
		},
		Mempool: MempoolSettings{
			MaxSize:   getInt("mempool_maxSize", 100_000),
			MaxTxSize: getInt("mempool_maxTxSize", 1_000_000),
		},
		Miner: MinerSettings{
			Enabled:               getBool("miner_enabled", false),
			CoinbaseArbitraryText: getString("coinbase_arbitrary_text", "/embernode/"),
			WalletAddress:         getString("miner_walletAddress", ""),
			CandidateInterval:     getDuration("miner_candidateInterval", 1*time.Second),
			MaxNonce:              uint32(getInt("miner_maxNonce", 0xFFFFFFFF)),
		},
		Validator: ValidatorSettings{
			SigCacheExpiration: getDuration("validator_sigCacheExpiration", 10*time.Minute),
			SigCacheCleanup:    getDuration("validator_sigCacheCleanup", 15*time.Minute),
		},
	}
}
