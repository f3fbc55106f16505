package settings

import (
	"net/url"
	"time"

	"github.com/emberchain/embernode/chaincfg"
)

type BlockChainSettings struct {
	StoreURL             *url.URL
	MaxReorgDepth        int
	RejectedCacheTTL     time.Duration
	PostgresMaxIdleConns int
	PostgresMaxOpenConns int
}

type UtxoStoreSettings struct {
	StoreURL *url.URL
}

type MempoolSettings struct {
	MaxSize   int
	MaxTxSize int
}

type MinerSettings struct {
	Enabled               bool
	CoinbaseArbitraryText string
	WalletAddress         string
	CandidateInterval     time.Duration
	MaxNonce              uint32
}

type ValidatorSettings struct {
	SigCacheExpiration time.Duration
	SigCacheCleanup    time.Duration
}

type Settings struct {
	ClientName          string
	DataFolder          string
	Network             string
	ChainCfgParams      *chaincfg.Params
	LogLevel            string
	HealthListenAddress string
	ProfilerAddr        string
	BlockChain          BlockChainSettings
	UtxoStore           UtxoStoreSettings
	Mempool             MempoolSettings
	Miner               MinerSettings
	Validator           ValidatorSettings
}
