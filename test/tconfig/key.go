package tconfig

// Key definition conformed to viper format. The same key path works for
// environment variables and for config files:
//
//	key node.network is equivalent to EMBER_NODE_NETWORK
//
// Use the constants instead of raw strings.
const (
	// Keys for suite config
	KeySuiteName     = "suite.name"
	KeySuiteLogLevel = "suite.loglevel"
	KeySuiteTimeout  = "suite.timeout"

	// Keys for node config
	KeyNodeNetwork            = "node.network"
	KeyNodeBlockchainStoreURL = "node.blockchainstoreurl"
	KeyNodeUtxoStoreURL       = "node.utxostoreurl"
	KeyNodeMinerEnabled       = "node.minerenabled"
	KeyNodeCandidateInterval  = "node.candidateinterval"
)
