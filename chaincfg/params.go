// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"
	"strings"
	"time"

	"github.com/emberchain/embernode/errors"
)

// These variables are the chain proof-of-work limit parameters for each default
// network.
var (
	// bigOne is 1 represented as a big.Int.  It is defined here to avoid
	// the overhead of creating it multiple times.
	bigOne = big.NewInt(1)

	// mainPowLimit is the highest proof of work value a block can have for
	// the main network.  It is the value 2^224 - 1.
	mainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	// testNetPowLimit is the highest proof of work value a block can have
	// for the test network.  It is the value 2^225 - 1.
	testNetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 225), bigOne)

	// regressionPowLimit is the highest proof of work value a block can
	// have for the regression test network.  It is the value 2^255 - 1.
	regressionPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)
)

// Params defines a network by its consensus parameters. Parameters are
// immutable after startup; every component reads them through the same
// pointer.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Net defines the magic bytes used to identify the network.
	Net uint32

	// PubKeyHashAddrID is the version byte prefixed to base58 addresses.
	PubKeyHashAddrID byte

	// PowLimit defines the highest allowed proof of work value for a
	// block as a uint256.
	PowLimit *big.Int

	// PowLimitBits defines the highest allowed proof of work value for a
	// block in compact form.
	PowLimitBits uint32

	// CoinbaseMaturity is the number of blocks required before newly mined
	// coins can be spent.
	CoinbaseMaturity uint16

	// SubsidyReductionInterval is the interval of blocks before the
	// subsidy halves.
	SubsidyReductionInterval uint32

	// BaseSubsidy is the block reward paid at height 0, in satoshis.
	BaseSubsidy uint64

	// TargetTimePerBlock is the desired amount of time between blocks.
	TargetTimePerBlock time.Duration

	// DifficultyAdjustmentWindow is the number of ancestor blocks the
	// retarget calculation looks back across.
	DifficultyAdjustmentWindow uint32

	// ReduceMinDifficulty allows the minimum difficulty to be used after
	// MinDiffReductionTime has elapsed without a block being mined.
	ReduceMinDifficulty bool

	// MinDiffReductionTime is the time after which the minimum difficulty
	// applies when ReduceMinDifficulty is set.
	MinDiffReductionTime time.Duration

	// NoDifficultyAdjustment keeps every block at the parent's difficulty.
	NoDifficultyAdjustment bool

	// MaxBlockSize is the largest serialized block accepted, in bytes.
	MaxBlockSize uint64

	// GenesisTimestamp is the fixed header timestamp of the genesis block,
	// making the mined genesis deterministic for a given reward address.
	GenesisTimestamp uint32
}

// MainNetParams defines the network parameters for the main network.
var MainNetParams = Params{
	Name:             "mainnet",
	Net:              0xe8f3c1d2,
	PubKeyHashAddrID: 0x00,

	PowLimit:                 mainPowLimit,
	PowLimitBits:             0x1d00ffff,
	CoinbaseMaturity:         100,
	SubsidyReductionInterval: 210000,
	BaseSubsidy:              50e8,
	TargetTimePerBlock:       time.Minute * 10,

	DifficultyAdjustmentWindow: 144,
	ReduceMinDifficulty:        false,
	MinDiffReductionTime:       0,
	NoDifficultyAdjustment:     false,

	MaxBlockSize:     32 * 1024 * 1024,
	GenesisTimestamp: 1735689600,
}

// TestNetParams defines the network parameters for the test network.
var TestNetParams = Params{
	Name:             "testnet",
	Net:              0xf4d9a7b3,
	PubKeyHashAddrID: 0x6f,

	PowLimit:                 testNetPowLimit,
	PowLimitBits:             0x1d00ffff,
	CoinbaseMaturity:         100,
	SubsidyReductionInterval: 210000,
	BaseSubsidy:              50e8,
	TargetTimePerBlock:       time.Minute * 10,

	DifficultyAdjustmentWindow: 144,
	ReduceMinDifficulty:        true,
	MinDiffReductionTime:       time.Minute * 20,
	NoDifficultyAdjustment:     false,

	MaxBlockSize:     32 * 1024 * 1024,
	GenesisTimestamp: 1735689600,
}

// RegressionNetParams defines the network parameters for the regression test
// network. Difficulty stays at the pow limit and coinbase outputs mature
// immediately, which keeps locally mined chains cheap to build.
var RegressionNetParams = Params{
	Name:             "regtest",
	Net:              0xdab5bffa,
	PubKeyHashAddrID: 0x6f,

	PowLimit:                 regressionPowLimit,
	PowLimitBits:             0x207fffff,
	CoinbaseMaturity:         1,
	SubsidyReductionInterval: 150,
	BaseSubsidy:              50e8,
	TargetTimePerBlock:       time.Minute * 10,

	DifficultyAdjustmentWindow: 144,
	ReduceMinDifficulty:        true,
	MinDiffReductionTime:       time.Minute * 20,
	NoDifficultyAdjustment:     true,

	MaxBlockSize:     32 * 1024 * 1024,
	GenesisTimestamp: 1735689600,
}

// SubsidyForHeight returns the block reward at the given height: the base
// subsidy halved once per SubsidyReductionInterval, reaching zero once the
// shift consumes every bit.
func (p *Params) SubsidyForHeight(height uint32) uint64 {
	if p.SubsidyReductionInterval == 0 {
		return p.BaseSubsidy
	}

	halvings := height / p.SubsidyReductionInterval
	if halvings >= 64 {
		return 0
	}

	return p.BaseSubsidy >> halvings
}

// GetChainParams maps a network name from configuration to its parameters.
func GetChainParams(network string) (*Params, error) {
	switch strings.ToLower(network) {
	case "mainnet", "main":
		return &MainNetParams, nil
	case "testnet", "test":
		return &TestNetParams, nil
	case "regtest", "regression":
		return &RegressionNetParams, nil
	default:
		return nil, errors.NewConfigurationError("unknown network: %s", network)
	}
}
