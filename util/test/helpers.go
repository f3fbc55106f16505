// Package test holds settings helpers shared by store and service tests.
package test

import (
	"github.com/emberchain/embernode/chaincfg"
	"github.com/emberchain/embernode/settings"
)

// CreateBaseTestSettings returns settings tuned for tests: the regression
// network, so blocks can be mined at trivial difficulty, and a coinbase
// maturity of 1, so a coinbase minted in one block is spendable in the next.
// The params struct is copied, tests may override knobs freely.
func CreateBaseTestSettings() *settings.Settings {
	tSettings := settings.NewSettings()

	regtest := chaincfg.RegressionNetParams
	regtest.CoinbaseMaturity = 1

	tSettings.Network = regtest.Name
	tSettings.ChainCfgParams = &regtest

	return tSettings
}
