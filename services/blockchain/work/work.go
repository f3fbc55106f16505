// Package work implements proof-of-work accounting. The work of a single
// block is the expected number of hash attempts needed to find a digest at
// or below its target, 2^256 / (target + 1). Chain work is the running sum
// of block work over all ancestors and is what tip selection orders by.
package work

import (
	"math/big"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/emberchain/embernode/model"
)

var oneLsh256 = new(big.Int).Lsh(big.NewInt(1), 256)

// CalcBlockWork returns the work represented by one block with the given
// compact difficulty bits. Encodings that expand to a zero or negative
// target carry no work.
func CalcBlockWork(bits uint32) *big.Int {
	target := model.NewNBitFromCompact(bits).CalculateTarget()
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}

	denominator := new(big.Int).Add(target, big.NewInt(1))

	return new(big.Int).Div(oneLsh256, denominator)
}

// CalculateWork adds the work of a block with difficulty nBits to the
// cumulative work of its parent. Cumulative work is carried in a hash so it
// can be stored and compared like one; the byte order is little endian,
// matching hash storage.
func CalculateWork(prevWork *chainhash.Hash, nBits model.NBit) (*chainhash.Hash, error) {
	blockWork := CalcBlockWork(nBits.Compact())

	cumulative := new(big.Int).SetBytes(bt.ReverseBytes(prevWork.CloneBytes()))
	cumulative.Add(cumulative, blockWork)

	b := bt.ReverseBytes(cumulative.Bytes())

	hash := &chainhash.Hash{}
	copy(hash[:], b)

	return hash, nil
}
