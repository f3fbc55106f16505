package model

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"github.com/bsv-blockchain/go-bt/v2"

	"github.com/emberchain/embernode/errors"
)

// NBit is the compact difficulty encoding carried in a block header. The
// four bytes are stored in wire (little endian) order; String renders the
// customary big endian form.
type NBit [4]byte

// NewNBitFromString parses the big endian hex form, eg "1d00ffff".
func NewNBitFromString(bits string) (*NBit, error) {
	b, err := hex.DecodeString(bits)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("failed to decode bits %q", bits, err)
	}

	return NewNBitFromSlice(bt.ReverseBytes(b))
}

// NewNBitFromSlice wraps 4 wire order bytes.
func NewNBitFromSlice(b []byte) (*NBit, error) {
	if len(b) != 4 {
		return nil, errors.NewInvalidArgumentError("nbit should be 4 bytes long, got %d", len(b))
	}

	var nBit NBit
	copy(nBit[:], b)

	return &nBit, nil
}

// NewNBitFromCompact wraps a uint32 compact value.
func NewNBitFromCompact(compact uint32) *NBit {
	var nBit NBit
	binary.LittleEndian.PutUint32(nBit[:], compact)

	return &nBit
}

func (n *NBit) String() string {
	return hex.EncodeToString(bt.ReverseBytes(n[:]))
}

// Compact returns the uint32 form of the encoding.
func (n *NBit) Compact() uint32 {
	return binary.LittleEndian.Uint32(n[:])
}

// CloneBytes returns a copy of the wire order bytes.
func (n *NBit) CloneBytes() []byte {
	b := make([]byte, 4)
	copy(b, n[:])

	return b
}

// CalculateTarget expands the compact encoding into the full 256 bit target.
// The mantissa occupies the low 23 bits, bit 23 is the sign and the high byte
// is a base 256 exponent.
func (n *NBit) CalculateTarget() *big.Int {
	compact := n.Compact()

	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := uint(compact >> 24)

	var bn *big.Int

	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if isNegative {
		bn = bn.Neg(bn)
	}

	return bn
}

// CalculateDifficulty returns the ratio between the maximum target and this
// target, ie how much harder than difficulty 1 this encoding is.
func (n *NBit) CalculateDifficulty() *big.Float {
	// Difficulty 1 corresponds to compact bits 0x1d00ffff.
	maxTarget := new(big.Int).Lsh(big.NewInt(0xffff), 208)

	target := n.CalculateTarget()
	if target.Sign() <= 0 {
		return big.NewFloat(0)
	}

	return new(big.Float).Quo(
		new(big.Float).SetInt(maxTarget),
		new(big.Float).SetInt(target),
	)
}
