package work

import (
	"math/big"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/embernode/model"
)

func workToBig(t *testing.T, hash *chainhash.Hash) *big.Int {
	t.Helper()

	return new(big.Int).SetBytes(bt.ReverseBytes(hash.CloneBytes()))
}

func TestCalcBlockWork(t *testing.T) {
	tests := []struct {
		name     string
		bits     uint32
		expected string
	}{
		{
			name:     "minimum difficulty",
			bits:     0x1d00ffff,
			expected: "100010001",
		},
		{
			name:     "mainnet era difficulty",
			bits:     0x1a05db8b,
			expected: "2bb43836381c9c",
		},
		{
			name:     "high difficulty",
			bits:     0x17053894,
			expected: "31085d594cb7e26e94b5",
		},
		{
			name:     "regtest difficulty",
			bits:     0x207fffff,
			expected: "2",
		},
		{
			name:     "zero bits",
			bits:     0x00000000,
			expected: "0",
		},
		{
			name:     "negative target",
			bits:     0x01800000,
			expected: "0",
		},
		{
			name:     "mantissa shifted to zero",
			bits:     0x01003456,
			expected: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected, ok := new(big.Int).SetString(tt.expected, 16)
			require.True(t, ok)

			work := CalcBlockWork(tt.bits)
			require.Equal(t, 0, work.Cmp(expected), "expected %s, got %s", expected.Text(16), work.Text(16))
		})
	}
}

func TestCalculateWork(t *testing.T) {
	t.Run("first block from zero", func(t *testing.T) {
		nBits, err := model.NewNBitFromString("1d00ffff")
		require.NoError(t, err)

		cumulative, err := CalculateWork(&chainhash.Hash{}, *nBits)
		require.NoError(t, err)

		expected, _ := new(big.Int).SetString("100010001", 16)
		require.Equal(t, 0, workToBig(t, cumulative).Cmp(expected))
	})

	t.Run("work accumulates across blocks", func(t *testing.T) {
		nBits, err := model.NewNBitFromString("1d00ffff")
		require.NoError(t, err)

		first, err := CalculateWork(&chainhash.Hash{}, *nBits)
		require.NoError(t, err)

		second, err := CalculateWork(first, *nBits)
		require.NoError(t, err)

		expected, _ := new(big.Int).SetString("200020002", 16)
		require.Equal(t, 0, workToBig(t, second).Cmp(expected))
	})

	t.Run("zero difficulty adds no work", func(t *testing.T) {
		mainnetBits, err := model.NewNBitFromString("1a05db8b")
		require.NoError(t, err)

		prev, err := CalculateWork(&chainhash.Hash{}, *mainnetBits)
		require.NoError(t, err)

		zeroBits, err := model.NewNBitFromSlice([]byte{0x00, 0x00, 0x00, 0x00})
		require.NoError(t, err)

		cumulative, err := CalculateWork(prev, *zeroBits)
		require.NoError(t, err)

		require.Equal(t, prev, cumulative)
	})

	t.Run("overflow wraps modulo 2^256", func(t *testing.T) {
		prev := &chainhash.Hash{}
		for i := range prev {
			prev[i] = 0xff
		}

		nBits, err := model.NewNBitFromString("207fffff")
		require.NoError(t, err)

		cumulative, err := CalculateWork(prev, *nBits)
		require.NoError(t, err)

		// (2^256 - 1) + 2, truncated to the low 256 bits.
		require.Equal(t, 0, workToBig(t, cumulative).Cmp(big.NewInt(1)))
	})
}

func BenchmarkCalcBlockWork(b *testing.B) {
	for i := 0; i < b.N; i++ {
		CalcBlockWork(0x1a05db8b)
	}
}
