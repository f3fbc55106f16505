package cpuminer

import (
	"context"
	"math"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/embernode/chaincfg"
	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
)

func testHeader(compactBits uint32) *model.BlockHeader {
	prev := chainhash.Hash{0x01}
	root := chainhash.Hash{0x02}

	return &model.BlockHeader{
		Version:        1,
		Height:         10,
		HashPrevBlock:  &prev,
		HashMerkleRoot: &root,
		Timestamp:      1700000000,
		Bits:           *model.NewNBitFromCompact(compactBits),
	}
}

func TestMineFindsWinningNonce(t *testing.T) {
	header := testHeader(chaincfg.RegressionNetParams.PowLimitBits)

	hash, err := Mine(context.Background(), header, math.MaxUint32)
	require.NoError(t, err)
	require.Equal(t, header.Hash(), hash)

	ok, _, _ := header.HasMetTargetDifficulty()
	require.True(t, ok)
}

func TestMineNonceExhausted(t *testing.T) {
	// A unit target cannot be met by any hash.
	header := testHeader(0x01010000)

	_, err := Mine(context.Background(), header, 5000)
	require.True(t, errors.Is(err, errors.ErrNonceExhausted))
}

func TestMineCancelled(t *testing.T) {
	header := testHeader(0x01010000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Mine(ctx, header, math.MaxUint32)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestMineRejectsNonPositiveTarget(t *testing.T) {
	// Compact zero expands to target zero.
	header := testHeader(0)

	_, err := Mine(context.Background(), header, math.MaxUint32)
	require.True(t, errors.Is(err, errors.ErrProcessing))

	// The compact sign bit makes the target negative.
	header = testHeader(0x01810000)

	_, err = Mine(context.Background(), header, math.MaxUint32)
	require.True(t, errors.Is(err, errors.ErrProcessing))
}
