package blockchain

import (
	"context"
	"math/big"
	"net/url"
	"testing"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/embernode/chaincfg"
	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
	blockchain_store "github.com/emberchain/embernode/stores/blockchain"
	"github.com/emberchain/embernode/ulogger"
	"github.com/emberchain/embernode/util/test"
)

// newTestDifficulty builds a Difficulty over a fresh in-memory store.
// mutate adjusts the chain parameters before anything reads them.
func newTestDifficulty(t *testing.T, mutate func(params *chaincfg.Params)) (*Difficulty, blockchain_store.Store) {
	t.Helper()

	logger := ulogger.NewErrorTestLogger(t)
	tSettings := test.CreateBaseTestSettings()

	if mutate != nil {
		mutate(tSettings.ChainCfgParams)
	}

	storeURL, err := url.Parse("sqlitememory:///")
	require.NoError(t, err)

	store, err := blockchain_store.NewStore(logger, storeURL, tSettings)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close(context.Background()) })

	difficulty, err := NewDifficulty(store, logger, tSettings)
	require.NoError(t, err)

	return difficulty, store
}

// storeHeaderChain stores headers for heights 0 through count, spaced
// interval seconds apart, all declaring the same bits. The store does not
// check proof of work, so the headers need not be mined.
func storeHeaderChain(t *testing.T, store blockchain_store.Store, bits model.NBit, interval uint32, count int) []*model.BlockHeader {
	t.Helper()

	ctx := context.Background()

	const baseTime = uint32(1700000000)

	headers := make([]*model.BlockHeader, 0, count+1)
	prevHash := &chainhash.Hash{}

	for i := 0; i <= count; i++ {
		root := chainhash.Hash{byte(i), 0x01}
		header := &model.BlockHeader{
			Version:        1,
			Height:         uint32(i),
			HashPrevBlock:  prevHash,
			HashMerkleRoot: &root,
			Timestamp:      baseTime + uint32(i)*interval,
			Bits:           bits,
		}

		block, err := model.NewBlock(header, nil)
		require.NoError(t, err)

		_, err = store.StoreBlock(ctx, block)
		require.NoError(t, err)

		headers = append(headers, header)
		prevHash = header.Hash()
	}

	return headers
}

func TestNewDifficultyRequiresChainParams(t *testing.T) {
	logger := ulogger.NewErrorTestLogger(t)

	tSettings := test.CreateBaseTestSettings()
	tSettings.ChainCfgParams = nil

	_, err := NewDifficulty(nil, logger, tSettings)
	require.True(t, errors.Is(err, errors.ErrConfiguration))

	tSettings = test.CreateBaseTestSettings()
	tSettings.ChainCfgParams.TargetTimePerBlock = 0

	_, err = NewDifficulty(nil, logger, tSettings)
	require.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestCalcNextWorkRequiredNoAdjustment(t *testing.T) {
	// The regression network pins every block to its parent's bits.
	d, _ := newTestDifficulty(t, nil)

	parentBits := model.NewNBitFromCompact(0x207fffff)
	parent := &model.BlockHeader{
		Version:   1,
		Height:    900,
		Timestamp: 1700000000,
		Bits:      *parentBits,
	}

	bits, err := d.CalcNextWorkRequired(context.Background(), parent, &model.BlockHeaderMeta{Height: 900}, parent.Timestamp+600)
	require.NoError(t, err)
	require.Equal(t, *parentBits, *bits)
}

func TestCalcNextWorkRequiredBelowWindow(t *testing.T) {
	// With less history than the adjustment window the chain mines at the
	// proof of work limit.
	d, _ := newTestDifficulty(t, func(params *chaincfg.Params) {
		params.NoDifficultyAdjustment = false
		params.ReduceMinDifficulty = false
		params.DifficultyAdjustmentWindow = 4
	})

	parent := &model.BlockHeader{
		Version:   1,
		Height:    3,
		Timestamp: 1700000000,
		Bits:      *model.NewNBitFromCompact(0x1d00ffff),
	}

	bits, err := d.CalcNextWorkRequired(context.Background(), parent, &model.BlockHeaderMeta{Height: 3}, parent.Timestamp+600)
	require.NoError(t, err)
	require.Equal(t, chaincfg.RegressionNetParams.PowLimitBits, bits.Compact())
}

func TestCalcNextWorkRequiredMinDifficultyAfterGap(t *testing.T) {
	d, _ := newTestDifficulty(t, func(params *chaincfg.Params) {
		params.NoDifficultyAdjustment = false
		params.ReduceMinDifficulty = true
		params.MinDiffReductionTime = 20 * time.Minute
	})

	parent := &model.BlockHeader{
		Version:   1,
		Height:    500,
		Timestamp: 1700000000,
		Bits:      *model.NewNBitFromCompact(0x1d00ffff),
	}

	// One second past the reduction window the limit applies, whatever
	// the parent's bits say.
	bits, err := d.CalcNextWorkRequired(context.Background(), parent, &model.BlockHeaderMeta{Height: 500}, parent.Timestamp+1201)
	require.NoError(t, err)
	require.Equal(t, chaincfg.RegressionNetParams.PowLimitBits, bits.Compact())
}

func TestCalcNextWorkRequiredRetarget(t *testing.T) {
	const (
		window   = 4
		interval = uint32(600)
		oldBits  = uint32(0x1d00ffff)
	)

	mutate := func(params *chaincfg.Params) {
		params.NoDifficultyAdjustment = false
		params.ReduceMinDifficulty = false
		params.DifficultyAdjustmentWindow = window
		params.TargetTimePerBlock = 10 * time.Minute
	}

	nBits := model.NewNBitFromCompact(oldBits)

	// calc builds a chain with the given block spacing and returns the
	// bits demanded of the next block.
	calc := func(t *testing.T, spacing uint32) *model.NBit {
		t.Helper()

		d, store := newTestDifficulty(t, mutate)

		headers := storeHeaderChain(t, store, *nBits, spacing, window+1)
		tip := headers[len(headers)-1]

		_, tipMeta, err := store.GetBlockHeader(context.Background(), tip.Hash())
		require.NoError(t, err)

		next, err := d.CalcNextWorkRequired(context.Background(), tip, tipMeta, tip.Timestamp+spacing)
		require.NoError(t, err)

		return next
	}

	oldTarget := nBits.CalculateTarget()

	// Blocks arriving on schedule leave the difficulty where it is, up to
	// compact encoding rounding: within half a percent.
	onSchedule := calc(t, interval).CalculateTarget()
	drift := new(big.Int).Abs(new(big.Int).Sub(onSchedule, oldTarget))
	require.Negative(t, drift.Mul(drift, big.NewInt(200)).Cmp(oldTarget))

	// Fast blocks tighten the target, slow blocks relax it.
	fast := calc(t, interval/2)
	require.Negative(t, fast.CalculateTarget().Cmp(oldTarget))

	slow := calc(t, interval*2)
	require.Positive(t, slow.CalculateTarget().Cmp(oldTarget))

	// The amplitude is clamped to [0.5, 2]: a chain far beyond the bound
	// gets the same adjustment as one exactly at it.
	require.Equal(t, *fast, *calc(t, 1))
	require.Equal(t, *slow, *calc(t, interval*100))
}

func TestGetNextWorkRequired(t *testing.T) {
	tc := newTestChain(t)
	ctx := context.Background()

	genesis := tc.initGenesis(t)

	bits, err := tc.chain.GetNextWorkRequired(ctx, genesis.Hash(), genesis.Header.Timestamp+600)
	require.NoError(t, err)
	require.Equal(t, genesis.Header.Bits, *bits)

	unknown := chainhash.Hash{0x07}

	_, err = tc.chain.GetNextWorkRequired(ctx, &unknown, genesis.Header.Timestamp+600)
	require.True(t, errors.Is(err, errors.ErrBlockNotFound))
}

func TestBigToCompact(t *testing.T) {
	require.Equal(t, uint32(0), BigToCompact(big.NewInt(0)))
	require.Equal(t, uint32(0x01120000), BigToCompact(big.NewInt(0x12)))
	require.Equal(t, uint32(0x02123400), BigToCompact(big.NewInt(0x1234)))
	require.Equal(t, uint32(0x04123456), BigToCompact(big.NewInt(0x12345600)))

	// A leading mantissa bit would read as a sign, so the value shifts
	// into the next exponent.
	require.Equal(t, uint32(0x02008000), BigToCompact(big.NewInt(0x80)))
}

func TestBigToCompactRoundTrip(t *testing.T) {
	for _, compact := range []uint32{
		0x1d00ffff, // difficulty 1
		0x1b0404cb,
		0x207fffff, // regtest pow limit
	} {
		target := model.NewNBitFromCompact(compact).CalculateTarget()
		require.Equal(t, compact, BigToCompact(target))
	}
}
