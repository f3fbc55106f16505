package blockchain

import (
	"context"
	"math/big"
	"time"

	"github.com/emberchain/embernode/chaincfg"
	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
	"github.com/emberchain/embernode/settings"
	blockchain_store "github.com/emberchain/embernode/stores/blockchain"
	"github.com/emberchain/embernode/ulogger"
)

var oneLsh256 = new(big.Int).Lsh(big.NewInt(1), 256)

// Difficulty computes the required proof of work bits for the next block.
// The retarget spreads the chain work accumulated over the adjustment
// window across the time it actually took, so a chain that is running fast
// tightens the target and a slow one relaxes it.
type Difficulty struct {
	logger        ulogger.Logger
	settings      *settings.Settings
	store         blockchain_store.Store
	chainParams   *chaincfg.Params
	powLimitNBits model.NBit
}

func NewDifficulty(store blockchain_store.Store, logger ulogger.Logger, tSettings *settings.Settings) (*Difficulty, error) {
	chainParams := tSettings.ChainCfgParams
	if chainParams == nil {
		return nil, errors.NewConfigurationError("difficulty requires chain parameters")
	}

	if chainParams.TargetTimePerBlock <= 0 {
		return nil, errors.NewConfigurationError("target time per block must be positive, got %s", chainParams.TargetTimePerBlock)
	}

	return &Difficulty{
		logger:        logger,
		settings:      tSettings,
		store:         store,
		chainParams:   chainParams,
		powLimitNBits: *model.NewNBitFromCompact(chainParams.PowLimitBits),
	}, nil
}

// CalcNextWorkRequired returns the bits required of the block built on top
// of the given parent. The now timestamp is the candidate block time: a
// validator passes the timestamp of the block under inspection so the
// result is deterministic, a miner passes the wall clock.
func (d *Difficulty) CalcNextWorkRequired(ctx context.Context, parentHeader *model.BlockHeader, parentMeta *model.BlockHeaderMeta, now uint32) (*model.NBit, error) {
	if d.chainParams.NoDifficultyAdjustment {
		bits := parentHeader.Bits
		return &bits, nil
	}

	// After a long enough gap a minimum difficulty block is allowed, so a
	// test network cannot stall when its miners leave.
	if d.chainParams.ReduceMinDifficulty {
		reductionTime := uint32(d.chainParams.MinDiffReductionTime / time.Second)
		if now > parentHeader.Timestamp+reductionTime {
			bits := d.powLimitNBits
			return &bits, nil
		}
	}

	window := d.chainParams.DifficultyAdjustmentWindow
	if window == 0 || parentMeta.Height < window {
		// Not enough history to measure, mine at the pow limit.
		bits := d.powLimitNBits
		return &bits, nil
	}

	firstHash, err := d.store.GetHashOfAncestorBlock(ctx, parentHeader.Hash(), int(window))
	if err != nil {
		return nil, errors.NewProcessingError("failed to get ancestor %d blocks before %s", window, parentHeader.Hash(), err)
	}

	firstHeader, firstMeta, err := d.store.GetBlockHeader(ctx, firstHash)
	if err != nil {
		return nil, errors.NewProcessingError("failed to get retarget window start %s", firstHash, err)
	}

	nextBits, err := d.computeRequiredTarget(parentHeader, parentMeta, firstHeader, firstMeta)
	if err != nil {
		return nil, err
	}

	d.logger.Debugf("[Difficulty] next work after %s (height %d): %s", parentHeader.Hash(), parentMeta.Height, nextBits.String())

	return nextBits, nil
}

func (d *Difficulty) computeRequiredTarget(lastHeader *model.BlockHeader, lastMeta *model.BlockHeaderMeta, firstHeader *model.BlockHeader, firstMeta *model.BlockHeaderMeta) (*model.NBit, error) {
	work := new(big.Int).SetBytes(lastMeta.ChainWork)
	work.Sub(work, new(big.Int).SetBytes(firstMeta.ChainWork))

	if work.Sign() <= 0 {
		return nil, errors.NewProcessingError("no chain work accumulated between %s and %s", firstHeader.Hash(), lastHeader.Hash())
	}

	targetSeconds := int64(d.chainParams.TargetTimePerBlock / time.Second)
	window := int64(d.chainParams.DifficultyAdjustmentWindow)

	// In order to avoid difficulty cliffs, we bound the amplitude of the
	// adjustment we are going to do to a factor in [0.5, 2].
	duration := int64(lastHeader.Timestamp) - int64(firstHeader.Timestamp)
	if duration > 2*window*targetSeconds {
		duration = 2 * window * targetSeconds
	} else if duration < window/2*targetSeconds {
		duration = window / 2 * targetSeconds
	}

	// Work per target interval over the window.
	projectedWork := new(big.Int).Mul(work, big.NewInt(targetSeconds))
	projectedWork.Div(projectedWork, big.NewInt(duration))

	if projectedWork.Sign() <= 0 {
		bits := d.powLimitNBits
		return &bits, nil
	}

	// The work a block meeting target t proves is 2^256 / (t + 1), so the
	// target demanding projectedWork per block is (2^256 - pw) / pw.
	newTarget := new(big.Int).Sub(oneLsh256, projectedWork)
	newTarget.Div(newTarget, projectedWork)

	if newTarget.Cmp(d.chainParams.PowLimit) > 0 {
		bits := d.powLimitNBits
		return &bits, nil
	}

	return model.NewNBitFromCompact(BigToCompact(newTarget)), nil
}

// BigToCompact converts a whole number to the compact representation used
// to encode difficulty targets. The compact form is a base 256 mantissa
// with 23 effective bits of precision and a one byte exponent.
func BigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	// Shift the mantissa into the low 3 bytes, using a sign bit free
	// representation. The most significant mantissa bit doubles as the sign
	// bit, so a value that would set it is shifted down one more byte.
	var mantissa uint32

	exponent := uint(len(n.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(n)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}

	return compact
}
