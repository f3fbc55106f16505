package validator

import (
	"context"
	"net/http"
	"time"

	"github.com/ordishs/gocore"
	"github.com/patrickmn/go-cache"

	"github.com/emberchain/embernode/crypto"
	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
	"github.com/emberchain/embernode/settings"
	"github.com/emberchain/embernode/stores/utxo"
	"github.com/emberchain/embernode/ulogger"
)

// MaxSatoshis is the number of satoshis that will ever exist: 21 million
// coins. No single value, nor any sum this package computes, may exceed it.
const MaxSatoshis = 21_000_000 * 1e8

// Validator enforces the transaction rules. It is stateless apart from a
// cache of transaction ids whose signatures already verified, so a single
// instance serves mempool admission and block validation concurrently.
type Validator struct {
	logger   ulogger.Logger
	settings *settings.Settings

	// sigCache remembers txids whose signatures verified. A txid commits
	// to the full transaction content including signatures and keys, so a
	// hit can only mean the same signatures over the same bytes.
	sigCache *cache.Cache
}

// New creates a Validator with the signature cache lifetime taken from the
// validator settings.
func New(logger ulogger.Logger, tSettings *settings.Settings) *Validator {
	initPrometheusMetrics()

	return &Validator{
		logger:   logger,
		settings: tSettings,
		sigCache: cache.New(tSettings.Validator.SigCacheExpiration, tSettings.Validator.SigCacheCleanup),
	}
}

func (v *Validator) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, "Validator", nil
}

// ValidateTransaction checks every rule a non-coinbase transaction must
// satisfy to be included at blockHeight, resolving its inputs through
// view, and returns the fee the transaction pays. A failure on any single
// input rejects the whole transaction with a coded error.
func (v *Validator) ValidateTransaction(ctx context.Context, tx *model.Tx, blockHeight uint32, view UtxoView) (uint64, error) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("validator").NewStat("ValidateTransaction").AddTime(start)
		prometheusTransactionValidate.Observe(float64(time.Since(start).Microseconds()) / 1_000_000)
	}()

	fee, err := v.validateTransaction(ctx, tx, blockHeight, view)
	if err != nil {
		prometheusInvalidTransactions.Inc()
		return 0, err
	}

	prometheusValidTransactions.Inc()

	return fee, nil
}

func (v *Validator) validateTransaction(ctx context.Context, tx *model.Tx, blockHeight uint32, view UtxoView) (uint64, error) {
	if tx == nil {
		return 0, errors.NewInvalidArgumentError("transaction is nil")
	}

	// 1) A coinbase is only meaningful inside a block; the blockchain
	//    service checks it against the subsidy there.
	if tx.IsCoinbase() {
		return 0, errors.NewTxInvalidError("coinbase transaction %s cannot be validated on its own", tx.TxID())
	}

	// 2) The list of outputs must not be empty, and only a coinbase may
	//    carry a payload.
	if len(tx.Outputs) == 0 {
		return 0, errors.NewTxInvalidError("transaction has no outputs")
	}

	if len(tx.Payload) != 0 {
		return 0, errors.NewTxInvalidError("only a coinbase transaction may carry a payload")
	}

	// 3) No outpoint may be spent twice by the same transaction.
	if err := checkDuplicateInputs(tx); err != nil {
		return 0, err
	}

	// 4) Each output value, as well as the total, must be inside the money
	//    range.
	totalOut, err := checkOutputs(tx)
	if err != nil {
		return 0, err
	}

	// 5) Every input must spend an output that exists in the view, is
	//    mature if it came from a coinbase, and is locked to the key the
	//    input presents.
	unspents, totalIn, err := v.resolveInputs(ctx, tx, blockHeight, view)
	if err != nil {
		return 0, err
	}

	// 6) Every input signature must verify against the signing view for
	//    its slot.
	if err = v.checkSignatures(tx, unspents); err != nil {
		return 0, err
	}

	// 7) The inputs must cover the outputs; the difference is the fee.
	if totalIn < totalOut {
		return 0, errors.NewTxInvalidError("transaction spends %d but its inputs only provide %d", totalOut, totalIn)
	}

	return totalIn - totalOut, nil
}

func checkDuplicateInputs(tx *model.Tx) error {
	seen := make(map[model.Outpoint]struct{}, len(tx.Inputs))

	for i, input := range tx.Inputs {
		outpoint := input.Outpoint()

		if _, ok := seen[outpoint]; ok {
			return errors.NewTxInvalidError("input %d spends %s twice", i, outpoint)
		}

		seen[outpoint] = struct{}{}
	}

	return nil
}

func checkOutputs(tx *model.Tx) (uint64, error) {
	total := uint64(0)

	for i, output := range tx.Outputs {
		if output.Satoshis > MaxSatoshis {
			return 0, errors.NewTxInvalidError("output %d value is beyond the money range", i)
		}

		total += output.Satoshis
	}

	if total > MaxSatoshis {
		return 0, errors.NewTxInvalidError("total output value is beyond the money range")
	}

	return total, nil
}

// resolveInputs looks up the output every input spends and returns the
// records in input order together with the total value they provide.
func (v *Validator) resolveInputs(ctx context.Context, tx *model.Tx, blockHeight uint32, view UtxoView) ([]*utxo.Unspent, uint64, error) {
	maturity := uint32(v.settings.ChainCfgParams.CoinbaseMaturity)

	unspents := make([]*utxo.Unspent, len(tx.Inputs))
	total := uint64(0)

	for i, input := range tx.Inputs {
		unspent, err := view.Get(ctx, input.PreviousTxHash, input.PreviousTxOutIndex)
		if err != nil {
			if errors.Is(err, errors.ErrUtxoNotFound) {
				return nil, 0, errors.NewUtxoNotFoundError("input %d spends unknown or already spent output %s", i, input.Outpoint(), err)
			}

			return nil, 0, errors.NewProcessingError("error resolving input %d", i, err)
		}

		if unspent.IsCoinbase && blockHeight < unspent.Height+maturity {
			return nil, 0, errors.NewTxCoinbaseImmatureError("input %d spends coinbase output %s minted at height %d, spendable from height %d", i, input.Outpoint(), unspent.Height, unspent.Height+maturity)
		}

		if crypto.HashPublicKey(input.PublicKey) != unspent.LockingHash {
			return nil, 0, errors.NewTxInvalidError("input %d public key does not hash to the locking hash of %s", i, input.Outpoint())
		}

		if unspent.Satoshis > MaxSatoshis {
			return nil, 0, errors.NewTxInvalidError("input %d value is beyond the money range", i)
		}

		total += unspent.Satoshis
		unspents[i] = unspent
	}

	if total > MaxSatoshis {
		return nil, 0, errors.NewTxInvalidError("total input value is beyond the money range")
	}

	return unspents, total, nil
}

// checkSignatures verifies every input signature unless this txid already
// passed. unspents must be in input order, as returned by resolveInputs.
func (v *Validator) checkSignatures(tx *model.Tx, unspents []*utxo.Unspent) error {
	txID := tx.TxID()

	if _, ok := v.sigCache.Get(txID); ok {
		return nil
	}

	for i := range tx.Inputs {
		if err := tx.VerifyInputSignature(uint32(i), unspents[i].LockingHash); err != nil {
			return errors.NewTxInvalidError("input %d signature does not verify", i, err)
		}
	}

	v.sigCache.Set(txID, struct{}{}, cache.DefaultExpiration)

	return nil
}
