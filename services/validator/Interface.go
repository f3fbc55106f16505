// Package validator checks transactions against the rules every accepted
// transaction must satisfy: structural soundness, existing and mature
// inputs, ownership proven by key hash and signature, and outputs covered
// by inputs. The mempool and the blockchain service both funnel
// transactions through here; neither admits anything the validator
// rejects.
package validator

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/emberchain/embernode/model"
	"github.com/emberchain/embernode/stores/utxo"
)

// UtxoView is the read-only lookup the validator resolves inputs against.
// The utxo store satisfies it directly; block validation passes the store
// as it stands just before the block is applied.
type UtxoView interface {
	Get(ctx context.Context, txID *chainhash.Hash, vout uint32) (*utxo.Unspent, error)
}

// Interface abstracts transaction validation for the services that need it.
type Interface interface {
	// Health checks the health status of the validator.
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// ValidateTransaction checks tx as a candidate for inclusion at
	// blockHeight and returns the fee it pays. Validation admits nothing
	// anywhere; the caller decides what acceptance means.
	ValidateTransaction(ctx context.Context, tx *model.Tx, blockHeight uint32, view UtxoView) (uint64, error)
}
