// Package mempool holds the pool of individually valid, not-yet-confirmed
// transactions. Admission is gated by the validator against the current
// chain state, and every outpoint a pooled transaction spends is reserved,
// so the pool never carries two spends of the same output. The chain side
// prunes the pool after each accepted block through RemoveForBlock; the
// miner drains arrival-ordered candidates through Snapshot.
package mempool

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/emberchain/embernode/model"
)

type Interface interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// Admit validates tx and inserts it into the pool.
	Admit(ctx context.Context, tx *model.Tx) error

	// RemoveForBlock drops transactions the block included and evicts any
	// entry that spends an output the block consumed.
	RemoveForBlock(block *model.Block)

	// Snapshot returns pooled entries in arrival order, capped by maxTxs
	// entries and maxBytes of serialized transactions. Zero disables a cap.
	Snapshot(maxTxs int, maxBytes uint64) []*Entry

	Contains(hash *chainhash.Hash) bool
	Get(hash *chainhash.Hash) (*Entry, bool)
	Size() int
}

// ChainView is the slice of the blockchain service the pool depends on:
// admission validates at the height the next block would confirm at, and
// the pruner follows accepted blocks through the subscription.
type ChainView interface {
	GetHeight(ctx context.Context) (uint32, error)
	GetBlock(ctx context.Context, blockHash *chainhash.Hash) (*model.Block, error)
	Subscribe(ctx context.Context, source string) <-chan *model.Notification
}
