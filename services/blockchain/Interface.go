// Package blockchain is the chain state machine. It owns the transition
// from one best block to the next: every accepted block passes the full
// validation pipeline, the UTXO set moves in lock step with the block
// index, and a heavier fork triggers a reorganization that reverts and
// reapplies blocks atomically. All other services observe the chain
// through this package, either by reading or by subscribing.
package blockchain

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/emberchain/embernode/model"
	"github.com/emberchain/embernode/stores/utxo"
)

// Interface is what the rest of the node sees of the chain. All methods are
// safe for concurrent use; mutating calls are serialized internally.
type Interface interface {
	// Health reports the health of the service and its stores. The return
	// values follow http status semantics.
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// Initialize mines and stores the genesis block, paying the subsidy to
	// minerLockingHash, and moves the chain from Empty to Active. Calling it
	// on a chain that already has blocks is an error.
	Initialize(ctx context.Context, minerLockingHash [model.LockingHashSize]byte) (*model.Block, error)

	// AcceptBlock runs the block through the validation pipeline and, if it
	// passes, stores it and updates the chain state. Extending the best tip
	// advances it, a heavier side branch triggers a reorganization, and a
	// lighter side branch is stored without any state change.
	AcceptBlock(ctx context.Context, block *model.Block) error

	// InvalidateBlock marks a stored block invalid and moves the chain to
	// the best remaining valid tip.
	InvalidateBlock(ctx context.Context, blockHash *chainhash.Hash) error

	// RevalidateBlock clears an invalid marking and moves the chain to the
	// best valid tip, which may be on the revalidated branch.
	RevalidateBlock(ctx context.Context, blockHash *chainhash.Hash) error

	// GetBestBlockHeader returns the header and metadata of the current tip.
	GetBestBlockHeader(ctx context.Context) (*model.BlockHeader, *model.BlockHeaderMeta, error)

	// GetBlock returns the full block stored under the given hash.
	GetBlock(ctx context.Context, blockHash *chainhash.Hash) (*model.Block, error)

	// GetBlockByHeight returns the block at the given height on the best chain.
	GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error)

	// GetBlockExists reports whether the block is stored, valid or not.
	GetBlockExists(ctx context.Context, blockHash *chainhash.Hash) (bool, error)

	// GetHeight returns the height of the current tip.
	GetHeight(ctx context.Context) (uint32, error)

	// GetBalance returns the total unspent satoshis locked to the given hash.
	GetBalance(ctx context.Context, lockingHash [model.LockingHashSize]byte) (uint64, error)

	// GetUtxo returns the unspent record for the given outpoint.
	GetUtxo(ctx context.Context, txID *chainhash.Hash, vout uint32) (*utxo.Unspent, error)

	// GetNextWorkRequired returns the difficulty bits a block built on
	// prevBlockHash must declare. The now timestamp only matters on networks
	// that allow a minimum difficulty block after a long gap.
	GetNextWorkRequired(ctx context.Context, prevBlockHash *chainhash.Hash, now uint32) (*model.NBit, error)

	// GetBlockStats returns aggregate statistics over the best chain.
	GetBlockStats(ctx context.Context) (*model.BlockStats, error)

	// Subscribe registers for chain notifications until ctx is cancelled.
	// The channel is buffered; a subscriber that falls behind misses
	// notifications rather than blocking the chain.
	Subscribe(ctx context.Context, source string) <-chan *model.Notification
}
