// Package blockchain defines the persistence interface for the block index:
// every block this node has ever accepted, its cumulative chain work and its
// valid or invalid marking. The best tip is always derived from what is
// stored, never kept as separate state, so a restart resumes from the
// heaviest valid block automatically.
package blockchain

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/emberchain/embernode/model"
)

// Store is the block index. Implementations keep a total order over tips:
// the best block is the valid block with the most cumulative chain work,
// ties broken by lowest insertion id, so the first seen block wins.
type Store interface {
	// Health reports readiness of the underlying database. The return values
	// follow http status semantics.
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// GetBlock returns the full block stored under the given hash.
	GetBlock(ctx context.Context, blockHash *chainhash.Hash) (*model.Block, error)

	// GetBlockByHeight returns the block at the given height on the current
	// main chain. Blocks on forks at the same height are not considered.
	GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error)

	// GetBlockExists reports whether a block with the given hash is stored,
	// whether it is valid or not.
	GetBlockExists(ctx context.Context, blockHash *chainhash.Hash) (bool, error)

	// GetBlockHeader returns the header stored under the given hash together
	// with its index metadata.
	GetBlockHeader(ctx context.Context, blockHash *chainhash.Hash) (*model.BlockHeader, *model.BlockHeaderMeta, error)

	// GetBestBlockHeader returns the header of the current best block.
	GetBestBlockHeader(ctx context.Context) (*model.BlockHeader, *model.BlockHeaderMeta, error)

	// GetBlockHeaders returns up to numberOfHeaders headers walking the chain
	// backwards from blockHashFrom, inclusive.
	GetBlockHeaders(ctx context.Context, blockHashFrom *chainhash.Hash, numberOfHeaders uint64) ([]*model.BlockHeader, []*model.BlockHeaderMeta, error)

	// GetHashOfAncestorBlock returns the hash of the block depth generations
	// before the given block on its own chain.
	GetHashOfAncestorBlock(ctx context.Context, hash *chainhash.Hash, depth int) (*chainhash.Hash, error)

	// StoreBlock persists a block and returns its database id. The parent
	// must already be stored, except for the genesis block. A block whose
	// parent is marked invalid is stored invalid as well.
	StoreBlock(ctx context.Context, block *model.Block) (uint64, error)

	// InvalidateBlock marks the block and all its descendants invalid, so
	// none of them can become the best block.
	InvalidateBlock(ctx context.Context, blockHash *chainhash.Hash) error

	// RevalidateBlock clears the invalid marking from the block and all its
	// descendants.
	RevalidateBlock(ctx context.Context, blockHash *chainhash.Hash) error

	// GetBlockStats returns aggregate statistics over the current main chain.
	GetBlockStats(ctx context.Context) (*model.BlockStats, error)

	Close(ctx context.Context) error
}
