package blockchain

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
)

func TestSideBranchStoredWithoutStateChange(t *testing.T) {
	tc := newTestChain(t)
	ctx := context.Background()

	genesis := tc.initGenesis(t)
	a1 := tc.extendChain(t, "/a1/")

	// A sibling of a1 with the same amount of work. First seen wins, the
	// tip stays where it is.
	b1 := tc.buildBlock(t, genesis.Header, "/b1/", 0)
	require.NoError(t, tc.chain.AcceptBlock(ctx, b1))

	bestHeader, bestMeta, err := tc.chain.GetBestBlockHeader(ctx)
	require.NoError(t, err)
	require.True(t, bestHeader.Hash().IsEqual(a1.Hash()))
	require.Equal(t, uint32(1), bestMeta.Height)

	exists, err := tc.chain.GetBlockExists(ctx, b1.Hash())
	require.NoError(t, err)
	require.True(t, exists)

	// The main chain walk still goes through a1.
	byHeight, err := tc.chain.GetBlockByHeight(ctx, 1)
	require.NoError(t, err)
	require.True(t, byHeight.Hash().IsEqual(a1.Hash()))

	// The side branch coinbase is not part of the utxo set.
	_, err = tc.chain.GetUtxo(ctx, b1.CoinbaseTx().TxIDChainHash(), 0)
	require.True(t, errors.Is(err, errors.ErrUtxoNotFound))
}

func TestHeavierSideBranchTriggersReorg(t *testing.T) {
	tc := newTestChain(t)
	ctx := context.Background()

	genesis := tc.initGenesis(t)
	a1 := tc.extendChain(t, "/a1/")

	_, recipient := newLockingHash(t)

	// The b branch: b1 spends the genesis coinbase, b2 makes the branch
	// heavier than a1.
	spend := tc.spendCoinbase(t, genesis.CoinbaseTx(), 49e8, recipient)
	b1 := tc.buildBlock(t, genesis.Header, "/b1/", 1e8, spend)
	require.NoError(t, tc.chain.AcceptBlock(ctx, b1))

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	notifications := tc.chain.Subscribe(subCtx, "reorg-test")

	b2 := tc.buildBlock(t, b1.Header, "/b2/", 0)
	require.NoError(t, tc.chain.AcceptBlock(ctx, b2))

	bestHeader, bestMeta, err := tc.chain.GetBestBlockHeader(ctx)
	require.NoError(t, err)
	require.True(t, bestHeader.Hash().IsEqual(b2.Hash()))
	require.Equal(t, uint32(2), bestMeta.Height)

	byHeight, err := tc.chain.GetBlockByHeight(ctx, 1)
	require.NoError(t, err)
	require.True(t, byHeight.Hash().IsEqual(b1.Hash()))

	// The utxo set follows the switch: the a1 coinbase is gone, the spend
	// in b1 took effect, the b branch coinbases exist.
	_, err = tc.chain.GetUtxo(ctx, a1.CoinbaseTx().TxIDChainHash(), 0)
	require.True(t, errors.Is(err, errors.ErrUtxoNotFound))

	_, err = tc.chain.GetUtxo(ctx, genesis.CoinbaseTx().TxIDChainHash(), 0)
	require.True(t, errors.Is(err, errors.ErrUtxoNotFound))

	recipientBalance, err := tc.chain.GetBalance(ctx, recipient)
	require.NoError(t, err)
	require.Equal(t, uint64(49e8), recipientBalance)

	// 50e8 + 1e8 fee from b1, 50e8 from b2. The genesis coinbase is spent
	// and the a1 coinbase is off the chain.
	minerBalance, err := tc.chain.GetBalance(ctx, tc.lockingHash)
	require.NoError(t, err)
	require.Equal(t, uint64(101e8), minerBalance)

	// Subscribers hear about the reorganization, then the blocks of the
	// new arm in ascending order.
	notification := <-notifications
	require.Equal(t, model.NotificationReorg, notification.Type)
	require.True(t, notification.Hash.IsEqual(b2.Hash()))
	require.Equal(t, uint32(2), notification.Height)

	notification = <-notifications
	require.Equal(t, model.NotificationBlockAdded, notification.Type)
	require.True(t, notification.Hash.IsEqual(b1.Hash()))

	notification = <-notifications
	require.Equal(t, model.NotificationBlockAdded, notification.Type)
	require.True(t, notification.Hash.IsEqual(b2.Hash()))
}

func TestReorgRollsBackWhenBranchFailsValidation(t *testing.T) {
	tc := newTestChain(t)
	ctx := context.Background()

	genesis := tc.initGenesis(t)
	tc.extendChain(t, "/a1/")
	a2 := tc.extendChain(t, "/a2/")

	// The b branch looks fine from the headers alone. Its blocks are
	// stored without transaction validation while the branch is lighter.
	b1 := tc.buildBlock(t, genesis.Header, "/b1/", 0)
	require.NoError(t, tc.chain.AcceptBlock(ctx, b1))

	b2 := tc.buildBlock(t, b1.Header, "/b2/", 0)
	require.NoError(t, tc.chain.AcceptBlock(ctx, b2))

	// b3 spends an output that does not exist, and makes the branch
	// heavier, forcing the switch that finally validates it.
	ghost := model.NewTx()
	ghost.Outputs = []*model.TxOutput{{Satoshis: 50e8, LockingHash: tc.lockingHash}}

	badSpend := tc.spendCoinbase(t, ghost, 49e8, tc.lockingHash)
	b3 := tc.buildBlock(t, b2.Header, "/b3/", 1e8, badSpend)

	err := tc.chain.AcceptBlock(ctx, b3)
	require.True(t, errors.Is(err, errors.ErrBlockInvalid))

	// The switch rolled back: still on the a branch, utxo set untouched.
	bestHeader, bestMeta, err := tc.chain.GetBestBlockHeader(ctx)
	require.NoError(t, err)
	require.True(t, bestHeader.Hash().IsEqual(a2.Hash()))
	require.Equal(t, uint32(2), bestMeta.Height)

	minerBalance, err := tc.chain.GetBalance(ctx, tc.lockingHash)
	require.NoError(t, err)
	require.Equal(t, uint64(150e8), minerBalance)

	_, err = tc.chain.GetUtxo(ctx, a2.CoinbaseTx().TxIDChainHash(), 0)
	require.NoError(t, err)

	// The failing block is marked invalid in the store, so the branch no
	// longer competes for the tip.
	_, b3Meta, err := tc.store.GetBlockHeader(ctx, b3.Hash())
	require.NoError(t, err)
	require.True(t, b3Meta.Invalid)

	// And it is remembered as rejected.
	err = tc.chain.AcceptBlock(ctx, b3)
	require.True(t, errors.Is(err, errors.ErrBlockInvalid))
	require.Contains(t, err.Error(), "rejected before")

	// Children of the invalid block are refused as well.
	b4 := tc.buildBlock(t, b3.Header, "/b4/", 0)

	err = tc.chain.AcceptBlock(ctx, b4)
	require.True(t, errors.Is(err, errors.ErrBlockInvalid))
	require.Contains(t, err.Error(), "invalid")
}

func TestInvalidateBlockMovesTipBack(t *testing.T) {
	tc := newTestChain(t)
	ctx := context.Background()

	genesis := tc.initGenesis(t)
	x1 := tc.extendChain(t, "/x1/")
	x2 := tc.extendChain(t, "/x2/")

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	notifications := tc.chain.Subscribe(subCtx, "invalidate-test")

	require.NoError(t, tc.chain.InvalidateBlock(ctx, x1.Hash()))

	// The marking cascades to x2, the chain settles on the genesis block.
	bestHeader, bestMeta, err := tc.chain.GetBestBlockHeader(ctx)
	require.NoError(t, err)
	require.True(t, bestHeader.Hash().IsEqual(genesis.Hash()))
	require.Equal(t, uint32(0), bestMeta.Height)

	minerBalance, err := tc.chain.GetBalance(ctx, tc.lockingHash)
	require.NoError(t, err)
	require.Equal(t, uint64(50e8), minerBalance)

	// Invalidated, not deleted.
	exists, err := tc.chain.GetBlockExists(ctx, x1.Hash())
	require.NoError(t, err)
	require.True(t, exists)

	notification := <-notifications
	require.Equal(t, model.NotificationReorg, notification.Type)
	require.True(t, notification.Hash.IsEqual(genesis.Hash()))

	notification = <-notifications
	require.Equal(t, model.NotificationBlockInvalidated, notification.Type)
	require.True(t, notification.Hash.IsEqual(x1.Hash()))

	// A child of the invalidated block is refused while the marking is in
	// place.
	x3 := tc.buildBlock(t, x2.Header, "/x3/", 0)

	err = tc.chain.AcceptBlock(ctx, x3)
	require.True(t, errors.Is(err, errors.ErrBlockInvalid))

	// Revalidating lifts the marking from the whole branch and the chain
	// moves back to the heaviest tip.
	require.NoError(t, tc.chain.RevalidateBlock(ctx, x1.Hash()))

	bestHeader, bestMeta, err = tc.chain.GetBestBlockHeader(ctx)
	require.NoError(t, err)
	require.True(t, bestHeader.Hash().IsEqual(x2.Hash()))
	require.Equal(t, uint32(2), bestMeta.Height)

	minerBalance, err = tc.chain.GetBalance(ctx, tc.lockingHash)
	require.NoError(t, err)
	require.Equal(t, uint64(150e8), minerBalance)

	// The child that was refused against the invalid parent goes through
	// now: the refusal was never cached.
	require.NoError(t, tc.chain.AcceptBlock(ctx, x3))

	height, err := tc.chain.GetHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(3), height)
}

func TestInvalidateGenesisBlock(t *testing.T) {
	tc := newTestChain(t)
	ctx := context.Background()

	genesis := tc.initGenesis(t)

	err := tc.chain.InvalidateBlock(ctx, genesis.Hash())
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestInvalidateUnknownBlock(t *testing.T) {
	tc := newTestChain(t)
	ctx := context.Background()

	tc.initGenesis(t)

	unknown := chainhash.Hash{0x42}

	err := tc.chain.InvalidateBlock(ctx, &unknown)
	require.True(t, errors.Is(err, errors.ErrBlockNotFound))

	err = tc.chain.RevalidateBlock(ctx, &unknown)
	require.True(t, errors.Is(err, errors.ErrBlockNotFound))
}

func TestInvalidateBeforeInitialize(t *testing.T) {
	tc := newTestChain(t)

	hash := chainhash.Hash{0x01}

	err := tc.chain.InvalidateBlock(context.Background(), &hash)
	require.True(t, errors.Is(err, errors.ErrServiceNotStarted))

	err = tc.chain.RevalidateBlock(context.Background(), &hash)
	require.True(t, errors.Is(err, errors.ErrServiceNotStarted))
}

func TestReorgBeyondMaxDepthRefused(t *testing.T) {
	tc := newTestChain(t)
	ctx := context.Background()

	tc.settings.BlockChain.MaxReorgDepth = 2

	genesis := tc.initGenesis(t)

	tc.extendChain(t, "/a1/")
	tc.extendChain(t, "/a2/")
	tc.extendChain(t, "/a3/")
	a4 := tc.extendChain(t, "/a4/")

	// A competing branch from the genesis block. Its blocks are stored as
	// they come in; only b5 tips the scales.
	parent := genesis.Header
	var bBlocks []*model.Block

	for _, tag := range []string{"/b1/", "/b2/", "/b3/", "/b4/"} {
		block := tc.buildBlock(t, parent, tag, 0)
		require.NoError(t, tc.chain.AcceptBlock(ctx, block))

		bBlocks = append(bBlocks, block)
		parent = block.Header
	}

	b5 := tc.buildBlock(t, parent, "/b5/", 0)

	// The common ancestor is 4 blocks below the tip, past the limit of 2.
	err := tc.chain.AcceptBlock(ctx, b5)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrProcessing))
	require.Contains(t, err.Error(), "maximum depth")

	// The chain stays where it was and the refused branch is stored but
	// not marked invalid: the refusal is a policy call, not a verdict on
	// the blocks.
	bestHeader, _, err := tc.chain.GetBestBlockHeader(ctx)
	require.NoError(t, err)
	require.True(t, bestHeader.Hash().IsEqual(a4.Hash()))

	_, b5Meta, err := tc.store.GetBlockHeader(ctx, b5.Hash())
	require.NoError(t, err)
	require.False(t, b5Meta.Invalid)

	_, b1Meta, err := tc.store.GetBlockHeader(ctx, bBlocks[0].Hash())
	require.NoError(t, err)
	require.False(t, b1Meta.Invalid)
}
