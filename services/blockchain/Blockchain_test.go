package blockchain

import (
	"context"
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/embernode/crypto"
	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
	"github.com/emberchain/embernode/services/miner/cpuminer"
	"github.com/emberchain/embernode/services/validator"
	"github.com/emberchain/embernode/settings"
	blockchain_store "github.com/emberchain/embernode/stores/blockchain"
	"github.com/emberchain/embernode/stores/kvstore/memory"
	"github.com/emberchain/embernode/stores/utxo/kv"
	"github.com/emberchain/embernode/ulogger"
	"github.com/emberchain/embernode/util/test"
)

// testChain is a blockchain service over in-memory stores, together with
// the key its test blocks pay the reward to.
type testChain struct {
	settings  *settings.Settings
	store     blockchain_store.Store
	utxoStore *kv.Store
	chain     *Blockchain

	minerKey    *btcec.PrivateKey
	lockingHash [model.LockingHashSize]byte
}

func newTestChain(t *testing.T) *testChain {
	t.Helper()

	logger := ulogger.NewErrorTestLogger(t)
	tSettings := test.CreateBaseTestSettings()

	storeURL, err := url.Parse("sqlitememory:///")
	require.NoError(t, err)

	store, err := blockchain_store.NewStore(logger, storeURL, tSettings)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close(context.Background()) })

	utxoStore := kv.New(logger, memory.New())
	t.Cleanup(func() { _ = utxoStore.Close(context.Background()) })

	chain, err := New(logger, tSettings, store, utxoStore, validator.New(logger, tSettings))
	require.NoError(t, err)

	require.NoError(t, chain.Init(context.Background()))

	t.Cleanup(func() { _ = chain.Stop(context.Background()) })

	minerKey, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	return &testChain{
		settings:    tSettings,
		store:       store,
		utxoStore:   utxoStore,
		chain:       chain,
		minerKey:    minerKey,
		lockingHash: crypto.HashPublicKey(minerKey.PubKey().SerializeCompressed()),
	}
}

// initGenesis mines the genesis block into the chain and returns it.
func (tc *testChain) initGenesis(t *testing.T) *model.Block {
	t.Helper()

	genesis, err := tc.chain.Initialize(context.Background(), tc.lockingHash)
	require.NoError(t, err)

	return genesis
}

// coinbaseFor builds a coinbase paying the height's subsidy plus fees to
// the test miner.
func (tc *testChain) coinbaseFor(height uint32, tag string, fees uint64) *model.Tx {
	coinbase := model.NewTx()
	coinbase.Payload = model.NewCoinbasePayload(height, tag)
	coinbase.Outputs = []*model.TxOutput{{
		Satoshis:    tc.settings.ChainCfgParams.SubsidyForHeight(height) + fees,
		LockingHash: tc.lockingHash,
	}}

	return coinbase
}

// buildBlock assembles and mines a valid child of parent. fees must match
// what the extra transactions actually pay; the tag keeps sibling blocks
// from hashing identically. The block is not submitted.
func (tc *testChain) buildBlock(t *testing.T, parent *model.BlockHeader, tag string, fees uint64, txs ...*model.Tx) *model.Block {
	t.Helper()

	height := parent.Height + 1

	transactions := append([]*model.Tx{tc.coinbaseFor(height, tag, fees)}, txs...)

	header := &model.BlockHeader{
		Version:        1,
		Height:         height,
		HashPrevBlock:  parent.Hash(),
		HashMerkleRoot: merkleRootOf(t, transactions),
		Timestamp:      parent.Timestamp + 1,
		Bits:           parent.Bits,
	}

	return mineRawBlock(t, header, transactions)
}

// extendChain mines a block on the current tip and submits it.
func (tc *testChain) extendChain(t *testing.T, tag string) *model.Block {
	t.Helper()

	tipHeader, _, err := tc.chain.GetBestBlockHeader(context.Background())
	require.NoError(t, err)

	block := tc.buildBlock(t, tipHeader, tag, 0)
	require.NoError(t, tc.chain.AcceptBlock(context.Background(), block))

	return block
}

// spendCoinbase builds a signed transaction moving pay satoshis from the
// miner's coinbase output to the given locking hash. The difference is the
// fee.
func (tc *testChain) spendCoinbase(t *testing.T, coinbase *model.Tx, pay uint64, to [model.LockingHashSize]byte) *model.Tx {
	t.Helper()

	return spendTx(t, coinbase, 0, tc.minerKey, tc.lockingHash, pay, to)
}

// spendTx builds a transaction spending output vout of prevTx, signed with
// key, which must hash to prevLockingHash for the spend to verify.
func spendTx(t *testing.T, prevTx *model.Tx, vout uint32, key *btcec.PrivateKey, prevLockingHash [model.LockingHashSize]byte, pay uint64, to [model.LockingHashSize]byte) *model.Tx {
	t.Helper()

	tx := model.NewTx()
	tx.Inputs = []*model.TxInput{{PreviousTxHash: prevTx.TxIDChainHash(), PreviousTxOutIndex: vout}}
	tx.Outputs = []*model.TxOutput{{Satoshis: pay, LockingHash: to}}

	require.NoError(t, tx.SignInput(key, 0, prevLockingHash))

	return tx
}

func merkleRootOf(t *testing.T, txs []*model.Tx) *chainhash.Hash {
	t.Helper()

	hashes := make([]*chainhash.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.TxIDChainHash()
	}

	root, err := model.BuildMerkleRoot(hashes)
	require.NoError(t, err)

	return root
}

// mineRawBlock mines the header exactly as given and wraps it into a
// block. Tests use it to produce blocks that break one specific rule.
func mineRawBlock(t *testing.T, header *model.BlockHeader, txs []*model.Tx) *model.Block {
	t.Helper()

	_, err := cpuminer.Mine(context.Background(), header, math.MaxUint32)
	require.NoError(t, err)

	block, err := model.NewBlock(header, txs)
	require.NoError(t, err)

	return block
}

func newLockingHash(t *testing.T) (*btcec.PrivateKey, [model.LockingHashSize]byte) {
	t.Helper()

	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	return key, crypto.HashPublicKey(key.PubKey().SerializeCompressed())
}

func TestInitializeMinesGenesis(t *testing.T) {
	tc := newTestChain(t)
	ctx := context.Background()

	genesis := tc.initGenesis(t)

	require.Equal(t, uint32(0), genesis.Header.Height)
	require.True(t, genesis.Header.HashPrevBlock.IsEqual(&chainhash.Hash{}))

	ok, _, err := genesis.Header.HasMetTargetDifficulty()
	require.NoError(t, err)
	require.True(t, ok)

	coinbase := genesis.CoinbaseTx()
	require.NotNil(t, coinbase)
	require.True(t, coinbase.IsCoinbase())
	require.Equal(t, tc.settings.ChainCfgParams.BaseSubsidy, coinbase.TotalOutputSatoshis())

	height, err := genesis.ExtractCoinbaseHeight()
	require.NoError(t, err)
	require.Equal(t, uint32(0), height)

	bestHeader, bestMeta, err := tc.chain.GetBestBlockHeader(ctx)
	require.NoError(t, err)
	require.True(t, bestHeader.Hash().IsEqual(genesis.Hash()))
	require.Equal(t, uint32(0), bestMeta.Height)

	balance, err := tc.chain.GetBalance(ctx, tc.lockingHash)
	require.NoError(t, err)
	require.Equal(t, tc.settings.ChainCfgParams.BaseSubsidy, balance)
}

func TestInitializeIsDeterministic(t *testing.T) {
	// Two nodes initializing with the same parameters and the same miner
	// key must agree on the genesis block.
	tcA := newTestChain(t)
	tcB := newTestChain(t)

	genesisA := tcA.initGenesis(t)

	genesisB, err := tcB.chain.Initialize(context.Background(), tcA.lockingHash)
	require.NoError(t, err)

	require.True(t, genesisA.Hash().IsEqual(genesisB.Hash()))
}

func TestInitializeTwice(t *testing.T) {
	tc := newTestChain(t)

	tc.initGenesis(t)

	_, err := tc.chain.Initialize(context.Background(), tc.lockingHash)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrBlockExists))
}

func TestEmptyChainReads(t *testing.T) {
	tc := newTestChain(t)
	ctx := context.Background()

	_, _, err := tc.chain.GetBestBlockHeader(ctx)
	require.True(t, errors.Is(err, errors.ErrBlockNotFound))

	_, err = tc.chain.GetHeight(ctx)
	require.True(t, errors.Is(err, errors.ErrBlockNotFound))
}

func TestAcceptBlockBeforeInitialize(t *testing.T) {
	tc := newTestChain(t)

	parent := &model.BlockHeader{
		Version:        1,
		Height:         0,
		HashPrevBlock:  &chainhash.Hash{},
		HashMerkleRoot: &chainhash.Hash{},
		Timestamp:      tc.settings.ChainCfgParams.GenesisTimestamp,
		Bits:           *model.NewNBitFromCompact(tc.settings.ChainCfgParams.PowLimitBits),
	}

	block := tc.buildBlock(t, parent, "/early/", 0)

	err := tc.chain.AcceptBlock(context.Background(), block)
	require.True(t, errors.Is(err, errors.ErrServiceNotStarted))
}

func TestInitRestoresChainFromStores(t *testing.T) {
	tc := newTestChain(t)
	ctx := context.Background()

	genesis := tc.initGenesis(t)
	block1 := tc.buildBlock(t, genesis.Header, "/a/", 0)
	require.NoError(t, tc.chain.AcceptBlock(ctx, block1))

	// A second service instance over the same stores picks up where the
	// first left off.
	logger := ulogger.NewErrorTestLogger(t)

	restarted, err := New(logger, tc.settings, tc.store, tc.utxoStore, validator.New(logger, tc.settings))
	require.NoError(t, err)

	t.Cleanup(func() { _ = restarted.Stop(context.Background()) })

	require.NoError(t, restarted.Init(ctx))

	bestHeader, bestMeta, err := restarted.GetBestBlockHeader(ctx)
	require.NoError(t, err)
	require.True(t, bestHeader.Hash().IsEqual(block1.Hash()))
	require.Equal(t, uint32(1), bestMeta.Height)

	// And it keeps accepting blocks where the first stopped.
	block2 := tc.buildBlock(t, block1.Header, "/b/", 0)
	require.NoError(t, restarted.AcceptBlock(ctx, block2))
}

func TestBlockLookups(t *testing.T) {
	tc := newTestChain(t)
	ctx := context.Background()

	genesis := tc.initGenesis(t)
	block1 := tc.extendChain(t, "/a/")

	got, err := tc.chain.GetBlock(ctx, block1.Hash())
	require.NoError(t, err)
	require.Equal(t, block1.Bytes(), got.Bytes())

	byHeight, err := tc.chain.GetBlockByHeight(ctx, 0)
	require.NoError(t, err)
	require.True(t, byHeight.Hash().IsEqual(genesis.Hash()))

	exists, err := tc.chain.GetBlockExists(ctx, block1.Hash())
	require.NoError(t, err)
	require.True(t, exists)

	unknown := chainhash.Hash{0x01}

	exists, err = tc.chain.GetBlockExists(ctx, &unknown)
	require.NoError(t, err)
	require.False(t, exists)

	_, err = tc.chain.GetBlock(ctx, &unknown)
	require.True(t, errors.Is(err, errors.ErrBlockNotFound))

	height, err := tc.chain.GetHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), height)

	stats, err := tc.chain.GetBlockStats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), stats.BlockCount)
	require.Equal(t, uint32(1), stats.MaxHeight)
	require.Equal(t, uint64(2), stats.TxCount)
}

func TestSubscribeDeliversNotifications(t *testing.T) {
	tc := newTestChain(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := tc.chain.Subscribe(ctx, "test")

	genesis := tc.initGenesis(t)

	notification := <-ch
	require.Equal(t, model.NotificationBlockAdded, notification.Type)
	require.True(t, notification.Hash.IsEqual(genesis.Hash()))
	require.Equal(t, uint32(0), notification.Height)

	block1 := tc.extendChain(t, "/a/")

	notification = <-ch
	require.Equal(t, model.NotificationBlockAdded, notification.Type)
	require.True(t, notification.Hash.IsEqual(block1.Hash()))
	require.Equal(t, uint32(1), notification.Height)

	// Cancelling the subscription context closes the channel.
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeAfterStop(t *testing.T) {
	tc := newTestChain(t)

	require.NoError(t, tc.chain.Stop(context.Background()))

	ch := tc.chain.Subscribe(context.Background(), "late")

	_, ok := <-ch
	require.False(t, ok)
}

func TestStopTwice(t *testing.T) {
	tc := newTestChain(t)

	require.NoError(t, tc.chain.Stop(context.Background()))
	require.NoError(t, tc.chain.Stop(context.Background()))
}
