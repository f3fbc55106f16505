package sql

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/embernode/model"
	"github.com/emberchain/embernode/ulogger"
	"github.com/emberchain/embernode/util/test"
)

func newTestStore(t *testing.T) *SQL {
	t.Helper()

	storeURL, err := url.Parse("sqlitememory:///")
	require.NoError(t, err)

	s, err := New(ulogger.NewErrorTestLogger(t), storeURL, test.CreateBaseTestSettings())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})

	return s
}

func testLockingHash(b byte) (hash [model.LockingHashSize]byte) {
	for i := range hash {
		hash[i] = b
	}

	return hash
}

func testCoinbaseTx(height uint32) *model.Tx {
	tx := model.NewTx()
	tx.Payload = model.NewCoinbasePayload(height, "/embertest/")
	tx.Outputs = []*model.TxOutput{{Satoshis: 50e8, LockingHash: testLockingHash(0xaa)}}

	return tx
}

// newTestBlock builds a coinbase-only block. The nonce separates sibling
// blocks that would otherwise hash identically.
func newTestBlock(t *testing.T, height uint32, prevHash *chainhash.Hash, nonce uint32) *model.Block {
	t.Helper()

	cb := testCoinbaseTx(height)

	merkleRoot, err := model.BuildMerkleRoot([]*chainhash.Hash{cb.TxIDChainHash()})
	require.NoError(t, err)

	bits, err := model.NewNBitFromString("207fffff")
	require.NoError(t, err)

	header := &model.BlockHeader{
		Version:        1,
		Height:         height,
		HashPrevBlock:  prevHash,
		HashMerkleRoot: merkleRoot,
		Timestamp:      1231006505 + height,
		Bits:           *bits,
		Nonce:          nonce,
	}

	block, err := model.NewBlock(header, []*model.Tx{cb})
	require.NoError(t, err)

	return block
}

// storeTestChain stores a genesis block plus length blocks on top of it and
// returns all of them, oldest first.
func storeTestChain(t *testing.T, s *SQL, length int) []*model.Block {
	t.Helper()

	ctx := context.Background()

	blocks := make([]*model.Block, 0, length+1)

	genesis := newTestBlock(t, 0, &chainhash.Hash{}, 0)
	_, err := s.StoreBlock(ctx, genesis)
	require.NoError(t, err)

	blocks = append(blocks, genesis)

	prev := genesis
	for i := 1; i <= length; i++ {
		block := newTestBlock(t, uint32(i), prev.Hash(), uint32(i)) //nolint:gosec

		_, err = s.StoreBlock(ctx, block)
		require.NoError(t, err)

		blocks = append(blocks, block)
		prev = block
	}

	return blocks
}

func TestHealth(t *testing.T) {
	s := newTestStore(t)

	status, details, err := s.Health(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "SQL Blockchain Store", details)
}
