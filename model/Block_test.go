package model

import (
	"testing"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/embernode/chaincfg"
	"github.com/emberchain/embernode/crypto"
	"github.com/emberchain/embernode/errors"
)

// mineTestBlock assembles a block at the given height whose coinbase pays
// exactly the regtest subsidy, then walks the nonce until the regtest
// target is met.
func mineTestBlock(t *testing.T, height uint32, prev *chainhash.Hash, extraTxs ...*Tx) *Block {
	t.Helper()

	return mineTestBlockWithCoinbaseHeight(t, height, height, prev, extraTxs...)
}

func mineTestBlockWithCoinbaseHeight(t *testing.T, headerHeight, coinbaseHeight uint32, prev *chainhash.Hash, extraTxs ...*Tx) *Block {
	t.Helper()

	coinbase := NewTx()
	coinbase.Payload = NewCoinbasePayload(coinbaseHeight, "/ember/test/")
	coinbase.Outputs = append(coinbase.Outputs, &TxOutput{
		Satoshis:    chaincfg.RegressionNetParams.SubsidyForHeight(headerHeight),
		LockingHash: crypto.Sum256([]byte("miner")),
	})

	transactions := append([]*Tx{coinbase}, extraTxs...)

	hashes := make([]*chainhash.Hash, len(transactions))
	for i, tx := range transactions {
		hashes[i] = tx.TxIDChainHash()
	}

	merkleRoot, err := BuildMerkleRoot(hashes)
	require.NoError(t, err)

	nBits, err := NewNBitFromString("207fffff")
	require.NoError(t, err)

	header := &BlockHeader{
		Version:        1,
		Height:         headerHeight,
		HashPrevBlock:  prev,
		HashMerkleRoot: merkleRoot,
		Timestamp:      uint32(time.Now().Unix()),
		Bits:           *nBits,
	}

	mineTestHeader(t, header)

	block, err := NewBlock(header, transactions)
	require.NoError(t, err)

	return block
}

func mineTestHeader(t *testing.T, header *BlockHeader) {
	t.Helper()

	for nonce := uint32(0); nonce < 100000; nonce++ {
		header.Nonce = nonce

		if ok, _, _ := header.HasMetTargetDifficulty(); ok {
			return
		}
	}

	t.Fatal("no nonce below 100000 met the regtest target")
}

func testPrevHash(t *testing.T) *chainhash.Hash {
	t.Helper()

	hash, err := chainhash.NewHashFromStr("1a270fe33eab79fef413754296ae329b4fd3979feb8b8657597c54371ae524a3")
	require.NoError(t, err)

	return hash
}

func TestBlockBytesRoundTrip(t *testing.T) {
	spend, _ := signedTestTx(t)
	block := mineTestBlock(t, 1, testPrevHash(t), spend)

	blockBytes := block.Bytes()

	decoded, err := NewBlockFromBytes(blockBytes)
	require.NoError(t, err)

	assert.Equal(t, block.Hash().String(), decoded.Hash().String())
	assert.Equal(t, block.TransactionCount(), decoded.TransactionCount())
	assert.Equal(t, blockBytes, decoded.Bytes())

	t.Run("trailing bytes rejected", func(t *testing.T) {
		_, err := NewBlockFromBytes(append(block.Bytes(), 0xde, 0xad))
		require.Error(t, err)
	})

	t.Run("short input rejected", func(t *testing.T) {
		_, err := NewBlockFromBytes(blockBytes[:40])
		require.Error(t, err)
	})
}

func TestBlockValid(t *testing.T) {
	params := &chaincfg.RegressionNetParams

	t.Run("well formed block passes", func(t *testing.T) {
		spend, _ := signedTestTx(t)
		block := mineTestBlock(t, 1, testPrevHash(t), spend)

		ok, err := block.Valid(params)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("merkle root mismatch", func(t *testing.T) {
		spend, _ := signedTestTx(t)
		block := mineTestBlock(t, 1, testPrevHash(t))

		// Smuggle in a transaction the merkle root does not cover.
		block.Transactions = append(block.Transactions, spend)

		ok, err := block.Valid(params)
		assert.False(t, ok)
		require.Error(t, err)
		require.True(t, errors.Is(err, errors.ErrBlockInvalid))
	})

	t.Run("duplicate transaction", func(t *testing.T) {
		spend, _ := signedTestTx(t)
		block := mineTestBlock(t, 1, testPrevHash(t), spend, spend)

		ok, err := block.Valid(params)
		assert.False(t, ok)
		require.Error(t, err)
		require.Contains(t, err.Error(), "duplicate transaction")
	})

	t.Run("first transaction not a coinbase", func(t *testing.T) {
		spend, _ := signedTestTx(t)
		block := mineTestBlock(t, 1, testPrevHash(t), spend)

		block.Transactions[0], block.Transactions[1] = block.Transactions[1], block.Transactions[0]

		ok, err := block.Valid(params)
		assert.False(t, ok)
		require.Error(t, err)
		require.Contains(t, err.Error(), "not a coinbase")
	})

	t.Run("second coinbase rejected", func(t *testing.T) {
		extraCoinbase := NewTx()
		extraCoinbase.Payload = NewCoinbasePayload(1, "/ember/other/")
		extraCoinbase.Outputs = append(extraCoinbase.Outputs, &TxOutput{
			Satoshis:    1,
			LockingHash: crypto.Sum256([]byte("other miner")),
		})

		block := mineTestBlock(t, 1, testPrevHash(t), extraCoinbase)

		ok, err := block.Valid(params)
		assert.False(t, ok)
		require.Error(t, err)
		require.Contains(t, err.Error(), "extra coinbase")
	})

	t.Run("payload on a spending transaction", func(t *testing.T) {
		spend, _ := signedTestTx(t)
		spend.Payload = []byte("data")

		block := mineTestBlock(t, 1, testPrevHash(t), spend)

		ok, err := block.Valid(params)
		assert.False(t, ok)
		require.Error(t, err)
		require.Contains(t, err.Error(), "non-empty payload")
	})

	t.Run("coinbase height mismatch", func(t *testing.T) {
		block := mineTestBlockWithCoinbaseHeight(t, 1, 5, testPrevHash(t))

		ok, err := block.Valid(params)
		assert.False(t, ok)
		require.Error(t, err)
		require.Contains(t, err.Error(), "does not match header height")
	})

	t.Run("timestamp too far in the future", func(t *testing.T) {
		block := mineTestBlock(t, 1, testPrevHash(t))
		block.Header.Timestamp = uint32(time.Now().Add(3 * time.Hour).Unix())
		mineTestHeader(t, block.Header)

		ok, err := block.Valid(params)
		assert.False(t, ok)
		require.Error(t, err)
		require.Contains(t, err.Error(), "future")
	})

	t.Run("block exceeds maximum size", func(t *testing.T) {
		block := mineTestBlock(t, 1, testPrevHash(t))

		smallParams := *params
		smallParams.MaxBlockSize = 10

		ok, err := block.Valid(&smallParams)
		assert.False(t, ok)
		require.Error(t, err)
		require.Contains(t, err.Error(), "exceeds maximum")
	})

	t.Run("no transactions", func(t *testing.T) {
		block := mineTestBlock(t, 1, testPrevHash(t))
		block.Transactions = nil

		ok, err := block.Valid(params)
		assert.False(t, ok)
		require.Error(t, err)
		require.Contains(t, err.Error(), "no transactions")
	})
}

func TestCheckBlockRewardAndFees(t *testing.T) {
	block := mineTestBlock(t, 1, testPrevHash(t))
	subsidy := chaincfg.RegressionNetParams.SubsidyForHeight(1)

	require.NoError(t, block.CheckBlockRewardAndFees(0, subsidy))

	t.Run("overpaying coinbase rejected", func(t *testing.T) {
		require.Error(t, block.CheckBlockRewardAndFees(0, subsidy-1))
	})

	t.Run("underpaying coinbase rejected", func(t *testing.T) {
		// Claiming less than the full reward is just as invalid.
		require.Error(t, block.CheckBlockRewardAndFees(1, subsidy))
	})
}

func TestBlockHashCached(t *testing.T) {
	block := mineTestBlock(t, 1, testPrevHash(t))

	hash1 := block.Hash()
	hash2 := block.Hash()

	assert.Same(t, hash1, hash2)
}
