package model

import (
	"bytes"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/libsv/go-p2p/wire"

	"github.com/emberchain/embernode/chaincfg"
	"github.com/emberchain/embernode/errors"
)

// maxClockDrift is how far into the future a block timestamp may run ahead
// of this node's clock before the block is rejected.
const maxClockDrift = 2 * time.Hour

type Block struct {
	Header       *BlockHeader
	Transactions []*Tx

	// local
	hash *chainhash.Hash
}

func NewBlock(header *BlockHeader, transactions []*Tx) (*Block, error) {
	if header == nil {
		return nil, errors.NewInvalidArgumentError("block header is required")
	}

	return &Block{
		Header:       header,
		Transactions: transactions,
	}, nil
}

func NewBlockFromBytes(blockBytes []byte) (*Block, error) {
	if len(blockBytes) < BlockHeaderSize {
		return nil, errors.NewInvalidArgumentError("block should be at least %d bytes long, got %d", BlockHeaderSize, len(blockBytes))
	}

	block := &Block{}

	var err error

	// read the first 84 bytes as the block header
	block.Header, err = NewBlockHeaderFromBytes(blockBytes[:BlockHeaderSize])
	if err != nil {
		return nil, err
	}

	buf := bytes.NewReader(blockBytes[BlockHeaderSize:])

	txCount, err := wire.ReadVarInt(buf, 0)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("error reading block transaction count", err)
	}

	for i := uint64(0); i < txCount; i++ {
		tx, err := NewTxFromReader(buf)
		if err != nil {
			return nil, err
		}

		block.Transactions = append(block.Transactions, tx)
	}

	if buf.Len() > 0 {
		return nil, errors.NewInvalidArgumentError("%d trailing bytes after block", buf.Len())
	}

	return block, nil
}

func (b *Block) Bytes() []byte {
	buf := new(bytes.Buffer)

	buf.Write(b.Header.Bytes())

	_ = wire.WriteVarInt(buf, 0, uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		buf.Write(tx.Bytes())
	}

	return buf.Bytes()
}

func (b *Block) Hash() *chainhash.Hash {
	if b.hash != nil {
		return b.hash
	}

	b.hash = b.Header.Hash()

	return b.hash
}

func (b *Block) String() string {
	return b.Hash().String()
}

func (b *Block) TransactionCount() uint64 {
	return uint64(len(b.Transactions))
}

func (b *Block) SizeInBytes() uint64 {
	return uint64(len(b.Bytes()))
}

// CoinbaseTx returns the first transaction of the block, which carries the
// reward. Nil if the block has no transactions.
func (b *Block) CoinbaseTx() *Tx {
	if len(b.Transactions) == 0 {
		return nil
	}

	return b.Transactions[0]
}

// TxHashes returns the ids of all transactions in block order.
func (b *Block) TxHashes() []*chainhash.Hash {
	hashes := make([]*chainhash.Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.TxIDChainHash()
	}

	return hashes
}

// ExtractCoinbaseHeight returns the height committed in the coinbase
// payload.
func (b *Block) ExtractCoinbaseHeight() (uint32, error) {
	coinbase := b.CoinbaseTx()
	if coinbase == nil {
		return 0, errors.NewBlockInvalidError("block has no coinbase tx")
	}

	return ExtractCoinbaseHeight(coinbase)
}

// Valid runs the context free consistency checks on the block. Anything
// that needs the chain or the utxo set (parent lookup, input validation,
// the fee half of the reward check) happens in the blockchain service.
func (b *Block) Valid(params *chaincfg.Params) (bool, error) {
	// 1. Check that the block header hash is less than the target difficulty.
	headerValid, headerHash, err := b.Header.HasMetTargetDifficulty()
	if !headerValid {
		return false, errors.NewBlockInvalidError("invalid block header %s", headerHash.String(), err)
	}

	// 2. Check that the block timestamp is not more than two hours in the future.
	if b.Header.Timestamp > uint32(time.Now().Add(maxClockDrift).Unix()) {
		return false, errors.NewBlockInvalidError("block timestamp is more than two hours in the future")
	}

	// 3. Check that the block has at least a coinbase transaction.
	if len(b.Transactions) == 0 {
		return false, errors.NewBlockInvalidError("block has no transactions")
	}

	// 4. Check that the first transaction is a coinbase and that no other is.
	if !b.Transactions[0].IsCoinbase() {
		return false, errors.NewBlockInvalidError("first transaction in block is not a coinbase tx")
	}

	for i, tx := range b.Transactions[1:] {
		if tx.IsCoinbase() {
			return false, errors.NewBlockInvalidError("transaction at index %d is an extra coinbase tx", i+1)
		}

		if len(tx.Payload) > 0 {
			return false, errors.NewBlockInvalidError("transaction at index %d carries a non-empty payload", i+1)
		}
	}

	// 5. Check that the coinbase commits to the same height as the header.
	coinbaseHeight, err := b.ExtractCoinbaseHeight()
	if err != nil {
		return false, err
	}

	if coinbaseHeight != b.Header.Height {
		return false, errors.NewBlockInvalidError("coinbase height %d does not match header height %d", coinbaseHeight, b.Header.Height)
	}

	// 6. Check that there are no duplicate transactions in the block.
	txHashes := b.TxHashes()
	if err = checkDuplicateTransactions(txHashes); err != nil {
		return false, err
	}

	// 7. Calculate the merkle root of the transactions and check it matches
	//    the merkle root in the block header.
	if err = b.checkMerkleRoot(txHashes); err != nil {
		return false, err
	}

	// 8. Check that the block does not exceed the maximum block size.
	if params != nil && params.MaxBlockSize > 0 && b.SizeInBytes() > params.MaxBlockSize {
		return false, errors.NewBlockInvalidError("block size %d exceeds maximum %d", b.SizeInBytes(), params.MaxBlockSize)
	}

	return true, nil
}

// CheckMerkleRoot recomputes the merkle root from the block's transactions
// and compares it with the header.
func (b *Block) CheckMerkleRoot() error {
	return b.checkMerkleRoot(b.TxHashes())
}

func (b *Block) checkMerkleRoot(txHashes []*chainhash.Hash) error {
	merkleRoot, err := BuildMerkleRoot(txHashes)
	if err != nil {
		return err
	}

	if !merkleRoot.IsEqual(b.Header.HashMerkleRoot) {
		return errors.NewBlockInvalidError("merkle root mismatch: calculated %s, header has %s", merkleRoot.String(), b.Header.HashMerkleRoot.String())
	}

	return nil
}

func checkDuplicateTransactions(txHashes []*chainhash.Hash) error {
	seen := make(map[chainhash.Hash]struct{}, len(txHashes))

	for _, txHash := range txHashes {
		if _, ok := seen[*txHash]; ok {
			return errors.NewBlockInvalidError("duplicate transaction %s", txHash.String())
		}

		seen[*txHash] = struct{}{}
	}

	return nil
}

// CheckBlockRewardAndFees verifies that the coinbase pays out exactly the
// subsidy for this height plus the fees collected from the block's
// transactions. blockFees comes from the validator, which has the spent
// outputs at hand.
func (b *Block) CheckBlockRewardAndFees(blockFees, subsidy uint64) error {
	coinbase := b.CoinbaseTx()
	if coinbase == nil {
		return errors.NewBlockInvalidError("block has no coinbase tx")
	}

	coinbaseOutputSatoshis := coinbase.TotalOutputSatoshis()

	if coinbaseOutputSatoshis != blockFees+subsidy {
		return errors.NewBlockInvalidError("coinbase pays %d, want fees (%d) + block reward (%d)", coinbaseOutputSatoshis, blockFees, subsidy)
	}

	return nil
}
