package model

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/emberchain/embernode/errors"
)

// BlockHeaderSize is the serialized length of a header. All fields are
// little endian.
const BlockHeaderSize = 84

type BlockHeader struct {
	// Version of the block.  This is not the same as the protocol version.
	Version uint32

	// Height of the block in the chain. Committing the height here keeps
	// every coinbase unique and lets readers check it without context.
	Height uint32

	// Hash of the previous block header in the blockchain.
	HashPrevBlock *chainhash.Hash

	// Merkle tree reference to hash of all transactions for the block.
	HashMerkleRoot *chainhash.Hash

	// Time the block was created in unix time.
	Timestamp uint32

	// Difficulty target for the block in compact form.
	Bits NBit

	// Nonce used to generate the block.
	Nonce uint32
}

func NewBlockHeaderFromBytes(headerBytes []byte) (*BlockHeader, error) {
	if len(headerBytes) != BlockHeaderSize {
		return nil, errors.NewInvalidArgumentError("block header should be %d bytes long, got %d", BlockHeaderSize, len(headerBytes))
	}

	hashPrevBlock, err := chainhash.NewHash(headerBytes[8:40])
	if err != nil {
		return nil, errors.NewInvalidArgumentError("error creating previous block hash from bytes", err)
	}

	hashMerkleRoot, err := chainhash.NewHash(headerBytes[40:72])
	if err != nil {
		return nil, errors.NewInvalidArgumentError("error creating merkle root hash from bytes", err)
	}

	bits, err := NewNBitFromSlice(headerBytes[76:80])
	if err != nil {
		return nil, err
	}

	return &BlockHeader{
		Version:        binary.LittleEndian.Uint32(headerBytes[0:4]),
		Height:         binary.LittleEndian.Uint32(headerBytes[4:8]),
		HashPrevBlock:  hashPrevBlock,
		HashMerkleRoot: hashMerkleRoot,
		Timestamp:      binary.LittleEndian.Uint32(headerBytes[72:76]),
		Bits:           *bits,
		Nonce:          binary.LittleEndian.Uint32(headerBytes[80:84]),
	}, nil
}

func NewBlockHeaderFromString(headerHex string) (*BlockHeader, error) {
	headerBytes, err := hex.DecodeString(headerHex)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("error decoding header hex string", err)
	}

	return NewBlockHeaderFromBytes(headerBytes)
}

func (bh *BlockHeader) Bytes() []byte {
	headerBytes := make([]byte, BlockHeaderSize)

	binary.LittleEndian.PutUint32(headerBytes[0:4], bh.Version)
	binary.LittleEndian.PutUint32(headerBytes[4:8], bh.Height)
	copy(headerBytes[8:40], bh.HashPrevBlock[:])
	copy(headerBytes[40:72], bh.HashMerkleRoot[:])
	binary.LittleEndian.PutUint32(headerBytes[72:76], bh.Timestamp)
	copy(headerBytes[76:80], bh.Bits[:])
	binary.LittleEndian.PutUint32(headerBytes[80:84], bh.Nonce)

	return headerBytes
}

// Hash returns the double SHA-256 of the serialized header. This is the
// block's identity.
func (bh *BlockHeader) Hash() *chainhash.Hash {
	hash := chainhash.DoubleHashH(bh.Bytes())
	return &hash
}

func (bh *BlockHeader) String() string {
	return bh.Hash().String()
}

// HasMetTargetDifficulty checks that the header hash, read as a 256 bit
// integer, is strictly below the target the Bits field expands to. The hash
// is returned either way so callers can log it.
func (bh *BlockHeader) HasMetTargetDifficulty() (bool, *chainhash.Hash, error) {
	hash := bh.Hash()

	target := bh.Bits.CalculateTarget()
	if target.Sign() <= 0 {
		return false, hash, errors.NewBlockInvalidError("bits %s expand to a non-positive target", bh.Bits.String())
	}

	var hashInt big.Int
	hashInt.SetBytes(bt.ReverseBytes(hash.CloneBytes()))

	if hashInt.Cmp(target) >= 0 {
		return false, hash, errors.NewBlockInvalidError("block hash %s does not meet target %064x", hash.String(), target)
	}

	return true, hash, nil
}
