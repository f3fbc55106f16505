// Package utxo tracks the set of unspent transaction outputs and the balance
// held by each locking hash. Blocks move the set forward with ApplyBlock and
// backward with RevertBlock; both transitions are atomic, a reader never sees
// a partially applied block.
package utxo

import (
	"context"
	"encoding/binary"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
)

// UnspentSize is the length of a serialized Unspent record.
const UnspentSize = 8 + model.LockingHashSize + 4 + 1

// Unspent is the record kept for a spendable transaction output.
type Unspent struct {
	Satoshis    uint64
	LockingHash [model.LockingHashSize]byte
	Height      uint32
	IsCoinbase  bool
}

// Bytes serializes the record: satoshis (8 bytes LE), locking hash (32
// bytes), creating height (4 bytes LE), coinbase flag (1 byte).
func (u *Unspent) Bytes() []byte {
	b := make([]byte, UnspentSize)

	binary.LittleEndian.PutUint64(b[0:8], u.Satoshis)
	copy(b[8:40], u.LockingHash[:])
	binary.LittleEndian.PutUint32(b[40:44], u.Height)

	if u.IsCoinbase {
		b[44] = 1
	}

	return b
}

// NewUnspentFromBytes deserializes a record created by Bytes.
func NewUnspentFromBytes(b []byte) (*Unspent, error) {
	if len(b) != UnspentSize {
		return nil, errors.NewInvalidArgumentError("unspent record must be %d bytes, got %d", UnspentSize, len(b))
	}

	u := &Unspent{
		Satoshis:   binary.LittleEndian.Uint64(b[0:8]),
		Height:     binary.LittleEndian.Uint32(b[40:44]),
		IsCoinbase: b[44] == 1,
	}
	copy(u.LockingHash[:], b[8:40])

	return u, nil
}

// Store is the interface implemented by UTXO set backends.
type Store interface {
	// Health checks the health status of the store.
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// Get returns the unspent record for the given outpoint. A spent or
	// unknown outpoint returns an error with code UTXO_NOT_FOUND.
	Get(ctx context.Context, txID *chainhash.Hash, vout uint32) (*Unspent, error)

	// Contains reports whether the given outpoint is currently unspent.
	Contains(ctx context.Context, txID *chainhash.Hash, vout uint32) (bool, error)

	// BalanceOf returns the total satoshis currently locked to the given
	// hash. An unknown locking hash has a balance of zero.
	BalanceOf(ctx context.Context, lockingHash [model.LockingHashSize]byte) (uint64, error)

	// ApplyBlock spends the inputs and creates the outputs of every
	// transaction in the block, recording what is needed to revert.
	ApplyBlock(ctx context.Context, block *model.Block) error

	// RevertBlock undoes ApplyBlock for the given block, which must be the
	// most recently applied one.
	RevertBlock(ctx context.Context, block *model.Block) error

	// Close releases all resources held by the store.
	Close(ctx context.Context) error
}
