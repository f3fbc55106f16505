package model

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/emberchain/embernode/errors"
)

// LockingHashSize is the byte length of the hash that locks an output to a
// public key.
const LockingHashSize = 32

// TxOutput locks an amount of satoshis to the SHA-256 hash of a public key.
// Spending it later requires a key that hashes to LockingHash and a valid
// signature under that key.
type TxOutput struct {
	Satoshis    uint64
	LockingHash [LockingHashSize]byte
}

func (out *TxOutput) Bytes() []byte {
	b := make([]byte, 8+LockingHashSize)
	binary.LittleEndian.PutUint64(b[0:8], out.Satoshis)
	copy(b[8:], out.LockingHash[:])

	return b
}

// NewTxOutputFromReader decodes one output from r.
func NewTxOutputFromReader(r io.Reader) (*TxOutput, error) {
	var b [8 + LockingHashSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, errors.NewInvalidArgumentError("error reading tx output", err)
	}

	out := &TxOutput{
		Satoshis: binary.LittleEndian.Uint64(b[0:8]),
	}
	copy(out.LockingHash[:], b[8:])

	return out, nil
}

// Clone returns a copy of the output.
func (out *TxOutput) Clone() *TxOutput {
	return &TxOutput{
		Satoshis:    out.Satoshis,
		LockingHash: out.LockingHash,
	}
}

func (out *TxOutput) String() string {
	return fmt.Sprintf("%d -> %s", out.Satoshis, hex.EncodeToString(out.LockingHash[:]))
}
