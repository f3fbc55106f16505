package model

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/libsv/go-p2p/wire"

	"github.com/emberchain/embernode/errors"
)

// maxWitnessLength bounds the signature and public key fields on decode so a
// corrupt length prefix cannot force a huge allocation.
const maxWitnessLength = 256

// TxInput spends one output of an earlier transaction. Signature and
// PublicKey are empty until the input is signed. Inside a signing view the
// PublicKey slot carries the locking hash of the referenced output instead
// of a key.
type TxInput struct {
	PreviousTxHash     *chainhash.Hash
	PreviousTxOutIndex uint32
	Signature          []byte
	PublicKey          []byte
}

func (in *TxInput) Bytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 32+4+2+len(in.Signature)+len(in.PublicKey)))

	buf.Write(in.PreviousTxHash[:])

	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], in.PreviousTxOutIndex)
	buf.Write(idx[:])

	_ = wire.WriteVarInt(buf, 0, uint64(len(in.Signature)))
	buf.Write(in.Signature)

	_ = wire.WriteVarInt(buf, 0, uint64(len(in.PublicKey)))
	buf.Write(in.PublicKey)

	return buf.Bytes()
}

// NewTxInputFromReader decodes one input from r.
func NewTxInputFromReader(r io.Reader) (*TxInput, error) {
	var hashBytes [32]byte
	if _, err := io.ReadFull(r, hashBytes[:]); err != nil {
		return nil, errors.NewInvalidArgumentError("error reading previous tx hash", err)
	}

	previousTxHash, err := chainhash.NewHash(hashBytes[:])
	if err != nil {
		return nil, errors.NewInvalidArgumentError("error creating previous tx hash", err)
	}

	var idx [4]byte
	if _, err = io.ReadFull(r, idx[:]); err != nil {
		return nil, errors.NewInvalidArgumentError("error reading previous tx out index", err)
	}

	signature, err := readVarBytes(r)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("error reading signature", err)
	}

	publicKey, err := readVarBytes(r)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("error reading public key", err)
	}

	return &TxInput{
		PreviousTxHash:     previousTxHash,
		PreviousTxOutIndex: binary.LittleEndian.Uint32(idx[:]),
		Signature:          signature,
		PublicKey:          publicKey,
	}, nil
}

// Clone returns a deep copy of the input.
func (in *TxInput) Clone() *TxInput {
	clone := &TxInput{
		PreviousTxOutIndex: in.PreviousTxOutIndex,
	}

	if in.PreviousTxHash != nil {
		hash := *in.PreviousTxHash
		clone.PreviousTxHash = &hash
	}

	if in.Signature != nil {
		clone.Signature = make([]byte, len(in.Signature))
		copy(clone.Signature, in.Signature)
	}

	if in.PublicKey != nil {
		clone.PublicKey = make([]byte, len(in.PublicKey))
		copy(clone.PublicKey, in.PublicKey)
	}

	return clone
}

func readVarBytes(r io.Reader) ([]byte, error) {
	n, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}

	if n == 0 {
		return nil, nil
	}

	if n > maxWitnessLength {
		return nil, errors.NewInvalidArgumentError("field length %d exceeds maximum %d", n, maxWitnessLength)
	}

	b := make([]byte, n)
	if _, err = io.ReadFull(r, b); err != nil {
		return nil, err
	}

	return b, nil
}
