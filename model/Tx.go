package model

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/libsv/go-p2p/wire"

	"github.com/emberchain/embernode/crypto"
	"github.com/emberchain/embernode/errors"
)

// Tx is a transfer of satoshis from previously created outputs to new ones.
// A coinbase transaction has no inputs and mints the block reward; its
// Payload commits to the block height plus an arbitrary miner tag. For all
// other transactions the Payload must be empty.
//
// The serialized form produced by Bytes is the only encoding: it feeds the
// transaction id, the merkle tree and storage alike.
type Tx struct {
	Version uint32
	Inputs  []*TxInput
	Outputs []*TxOutput
	Payload []byte
}

func NewTx() *Tx {
	return &Tx{Version: 1}
}

// NewTxFromBytes decodes a transaction and rejects trailing bytes.
func NewTxFromBytes(b []byte) (*Tx, error) {
	r := bytes.NewReader(b)

	tx, err := NewTxFromReader(r)
	if err != nil {
		return nil, err
	}

	if r.Len() > 0 {
		return nil, errors.NewInvalidArgumentError("%d trailing bytes after transaction", r.Len())
	}

	return tx, nil
}

// NewTxFromReader decodes exactly one transaction from r, leaving the reader
// positioned after it.
func NewTxFromReader(r io.Reader) (*Tx, error) {
	tx := &Tx{}

	var version [4]byte
	if _, err := io.ReadFull(r, version[:]); err != nil {
		return nil, errors.NewInvalidArgumentError("error reading tx version", err)
	}

	tx.Version = binary.LittleEndian.Uint32(version[:])

	inputCount, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("error reading tx input count", err)
	}

	for i := uint64(0); i < inputCount; i++ {
		input, err := NewTxInputFromReader(r)
		if err != nil {
			return nil, err
		}

		tx.Inputs = append(tx.Inputs, input)
	}

	outputCount, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("error reading tx output count", err)
	}

	for i := uint64(0); i < outputCount; i++ {
		output, err := NewTxOutputFromReader(r)
		if err != nil {
			return nil, err
		}

		tx.Outputs = append(tx.Outputs, output)
	}

	tx.Payload, err = readVarBytes(r)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("error reading tx payload", err)
	}

	return tx, nil
}

func (tx *Tx) Bytes() []byte {
	buf := new(bytes.Buffer)

	var version [4]byte
	binary.LittleEndian.PutUint32(version[:], tx.Version)
	buf.Write(version[:])

	_ = wire.WriteVarInt(buf, 0, uint64(len(tx.Inputs)))
	for _, input := range tx.Inputs {
		buf.Write(input.Bytes())
	}

	_ = wire.WriteVarInt(buf, 0, uint64(len(tx.Outputs)))
	for _, output := range tx.Outputs {
		buf.Write(output.Bytes())
	}

	_ = wire.WriteVarInt(buf, 0, uint64(len(tx.Payload)))
	buf.Write(tx.Payload)

	return buf.Bytes()
}

// TxIDChainHash returns the double SHA-256 of the serialized transaction.
func (tx *Tx) TxIDChainHash() *chainhash.Hash {
	hash := chainhash.DoubleHashH(tx.Bytes())
	return &hash
}

// TxID returns the transaction id as a hex string in display order.
func (tx *Tx) TxID() string {
	return tx.TxIDChainHash().String()
}

func (tx *Tx) String() string {
	return tx.TxID()
}

// IsCoinbase reports whether this transaction mints coins. A coinbase spends
// nothing, so it is the only transaction kind with no inputs.
func (tx *Tx) IsCoinbase() bool {
	return len(tx.Inputs) == 0
}

func (tx *Tx) TotalOutputSatoshis() (total uint64) {
	for _, output := range tx.Outputs {
		total += output.Satoshis
	}

	return total
}

// Clone returns a deep copy of the transaction.
func (tx *Tx) Clone() *Tx {
	clone := &Tx{
		Version: tx.Version,
		Inputs:  make([]*TxInput, len(tx.Inputs)),
		Outputs: make([]*TxOutput, len(tx.Outputs)),
	}

	for i, input := range tx.Inputs {
		clone.Inputs[i] = input.Clone()
	}

	for i, output := range tx.Outputs {
		clone.Outputs[i] = output.Clone()
	}

	if tx.Payload != nil {
		clone.Payload = make([]byte, len(tx.Payload))
		copy(clone.Payload, tx.Payload)
	}

	return clone
}

// signingView builds the copy of the transaction that input inputIdx signs:
// every signature and public key is blanked, and the slot for the input
// being signed carries the locking hash of the output it spends. The
// original transaction is never touched.
func (tx *Tx) signingView(inputIdx uint32, prevLockingHash [LockingHashSize]byte) (*Tx, error) {
	if inputIdx >= uint32(len(tx.Inputs)) {
		return nil, errors.NewInvalidArgumentError("input index %d out of range, tx has %d inputs", inputIdx, len(tx.Inputs))
	}

	view := tx.Clone()

	for _, input := range view.Inputs {
		input.Signature = nil
		input.PublicKey = nil
	}

	view.Inputs[inputIdx].PublicKey = prevLockingHash[:]

	return view, nil
}

// CalcInputSignatureHash returns the digest that the given input commits to:
// the double SHA-256 of the signing view for that input.
func (tx *Tx) CalcInputSignatureHash(inputIdx uint32, prevLockingHash [LockingHashSize]byte) ([]byte, error) {
	view, err := tx.signingView(inputIdx, prevLockingHash)
	if err != nil {
		return nil, err
	}

	digest := chainhash.DoubleHashH(view.Bytes())

	return digest[:], nil
}

// SignInput signs input inputIdx with privKey and fills in its Signature and
// PublicKey fields. prevLockingHash must be the locking hash of the output
// the input spends, and the private key must hash to it for the signature
// to verify later.
func (tx *Tx) SignInput(privKey *btcec.PrivateKey, inputIdx uint32, prevLockingHash [LockingHashSize]byte) error {
	digest, err := tx.CalcInputSignatureHash(inputIdx, prevLockingHash)
	if err != nil {
		return err
	}

	signature, err := crypto.SignSchnorr(privKey, digest)
	if err != nil {
		return err
	}

	tx.Inputs[inputIdx].Signature = signature
	tx.Inputs[inputIdx].PublicKey = privKey.PubKey().SerializeCompressed()

	return nil
}

// VerifyInputSignature checks the signature on input inputIdx against the
// locking hash of the output it spends.
func (tx *Tx) VerifyInputSignature(inputIdx uint32, prevLockingHash [LockingHashSize]byte) error {
	if inputIdx >= uint32(len(tx.Inputs)) {
		return errors.NewInvalidArgumentError("input index %d out of range, tx has %d inputs", inputIdx, len(tx.Inputs))
	}

	input := tx.Inputs[inputIdx]

	digest, err := tx.CalcInputSignatureHash(inputIdx, prevLockingHash)
	if err != nil {
		return err
	}

	return crypto.VerifySchnorr(input.PublicKey, input.Signature, digest)
}
