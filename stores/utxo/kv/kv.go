// Package kv implements the UTXO store on top of the kvstore abstraction.
//
// Three key families share the one keyspace:
//
//	u:<txid><vout LE> -> serialized Unspent record
//	b:<lockingHash>   -> balance in satoshis, 8 bytes little endian
//	r:<blockHash>     -> undo record for a previously applied block
//
// ApplyBlock and RevertBlock each build a single kvstore batch, so the UTXO
// set, the balances and the undo record move together or not at all.
package kv

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
	"github.com/emberchain/embernode/stores/kvstore"
	"github.com/emberchain/embernode/stores/utxo"
	"github.com/emberchain/embernode/ulogger"
	"github.com/libsv/go-p2p/wire"
)

type Store struct {
	logger ulogger.Logger
	store  kvstore.Store
}

func New(logger ulogger.Logger, store kvstore.Store) *Store {
	return &Store{
		logger: logger,
		store:  store,
	}
}

func (s *Store) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	return s.store.Health(ctx, checkLiveness)
}

func (s *Store) Close(ctx context.Context) error {
	return s.store.Close(ctx)
}

func utxoKey(txID *chainhash.Hash, vout uint32) []byte {
	key := make([]byte, 2+chainhash.HashSize+4)
	key[0] = 'u'
	key[1] = ':'
	copy(key[2:], txID[:])
	binary.LittleEndian.PutUint32(key[2+chainhash.HashSize:], vout)

	return key
}

func balanceKey(lockingHash [model.LockingHashSize]byte) []byte {
	key := make([]byte, 2+model.LockingHashSize)
	key[0] = 'b'
	key[1] = ':'
	copy(key[2:], lockingHash[:])

	return key
}

func undoKey(blockHash *chainhash.Hash) []byte {
	key := make([]byte, 2+chainhash.HashSize)
	key[0] = 'r'
	key[1] = ':'
	copy(key[2:], blockHash[:])

	return key
}

func (s *Store) Get(ctx context.Context, txID *chainhash.Hash, vout uint32) (*utxo.Unspent, error) {
	value, err := s.store.Get(ctx, utxoKey(txID, vout))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewUtxoNotFoundError("utxo %s:%d not found", txID, vout, err)
		}

		return nil, err
	}

	return utxo.NewUnspentFromBytes(value)
}

func (s *Store) Contains(ctx context.Context, txID *chainhash.Hash, vout uint32) (bool, error) {
	return s.store.Exists(ctx, utxoKey(txID, vout))
}

func (s *Store) BalanceOf(ctx context.Context, lockingHash [model.LockingHashSize]byte) (uint64, error) {
	value, err := s.store.Get(ctx, balanceKey(lockingHash))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return 0, nil
		}

		return 0, err
	}

	if len(value) != 8 {
		return 0, errors.NewStorageError("balance record for %x has %d bytes", lockingHash, len(value))
	}

	return binary.LittleEndian.Uint64(value), nil
}

// spentOutput is one undo entry: an outpoint deleted by ApplyBlock together
// with the record it held, so RevertBlock can put it back.
type spentOutput struct {
	txID    chainhash.Hash
	vout    uint32
	unspent *utxo.Unspent
}

func (s *Store) ApplyBlock(ctx context.Context, block *model.Block) error {
	blockHash := block.Hash()

	exists, err := s.store.Exists(ctx, undoKey(blockHash))
	if err != nil {
		return err
	}

	if exists {
		return errors.NewBlockExistsError("block %s has already been applied", blockHash)
	}

	batch := s.store.NewBatch()

	var (
		spent  []spentOutput
		deltas = make(map[[model.LockingHashSize]byte]int64)
		seen   = make(map[string]struct{})
	)

	for _, tx := range block.Transactions {
		txID := tx.TxIDChainHash()

		for _, input := range tx.Inputs {
			key := utxoKey(input.PreviousTxHash, input.PreviousTxOutIndex)

			if _, ok := seen[string(key)]; ok {
				batch.Cancel()
				return errors.NewTxInvalidDoubleSpendError("utxo %s:%d is spent twice in block %s", input.PreviousTxHash, input.PreviousTxOutIndex, blockHash)
			}

			seen[string(key)] = struct{}{}

			record, err := s.Get(ctx, input.PreviousTxHash, input.PreviousTxOutIndex)
			if err != nil {
				batch.Cancel()
				return err
			}

			if err = batch.Del(key); err != nil {
				batch.Cancel()
				return err
			}

			spent = append(spent, spentOutput{
				txID:    *input.PreviousTxHash,
				vout:    input.PreviousTxOutIndex,
				unspent: record,
			})

			satoshis, err := safeconversion.Uint64ToInt64(record.Satoshis)
			if err != nil {
				batch.Cancel()
				return err
			}

			deltas[record.LockingHash] -= satoshis
		}

		for vout, output := range tx.Outputs {
			voutUint32, err := safeconversion.IntToUint32(vout)
			if err != nil {
				batch.Cancel()
				return err
			}

			record := &utxo.Unspent{
				Satoshis:    output.Satoshis,
				LockingHash: output.LockingHash,
				Height:      block.Header.Height,
				IsCoinbase:  tx.IsCoinbase(),
			}

			if err = batch.Set(utxoKey(txID, voutUint32), record.Bytes()); err != nil {
				batch.Cancel()
				return err
			}

			satoshis, err := safeconversion.Uint64ToInt64(output.Satoshis)
			if err != nil {
				batch.Cancel()
				return err
			}

			deltas[output.LockingHash] += satoshis
		}
	}

	if err = s.applyBalanceDeltas(ctx, batch, deltas); err != nil {
		batch.Cancel()
		return err
	}

	undoBytes, err := serializeUndo(spent)
	if err != nil {
		batch.Cancel()
		return err
	}

	if err = batch.Set(undoKey(blockHash), undoBytes); err != nil {
		batch.Cancel()
		return err
	}

	return batch.Commit(ctx)
}

func (s *Store) RevertBlock(ctx context.Context, block *model.Block) error {
	blockHash := block.Hash()

	undoBytes, err := s.store.Get(ctx, undoKey(blockHash))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return errors.NewNotFoundError("no undo data for block %s", blockHash, err)
		}

		return err
	}

	spent, err := deserializeUndo(undoBytes)
	if err != nil {
		return err
	}

	batch := s.store.NewBatch()
	deltas := make(map[[model.LockingHashSize]byte]int64)

	// remove the outputs the block created
	for _, tx := range block.Transactions {
		txID := tx.TxIDChainHash()

		for vout, output := range tx.Outputs {
			voutUint32, err := safeconversion.IntToUint32(vout)
			if err != nil {
				batch.Cancel()
				return err
			}

			if err = batch.Del(utxoKey(txID, voutUint32)); err != nil {
				batch.Cancel()
				return err
			}

			satoshis, err := safeconversion.Uint64ToInt64(output.Satoshis)
			if err != nil {
				batch.Cancel()
				return err
			}

			deltas[output.LockingHash] -= satoshis
		}
	}

	// restore the outputs the block spent
	for _, sp := range spent {
		if err = batch.Set(utxoKey(&sp.txID, sp.vout), sp.unspent.Bytes()); err != nil {
			batch.Cancel()
			return err
		}

		satoshis, err := safeconversion.Uint64ToInt64(sp.unspent.Satoshis)
		if err != nil {
			batch.Cancel()
			return err
		}

		deltas[sp.unspent.LockingHash] += satoshis
	}

	if err = batch.Del(undoKey(blockHash)); err != nil {
		batch.Cancel()
		return err
	}

	if err = s.applyBalanceDeltas(ctx, batch, deltas); err != nil {
		batch.Cancel()
		return err
	}

	return batch.Commit(ctx)
}

// applyBalanceDeltas reads each affected balance once and writes the final
// value into the batch. A zero balance is deleted rather than stored.
func (s *Store) applyBalanceDeltas(ctx context.Context, batch kvstore.Batch, deltas map[[model.LockingHashSize]byte]int64) error {
	for lockingHash, delta := range deltas {
		if delta == 0 {
			continue
		}

		balance, err := s.BalanceOf(ctx, lockingHash)
		if err != nil {
			return err
		}

		current, err := safeconversion.Uint64ToInt64(balance)
		if err != nil {
			return err
		}

		updated := current + delta
		if updated < 0 {
			return errors.NewStorageError("balance for %x would go below zero", lockingHash)
		}

		if updated == 0 {
			if err = batch.Del(balanceKey(lockingHash)); err != nil {
				return err
			}

			continue
		}

		value := make([]byte, 8)
		binary.LittleEndian.PutUint64(value, uint64(updated))

		if err = batch.Set(balanceKey(lockingHash), value); err != nil {
			return err
		}
	}

	return nil
}

func serializeUndo(spent []spentOutput) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 9+len(spent)*(chainhash.HashSize+4+utxo.UnspentSize)))

	count, err := safeconversion.IntToUint64(len(spent))
	if err != nil {
		return nil, err
	}

	if err = wire.WriteVarInt(buf, 0, count); err != nil {
		return nil, err
	}

	var voutBytes [4]byte

	for _, sp := range spent {
		buf.Write(sp.txID[:])

		binary.LittleEndian.PutUint32(voutBytes[:], sp.vout)
		buf.Write(voutBytes[:])

		buf.Write(sp.unspent.Bytes())
	}

	return buf.Bytes(), nil
}

func deserializeUndo(b []byte) ([]spentOutput, error) {
	r := bytes.NewReader(b)

	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, errors.NewStorageError("could not read undo entry count", err)
	}

	entrySize := uint64(chainhash.HashSize + 4 + utxo.UnspentSize)
	if count > uint64(r.Len())/entrySize {
		return nil, errors.NewStorageError("undo record claims %d entries but only %d bytes remain", count, r.Len())
	}

	spent := make([]spentOutput, 0, count)

	var voutBytes [4]byte

	for i := uint64(0); i < count; i++ {
		sp := spentOutput{}

		if _, err = io.ReadFull(r, sp.txID[:]); err != nil {
			return nil, errors.NewStorageError("could not read undo outpoint txid", err)
		}

		if _, err = io.ReadFull(r, voutBytes[:]); err != nil {
			return nil, errors.NewStorageError("could not read undo outpoint vout", err)
		}

		sp.vout = binary.LittleEndian.Uint32(voutBytes[:])

		recordBytes := make([]byte, utxo.UnspentSize)
		if _, err = io.ReadFull(r, recordBytes); err != nil {
			return nil, errors.NewStorageError("could not read undo unspent record", err)
		}

		if sp.unspent, err = utxo.NewUnspentFromBytes(recordBytes); err != nil {
			return nil, err
		}

		spent = append(spent, sp)
	}

	if r.Len() > 0 {
		return nil, errors.NewStorageError("undo record has %d trailing bytes", r.Len())
	}

	return spent, nil
}
