package mempool

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
	"github.com/emberchain/embernode/services/validator"
	"github.com/emberchain/embernode/settings"
	"github.com/emberchain/embernode/ulogger"
)

// Entry is a pooled transaction plus its arrival metadata. Fee is what the
// validator computed at admission, Size the serialized length.
type Entry struct {
	Tx      *model.Tx
	Fee     uint64
	Size    uint64
	AddedAt time.Time

	sequence uint64
}

type Mempool struct {
	logger    ulogger.Logger
	settings  *settings.Settings
	validator validator.Interface
	view      validator.UtxoView
	chain     ChainView

	mu        sync.RWMutex
	txs       map[chainhash.Hash]*Entry
	outpoints map[model.Outpoint]chainhash.Hash
	sequence  uint64
}

func New(logger ulogger.Logger, tSettings *settings.Settings, txValidator validator.Interface, view validator.UtxoView, chain ChainView) *Mempool {
	initPrometheusMetrics()

	return &Mempool{
		logger:    logger,
		settings:  tSettings,
		validator: txValidator,
		view:      view,
		chain:     chain,
		txs:       make(map[chainhash.Hash]*Entry),
		outpoints: make(map[model.Outpoint]chainhash.Hash),
	}
}

func (m *Mempool) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, "Mempool", nil
}

func (m *Mempool) Init(_ context.Context) error {
	return nil
}

// Start runs the pruner: every block the chain applies has its transactions
// removed from the pool, and entries spending outpoints the block consumed
// are evicted. Transactions from blocks reverted in a reorganization are
// not resurrected; their owners resubmit.
func (m *Mempool) Start(ctx context.Context, readyCh chan<- struct{}) error {
	notifications := m.chain.Subscribe(ctx, "mempool")

	close(readyCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case notification, ok := <-notifications:
			if !ok {
				return nil
			}

			if notification.Type != model.NotificationBlockAdded {
				continue
			}

			block, err := m.chain.GetBlock(ctx, notification.Hash)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}

				m.logger.Errorf("[Mempool] failed to load block %s for pruning: %v", notification.Hash, err)

				continue
			}

			m.RemoveForBlock(block)
		}
	}
}

func (m *Mempool) Stop(_ context.Context) error {
	return nil
}

// Admit validates tx against the current chain state and inserts it,
// reserving every outpoint it spends. Signature verification runs outside
// the pool lock; the insert re-checks duplicates and reservations under it.
func (m *Mempool) Admit(ctx context.Context, tx *model.Tx) error {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("mempool").NewStat("Admit").AddTime(start)
		prometheusMempoolAdmit.Observe(float64(time.Since(start).Microseconds()) / 1_000_000)
	}()

	if tx.IsCoinbase() {
		prometheusMempoolRejected.Inc()
		return errors.NewTxInvalidError("coinbase transaction %s cannot enter the mempool", tx.TxID())
	}

	txSize := uint64(len(tx.Bytes()))
	if maxTxSize := m.settings.Mempool.MaxTxSize; maxTxSize > 0 && txSize > uint64(maxTxSize) {
		prometheusMempoolRejected.Inc()
		return errors.NewTxInvalidError("transaction %s is %d bytes, the mempool accepts at most %d", tx.TxID(), txSize, maxTxSize)
	}

	txID := *tx.TxIDChainHash()

	if err := m.precheck(txID, tx); err != nil {
		prometheusMempoolRejected.Inc()
		return err
	}

	height, err := m.chain.GetHeight(ctx)
	if err != nil {
		return errors.NewProcessingError("error getting chain height for %s", txID, err)
	}

	fee, err := m.validator.ValidateTransaction(ctx, tx, height+1, m.view)
	if err != nil {
		prometheusMempoolRejected.Inc()
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// the pool may have changed while the signatures were being verified
	if _, ok := m.txs[txID]; ok {
		prometheusMempoolRejected.Inc()
		return errors.NewTxAlreadyExistsError("transaction %s is already in the mempool", txID)
	}

	for i, input := range tx.Inputs {
		if holder, ok := m.outpoints[input.Outpoint()]; ok {
			prometheusMempoolRejected.Inc()
			return errors.NewTxInvalidDoubleSpendError("input %d of %s spends %s, already reserved by %s", i, txID, input.Outpoint(), holder)
		}
	}

	if maxSize := m.settings.Mempool.MaxSize; maxSize > 0 && len(m.txs) >= maxSize {
		prometheusMempoolRejected.Inc()
		return errors.NewProcessingError("mempool is full with %d transactions", len(m.txs))
	}

	m.sequence++
	m.txs[txID] = &Entry{
		Tx:       tx,
		Fee:      fee,
		Size:     txSize,
		AddedAt:  time.Now(),
		sequence: m.sequence,
	}

	for _, input := range tx.Inputs {
		m.outpoints[input.Outpoint()] = txID
	}

	prometheusMempoolAdmitted.Inc()
	prometheusMempoolSize.Set(float64(len(m.txs)))

	return nil
}

// precheck rejects duplicates, reservation conflicts and a full pool before
// signature verification is paid for.
func (m *Mempool) precheck(txID chainhash.Hash, tx *model.Tx) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.txs[txID]; ok {
		return errors.NewTxAlreadyExistsError("transaction %s is already in the mempool", txID)
	}

	for i, input := range tx.Inputs {
		if holder, ok := m.outpoints[input.Outpoint()]; ok {
			return errors.NewTxInvalidDoubleSpendError("input %d of %s spends %s, already reserved by %s", i, txID, input.Outpoint(), holder)
		}
	}

	if maxSize := m.settings.Mempool.MaxSize; maxSize > 0 && len(m.txs) >= maxSize {
		return errors.NewProcessingError("mempool is full with %d transactions", len(m.txs))
	}

	return nil
}

// RemoveForBlock prunes the pool after block acceptance: transactions the
// block included are dropped, and so is any entry spending an output the
// block just consumed.
func (m *Mempool) RemoveForBlock(block *model.Block) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("mempool").NewStat("RemoveForBlock").AddTime(start)
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	evicted := 0

	for _, tx := range block.Transactions {
		txID := *tx.TxIDChainHash()

		if _, ok := m.txs[txID]; ok {
			m.remove(txID)
			removed++
		}

		// a coinbase has no inputs, so it only goes through the branch above
		for _, input := range tx.Inputs {
			holder, ok := m.outpoints[input.Outpoint()]
			if !ok {
				continue
			}

			m.remove(holder)
			evicted++
		}
	}

	if removed > 0 || evicted > 0 {
		m.logger.Debugf("[Mempool] block %s removed %d included and %d conflicting transactions", block.Hash(), removed, evicted)
		prometheusMempoolEvicted.Add(float64(evicted))
		prometheusMempoolSize.Set(float64(len(m.txs)))
	}
}

// remove deletes the entry and releases the reservations it holds. The
// caller holds the write lock.
func (m *Mempool) remove(txID chainhash.Hash) {
	entry, ok := m.txs[txID]
	if !ok {
		return
	}

	for _, input := range entry.Tx.Inputs {
		outpoint := input.Outpoint()
		if holder, ok := m.outpoints[outpoint]; ok && holder == txID {
			delete(m.outpoints, outpoint)
		}
	}

	delete(m.txs, txID)
}

// Snapshot returns pooled entries in arrival order, stopping at maxTxs
// entries or maxBytes of serialized transactions, whichever comes first.
// Zero disables either cap. The returned entries are not removed from the
// pool; RemoveForBlock does that once a block including them is accepted.
func (m *Mempool) Snapshot(maxTxs int, maxBytes uint64) []*Entry {
	m.mu.RLock()

	entries := make([]*Entry, 0, len(m.txs))
	for _, entry := range m.txs {
		entries = append(entries, entry)
	}

	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].sequence < entries[j].sequence
	})

	taken := make([]*Entry, 0, len(entries))

	var totalBytes uint64

	for _, entry := range entries {
		if maxTxs > 0 && len(taken) >= maxTxs {
			break
		}

		if maxBytes > 0 && totalBytes+entry.Size > maxBytes {
			break
		}

		taken = append(taken, entry)
		totalBytes += entry.Size
	}

	return taken
}

func (m *Mempool) Contains(hash *chainhash.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.txs[*hash]

	return ok
}

func (m *Mempool) Get(hash *chainhash.Hash) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.txs[*hash]

	return entry, ok
}

func (m *Mempool) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.txs)
}
