package blockchain

import (
	"context"
	"math"
	"net/http"
	"sync"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/jellydator/ttlcache/v3"
	"github.com/looplab/fsm"
	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
	"github.com/emberchain/embernode/services/miner/cpuminer"
	"github.com/emberchain/embernode/services/validator"
	"github.com/emberchain/embernode/settings"
	blockchain_store "github.com/emberchain/embernode/stores/blockchain"
	"github.com/emberchain/embernode/stores/utxo"
	"github.com/emberchain/embernode/ulogger"
)

// genesisCoinbaseTag is the arbitrary text in the genesis coinbase. It is a
// fixed constant so the genesis block is fully determined by the chain
// parameters and the miner locking hash, never by node configuration.
const genesisCoinbaseTag = "/embernode genesis/"

// notificationBuffer is the channel depth given to each subscriber.
const notificationBuffer = 32

// Blockchain owns chain state. The block index and the UTXO set are
// separate stores with no shared transaction, so this service is the one
// place that moves them together: bestHeader and bestMeta describe the
// block the UTXO set currently corresponds to, and every transition happens
// under mu.
type Blockchain struct {
	logger     ulogger.Logger
	settings   *settings.Settings
	store      blockchain_store.Store
	utxoStore  utxo.Store
	validator  validator.Interface
	difficulty *Difficulty

	mu         sync.RWMutex
	bestHeader *model.BlockHeader
	bestMeta   *model.BlockHeaderMeta
	fsm        *fsm.FSM

	// rejected remembers hashes that failed a deterministic consensus
	// check, so a resubmitted bad block is refused without revalidation.
	rejected *ttlcache.Cache[chainhash.Hash, string]

	subscribersMu sync.Mutex
	subscribers   map[chan *model.Notification]string
	stopped       bool
}

var _ Interface = (*Blockchain)(nil)

func New(logger ulogger.Logger, tSettings *settings.Settings, store blockchain_store.Store, utxoStore utxo.Store, txValidator validator.Interface) (*Blockchain, error) {
	initPrometheusMetrics()

	difficulty, err := NewDifficulty(store, logger, tSettings)
	if err != nil {
		return nil, err
	}

	rejected := ttlcache.New[chainhash.Hash, string](
		ttlcache.WithTTL[chainhash.Hash, string](tSettings.BlockChain.RejectedCacheTTL),
		ttlcache.WithDisableTouchOnHit[chainhash.Hash, string](),
	)

	go rejected.Start()

	return &Blockchain{
		logger:      logger,
		settings:    tSettings,
		store:       store,
		utxoStore:   utxoStore,
		validator:   txValidator,
		difficulty:  difficulty,
		fsm:         newFiniteStateMachine(FSMStateEmpty),
		rejected:    rejected,
		subscribers: make(map[chan *model.Notification]string),
	}, nil
}

func (b *Blockchain) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	if status, msg, err := b.store.Health(ctx, checkLiveness); err != nil {
		return status, msg, err
	}

	if status, msg, err := b.utxoStore.Health(ctx, checkLiveness); err != nil {
		return status, msg, err
	}

	return http.StatusOK, "OK", nil
}

// Init restores the chain state from the stores. A populated block index
// brings the machine up Active with the stored best block as the tip; an
// empty one leaves it Empty until Initialize mines a genesis block. The
// UTXO set is trusted to match the stored best block, which holds as long
// as every mutation went through this service.
func (b *Blockchain) Init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bestHeader, bestMeta, err := b.store.GetBestBlockHeader(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrBlockNotFound) {
			b.fsm = newFiniteStateMachine(FSMStateEmpty)
			b.logger.Infof("[Blockchain] no blocks stored, waiting for Initialize")

			return nil
		}

		return errors.NewStorageError("failed to read best block header", err)
	}

	b.setBestLocked(bestHeader, bestMeta)
	b.fsm = newFiniteStateMachine(FSMStateActive)

	b.logger.Infof("[Blockchain] restored chain at height %d, best block %s", bestMeta.Height, bestHeader.Hash())

	return nil
}

func (b *Blockchain) Start(_ context.Context, readyCh chan<- struct{}) error {
	close(readyCh)

	return nil
}

func (b *Blockchain) Stop(_ context.Context) error {
	b.subscribersMu.Lock()
	defer b.subscribersMu.Unlock()

	if b.stopped {
		return nil
	}

	b.stopped = true
	b.rejected.Stop()

	for ch, source := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)

		b.logger.Debugf("[Blockchain] closed subscription for %s", source)
	}

	return nil
}

// Initialize mines the genesis block and activates the chain. The genesis
// block pays the full subsidy for height 0 to minerLockingHash and is mined
// from nonce 0, so the same parameters and hash always produce the same
// genesis block.
func (b *Blockchain) Initialize(ctx context.Context, minerLockingHash [model.LockingHashSize]byte) (*model.Block, error) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("Initialize").AddTime(start)
	}()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.fsm.Event(ctx, FSMEventInitialize); err != nil {
		return nil, errors.NewBlockExistsError("chain is already initialized", err)
	}

	chainParams := b.settings.ChainCfgParams

	coinbase := model.NewTx()
	coinbase.Payload = model.NewCoinbasePayload(0, genesisCoinbaseTag)
	coinbase.Outputs = []*model.TxOutput{{
		Satoshis:    chainParams.SubsidyForHeight(0),
		LockingHash: minerLockingHash,
	}}

	merkleRoot, err := model.BuildMerkleRoot([]*chainhash.Hash{coinbase.TxIDChainHash()})
	if err != nil {
		b.fsm.SetState(FSMStateEmpty)
		return nil, errors.NewProcessingError("failed to build genesis merkle root", err)
	}

	header := &model.BlockHeader{
		Version:        1,
		Height:         0,
		HashPrevBlock:  &chainhash.Hash{},
		HashMerkleRoot: merkleRoot,
		Timestamp:      chainParams.GenesisTimestamp,
		Bits:           *model.NewNBitFromCompact(chainParams.PowLimitBits),
	}

	if _, err = cpuminer.Mine(ctx, header, math.MaxUint32); err != nil {
		b.fsm.SetState(FSMStateEmpty)
		return nil, errors.NewProcessingError("failed to mine genesis block", err)
	}

	genesis, err := model.NewBlock(header, []*model.Tx{coinbase})
	if err != nil {
		b.fsm.SetState(FSMStateEmpty)
		return nil, err
	}

	if err = b.connectBlock(ctx, genesis); err != nil {
		b.fsm.SetState(FSMStateEmpty)
		return nil, err
	}

	bestHeader, bestMeta, err := b.store.GetBlockHeader(ctx, genesis.Hash())
	if err != nil {
		b.fsm.SetState(FSMStateEmpty)
		return nil, errors.NewStorageError("failed to read back genesis block %s", genesis.Hash(), err)
	}

	b.setBestLocked(bestHeader, bestMeta)

	b.logger.Infof("[Blockchain] initialized chain with genesis block %s", genesis.Hash())

	b.notify(&model.Notification{Type: model.NotificationBlockAdded, Hash: genesis.Hash(), Height: 0})

	return genesis, nil
}

func (b *Blockchain) GetBestBlockHeader(_ context.Context) (*model.BlockHeader, *model.BlockHeaderMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.bestHeader == nil {
		return nil, nil, errors.NewBlockNotFoundError("chain has no blocks")
	}

	return b.bestHeader, b.bestMeta, nil
}

func (b *Blockchain) GetBlock(ctx context.Context, blockHash *chainhash.Hash) (*model.Block, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.store.GetBlock(ctx, blockHash)
}

func (b *Blockchain) GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.store.GetBlockByHeight(ctx, height)
}

func (b *Blockchain) GetBlockExists(ctx context.Context, blockHash *chainhash.Hash) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.store.GetBlockExists(ctx, blockHash)
}

func (b *Blockchain) GetHeight(_ context.Context) (uint32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.bestMeta == nil {
		return 0, errors.NewBlockNotFoundError("chain has no blocks")
	}

	return b.bestMeta.Height, nil
}

func (b *Blockchain) GetBalance(ctx context.Context, lockingHash [model.LockingHashSize]byte) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.utxoStore.BalanceOf(ctx, lockingHash)
}

func (b *Blockchain) GetUtxo(ctx context.Context, txID *chainhash.Hash, vout uint32) (*utxo.Unspent, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.utxoStore.Get(ctx, txID, vout)
}

func (b *Blockchain) GetNextWorkRequired(ctx context.Context, prevBlockHash *chainhash.Hash, now uint32) (*model.NBit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	prevHeader, prevMeta, err := b.store.GetBlockHeader(ctx, prevBlockHash)
	if err != nil {
		return nil, err
	}

	return b.difficulty.CalcNextWorkRequired(ctx, prevHeader, prevMeta, now)
}

func (b *Blockchain) GetBlockStats(ctx context.Context) (*model.BlockStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.store.GetBlockStats(ctx)
}

// Subscribe registers a notification channel that lives until ctx is
// cancelled or the service stops. Notifications are delivered best effort:
// a subscriber whose buffer is full misses the notification instead of
// stalling block acceptance.
func (b *Blockchain) Subscribe(ctx context.Context, source string) <-chan *model.Notification {
	ch := make(chan *model.Notification, notificationBuffer)

	b.subscribersMu.Lock()
	if b.stopped {
		b.subscribersMu.Unlock()
		close(ch)

		return ch
	}

	b.subscribers[ch] = source
	b.subscribersMu.Unlock()

	b.logger.Infof("[Blockchain] new subscription for %s", source)

	go func() {
		<-ctx.Done()

		b.subscribersMu.Lock()
		defer b.subscribersMu.Unlock()

		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
	}()

	return ch
}

func (b *Blockchain) notify(notification *model.Notification) {
	b.subscribersMu.Lock()
	defer b.subscribersMu.Unlock()

	for ch, source := range b.subscribers {
		select {
		case ch <- notification:
		default:
			b.logger.Warnf("[Blockchain] subscriber %s is not keeping up, dropping %s", source, notification)
		}
	}
}

// setBestLocked records the applied tip. Callers hold mu.
func (b *Blockchain) setBestLocked(header *model.BlockHeader, meta *model.BlockHeaderMeta) {
	b.bestHeader = header
	b.bestMeta = meta

	prometheusBlockchainBestHeight.Set(float64(meta.Height))
}
