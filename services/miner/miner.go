// Package miner produces blocks on the CPU. It is a client of the
// blockchain and mempool services: candidates are built from the current
// tip and the pooled transactions, mined outside any lock, and handed back
// through AcceptBlock like any other block. A tip change abandons the
// candidate being mined.
package miner

import (
	"context"
	"net/http"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/crypto"
	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
	"github.com/emberchain/embernode/services/mempool"
	"github.com/emberchain/embernode/services/miner/cpuminer"
	"github.com/emberchain/embernode/settings"
	"github.com/emberchain/embernode/ulogger"
)

// ChainClient is the slice of the blockchain service the miner uses.
type ChainClient interface {
	Initialize(ctx context.Context, minerLockingHash [model.LockingHashSize]byte) (*model.Block, error)
	GetBestBlockHeader(ctx context.Context) (*model.BlockHeader, *model.BlockHeaderMeta, error)
	GetNextWorkRequired(ctx context.Context, prevBlockHash *chainhash.Hash, now uint32) (*model.NBit, error)
	AcceptBlock(ctx context.Context, block *model.Block) error
	Subscribe(ctx context.Context, source string) <-chan *model.Notification
}

// TxSource is the slice of the mempool the miner uses.
type TxSource interface {
	Snapshot(maxTxs int, maxBytes uint64) []*mempool.Entry
}

type Miner struct {
	logger      ulogger.Logger
	settings    *settings.Settings
	chain       ChainClient
	pool        TxSource
	lockingHash [model.LockingHashSize]byte
}

func New(logger ulogger.Logger, tSettings *settings.Settings, chain ChainClient, pool TxSource) (*Miner, error) {
	initPrometheusMetrics()

	m := &Miner{
		logger:   logger,
		settings: tSettings,
		chain:    chain,
		pool:     pool,
	}

	if tSettings.Miner.Enabled {
		if tSettings.Miner.WalletAddress == "" {
			return nil, errors.NewConfigurationError("miner is enabled but miner_walletAddress is not set")
		}

		_, lockingHash, err := crypto.DecodeAddress(tSettings.Miner.WalletAddress)
		if err != nil {
			return nil, errors.NewConfigurationError("invalid miner_walletAddress %q", tSettings.Miner.WalletAddress, err)
		}

		m.lockingHash = lockingHash
	}

	return m, nil
}

func (m *Miner) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, "OK", nil
}

// Init mines the genesis block when the chain is still empty, so a fresh
// mining node bootstraps itself.
func (m *Miner) Init(ctx context.Context) error {
	if !m.settings.Miner.Enabled {
		return nil
	}

	_, _, err := m.chain.GetBestBlockHeader(ctx)
	if err == nil {
		return nil
	}

	if !errors.Is(err, errors.ErrBlockNotFound) {
		return err
	}

	genesis, err := m.chain.Initialize(ctx, m.lockingHash)
	if err != nil {
		return err
	}

	m.logger.Infof("[Miner] initialized empty chain, genesis block %s", genesis.Hash())

	return nil
}

func (m *Miner) Start(ctx context.Context, readyCh chan<- struct{}) error {
	if !m.settings.Miner.Enabled {
		m.logger.Infof("[Miner] disabled, not mining")
		close(readyCh)

		<-ctx.Done()

		return nil
	}

	notifications := m.chain.Subscribe(ctx, "miner")

	close(readyCh)

	ticker := time.NewTicker(m.settings.Miner.CandidateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := m.mineRound(ctx, notifications); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			m.logger.Errorf("[Miner] mining round failed: %v", err)
		}
	}
}

func (m *Miner) Stop(_ context.Context) error {
	return nil
}

// mineRound builds one candidate on the current tip and mines it until a
// nonce is found, the tip moves or the node shuts down. A found block is
// submitted through the normal acceptance path, so it is validated against
// whatever the chain looks like by then.
func (m *Miner) mineRound(ctx context.Context, notifications <-chan *model.Notification) error {
	// Drop notifications from previous rounds, including our own blocks.
	for {
		select {
		case _, ok := <-notifications:
			if !ok {
				return nil
			}

			continue
		default:
		}

		break
	}

	prevHeader, prevMeta, err := m.chain.GetBestBlockHeader(ctx)
	if err != nil {
		return err
	}

	cand, err := m.buildCandidate(ctx, prevHeader, prevMeta)
	if err != nil {
		return err
	}

	miningCtx, cancelMining := context.WithCancel(ctx)
	defer cancelMining()

	prevHash := prevHeader.Hash()

	// Abandon the search as soon as the chain moves off our parent.
	go func() {
		for {
			select {
			case <-miningCtx.Done():
				return
			case notification, ok := <-notifications:
				if !ok {
					cancelMining()
					return
				}

				if notification.Hash.IsEqual(prevHash) {
					continue
				}

				m.logger.Debugf("[Miner] abandoning candidate at height %d: %s", cand.header.Height, notification)
				cancelMining()

				return
			}
		}
	}()

	start := gocore.CurrentTime()

	for {
		_, err = cpuminer.Mine(miningCtx, cand.header, m.settings.Miner.MaxNonce)
		if err == nil {
			break
		}

		if errors.Is(err, errors.ErrNonceExhausted) {
			// The whole nonce space missed. Move time forward one second and
			// search again over a fresh set of header hashes.
			cand.header.Timestamp++
			m.logger.Debugf("[Miner] nonce space exhausted at height %d, advancing timestamp to %d", cand.header.Height, cand.header.Timestamp)

			continue
		}

		if miningCtx.Err() != nil {
			return nil
		}

		return err
	}

	prometheusMinerBlockMined.Observe(float64(time.Since(start).Microseconds()) / 1_000_000)

	block, err := model.NewBlock(cand.header, cand.transactions)
	if err != nil {
		return err
	}

	if err = m.chain.AcceptBlock(ctx, block); err != nil {
		m.logger.Warnf("[Miner] mined block %s at height %d was not accepted: %v", block.Hash(), cand.header.Height, err)

		return nil
	}

	prometheusMinerBlocksMined.Inc()

	m.logger.Infof("[Miner] mined block %s at height %d with %d transactions, %d satoshis in fees",
		block.Hash(), cand.header.Height, len(cand.transactions), cand.fees)

	return nil
}
