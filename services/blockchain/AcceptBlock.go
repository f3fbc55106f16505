package blockchain

import (
	"bytes"
	"context"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/jellydator/ttlcache/v3"
	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
)

// AcceptBlock is the single entry point for new blocks. The pipeline runs
// the cheap context checks first, then the context free block checks, and
// only validates transactions once the block is known to connect to the
// chain. A block extending the best tip advances it, a heavier side branch
// triggers a reorganization, a lighter side branch is stored and left
// alone. Rejection leaves the chain state untouched.
func (b *Blockchain) AcceptBlock(ctx context.Context, block *model.Block) error {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("AcceptBlock").AddTime(start)
		prometheusBlockchainAcceptBlock.Observe(float64(time.Since(start).Microseconds()) / 1_000_000)
	}()

	if block == nil || block.Header == nil {
		return errors.NewInvalidArgumentError("block is nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fsm.Current() != FSMStateActive {
		return errors.NewServiceNotStartedError("chain has no genesis block, cannot accept block %s", block.Hash())
	}

	blockHash := block.Hash()

	if item := b.rejected.Get(*blockHash); item != nil {
		prometheusBlockchainBlocksRejected.Inc()
		return errors.NewBlockInvalidError("block %s was rejected before: %s", blockHash, item.Value())
	}

	exists, err := b.store.GetBlockExists(ctx, blockHash)
	if err != nil {
		return errors.NewStorageError("failed to check existence of block %s", blockHash, err)
	}

	if exists {
		return errors.NewBlockExistsError("block %s is already stored", blockHash)
	}

	if block.Header.HashPrevBlock == nil {
		return b.rejectBlock(blockHash, errors.NewBlockInvalidError("block %s has no previous block hash", blockHash))
	}

	parentHeader, parentMeta, err := b.store.GetBlockHeader(ctx, block.Header.HashPrevBlock)
	if err != nil {
		if errors.Is(err, errors.ErrBlockNotFound) {
			// Not cached as rejected: the parent may simply not have
			// arrived yet.
			return errors.NewBlockParentNotFoundError("parent %s of block %s is not known", block.Header.HashPrevBlock, blockHash)
		}

		return errors.NewStorageError("failed to read parent %s of block %s", block.Header.HashPrevBlock, blockHash, err)
	}

	if parentMeta.Invalid {
		// Not cached either, a revalidation of the parent cures this.
		return errors.NewBlockInvalidError("parent %s of block %s is marked invalid", block.Header.HashPrevBlock, blockHash)
	}

	if block.Header.Height != parentMeta.Height+1 {
		return b.rejectBlock(blockHash, errors.NewBlockInvalidError("block %s declares height %d on a parent at height %d", blockHash, block.Header.Height, parentMeta.Height))
	}

	expectedBits, err := b.difficulty.CalcNextWorkRequired(ctx, parentHeader, parentMeta, block.Header.Timestamp)
	if err != nil {
		return err
	}

	if block.Header.Bits != *expectedBits {
		return b.rejectBlock(blockHash, errors.NewBlockInvalidError("block %s declares difficulty %s, expected %s", blockHash, block.Header.Bits.String(), expectedBits.String()))
	}

	if ok, err := block.Valid(b.settings.ChainCfgParams); !ok {
		return b.rejectBlock(blockHash, err)
	}

	if block.Header.HashPrevBlock.IsEqual(b.bestHeader.Hash()) {
		return b.extendBestChain(ctx, block)
	}

	return b.handleSideBranch(ctx, block)
}

// extendBestChain connects a block to the current tip: full transaction
// validation against the tip utxo set, then the utxo apply and the index
// store as one unit.
func (b *Blockchain) extendBestChain(ctx context.Context, block *model.Block) error {
	blockHash := block.Hash()

	blockFees, err := b.validateBlockTransactions(ctx, block)
	if err != nil {
		if isConsensusFailure(err) {
			return b.rejectBlock(blockHash, err)
		}

		return err
	}

	subsidy := b.settings.ChainCfgParams.SubsidyForHeight(block.Header.Height)
	if err = block.CheckBlockRewardAndFees(blockFees, subsidy); err != nil {
		return b.rejectBlock(blockHash, err)
	}

	if err = b.connectBlock(ctx, block); err != nil {
		return err
	}

	newHeader, newMeta, err := b.store.GetBlockHeader(ctx, blockHash)
	if err != nil {
		return errors.NewStorageError("failed to read back block %s", blockHash, err)
	}

	b.setBestLocked(newHeader, newMeta)

	prometheusBlockchainBlocksAccepted.Inc()

	b.logger.Infof("[Blockchain] accepted block %s at height %d with %d transactions", blockHash, newMeta.Height, block.TransactionCount())

	b.notify(&model.Notification{Type: model.NotificationBlockAdded, Hash: blockHash, Height: newMeta.Height})

	return nil
}

// handleSideBranch stores a block that does not build on the tip. Only when
// its branch carries more work than the current chain does the block get its
// transactions validated, as part of the switch to its branch.
func (b *Blockchain) handleSideBranch(ctx context.Context, block *model.Block) error {
	blockHash := block.Hash()

	if _, err := b.store.StoreBlock(ctx, block); err != nil {
		return err
	}

	newHeader, newMeta, err := b.store.GetBlockHeader(ctx, blockHash)
	if err != nil {
		return errors.NewStorageError("failed to read back block %s", blockHash, err)
	}

	if bytes.Compare(newMeta.ChainWork, b.bestMeta.ChainWork) <= 0 {
		b.logger.Infof("[Blockchain] stored side branch block %s at height %d, best block remains %s at height %d",
			blockHash, newMeta.Height, b.bestHeader.Hash(), b.bestMeta.Height)

		return nil
	}

	if err = b.switchToChain(ctx, newHeader, newMeta); err != nil {
		if isConsensusFailure(err) {
			// The branch did not survive validation. The failing block is
			// marked invalid by now, settle on the best remaining chain.
			if resolveErr := b.resolveBestChainLocked(ctx); resolveErr != nil {
				return resolveErr
			}
		}

		return err
	}

	prometheusBlockchainBlocksAccepted.Inc()

	return nil
}

// validateBlockTransactions checks every non coinbase transaction against
// the utxo set as it stands just before the block and returns the fees the
// block collects. Two transactions spending the same outpoint reject the
// block, and so does spending an output created earlier in the same block,
// which the pre block view does not contain.
func (b *Blockchain) validateBlockTransactions(ctx context.Context, block *model.Block) (uint64, error) {
	spent := make(map[model.Outpoint]*chainhash.Hash)

	var blockFees uint64

	for _, tx := range block.Transactions[1:] {
		txHash := tx.TxIDChainHash()

		for _, input := range tx.Inputs {
			outpoint := input.Outpoint()

			if prev, ok := spent[outpoint]; ok {
				return 0, errors.NewTxInvalidDoubleSpendError("transactions %s and %s in block %s both spend %s", prev, txHash, block.Hash(), outpoint)
			}

			spent[outpoint] = txHash
		}

		fee, err := b.validator.ValidateTransaction(ctx, tx, block.Header.Height, b.utxoStore)
		if err != nil {
			if isConsensusFailure(err) {
				return 0, errors.NewBlockInvalidError("transaction %s in block %s is invalid", txHash, block.Hash(), err)
			}

			return 0, err
		}

		blockFees += fee
	}

	return blockFees, nil
}

// connectBlock applies a block to the utxo set and stores it in the block
// index. The two stores share no transaction, so a failed store undoes the
// utxo apply to keep them aligned.
func (b *Blockchain) connectBlock(ctx context.Context, block *model.Block) error {
	if err := b.utxoStore.ApplyBlock(ctx, block); err != nil {
		return err
	}

	if _, err := b.store.StoreBlock(ctx, block); err != nil {
		if revertErr := b.utxoStore.RevertBlock(ctx, block); revertErr != nil {
			return errors.NewStorageError("failed to store block %s and failed to revert its utxo changes: %v", block.Hash(), revertErr, err)
		}

		return err
	}

	return nil
}

// rejectBlock records a deterministic consensus failure so resubmissions of
// the same block are refused without running the pipeline again.
func (b *Blockchain) rejectBlock(blockHash *chainhash.Hash, err error) error {
	b.rejected.Set(*blockHash, err.Error(), ttlcache.DefaultTTL)

	prometheusBlockchainBlocksRejected.Inc()

	b.logger.Warnf("[Blockchain] rejected block %s: %v", blockHash, err)

	return err
}

// isConsensusFailure distinguishes a block or transaction breaking the
// rules from the node failing to find out. Only the former is deterministic
// and safe to cache or to mark a block invalid over.
func isConsensusFailure(err error) bool {
	return errors.Is(err, errors.ErrBlockInvalid) ||
		errors.Is(err, errors.ErrTxInvalid) ||
		errors.Is(err, errors.ErrTxInvalidDoubleSpend) ||
		errors.Is(err, errors.ErrTxCoinbaseImmature) ||
		errors.Is(err, errors.ErrUtxoNotFound) ||
		errors.Is(err, errors.ErrUtxoSpent) ||
		errors.Is(err, errors.ErrCoinbaseMissingBlockHeight)
}
