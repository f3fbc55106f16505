package blockchain

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
)

// switchToChain moves the applied tip to target, which must already be
// stored. It reverts the blocks between the applied tip and the common
// ancestor, then applies the target arm in ascending order, validating
// every block's transactions on the way up. Any failure rolls the utxo set
// back to the original tip before returning. Callers hold mu.
func (b *Blockchain) switchToChain(ctx context.Context, targetHeader *model.BlockHeader, targetMeta *model.BlockHeaderMeta) error {
	maxDepth := b.settings.BlockChain.MaxReorgDepth

	// The common ancestor must be within maxDepth of the applied tip.
	currentHeaders, _, err := b.store.GetBlockHeaders(ctx, b.bestHeader.Hash(), uint64(maxDepth)+1)
	if err != nil {
		return errors.NewStorageError("failed to walk the current chain from %s", b.bestHeader.Hash(), err)
	}

	currentIndex := make(map[chainhash.Hash]int, len(currentHeaders))
	for i, header := range currentHeaders {
		currentIndex[*header.Hash()] = i
	}

	// The target arm can reach further up than the current tip, so walk it
	// down to the lowest height the ancestor can sit at.
	floor := int64(b.bestMeta.Height) - int64(maxDepth)
	if floor < 0 {
		floor = 0
	}

	targetCount := int64(targetMeta.Height) - floor + 1
	if targetCount < 1 {
		targetCount = 1
	}

	targetHeaders, _, err := b.store.GetBlockHeaders(ctx, targetHeader.Hash(), uint64(targetCount))
	if err != nil {
		return errors.NewStorageError("failed to walk the target chain from %s", targetHeader.Hash(), err)
	}

	ancestorIdx := -1
	currentAncestorIdx := -1

	for i, header := range targetHeaders {
		if idx, ok := currentIndex[*header.Hash()]; ok {
			ancestorIdx = i
			currentAncestorIdx = idx

			break
		}
	}

	if ancestorIdx == -1 {
		return errors.NewProcessingError("reorganization from %s to %s exceeds the maximum depth of %d blocks", b.bestHeader.Hash(), targetHeader.Hash(), maxDepth)
	}

	// Blocks to revert, applied tip first, and blocks to apply, ascending.
	moveDown, err := b.fetchBlocks(ctx, currentHeaders[:currentAncestorIdx])
	if err != nil {
		return err
	}

	moveUpHeaders := make([]*model.BlockHeader, ancestorIdx)
	for i, header := range targetHeaders[:ancestorIdx] {
		moveUpHeaders[len(moveUpHeaders)-1-i] = header
	}

	moveUp, err := b.fetchBlocks(ctx, moveUpHeaders)
	if err != nil {
		return err
	}

	for i, block := range moveDown {
		if err = b.utxoStore.RevertBlock(ctx, block); err != nil {
			if restoreErr := b.restoreChainState(ctx, nil, moveDown[:i]); restoreErr != nil {
				return restoreErr
			}

			return errors.NewStorageError("failed to revert block %s", block.Hash(), err)
		}
	}

	for i, block := range moveUp {
		if err = b.applyFullBlock(ctx, block); err != nil {
			failedHash := block.Hash()

			if restoreErr := b.restoreChainState(ctx, moveUp[:i], moveDown); restoreErr != nil {
				return restoreErr
			}

			if !isConsensusFailure(err) {
				return err
			}

			if invErr := b.store.InvalidateBlock(ctx, failedHash); invErr != nil {
				return errors.NewStorageError("failed to mark block %s invalid", failedHash, invErr)
			}

			return b.rejectBlock(failedHash, errors.NewBlockInvalidError("block %s failed validation during reorganization to %s", failedHash, targetHeader.Hash(), err))
		}
	}

	depth := len(moveDown)

	b.setBestLocked(targetHeader, targetMeta)

	if depth > 0 {
		prometheusBlockchainReorgs.Inc()
		prometheusBlockchainReorgDepth.Observe(float64(depth))

		b.logger.Infof("[Blockchain] reorganized to %s at height %d, reverted %d blocks, applied %d", targetHeader.Hash(), targetMeta.Height, depth, len(moveUp))

		b.notify(&model.Notification{Type: model.NotificationReorg, Hash: targetHeader.Hash(), Height: targetMeta.Height})
	}

	for _, block := range moveUp {
		b.notify(&model.Notification{Type: model.NotificationBlockAdded, Hash: block.Hash(), Height: block.Header.Height})
	}

	return nil
}

// applyFullBlock validates a block's transactions and reward against the
// utxo set as it currently stands, then applies it. Used on the way up a
// reorganization, where side branch blocks see their first full validation.
func (b *Blockchain) applyFullBlock(ctx context.Context, block *model.Block) error {
	blockFees, err := b.validateBlockTransactions(ctx, block)
	if err != nil {
		return err
	}

	subsidy := b.settings.ChainCfgParams.SubsidyForHeight(block.Header.Height)
	if err = block.CheckBlockRewardAndFees(blockFees, subsidy); err != nil {
		return err
	}

	return b.utxoStore.ApplyBlock(ctx, block)
}

// restoreChainState undoes a partial chain switch: the blocks applied so
// far are reverted in reverse order and the original arm is re-applied from
// the ancestor up. If this fails the utxo set no longer matches the applied
// tip and the node needs operator attention, so the error is loud.
func (b *Blockchain) restoreChainState(ctx context.Context, applied []*model.Block, reverted []*model.Block) error {
	for i := len(applied) - 1; i >= 0; i-- {
		if err := b.utxoStore.RevertBlock(ctx, applied[i]); err != nil {
			b.logger.Errorf("[Blockchain] utxo set is inconsistent: failed to revert %s while restoring the chain: %v", applied[i].Hash(), err)

			return errors.NewStorageError("failed to revert block %s while restoring the chain", applied[i].Hash(), err)
		}
	}

	for i := len(reverted) - 1; i >= 0; i-- {
		if err := b.utxoStore.ApplyBlock(ctx, reverted[i]); err != nil {
			b.logger.Errorf("[Blockchain] utxo set is inconsistent: failed to re-apply %s while restoring the chain: %v", reverted[i].Hash(), err)

			return errors.NewStorageError("failed to re-apply block %s while restoring the chain", reverted[i].Hash(), err)
		}
	}

	return nil
}

func (b *Blockchain) fetchBlocks(ctx context.Context, headers []*model.BlockHeader) ([]*model.Block, error) {
	blocks := make([]*model.Block, len(headers))

	for i, header := range headers {
		block, err := b.store.GetBlock(ctx, header.Hash())
		if err != nil {
			return nil, errors.NewStorageError("failed to load block %s", header.Hash(), err)
		}

		blocks[i] = block
	}

	return blocks, nil
}

// resolveBestChainLocked aligns the applied tip with the heaviest valid
// block in the store, switching chains as needed. A switch that fails
// validation marks the failing block invalid, which shrinks the candidate
// set, so the loop terminates. Callers hold mu.
func (b *Blockchain) resolveBestChainLocked(ctx context.Context) error {
	for {
		bestHeader, bestMeta, err := b.store.GetBestBlockHeader(ctx)
		if err != nil {
			return errors.NewStorageError("failed to read best block header", err)
		}

		if bestHeader.Hash().IsEqual(b.bestHeader.Hash()) {
			return nil
		}

		if err = b.switchToChain(ctx, bestHeader, bestMeta); err != nil {
			if isConsensusFailure(err) {
				continue
			}

			return err
		}
	}
}

// InvalidateBlock marks a block invalid by operator decision and moves the
// chain to the heaviest remaining valid tip. The store cascades the marking
// to all descendants.
func (b *Blockchain) InvalidateBlock(ctx context.Context, blockHash *chainhash.Hash) error {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("InvalidateBlock").AddTime(start)
	}()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fsm.Current() != FSMStateActive {
		return errors.NewServiceNotStartedError("chain has no genesis block")
	}

	_, meta, err := b.store.GetBlockHeader(ctx, blockHash)
	if err != nil {
		return err
	}

	if meta.Height == 0 {
		return errors.NewInvalidArgumentError("cannot invalidate the genesis block %s", blockHash)
	}

	if err = b.store.InvalidateBlock(ctx, blockHash); err != nil {
		return err
	}

	if err = b.resolveBestChainLocked(ctx); err != nil {
		return err
	}

	b.logger.Infof("[Blockchain] invalidated block %s at height %d, best block is now %s at height %d", blockHash, meta.Height, b.bestHeader.Hash(), b.bestMeta.Height)

	b.notify(&model.Notification{Type: model.NotificationBlockInvalidated, Hash: blockHash, Height: meta.Height})

	return nil
}

// RevalidateBlock lifts an invalid marking and moves the chain to the
// heaviest valid tip, which may now sit on the revalidated branch. The
// branch gets a full validation during the switch; the marking does not
// declare the blocks valid, it only lets them compete again.
func (b *Blockchain) RevalidateBlock(ctx context.Context, blockHash *chainhash.Hash) error {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("blockchain").NewStat("RevalidateBlock").AddTime(start)
	}()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fsm.Current() != FSMStateActive {
		return errors.NewServiceNotStartedError("chain has no genesis block")
	}

	if err := b.store.RevalidateBlock(ctx, blockHash); err != nil {
		return err
	}

	// The block may have been cached as rejected when it was invalidated.
	b.rejected.Delete(*blockHash)

	if err := b.resolveBestChainLocked(ctx); err != nil {
		return err
	}

	b.logger.Infof("[Blockchain] revalidated block %s, best block is now %s at height %d", blockHash, b.bestHeader.Hash(), b.bestMeta.Height)

	return nil
}
