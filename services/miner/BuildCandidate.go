package miner

import (
	"context"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
)

// txCountSlack reserves room in the tx budget for the serialized
// transaction count prefix of the block.
const txCountSlack = 9

// candidate is a block template ready to be mined. The header carries nonce
// zero; the coinbase output already includes the fees of the selected
// transactions.
type candidate struct {
	header       *model.BlockHeader
	transactions []*model.Tx
	fees         uint64
}

// buildCandidate assembles a template on top of the given tip: coinbase
// paying subsidy plus fees to the miner wallet, mempool transactions in
// arrival order up to the block size limit, and a timestamp that is always
// past the parent. The outputs satoshi field is fixed width, so the
// coinbase size is known before the fees are.
func (m *Miner) buildCandidate(ctx context.Context, prevHeader *model.BlockHeader, prevMeta *model.BlockHeaderMeta) (*candidate, error) {
	height := prevMeta.Height + 1

	timestamp := uint32(time.Now().Unix())
	if timestamp <= prevHeader.Timestamp {
		timestamp = prevHeader.Timestamp + 1
	}

	bits, err := m.chain.GetNextWorkRequired(ctx, prevHeader.Hash(), timestamp)
	if err != nil {
		return nil, errors.NewProcessingError("failed to get the difficulty for a candidate at height %d", height, err)
	}

	coinbase := model.NewTx()
	coinbase.Payload = model.NewCoinbasePayload(height, m.settings.Miner.CoinbaseArbitraryText)
	coinbase.Outputs = []*model.TxOutput{{
		LockingHash: m.lockingHash,
	}}

	budget := m.settings.ChainCfgParams.MaxBlockSize - model.BlockHeaderSize - uint64(len(coinbase.Bytes())) - txCountSlack

	entries := m.pool.Snapshot(0, budget)

	transactions := make([]*model.Tx, 0, len(entries)+1)
	transactions = append(transactions, coinbase)

	var fees uint64

	for _, entry := range entries {
		transactions = append(transactions, entry.Tx)
		fees += entry.Fee
	}

	coinbase.Outputs[0].Satoshis = m.settings.ChainCfgParams.SubsidyForHeight(height) + fees

	txHashes := make([]*chainhash.Hash, len(transactions))
	for i, tx := range transactions {
		txHashes[i] = tx.TxIDChainHash()
	}

	merkleRoot, err := model.BuildMerkleRoot(txHashes)
	if err != nil {
		return nil, errors.NewProcessingError("failed to build the merkle root for a candidate at height %d", height, err)
	}

	header := &model.BlockHeader{
		Version:        1,
		Height:         height,
		HashPrevBlock:  prevHeader.Hash(),
		HashMerkleRoot: merkleRoot,
		Timestamp:      timestamp,
		Bits:           *bits,
	}

	return &candidate{header: header, transactions: transactions, fees: fees}, nil
}
