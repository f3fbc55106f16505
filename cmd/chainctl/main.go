// chainctl inspects the stores of a stopped node. It reads the same
// settings the node reads, opens the stores directly and prints JSON, so
// it must not run while the node is holding the stores open.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/urfave/cli/v2"

	"github.com/emberchain/embernode/crypto"
	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
	"github.com/emberchain/embernode/settings"
	blockchain_store "github.com/emberchain/embernode/stores/blockchain"
	"github.com/emberchain/embernode/stores/kvstore/factory"
	"github.com/emberchain/embernode/stores/utxo"
	"github.com/emberchain/embernode/stores/utxo/kv"
	"github.com/emberchain/embernode/ulogger"
)

func main() {
	app := &cli.App{
		Name:  "chainctl",
		Usage: "inspect the block index and UTXO set of a stopped node",
		Commands: []*cli.Command{
			{
				Name:   "bestblock",
				Usage:  "print the best block header",
				Action: bestBlockCmd,
			},
			{
				Name:      "block",
				Usage:     "print a block by hash or height",
				ArgsUsage: "<hash|height>",
				Action:    blockCmd,
			},
			{
				Name:      "balance",
				Usage:     "print the balance of an address",
				ArgsUsage: "<address>",
				Action:    balanceCmd,
			},
			{
				Name:      "utxo",
				Usage:     "print an unspent output",
				ArgsUsage: "<txid> <vout>",
				Action:    utxoCmd,
			},
			{
				Name:   "stats",
				Usage:  "print aggregate chain statistics",
				Action: statsCmd,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// headerOut is the JSON rendering of a block header and its index metadata.
type headerOut struct {
	Hash              string `json:"hash"`
	Version           uint32 `json:"version"`
	Height            uint32 `json:"height"`
	PreviousBlockHash string `json:"previousblockhash"`
	MerkleRoot        string `json:"merkleroot"`
	Time              uint32 `json:"time"`
	Bits              string `json:"bits"`
	Nonce             uint32 `json:"nonce"`
	TxCount           uint64 `json:"tx_count"`
	SizeInBytes       uint64 `json:"size_in_bytes"`
	ChainWork         string `json:"chainwork"`
	Miner             string `json:"miner,omitempty"`
	Invalid           bool   `json:"invalid,omitempty"`
}

func newHeaderOut(header *model.BlockHeader, meta *model.BlockHeaderMeta) headerOut {
	return headerOut{
		Hash:              header.Hash().String(),
		Version:           header.Version,
		Height:            header.Height,
		PreviousBlockHash: header.HashPrevBlock.String(),
		MerkleRoot:        header.HashMerkleRoot.String(),
		Time:              header.Timestamp,
		Bits:              header.Bits.String(),
		Nonce:             header.Nonce,
		TxCount:           meta.TxCount,
		SizeInBytes:       meta.SizeInBytes,
		ChainWork:         hex.EncodeToString(meta.ChainWork),
		Miner:             meta.Miner,
		Invalid:           meta.Invalid,
	}
}

func bestBlockCmd(c *cli.Context) error {
	ctx, store, closeStore, err := openBlockchainStore()
	if err != nil {
		return err
	}
	defer closeStore()

	header, meta, err := store.GetBestBlockHeader(ctx)
	if err != nil {
		return err
	}

	return printJSON(newHeaderOut(header, meta))
}

func blockCmd(c *cli.Context) error {
	arg := c.Args().First()
	if arg == "" {
		return errors.NewInvalidArgumentError("block requires a hash or height argument")
	}

	ctx, store, closeStore, err := openBlockchainStore()
	if err != nil {
		return err
	}
	defer closeStore()

	var block *model.Block

	if height, parseErr := strconv.ParseUint(arg, 10, 32); parseErr == nil {
		block, err = store.GetBlockByHeight(ctx, uint32(height))
	} else {
		var blockHash *chainhash.Hash

		blockHash, err = chainhash.NewHashFromStr(arg)
		if err != nil {
			return errors.NewInvalidArgumentError("%q is neither a height nor a block hash", arg, err)
		}

		block, err = store.GetBlock(ctx, blockHash)
	}

	if err != nil {
		return err
	}

	_, meta, err := store.GetBlockHeader(ctx, block.Hash())
	if err != nil {
		return err
	}

	txIDs := make([]string, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		txIDs = append(txIDs, tx.TxID())
	}

	return printJSON(struct {
		headerOut
		Transactions []string `json:"tx"`
	}{
		headerOut:    newHeaderOut(block.Header, meta),
		Transactions: txIDs,
	})
}

func balanceCmd(c *cli.Context) error {
	address := c.Args().First()
	if address == "" {
		return errors.NewInvalidArgumentError("balance requires an address argument")
	}

	_, lockingHash, err := crypto.DecodeAddress(address)
	if err != nil {
		return err
	}

	ctx, store, closeStore, err := openUtxoStore()
	if err != nil {
		return err
	}
	defer closeStore()

	balance, err := store.BalanceOf(ctx, lockingHash)
	if err != nil {
		return err
	}

	return printJSON(struct {
		Address  string `json:"address"`
		Satoshis uint64 `json:"satoshis"`
	}{
		Address:  address,
		Satoshis: balance,
	})
}

func utxoCmd(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return errors.NewInvalidArgumentError("utxo requires a txid and a vout argument")
	}

	txID, err := chainhash.NewHashFromStr(c.Args().Get(0))
	if err != nil {
		return errors.NewInvalidArgumentError("invalid txid %q", c.Args().Get(0), err)
	}

	vout, err := strconv.ParseUint(c.Args().Get(1), 10, 32)
	if err != nil {
		return errors.NewInvalidArgumentError("invalid vout %q", c.Args().Get(1), err)
	}

	ctx, store, closeStore, err := openUtxoStore()
	if err != nil {
		return err
	}
	defer closeStore()

	unspent, err := store.Get(ctx, txID, uint32(vout))
	if err != nil {
		return err
	}

	return printJSON(struct {
		TxID        string `json:"txid"`
		Vout        uint32 `json:"vout"`
		Satoshis    uint64 `json:"satoshis"`
		LockingHash string `json:"locking_hash"`
		Height      uint32 `json:"height"`
		IsCoinbase  bool   `json:"is_coinbase"`
	}{
		TxID:        txID.String(),
		Vout:        uint32(vout),
		Satoshis:    unspent.Satoshis,
		LockingHash: hex.EncodeToString(unspent.LockingHash[:]),
		Height:      unspent.Height,
		IsCoinbase:  unspent.IsCoinbase,
	})
}

func statsCmd(c *cli.Context) error {
	ctx, store, closeStore, err := openBlockchainStore()
	if err != nil {
		return err
	}
	defer closeStore()

	stats, err := store.GetBlockStats(ctx)
	if err != nil {
		return err
	}

	return printJSON(struct {
		BlockCount         uint64  `json:"block_count"`
		TxCount            uint64  `json:"tx_count"`
		MaxHeight          uint32  `json:"max_height"`
		AvgBlockSize       float64 `json:"avg_block_size"`
		AvgTxCountPerBlock float64 `json:"avg_tx_count_per_block"`
	}{
		BlockCount:         stats.BlockCount,
		TxCount:            stats.TxCount,
		MaxHeight:          stats.MaxHeight,
		AvgBlockSize:       stats.AvgBlockSize,
		AvgTxCountPerBlock: stats.AvgTxCountPerBlock,
	})
}

func openBlockchainStore() (context.Context, blockchain_store.Store, func(), error) {
	ctx := context.Background()
	tSettings := settings.NewSettings()
	logger := ulogger.New("chainctl", ulogger.WithLevel("ERROR"))

	storeURL := tSettings.BlockChain.StoreURL
	if storeURL == nil {
		return nil, nil, nil, errors.NewConfigurationError("blockchain store url not set")
	}

	store, err := blockchain_store.NewStore(logger, storeURL, tSettings)
	if err != nil {
		return nil, nil, nil, err
	}

	return ctx, store, func() { _ = store.Close(ctx) }, nil
}

func openUtxoStore() (context.Context, utxo.Store, func(), error) {
	ctx := context.Background()
	tSettings := settings.NewSettings()
	logger := ulogger.New("chainctl", ulogger.WithLevel("ERROR"))

	storeURL := tSettings.UtxoStore.StoreURL
	if storeURL == nil {
		return nil, nil, nil, errors.NewConfigurationError("utxo store url not set")
	}

	kvStore, err := factory.NewStore(logger, storeURL)
	if err != nil {
		return nil, nil, nil, err
	}

	store := kv.New(logger, kvStore)

	return ctx, store, func() { _ = store.Close(ctx) }, nil
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(b))

	return nil
}
