package model

type BlockHeaderMeta struct {
	ID          uint32 `json:"id"`            // ID of the block in the internal blockchain DB.
	Height      uint32 `json:"height"`        // Height of the block in the blockchain.
	TxCount     uint64 `json:"tx_count"`      // Number of transactions in the block.
	SizeInBytes uint64 `json:"size_in_bytes"` // Size of the block in bytes.
	ChainWork   []byte `json:"chain_work"`    // Cumulative work up to and including this block, 32 bytes big endian.
	Miner       string `json:"miner"`         // Miner tag from the coinbase payload.
	Invalid     bool   `json:"invalid"`       // Marked invalid by hand or by failing validation.
}
