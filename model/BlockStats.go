package model

// BlockStats holds aggregate statistics over the current main chain, as
// reported by the blockchain store.
type BlockStats struct {
	BlockCount         uint64
	TxCount            uint64
	MaxHeight          uint32
	AvgBlockSize       float64
	AvgTxCountPerBlock float64
}
