package model

import (
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// Outpoint identifies a single output of a transaction. It is comparable,
// so it serves directly as a map key for double spend tracking.
type Outpoint struct {
	TxID chainhash.Hash
	Vout uint32
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Vout)
}

// Outpoint returns the output this input spends.
func (in *TxInput) Outpoint() Outpoint {
	return Outpoint{TxID: *in.PreviousTxHash, Vout: in.PreviousTxOutIndex}
}
