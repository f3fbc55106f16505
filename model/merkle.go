package model

import (
	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/emberchain/embernode/errors"
)

// BuildMerkleRoot folds a list of transaction ids into a merkle root.
// Each level hashes adjacent pairs with double SHA-256; an odd count
// duplicates the last entry. A single id is its own root.
func BuildMerkleRoot(txHashes []*chainhash.Hash) (*chainhash.Hash, error) {
	if len(txHashes) == 0 {
		return nil, errors.NewInvalidArgumentError("cannot build a merkle root from zero transactions")
	}

	level := make([]chainhash.Hash, len(txHashes))
	for i, h := range txHashes {
		level[i] = *h
	}

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}

		next := make([]chainhash.Hash, len(level)/2)

		for i := 0; i < len(level); i += 2 {
			combined := make([]byte, 0, chainhash.HashSize*2)
			combined = append(combined, level[i][:]...)
			combined = append(combined, level[i+1][:]...)

			next[i/2] = chainhash.DoubleHashH(combined)
		}

		level = next
	}

	return &level[0], nil
}
