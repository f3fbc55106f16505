// Package cpuminer searches the nonce space of a block header on the CPU.
// It knows nothing about candidates or chains; callers prepare a header and
// get it back with a nonce that meets the declared target.
package cpuminer

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/model"
)

// Mine tries nonces from 0 up to and including maxNonce until the header
// hash meets the target declared in its Bits field. The header is mutated
// in place; on success it carries the winning nonce and the block hash is
// returned. Cancelling the context stops the search with the context error,
// which callers treat as a stale candidate rather than a failure.
func Mine(ctx context.Context, header *model.BlockHeader, maxNonce uint32) (*chainhash.Hash, error) {
	if header.Bits.CalculateTarget().Sign() <= 0 {
		return nil, errors.NewProcessingError("bits %s expand to a non-positive target", header.Bits.String())
	}

	nonce := uint32(0)

miningLoop:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			header.Nonce = nonce

			// A losing nonce reports an error as well, only ok matters here.
			ok, blockHash, _ := header.HasMetTargetDifficulty()
			if ok {
				return blockHash, nil
			}

			if nonce == maxNonce {
				break miningLoop
			}

			nonce++
		}
	}

	return nil, errors.NewNonceExhaustedError("no nonce up to %d meets target %s for block at height %d", maxNonce, header.Bits.String(), header.Height)
}
