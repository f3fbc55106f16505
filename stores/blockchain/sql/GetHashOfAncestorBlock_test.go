package sql

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/embernode/errors"
)

func TestGetHashOfAncestorBlock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	blocks := storeTestChain(t, s, 3)
	tip := blocks[3]

	parent, err := s.GetHashOfAncestorBlock(ctx, tip.Hash(), 1)
	require.NoError(t, err)
	assert.Equal(t, blocks[2].Hash(), parent)

	genesis, err := s.GetHashOfAncestorBlock(ctx, tip.Hash(), 3)
	require.NoError(t, err)
	assert.Equal(t, blocks[0].Hash(), genesis)

	// cached on the second run
	cached, err := s.GetHashOfAncestorBlock(ctx, tip.Hash(), 3)
	require.NoError(t, err)
	assert.Equal(t, genesis, cached)
}

func TestGetHashOfAncestorBlockTooDeep(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	blocks := storeTestChain(t, s, 1)

	_, err := s.GetHashOfAncestorBlock(ctx, blocks[1].Hash(), 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBlockNotFound))
}

func TestGetHashOfAncestorBlockUnknownStart(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	storeTestChain(t, s, 1)

	unknown := newTestBlock(t, 9, &chainhash.Hash{}, 99)

	_, err := s.GetHashOfAncestorBlock(ctx, unknown.Hash(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBlockNotFound))
}
