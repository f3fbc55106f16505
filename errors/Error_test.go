package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_New(t *testing.T) {
	err := New(ERR_NOT_FOUND, "resource not found")
	require.NotNil(t, err)
	require.Equal(t, ERR_NOT_FOUND, err.Code())
	require.Equal(t, "resource not found", err.Message())

	t.Run("formats params", func(t *testing.T) {
		err := New(ERR_BLOCK_INVALID, "block %s at height %d", "deadbeef", 42)
		assert.Equal(t, "block deadbeef at height 42", err.Message())
	})

	t.Run("trailing error wraps", func(t *testing.T) {
		cause := New(ERR_STORAGE_ERROR, "disk full")
		err := New(ERR_PROCESSING, "storing block %d", 7, cause)
		assert.Equal(t, "storing block 7", err.Message())
		require.NotNil(t, err.Unwrap())
		assert.True(t, Is(err, ErrStorageError))
	})

	t.Run("plain error wraps", func(t *testing.T) {
		err := New(ERR_STORAGE_ERROR, "read failed", io.ErrUnexpectedEOF)
		require.NotNil(t, err.Unwrap())
		assert.Contains(t, err.Error(), io.ErrUnexpectedEOF.Error())
	})

	t.Run("invalid code", func(t *testing.T) {
		err := New(ERR(9999), "whatever")
		assert.Equal(t, "invalid error code", err.Message())
	})
}

func Test_Is(t *testing.T) {
	base := New(ERR_TX_INVALID_DOUBLE_SPEND, "output already spent")
	second := New(ERR_TX_INVALID, "tx abc failed", base)
	third := New(ERR_BLOCK_INVALID, "block rejected", second)

	require.True(t, third.Is(ErrBlockInvalid))
	require.True(t, third.Is(ErrTxInvalid))
	require.True(t, third.Is(ErrTxInvalidDoubleSpend))
	require.False(t, third.Is(ErrBlockNotFound))

	t.Run("through package Is", func(t *testing.T) {
		assert.True(t, Is(third, ErrTxInvalidDoubleSpend))
		assert.False(t, Is(third, ErrNotFound))
	})

	t.Run("same code different message", func(t *testing.T) {
		assert.True(t, New(ERR_UTXO_SPENT, "a").Is(New(ERR_UTXO_SPENT, "b")))
	})

	t.Run("fmt wrapped errors still match by code", func(t *testing.T) {
		wrapped := fmt.Errorf("outer: %w", base)
		assert.True(t, Is(wrapped, ErrTxInvalidDoubleSpend))
	})
}

func Test_As(t *testing.T) {
	cause := New(ERR_UTXO_NOT_FOUND, "missing utxo")
	outer := New(ERR_TX_INVALID, "validation failed", cause)

	var typed *Error

	require.True(t, As(outer, &typed))
	assert.Equal(t, ERR_TX_INVALID, typed.Code())
}

func Test_ErrorString(t *testing.T) {
	err := New(ERR_BLOCK_EXISTS, "already have it")
	assert.Contains(t, err.Error(), "BLOCK_EXISTS")
	assert.Contains(t, err.Error(), "already have it")

	var nilErr *Error

	assert.Equal(t, "<nil>", nilErr.Error())
	assert.Equal(t, ERR_UNKNOWN, nilErr.Code())
}

func Test_Join(t *testing.T) {
	require.NoError(t, Join(nil, nil))

	joined := Join(New(ERR_ERROR, "one"), nil, New(ERR_ERROR, "two"))
	require.Error(t, joined)
	assert.Contains(t, joined.Error(), "one")
	assert.Contains(t, joined.Error(), "two")
}

func Test_CodeNames(t *testing.T) {
	assert.Equal(t, "TX_INVALID", ERR_TX_INVALID.String())
	assert.Equal(t, "UNKNOWN", ERR(12345).String())
	assert.Equal(t, int32(21), ERR_value["TX_INVALID"])
}
