package crypto

import (
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSum256KnownVectors(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "empty",
			input:    []byte{},
			expected: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:     "abc",
			input:    []byte("abc"),
			expected: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digest := Sum256(tt.input)
			require.Equal(t, tt.expected, hex.EncodeToString(digest[:]))
		})
	}
}

func TestDoubleSum256KnownVector(t *testing.T) {
	digest := DoubleSum256([]byte("hello"))
	require.Equal(t, "9595c9df90075148eb06860365df33584b75bff782a510c6cd4883a419833d50", hex.EncodeToString(digest[:]))
}

// The standard library backend and the SIMD backend must agree on every
// input. HashPublicKey is the only caller-visible route into the SIMD
// implementation, so comparing it against Sum256 pins both down.
func TestHashBackendsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 256; i++ {
		b := make([]byte, rng.Intn(1024))
		_, err := rng.Read(b)
		require.NoError(t, err)

		require.Equal(t, Sum256(b), HashPublicKey(b), "backends disagree on input of length %d", len(b))
	}
}

func TestHashBackendsAgreeOnBoundaries(t *testing.T) {
	// Block-size boundaries are where padding bugs would show up.
	for _, n := range []int{0, 1, 55, 56, 63, 64, 65, 127, 128} {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte(i)
		}

		require.Equal(t, Sum256(b), HashPublicKey(b), "length %d", n)
	}
}

func BenchmarkSum256(b *testing.B) {
	data := make([]byte, 80)
	for i := range data {
		data[i] = byte(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Sum256(data)
	}
}

func BenchmarkHashPublicKey(b *testing.B) {
	pubKey := make([]byte, 33)
	for i := range pubKey {
		pubKey[i] = byte(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = HashPublicKey(pubKey)
	}
}
