package crypto

import (
	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/emberchain/embernode/errors"
)

const (
	// PrivateKeyLength is the byte length of a raw secp256k1 private key.
	PrivateKeyLength = 32

	// PublicKeyLength is the byte length of a compressed secp256k1 public key.
	PublicKeyLength = 33
)

// GeneratePrivateKey returns a fresh random secp256k1 private key.
func GeneratePrivateKey() (*btcec.PrivateKey, error) {
	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, errors.NewProcessingError("failed to generate private key", err)
	}

	return privKey, nil
}

// PrivateKeyFromBytes parses a raw 32 byte private key. The scalar must be
// non-zero and below the curve order.
func PrivateKeyFromBytes(b []byte) (*btcec.PrivateKey, error) {
	if len(b) != PrivateKeyLength {
		return nil, errors.NewInvalidArgumentError("private key must be %d bytes, got %d", PrivateKeyLength, len(b))
	}

	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(b); overflow {
		return nil, errors.NewInvalidArgumentError("private key exceeds the curve order")
	}

	if scalar.IsZero() {
		return nil, errors.NewInvalidArgumentError("private key must not be zero")
	}

	privKey, _ := btcec.PrivKeyFromBytes(b)

	return privKey, nil
}

// PublicKeyFromBytes parses a 33 byte compressed secp256k1 public key.
func PublicKeyFromBytes(b []byte) (*btcec.PublicKey, error) {
	if len(b) != PublicKeyLength {
		return nil, errors.NewInvalidArgumentError("public key must be %d bytes, got %d", PublicKeyLength, len(b))
	}

	pubKey, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("failed to parse public key", err)
	}

	return pubKey, nil
}
