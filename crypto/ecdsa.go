package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"

	"github.com/emberchain/embernode/errors"
)

// The ECDSA path predates the Schnorr scheme and is kept only so that
// material signed under it can still be checked. Signatures are ASN.1
// encoded and variable length. Nothing on the block validation path calls
// into this file.

// GenerateECDSAKey returns a fresh P-256 key pair.
func GenerateECDSAKey() (*ecdsa.PrivateKey, error) {
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.NewProcessingError("failed to generate ecdsa key", err)
	}

	return privKey, nil
}

// SignECDSA signs a 32 byte digest and returns the ASN.1 encoded signature.
func SignECDSA(privKey *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	if len(digest) != HashLength {
		return nil, errors.NewInvalidArgumentError("digest must be %d bytes, got %d", HashLength, len(digest))
	}

	sig, err := ecdsa.SignASN1(rand.Reader, privKey, digest)
	if err != nil {
		return nil, errors.NewProcessingError("failed to sign digest", err)
	}

	return sig, nil
}

// VerifyECDSA checks an ASN.1 encoded ECDSA signature over a 32 byte digest.
func VerifyECDSA(pubKey *ecdsa.PublicKey, sig, digest []byte) error {
	if len(digest) != HashLength {
		return errors.NewInvalidArgumentError("digest must be %d bytes, got %d", HashLength, len(digest))
	}

	if !ecdsa.VerifyASN1(pubKey, digest, sig) {
		return errors.NewInvalidSignatureError("ecdsa signature verification failed")
	}

	return nil
}
