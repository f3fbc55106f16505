package crypto

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/emberchain/embernode/errors"
)

// SignatureLength is the byte length of a serialized Schnorr signature.
const SignatureLength = schnorr.SignatureSize

// SignSchnorr signs a 32 byte digest with the given private key and returns
// the 64 byte BIP-340 signature.
func SignSchnorr(privKey *btcec.PrivateKey, digest []byte) ([]byte, error) {
	if len(digest) != HashLength {
		return nil, errors.NewInvalidArgumentError("digest must be %d bytes, got %d", HashLength, len(digest))
	}

	sig, err := schnorr.Sign(privKey, digest)
	if err != nil {
		return nil, errors.NewProcessingError("failed to sign digest", err)
	}

	return sig.Serialize(), nil
}

// VerifySchnorr checks a 64 byte Schnorr signature over a 32 byte digest
// against a compressed public key. A nil return means the signature is valid.
func VerifySchnorr(pubKey, sig, digest []byte) error {
	if len(digest) != HashLength {
		return errors.NewInvalidArgumentError("digest must be %d bytes, got %d", HashLength, len(digest))
	}

	pk, err := PublicKeyFromBytes(pubKey)
	if err != nil {
		return err
	}

	parsedSig, err := schnorr.ParseSignature(sig)
	if err != nil {
		return errors.NewInvalidArgumentError("failed to parse signature", err)
	}

	if !parsedSig.Verify(digest, pk) {
		return errors.NewInvalidSignatureError("signature verification failed")
	}

	return nil
}
