package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberchain/embernode/errors"
)

func TestSchnorrSignVerify(t *testing.T) {
	privKey, err := GeneratePrivateKey()
	require.NoError(t, err)

	pubKey := privKey.PubKey().SerializeCompressed()
	digest := Sum256([]byte("spend 50 coins"))

	sig, err := SignSchnorr(privKey, digest[:])
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)

	require.NoError(t, VerifySchnorr(pubKey, sig, digest[:]))
}

func TestVerifySchnorrRejectsWrongDigest(t *testing.T) {
	privKey, err := GeneratePrivateKey()
	require.NoError(t, err)

	pubKey := privKey.PubKey().SerializeCompressed()
	digest := Sum256([]byte("original message"))

	sig, err := SignSchnorr(privKey, digest[:])
	require.NoError(t, err)

	tampered := Sum256([]byte("tampered message"))

	err = VerifySchnorr(pubKey, sig, tampered[:])
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrInvalidSignature))
}

func TestVerifySchnorrRejectsWrongKey(t *testing.T) {
	privKey, err := GeneratePrivateKey()
	require.NoError(t, err)

	otherKey, err := GeneratePrivateKey()
	require.NoError(t, err)

	digest := Sum256([]byte("payment"))

	sig, err := SignSchnorr(privKey, digest[:])
	require.NoError(t, err)

	err = VerifySchnorr(otherKey.PubKey().SerializeCompressed(), sig, digest[:])
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrInvalidSignature))
}

func TestVerifySchnorrRejectsMalformedInputs(t *testing.T) {
	privKey, err := GeneratePrivateKey()
	require.NoError(t, err)

	pubKey := privKey.PubKey().SerializeCompressed()
	digest := Sum256([]byte("payment"))

	sig, err := SignSchnorr(privKey, digest[:])
	require.NoError(t, err)

	t.Run("truncated signature", func(t *testing.T) {
		err := VerifySchnorr(pubKey, sig[:SignatureLength-1], digest[:])
		require.Error(t, err)
		require.True(t, errors.Is(err, errors.ErrInvalidArgument))
	})

	t.Run("corrupted signature", func(t *testing.T) {
		corrupted := make([]byte, len(sig))
		copy(corrupted, sig)
		corrupted[SignatureLength-1] ^= 0x01

		require.Error(t, VerifySchnorr(pubKey, corrupted, digest[:]))
	})

	t.Run("short digest", func(t *testing.T) {
		err := VerifySchnorr(pubKey, sig, digest[:16])
		require.Error(t, err)
		require.True(t, errors.Is(err, errors.ErrInvalidArgument))
	})

	t.Run("bad public key", func(t *testing.T) {
		err := VerifySchnorr(pubKey[:10], sig, digest[:])
		require.Error(t, err)
		require.True(t, errors.Is(err, errors.ErrInvalidArgument))
	})
}

func TestSignSchnorrRejectsShortDigest(t *testing.T) {
	privKey, err := GeneratePrivateKey()
	require.NoError(t, err)

	_, err = SignSchnorr(privKey, []byte("not a digest"))
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestECDSASignVerify(t *testing.T) {
	privKey, err := GenerateECDSAKey()
	require.NoError(t, err)

	digest := Sum256([]byte("legacy payment"))

	sig, err := SignECDSA(privKey, digest[:])
	require.NoError(t, err)

	require.NoError(t, VerifyECDSA(&privKey.PublicKey, sig, digest[:]))

	tampered := Sum256([]byte("legacy payment, altered"))

	err = VerifyECDSA(&privKey.PublicKey, sig, tampered[:])
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrInvalidSignature))
}
