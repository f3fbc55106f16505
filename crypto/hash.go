// Package crypto bundles the primitives the node consumes: SHA-256 hashing,
// secp256k1 Schnorr keys and signatures, and Base58Check address encoding.
//
// Hashing is a single capability with two interchangeable SHA-256 backends.
// HashPublicKey runs on the SIMD implementation, everything else on the
// standard library. Both backends must produce identical digests for
// identical input; no caller gets to pick a backend.
package crypto

import (
	stdsha256 "crypto/sha256"

	simdsha256 "github.com/minio/sha256-simd"
)

// HashLength is the byte length of every digest produced by this package.
const HashLength = stdsha256.Size

var (
	sum256       = stdsha256.Sum256
	pubKeySum256 = simdsha256.Sum256
)

// Sum256 returns the SHA-256 digest of b.
func Sum256(b []byte) [HashLength]byte {
	return sum256(b)
}

// DoubleSum256 returns SHA-256(SHA-256(b)).
func DoubleSum256(b []byte) [HashLength]byte {
	first := sum256(b)
	return sum256(first[:])
}

// HashPublicKey returns the SHA-256 digest of a serialized public key.
// This is the locking hash stored in transaction outputs and the payload
// encoded into addresses.
func HashPublicKey(pubKey []byte) [HashLength]byte {
	return pubKeySum256(pubKey)
}
