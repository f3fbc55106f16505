package crypto

import (
	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/emberchain/embernode/errors"
)

// AddressPayloadLength is the byte length of the hash carried by an address.
const AddressPayloadLength = HashLength

// EncodeAddress renders a public key hash as a Base58Check string: one
// version byte, the 32 byte payload, and a 4 byte double-SHA-256 checksum.
func EncodeAddress(version byte, payloadHash [AddressPayloadLength]byte) string {
	return base58.CheckEncode(payloadHash[:], version)
}

// DecodeAddress parses a Base58Check address back into its version byte and
// payload hash. Checksum mismatches, malformed input and wrong payload
// lengths each fail with their own error.
func DecodeAddress(address string) (byte, [AddressPayloadLength]byte, error) {
	var payloadHash [AddressPayloadLength]byte

	payload, version, err := base58.CheckDecode(address)
	if err != nil {
		if errors.Is(err, base58.ErrChecksum) {
			return 0, payloadHash, errors.NewInvalidChecksumError("address checksum mismatch")
		}

		return 0, payloadHash, errors.NewInvalidArgumentError("malformed address", err)
	}

	if len(payload) != AddressPayloadLength {
		return 0, payloadHash, errors.NewInvalidArgumentError("address payload must be %d bytes, got %d", AddressPayloadLength, len(payload))
	}

	copy(payloadHash[:], payload)

	return version, payloadHash, nil
}
