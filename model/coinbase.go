package model

import (
	"encoding/binary"
	"strings"

	"github.com/emberchain/embernode/errors"
)

// The coinbase payload starts with the length of the serialized block
// height, followed by that many little endian height bytes, followed by an
// arbitrary miner tag. Committing the height makes every coinbase unique
// even when two blocks pay the same outputs.

// NewCoinbasePayload serializes height and minerTag into payload form. The
// height is encoded minimally: trailing zero bytes are dropped.
func NewCoinbasePayload(height uint32, minerTag string) []byte {
	var heightBytes [4]byte
	binary.LittleEndian.PutUint32(heightBytes[:], height)

	n := 4
	for n > 0 && heightBytes[n-1] == 0 {
		n--
	}

	payload := make([]byte, 0, 1+n+len(minerTag))
	payload = append(payload, byte(n))
	payload = append(payload, heightBytes[:n]...)
	payload = append(payload, minerTag...)

	return payload
}

// ExtractCoinbaseHeight returns the block height committed in the coinbase
// payload.
func ExtractCoinbaseHeight(coinbaseTx *Tx) (uint32, error) {
	height, _, err := extractCoinbaseHeightAndText(coinbaseTx.Payload)
	return height, err
}

// ExtractCoinbaseMiner returns the miner tag from the coinbase payload, if
// there is one.
func ExtractCoinbaseMiner(coinbaseTx *Tx) (string, error) {
	_, miner, err := extractCoinbaseHeightAndText(coinbaseTx.Payload)
	if err != nil && errors.Is(err, errors.ErrCoinbaseMissingBlockHeight) {
		err = nil
	}

	return miner, err
}

func extractCoinbaseHeightAndText(payload []byte) (uint32, string, error) {
	if len(payload) < 1 {
		return 0, "", errors.New(errors.ERR_COINBASE_MISSING_BLOCK_HEIGHT, "the coinbase payload must start with the length of the serialized block height")
	}

	serializedLen := int(payload[0])
	if len(payload[1:]) < serializedLen {
		return 0, "", errors.New(errors.ERR_COINBASE_MISSING_BLOCK_HEIGHT, "the coinbase payload must start with the serialized block height")
	}

	serializedHeightBytes := payload[1 : serializedLen+1]
	if len(serializedHeightBytes) > 8 {
		return 0, "", errors.New(errors.ERR_COINBASE_MISSING_BLOCK_HEIGHT, "serialized block height too large")
	}

	heightBytes := make([]byte, 8)
	copy(heightBytes, serializedHeightBytes)
	serializedHeight := binary.LittleEndian.Uint64(heightBytes)

	arbitraryText := string(payload[serializedLen+1:])

	return uint32(serializedHeight), extractMiner(arbitraryText), nil
}

func extractMiner(str string) string {
	str = strings.ToValidUTF8(str, "?")

	// Split the arbitrary text by "/"
	parts := strings.Split(str, "/")
	if len(parts) == 1 {
		return str
	}

	// Join all the parts except the last one
	str = strings.Join(parts[:len(parts)-1], "/")

	return str + "/"
}
