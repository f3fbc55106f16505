package errors

// ERR is the machine-readable error code carried by every Error. Codes are
// stable: they are persisted in logs and matched by callers, so existing
// values must never be renumbered.
type ERR int32

const (
	ERR_UNKNOWN           ERR = 0
	ERR_INVALID_ARGUMENT  ERR = 1
	ERR_NOT_FOUND         ERR = 2
	ERR_PROCESSING        ERR = 3
	ERR_CONFIGURATION     ERR = 4
	ERR_INVALID_SIGNATURE ERR = 5
	ERR_INVALID_CHECKSUM  ERR = 6
	ERR_ERROR             ERR = 9

	ERR_BLOCK_NOT_FOUND        ERR = 10
	ERR_BLOCK_INVALID          ERR = 11
	ERR_BLOCK_EXISTS           ERR = 12
	ERR_BLOCK_PARENT_NOT_FOUND ERR = 13

	ERR_TX_NOT_FOUND                  ERR = 20
	ERR_TX_INVALID                    ERR = 21
	ERR_TX_INVALID_DOUBLE_SPEND       ERR = 22
	ERR_TX_ALREADY_EXISTS             ERR = 23
	ERR_TX_COINBASE_IMMATURE          ERR = 24
	ERR_COINBASE_MISSING_BLOCK_HEIGHT ERR = 25

	ERR_UTXO_NOT_FOUND ERR = 30
	ERR_UTXO_SPENT     ERR = 31

	ERR_NONCE_EXHAUSTED ERR = 40

	ERR_SERVICE_UNAVAILABLE ERR = 50
	ERR_SERVICE_NOT_STARTED ERR = 51

	ERR_STORAGE_ERROR ERR = 60
)

var ERR_name = map[int32]string{
	0:  "UNKNOWN",
	1:  "INVALID_ARGUMENT",
	2:  "NOT_FOUND",
	3:  "PROCESSING",
	4:  "CONFIGURATION",
	5:  "INVALID_SIGNATURE",
	6:  "INVALID_CHECKSUM",
	9:  "ERROR",
	10: "BLOCK_NOT_FOUND",
	11: "BLOCK_INVALID",
	12: "BLOCK_EXISTS",
	13: "BLOCK_PARENT_NOT_FOUND",
	20: "TX_NOT_FOUND",
	21: "TX_INVALID",
	22: "TX_INVALID_DOUBLE_SPEND",
	23: "TX_ALREADY_EXISTS",
	24: "TX_COINBASE_IMMATURE",
	25: "COINBASE_MISSING_BLOCK_HEIGHT",
	30: "UTXO_NOT_FOUND",
	31: "UTXO_SPENT",
	40: "NONCE_EXHAUSTED",
	50: "SERVICE_UNAVAILABLE",
	51: "SERVICE_NOT_STARTED",
	60: "STORAGE_ERROR",
}

var ERR_value = func() map[string]int32 {
	m := make(map[string]int32, len(ERR_name))
	for v, n := range ERR_name {
		m[n] = v
	}

	return m
}()

func (e ERR) String() string {
	if name, ok := ERR_name[int32(e)]; ok {
		return name
	}

	return "UNKNOWN"
}
