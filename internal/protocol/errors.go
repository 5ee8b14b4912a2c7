package protocol

// Game-over reason codes.
const (
	ReasonTraced       = "TRACED"
	ReasonSelfDestruct = "SELF_DESTRUCT"
	ReasonArrested     = "ARRESTED"
	ReasonRetired      = "RETIRED"
)

// Server error codes carried in ERROR messages alongside the free-form text.
const (
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNotConnected  = "E_NOT_CONNECTED"
	ErrChainEmpty    = "E_CHAIN_EMPTY"
	ErrNoFunds       = "E_NO_FUNDS"
	ErrNoPermission  = "E_NO_PERMISSION"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:    {},
	ErrNotConnected:  {},
	ErrChainEmpty:    {},
	ErrNoFunds:       {},
	ErrNoPermission:  {},
	ErrInvalidTarget: {},
	ErrRateLimit:     {},
	ErrInternal:      {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
