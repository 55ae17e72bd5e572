package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Session routing/state.
	ErrSessionLimit = "E_SESSION_LIMIT"

	// Command layer.
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrInvalidNode = "E_INVALID_NODE"
	ErrValidation  = "E_VALIDATION"
	ErrRateLimit   = "E_RATE_LIMIT"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrSessionLimit:    {},
	ErrBadRequest:      {},
	ErrInvalidNode:     {},
	ErrValidation:      {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
