package observerproto

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Run parameters.
	ErrBadSpeed   = "E_BAD_SPEED"
	ErrBadInput   = "E_BAD_INPUT"
	ErrTooWide    = "E_TOO_WIDE"
	ErrServerBusy = "E_SERVER_BUSY"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadSpeed:        {},
	ErrBadInput:        {},
	ErrTooWide:         {},
	ErrServerBusy:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
