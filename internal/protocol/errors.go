package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Event layer.
	ErrBadPlayer     = "E_BAD_PLAYER"
	ErrWorldNotFound = "E_WORLD_NOT_FOUND"
	ErrUnresolved    = "E_UNRESOLVED"
	ErrBusy          = "E_BUSY"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadPlayer:       {},
	ErrWorldNotFound:   {},
	ErrUnresolved:      {},
	ErrBusy:            {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
