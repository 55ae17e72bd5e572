package observerproto

// Version is the observer protocol version (separate from the player WS protocol).
const Version = "0.2"

// Client -> Server. First message on the observer WS connection; re-send to
// switch to another session.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string        `json:"protocol_version"`
	MapDigest       string        `json:"map_digest"`
	Nodes           int           `json:"nodes"`
	Sessions        []SessionInfo `json:"sessions"`
}

type SessionInfo struct {
	SessionID   string `json:"session_id"`
	Seq         uint64 `json:"seq"`
	Teams       int    `json:"teams"`
	LastTouched string `json:"last_touched"`
}
