package ws

import (
	"encoding/json"

	"github.com/rishabhdvn/Secure-Collab/internal/session"
)

// Event names carried on the wire, inbound and outbound.
const (
	EventConnected     = "connected"
	EventJoin          = "join"
	EventJoined        = "joined"
	EventCodeChange    = "code-change"
	EventSyncCode      = "sync-code"
	EventProgramInput  = "program-input"
	EventProgramOutput = "program-output"
	EventDisconnected  = "disconnected"
)

// Event is one JSON frame on a connection. Fields are populated per event
// type; Code is a pointer so an empty buffer still round-trips.
type Event struct {
	Event    string           `json:"event"`
	RoomID   string           `json:"roomId,omitempty"`
	Username string           `json:"username,omitempty"`
	SocketID string           `json:"socketId,omitempty"`
	Code     *string          `json:"code,omitempty"`
	Input    string           `json:"input,omitempty"`
	Output   string           `json:"output,omitempty"`
	Clients  []session.Member `json:"clients,omitempty"`
}

func marshal(e Event) []byte {
	b, _ := json.Marshal(e)
	return b
}
