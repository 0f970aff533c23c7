package broadcast

import "time"

const (
	EventSnapshot = "snapshot" // full store contents, on connect and on resync
	EventDelta    = "delta"    // one instrument whose price moved
	EventBulk     = "bulk"     // every instrument refreshed by a tick
	EventPong     = "pong"
	EventError    = "error"
)

const (
	ActionResync = "resync"
	ActionPing   = "ping"
)

// Event is the server to client envelope.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Request is the client to server envelope.
type Request struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}
