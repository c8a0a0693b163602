// Package connmgr implements the Connection Manager: a single WebSocket
// owned by an explicit state machine, with heartbeats, exponential-backoff
// reconnects guarded by a circuit breaker, and a combined-stream set whose
// mutations are coalesced into batched reconnects.
package connmgr

// State is one of the Connection Manager's explicit lifecycle states.
// Exactly one State is current at any time.
type State string

const (
	StateIdle         State = "IDLE"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateReconnecting State = "RECONNECTING"
	StateClosing      State = "CLOSING"
	StateDisconnected State = "DISCONNECTED"
	StateError        State = "ERROR"
)

// EventType names a lifecycle notification emitted by the Manager.
type EventType string

const (
	EventConnected        EventType = "connected"
	EventDisconnecting    EventType = "disconnecting"
	EventDisconnected     EventType = "disconnected"
	EventReconnecting     EventType = "reconnecting"
	EventReconnected      EventType = "reconnected"
	EventError            EventType = "error"
	EventHeartbeatTimeout EventType = "heartbeatTimeout"
	EventStatusChange     EventType = "statusChange"
)

// Event is delivered to the Manager's onEvent callback. Callbacks must not
// block — the Manager invokes them synchronously from its own goroutines.
type Event struct {
	Type     EventType
	State    State
	Previous State
	Err      error
}
