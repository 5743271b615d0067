package model

import (
	"encoding/json"
	"time"
)

// Snapshot is the full bot state at a point in time, as produced by the
// bot service. The payload is opaque to this client: it is replaced
// wholesale on every snapshot or tick and never mutated in place.
type Snapshot struct {
	StateVersion int64           // Monotonically non-decreasing version from the service
	Timestamp    int64           // Service timestamp (ms since epoch)
	ReceivedAt   time.Time       // Local timestamp when the snapshot arrived
	Source       string          // "ws" or "rest"
	Payload      json.RawMessage // Opaque state document
}

// Event is a discrete side-channel notification delivered over the stream.
// Events do not replace the Snapshot.
type Event struct {
	Type       string          // Application-defined event type
	Data       json.RawMessage // Arbitrary event payload
	Timestamp  int64           // Service timestamp (ms since epoch)
	ReceivedAt time.Time       // Local timestamp when the event arrived
}
