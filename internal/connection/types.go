package connection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// Reserved liveness tokens. These are raw text frames, not JSON, so they can
// never be mistaken for payload traffic.
const (
	pingToken = "ping"
	pongToken = "pong"
)

// Status is the consumer-visible connection status. A connection attempt in
// flight is not observable: consumers only ever see Disconnected or Connected.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnected
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// TimestampedMessage wraps raw frame data with its receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// MessageType discriminates StreamMessage variants.
type MessageType string

const (
	MessageSnapshot MessageType = "snapshot"
	MessageTick     MessageType = "tick"
	MessageEvent    MessageType = "event"
)

// StreamMessage is the wire shape of inbound JSON frames. Snapshot and tick
// both carry a full state refresh in Payload; event carries a side-channel
// notification in EventType/Data.
type StreamMessage struct {
	Type             MessageType     `json:"type"`
	StateVersion     int64           `json:"state_version"`
	WSSequenceNumber int64           `json:"ws_sequence_number,omitempty"`
	Timestamp        int64           `json:"timestamp"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	EventType        string          `json:"event_type,omitempty"`
	Data             json.RawMessage `json:"data,omitempty"`
}

// parseStreamMessage decodes an inbound frame. The reserved pong token,
// frames that fail to decode, and unknown variants are all noise: they
// return ok=false and are discarded without surfacing an error.
func parseStreamMessage(data []byte) (StreamMessage, bool) {
	if string(bytes.TrimSpace(data)) == pongToken {
		return StreamMessage{}, false
	}

	var msg StreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return StreamMessage{}, false
	}

	switch msg.Type {
	case MessageSnapshot, MessageTick, MessageEvent:
		return msg, true
	}

	return StreamMessage{}, false
}

// StreamURL derives the streaming endpoint from the service base URL:
// the scheme is upgraded to its WebSocket equivalent (http→ws, https→wss)
// and the admin token, when present, rides as a query parameter since
// browsers and proxies strip custom headers from upgrade requests.
func StreamURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already a stream URL
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// ClientConfig configures a single WebSocket client.
type ClientConfig struct {
	URL              string        // Stream URL (see StreamURL)
	PingInterval     time.Duration // Keepalive ping cadence
	HandshakeTimeout time.Duration // Dial deadline
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval:     25 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// HubConfig configures the connection Hub.
type HubConfig struct {
	URL                string        // Stream URL (see StreamURL)
	PingInterval       time.Duration // Keepalive ping cadence
	HandshakeTimeout   time.Duration // Dial deadline
	WriteTimeout       time.Duration // Write deadline for sends
	ReconnectBaseDelay time.Duration // Backoff floor
	ReconnectMaxDelay  time.Duration // Backoff ceiling
	BufferSize         int           // Per-connection message buffer
}

// DefaultHubConfig returns sensible defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval:       25 * time.Second,
		HandshakeTimeout:   10 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  30 * time.Second,
		BufferSize:         256,
	}
}
