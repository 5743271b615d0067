package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL            = "http://localhost:8787"
	DefaultAPITimeout         = 10 * time.Second
	DefaultPingInterval       = 25 * time.Second
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultStreamBufferSize   = 256
	DefaultPollInterval       = 5 * time.Second
	DefaultHeartbeatInterval  = 5 * time.Minute
)

func (c *WatchConfig) applyDefaults() {
	// Server defaults
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = DefaultBaseURL
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = DefaultAPITimeout
	}

	// Stream defaults
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}

	// Heartbeat defaults
	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = DefaultHeartbeatInterval
	}
}
