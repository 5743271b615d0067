package config

import "time"

// WatchConfig is the root configuration for a botwatch instance.
type WatchConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Stream    StreamConfig    `yaml:"stream"`
	Poller    PollerConfig    `yaml:"poller"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
}

// ServerConfig holds bot service settings.
type ServerConfig struct {
	BaseURL    string        `yaml:"base_url"`    // e.g. https://bot.example.com
	AdminToken string        `yaml:"admin_token"` // Optional bearer token, usually ${BOT_ADMIN_TOKEN}
	Timeout    time.Duration `yaml:"timeout"`     // Per-request HTTP timeout
}

// StreamConfig holds WebSocket multiplexer settings.
type StreamConfig struct {
	PingInterval       time.Duration `yaml:"ping_interval"`
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	BufferSize         int           `yaml:"buffer_size"`
}

// PollerConfig holds fallback poller settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// HeartbeatConfig holds dead-man's-switch heartbeat settings.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
}
