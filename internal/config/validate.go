package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *WatchConfig) Validate() error {
	if c.Server.BaseURL == "" {
		return errors.New("server.base_url is required")
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url scheme must be http or https, got %q", u.Scheme)
	}

	if c.Server.Timeout <= 0 {
		return errors.New("server.timeout must be > 0")
	}

	if c.Stream.PingInterval <= 0 {
		return errors.New("stream.ping_interval must be > 0")
	}
	if c.Stream.ReconnectBaseDelay <= 0 {
		return errors.New("stream.reconnect_base_delay must be > 0")
	}
	if c.Stream.ReconnectMaxDelay < c.Stream.ReconnectBaseDelay {
		return fmt.Errorf("stream.reconnect_max_delay (%v) cannot be less than reconnect_base_delay (%v)",
			c.Stream.ReconnectMaxDelay, c.Stream.ReconnectBaseDelay)
	}
	if c.Stream.BufferSize < 1 {
		return errors.New("stream.buffer_size must be >= 1")
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}

	if c.Heartbeat.Interval <= 0 {
		return errors.New("heartbeat.interval must be > 0")
	}

	return nil
}
