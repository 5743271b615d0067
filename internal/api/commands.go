package api

import (
	"context"

	"github.com/google/uuid"
)

// heartbeatRequest identifies the viewing session sending the liveness signal.
type heartbeatRequest struct {
	SessionID string `json:"session_id"`
}

// Heartbeat tells the service the viewing session is still alive. The
// service auto-pauses the bot when heartbeats stop arriving, so a failed
// send is not an error condition worth surfacing to callers of the
// synchronization layer; the emitter logs and swallows it.
func (c *Client) Heartbeat(ctx context.Context, sessionID uuid.UUID) error {
	return c.post(ctx, "/api/heartbeat", heartbeatRequest{SessionID: sessionID.String()})
}

// Pause halts trading without shutting the bot down.
func (c *Client) Pause(ctx context.Context) error {
	return c.post(ctx, "/api/pause", nil)
}

// Resume restarts trading after a pause.
func (c *Client) Resume(ctx context.Context) error {
	return c.post(ctx, "/api/resume", nil)
}

// Kill stops the bot process entirely.
func (c *Client) Kill(ctx context.Context) error {
	return c.post(ctx, "/api/kill", nil)
}

// SetAccountMode switches the bot between account modes (e.g. "paper", "live").
func (c *Client) SetAccountMode(ctx context.Context, mode string) error {
	return c.post(ctx, "/api/account-mode", map[string]string{"mode": mode})
}

// SetFlag toggles a named feature flag on the running bot.
func (c *Client) SetFlag(ctx context.Context, name string, enabled bool) error {
	return c.post(ctx, "/api/flags/"+name, map[string]bool{"enabled": enabled})
}
