// Package heartbeat implements the dead-man's-switch liveness signal.
//
// The emitter tells the bot service a viewing session is alive, on a long
// fixed interval, regardless of stream connectivity. When heartbeats stop
// arriving the service auto-pauses the bot; a failed send is therefore
// logged and swallowed, never surfaced as a client-side error.
package heartbeat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender posts a single heartbeat for the given viewing session.
type Sender interface {
	Heartbeat(ctx context.Context, sessionID uuid.UUID) error
}

// Config holds emitter configuration.
type Config struct {
	Interval time.Duration // Beat cadence (default: 5m)
	Timeout  time.Duration // Per-beat request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Minute,
		Timeout:  10 * time.Second,
	}
}

// Emitter periodically signals that this viewing session is alive.
type Emitter struct {
	cfg    Config
	sender Sender
	logger *slog.Logger

	sessionID uuid.UUID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a heartbeat Emitter with a fresh session ID.
func New(cfg Config, sender Sender, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		cfg:       cfg,
		sender:    sender,
		logger:    logger,
		sessionID: uuid.New(),
	}
}

// SessionID returns the viewer session identifier carried by every beat.
func (e *Emitter) SessionID() uuid.UUID {
	return e.sessionID
}

// Start begins the heartbeat loop. The first beat is sent immediately so the
// service learns about the session without waiting a full interval.
func (e *Emitter) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go e.run()

	e.logger.Info("heartbeat emitter started",
		"session_id", e.sessionID,
		"interval", e.cfg.Interval,
	)

	return nil
}

// Stop gracefully shuts down the emitter.
func (e *Emitter) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("heartbeat emitter stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main heartbeat loop.
func (e *Emitter) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.beat()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.beat()
		}
	}
}

// beat sends a single heartbeat, swallowing failures.
func (e *Emitter) beat() {
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.Timeout)
	defer cancel()

	if err := e.sender.Heartbeat(ctx, e.sessionID); err != nil {
		e.logger.Warn("heartbeat failed", "error", err)
	}
}
