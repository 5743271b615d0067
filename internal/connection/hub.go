package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orc2626-tech/botwatch/internal/model"
)

// Hub multiplexes one shared stream connection across any number of
// subscribers. All shared state lives behind one mutex; the connection
// generation counter makes late dial or read completions after a teardown
// or manual reconnect harmless: they observe a stale generation and bail.
type Hub struct {
	cfg    HubConfig
	logger *slog.Logger

	mu        sync.Mutex
	client    Client // non-nil iff an attempt is in flight or established
	status    Status
	snapshot  *model.Snapshot
	lastEvent *model.Event
	lastErr   error
	listeners map[uuid.UUID]func()
	refs      int
	delay     time.Duration // next reconnect wait
	reconnect *time.Timer   // pending scheduled attempt, nil when idle
	gen       uint64        // connection generation, bumped on teardown and pre-emption
}

// NewHub creates a connection Hub. No connection is made until the first
// subscriber arrives.
func NewHub(cfg HubConfig, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		cfg:       cfg,
		logger:    logger,
		status:    StatusDisconnected,
		listeners: make(map[uuid.UUID]func()),
		delay:     cfg.ReconnectBaseDelay,
	}
}

// Subscribe registers a notification callback, invoked (without arguments)
// whenever the connection status, snapshot, event, or error changes. The
// first subscriber initiates the connection. The returned cancel function is
// idempotent; when the last subscriber cancels, the connection is closed and
// all cached state is cleared so a later first subscriber starts clean.
func (h *Hub) Subscribe(listener func()) (cancel func()) {
	h.mu.Lock()
	id := uuid.New()
	h.listeners[id] = listener
	h.refs++
	if h.refs == 1 && h.client == nil {
		h.connectLocked()
	}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.refs--
			if h.refs == 0 {
				h.teardownLocked()
			}
			h.mu.Unlock()
		})
	}
}

// Reconnect resets the backoff to its floor and, if no connection is live or
// pending, attempts immediately, pre-empting any scheduled attempt.
func (h *Hub) Reconnect() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.delay = h.cfg.ReconnectBaseDelay
	if h.reconnect != nil {
		h.reconnect.Stop()
		h.reconnect = nil
	}

	if h.refs == 0 || h.client != nil {
		return
	}
	h.connectLocked()
}

// Status returns the consumer-visible connection status.
func (h *Hub) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Snapshot returns the latest snapshot received over the stream, or nil.
func (h *Hub) Snapshot() *model.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot
}

// LastEvent returns the latest side-channel event, or nil.
func (h *Hub) LastEvent() *model.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastEvent
}

// Err returns the latest transport error. It is cleared on successful open.
func (h *Hub) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// connectLocked starts a connection attempt. Caller holds h.mu; the
// h.client == nil guard under the lock is what makes concurrent Subscribe
// calls yield exactly one connection.
func (h *Hub) connectLocked() {
	cli := NewClient(ClientConfig{
		URL:              h.cfg.URL,
		PingInterval:     h.cfg.PingInterval,
		HandshakeTimeout: h.cfg.HandshakeTimeout,
		WriteTimeout:     h.cfg.WriteTimeout,
		BufferSize:       h.cfg.BufferSize,
	}, h.logger)
	h.client = cli
	gen := h.gen

	go h.dial(cli, gen)
}

// dial completes the connection attempt off the lock.
func (h *Hub) dial(cli Client, gen uint64) {
	err := cli.Connect(context.Background())

	h.mu.Lock()
	if h.gen != gen || h.client != cli {
		// Torn down or pre-empted while dialing; discard the result.
		h.mu.Unlock()
		cli.Close()
		return
	}

	if err != nil {
		h.client = nil
		h.lastErr = err
		if h.refs > 0 {
			h.scheduleReconnectLocked()
		}
		h.mu.Unlock()
		h.logger.Warn("connection attempt failed", "error", err)
		h.notify()
		return
	}

	h.status = StatusConnected
	h.lastErr = nil
	h.delay = h.cfg.ReconnectBaseDelay
	h.mu.Unlock()

	h.logger.Info("stream connected", "url", h.cfg.URL)
	h.notify()

	go h.readLoop(cli, gen)
}

// readLoop fans inbound traffic out to subscribers until the connection
// closes. It is the only goroutine that touches snapshot/event state, so
// notifications reach listeners in frame arrival order.
func (h *Hub) readLoop(cli Client, gen uint64) {
	for {
		select {
		case err := <-cli.Errors():
			// A transport error is recorded but does not close anything;
			// the transport's own closure follows if the socket died.
			h.mu.Lock()
			if h.gen != gen {
				h.mu.Unlock()
				return
			}
			h.lastErr = err
			h.mu.Unlock()
			h.logger.Warn("transport error", "error", err)
			h.notify()

		case msg, ok := <-cli.Messages():
			if !ok {
				h.handleClose(cli, gen)
				return
			}
			h.handleMessage(msg, gen)
		}
	}
}

// handleMessage parses one frame and applies it to shared state.
func (h *Hub) handleMessage(msg TimestampedMessage, gen uint64) {
	sm, ok := parseStreamMessage(msg.Data)
	if !ok {
		// Reserved pong token or a malformed frame: noise, not a failure.
		return
	}

	h.mu.Lock()
	if h.gen != gen {
		h.mu.Unlock()
		return
	}

	switch sm.Type {
	case MessageSnapshot, MessageTick:
		h.snapshot = &model.Snapshot{
			StateVersion: sm.StateVersion,
			Timestamp:    sm.Timestamp,
			ReceivedAt:   msg.ReceivedAt,
			Source:       "ws",
			Payload:      sm.Payload,
		}
	case MessageEvent:
		h.lastEvent = &model.Event{
			Type:       sm.EventType,
			Data:       sm.Data,
			Timestamp:  sm.Timestamp,
			ReceivedAt: msg.ReceivedAt,
		}
	}
	h.mu.Unlock()

	h.notify()
}

// handleClose reacts to the transport closing underneath us.
func (h *Hub) handleClose(cli Client, gen uint64) {
	// A read error may be queued just ahead of the closure; record it so
	// subscribers see why the stream dropped.
	select {
	case err := <-cli.Errors():
		h.mu.Lock()
		if h.gen == gen {
			h.lastErr = err
		}
		h.mu.Unlock()
	default:
	}

	h.mu.Lock()
	if h.gen != gen {
		// Intentional teardown already ran; nothing to do.
		h.mu.Unlock()
		return
	}
	h.client = nil
	h.status = StatusDisconnected
	if h.refs > 0 {
		h.scheduleReconnectLocked()
	}
	h.mu.Unlock()

	cli.Close() // stops the ping loop; idempotent

	h.logger.Info("stream disconnected")
	h.notify()
}

// scheduleReconnectLocked arms the single reconnect timer. The delay doubles
// on each unintentional close, capped at the ceiling; it resets to the floor
// on successful open or manual Reconnect. Caller holds h.mu.
func (h *Hub) scheduleReconnectLocked() {
	if h.reconnect != nil {
		return // one pending attempt at a time
	}

	wait := h.delay
	h.delay *= 2
	if h.delay > h.cfg.ReconnectMaxDelay {
		h.delay = h.cfg.ReconnectMaxDelay
	}

	h.logger.Info("scheduling reconnect", "wait", wait)
	h.reconnect = time.AfterFunc(wait, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.reconnect = nil
		if h.refs == 0 || h.client != nil {
			return
		}
		h.connectLocked()
	})
}

// teardownLocked closes the connection and clears every piece of cached
// state. Bumping the generation first means any close handler or late dial
// completion racing with us sees a stale generation instead of firing a
// duplicate teardown. Caller holds h.mu.
func (h *Hub) teardownLocked() {
	h.gen++

	if h.reconnect != nil {
		h.reconnect.Stop()
		h.reconnect = nil
	}

	if h.client != nil {
		cli := h.client
		h.client = nil
		go cli.Close()
	}

	h.status = StatusDisconnected
	h.snapshot = nil
	h.lastEvent = nil
	h.lastErr = nil
	h.delay = h.cfg.ReconnectBaseDelay

	h.logger.Debug("hub torn down")
}

// notify invokes every registered listener, off the lock.
func (h *Hub) notify() {
	h.mu.Lock()
	listeners := make([]func(), 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
