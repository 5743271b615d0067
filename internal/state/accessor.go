package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orc2626-tech/botwatch/internal/connection"
	"github.com/orc2626-tech/botwatch/internal/model"
)

// View is the coherent tuple every consumer observes. It never tears:
// each call to View assembles a consistent reading of both sources.
type View struct {
	State     *model.Snapshot // live snapshot while connected, else last successful poll, else nil
	Err       error           // live error if present, else fallback error
	Connected bool            // exactly the hub status, no smoothing
	Loading   bool            // true only until the first value from either source
}

// Accessor merges the Hub's live snapshot with the fallback poller's and
// re-notifies consumers when either source updates. The first consumer
// attaches the Accessor to the Hub, which opens the shared connection; the
// last cancel detaches it, which tears the connection down.
type Accessor struct {
	hub    *connection.Hub
	client SnapshotFetcher
	poller *poller
	logger *slog.Logger

	mu        sync.Mutex
	fbSnap    *model.Snapshot
	fbErr     error
	listeners map[uuid.UUID]func()
	refs      int
	hubCancel func()
}

// New creates a State Accessor. interval is the fallback poll cadence.
func New(hub *connection.Hub, client SnapshotFetcher, interval time.Duration, logger *slog.Logger) *Accessor {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Accessor{
		hub:       hub,
		client:    client,
		logger:    logger,
		listeners: make(map[uuid.UUID]func()),
	}
	a.poller = newPoller(interval, client, a.onPollResult, logger)
	return a
}

// Subscribe registers a consumer callback invoked whenever either source
// updates. The returned cancel function is idempotent.
func (a *Accessor) Subscribe(listener func()) (cancel func()) {
	a.mu.Lock()
	id := uuid.New()
	a.listeners[id] = listener
	a.refs++
	first := a.refs == 1
	a.mu.Unlock()

	if first {
		hubCancel := a.hub.Subscribe(a.onHubUpdate)
		a.mu.Lock()
		a.hubCancel = hubCancel
		a.mu.Unlock()
		a.syncPoller()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.listeners, id)
			a.refs--
			last := a.refs == 0
			hubCancel := a.hubCancel
			if last {
				a.hubCancel = nil
				a.fbSnap = nil
				a.fbErr = nil
			}
			a.mu.Unlock()

			if last {
				a.poller.pause()
				if hubCancel != nil {
					hubCancel()
				}
			}
		})
	}
}

// View returns the current merged reading.
func (a *Accessor) View() View {
	connected := a.hub.Status() == connection.StatusConnected
	live := a.hub.Snapshot()
	liveErr := a.hub.Err()

	a.mu.Lock()
	fbSnap, fbErr := a.fbSnap, a.fbErr
	a.mu.Unlock()

	v := View{Connected: connected}

	if connected {
		v.State = live
	} else {
		v.State = fbSnap
	}

	if liveErr != nil {
		v.Err = liveErr
	} else {
		v.Err = fbErr
	}

	v.Loading = live == nil && fbSnap == nil

	return v
}

// Refetch performs a one-shot fetch outside the poller's interval, for an
// explicit refresh after a control command. The result feeds the fallback
// source like any poll would.
func (a *Accessor) Refetch(ctx context.Context) error {
	snap, err := a.client.GetState(ctx)
	a.onPollResult(snap, err)
	return err
}

// Reconnect asks the hub for an immediate reconnection attempt at the
// backoff floor.
func (a *Accessor) Reconnect() {
	a.hub.Reconnect()
}

// onHubUpdate runs on every hub notification: toggle the poller against the
// new status and pass the update through to consumers.
func (a *Accessor) onHubUpdate() {
	a.syncPoller()
	a.notify()
}

// syncPoller keeps the fallback poller running exactly while the stream is
// down and at least one consumer is subscribed.
func (a *Accessor) syncPoller() {
	a.mu.Lock()
	active := a.refs > 0
	a.mu.Unlock()

	if !active || a.hub.Status() == connection.StatusConnected {
		a.poller.pause()
		return
	}
	a.poller.resume()
}

// onPollResult applies a fallback fetch result. A failed poll records the
// error but keeps the previous snapshot: stale data beats a blank view.
func (a *Accessor) onPollResult(snap *model.Snapshot, err error) {
	a.mu.Lock()
	if a.refs == 0 {
		// Completed after the last consumer left; state is torn down.
		a.mu.Unlock()
		return
	}
	if err != nil {
		a.fbErr = err
	} else {
		a.fbSnap = snap
		a.fbErr = nil
	}
	a.mu.Unlock()

	a.notify()
}

// notify invokes every registered consumer, off the lock.
func (a *Accessor) notify() {
	a.mu.Lock()
	listeners := make([]func(), 0, len(a.listeners))
	for _, fn := range a.listeners {
		listeners = append(listeners, fn)
	}
	a.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
