package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/orc2626-tech/botwatch/internal/model"
)

// SnapshotFetcher performs the single-shot snapshot fetch on the fallback
// channel.
type SnapshotFetcher interface {
	GetState(ctx context.Context) (*model.Snapshot, error)
}

// poller repeatedly fetches the snapshot at a fixed interval. The Accessor
// resumes it when the stream is down and pauses it the moment the stream
// connects, so no fetches are issued while live data flows.
//
// Overlapping polls are not guarded explicitly: the interval is expected to
// exceed a fetch round-trip, and the request timeout caps the rest.
type poller struct {
	interval time.Duration
	fetch    SnapshotFetcher
	onResult func(*model.Snapshot, error)
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc // non-nil while running
	wg     sync.WaitGroup
}

func newPoller(interval time.Duration, fetch SnapshotFetcher, onResult func(*model.Snapshot, error), logger *slog.Logger) *poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &poller{
		interval: interval,
		fetch:    fetch,
		onResult: onResult,
		logger:   logger,
	}
}

// resume starts the polling loop if it is not already running.
func (p *poller) resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Debug("fallback poller resumed", "interval", p.interval)
}

// pause stops the polling loop. A fetch already in flight is discarded on
// completion rather than applied.
func (p *poller) pause() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.logger.Debug("fallback poller paused")
	}
}

// run is the polling loop: one poll immediately, then one per tick.
func (p *poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *poller) poll(ctx context.Context) {
	snap, err := p.fetch.GetState(ctx)

	// Paused mid-flight: the result belongs to a stopped cycle.
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		p.logger.Warn("fallback poll failed", "error", err)
	}
	p.onResult(snap, err)
}
