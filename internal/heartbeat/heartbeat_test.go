package heartbeat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockSender records heartbeats and optionally fails them.
type mockSender struct {
	mu       sync.Mutex
	sessions []uuid.UUID
	err      error
}

func (m *mockSender) Heartbeat(ctx context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, sessionID)
	return m.err
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func TestEmitter_BeatsAtInterval(t *testing.T) {
	sender := &mockSender{}
	cfg := Config{Interval: 20 * time.Millisecond, Timeout: time.Second}

	e := New(cfg, sender, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for sender.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := sender.count(); got < 3 {
		t.Errorf("beats = %d, want >= 3 (immediate beat plus interval beats)", got)
	}

	// Every beat carries the same session ID.
	sender.mu.Lock()
	defer sender.mu.Unlock()
	for i, id := range sender.sessions {
		if id != e.SessionID() {
			t.Errorf("beat %d session = %v, want %v", i, id, e.SessionID())
		}
	}
}

func TestEmitter_SwallowsFailures(t *testing.T) {
	sender := &mockSender{err: errors.New("service unreachable")}
	cfg := Config{Interval: 20 * time.Millisecond, Timeout: time.Second}

	e := New(cfg, sender, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Failures must not stop the loop.
	deadline := time.Now().Add(time.Second)
	for sender.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := sender.count(); got < 3 {
		t.Errorf("beats = %d, want >= 3 despite failures", got)
	}
}

func TestEmitter_StopEndsBeats(t *testing.T) {
	sender := &mockSender{}
	cfg := Config{Interval: 10 * time.Millisecond, Timeout: time.Second}

	e := New(cfg, sender, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	settled := sender.count()
	time.Sleep(50 * time.Millisecond)
	if got := sender.count(); got != settled {
		t.Errorf("beats grew from %d to %d after Stop", settled, got)
	}
}
