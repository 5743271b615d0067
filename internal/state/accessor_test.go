package state

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orc2626-tech/botwatch/internal/api"
	"github.com/orc2626-tech/botwatch/internal/connection"
)

// stateServer serves GET /api/state, counting fetches. The served
// state_version is read from version on each request; a zero version
// yields a 500 instead.
func stateServer(t *testing.T, fetches *atomic.Int32, version *atomic.Int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		v := version.Load()
		if v == 0 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"state_version": v,
			"timestamp":     time.Now().UnixMilli(),
			"payload":       map[string]any{"pnl": 0},
		})
	}))
}

// streamServer is a WebSocket server that only accepts upgrades while
// accept is true, and sends one snapshot frame on each accepted connection.
func streamServer(t *testing.T, accept *atomic.Bool, streamVersion int64) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !accept.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frame := fmt.Sprintf(`{"type":"snapshot","state_version":%d,"timestamp":1,"payload":{"pnl":1}}`, streamVersion)
		conn.WriteMessage(websocket.TextMessage, []byte(frame))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func testHub(wsBase string) *connection.Hub {
	cfg := connection.DefaultHubConfig()
	url, _ := connection.StreamURL(wsBase, "")
	cfg.URL = url
	cfg.ReconnectBaseDelay = 10 * time.Second // no automatic retry within a test
	cfg.ReconnectMaxDelay = 60 * time.Second
	return connection.NewHub(cfg, nil)
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAccessor_FallbackWhileDisconnected(t *testing.T) {
	var fetches atomic.Int32
	var version atomic.Int64
	version.Store(5)
	rest := stateServer(t, &fetches, &version)
	defer rest.Close()

	var accept atomic.Bool // stream stays down
	stream := streamServer(t, &accept, 99)
	defer stream.Close()

	hub := testHub(stream.URL)
	client := api.NewClient(rest.URL, "")

	a := New(hub, client, 20*time.Millisecond, nil)
	cancel := a.Subscribe(func() {})
	defer cancel()

	waitFor(t, time.Second, func() bool { return a.View().State != nil })

	v := a.View()
	if v.Connected {
		t.Error("Connected = true, want false while the stream is down")
	}
	if v.Loading {
		t.Error("Loading = true after a successful poll")
	}
	if v.State.Source != "rest" {
		t.Errorf("State.Source = %q, want %q", v.State.Source, "rest")
	}
	if v.State.StateVersion != 5 {
		t.Errorf("State.StateVersion = %d, want 5", v.State.StateVersion)
	}

	// Polls keep arriving at the configured interval.
	before := fetches.Load()
	waitFor(t, time.Second, func() bool { return fetches.Load() >= before+2 })
}

func TestAccessor_FallbackExclusivity(t *testing.T) {
	var fetches atomic.Int32
	var version atomic.Int64
	version.Store(5)
	rest := stateServer(t, &fetches, &version)
	defer rest.Close()

	var accept atomic.Bool
	stream := streamServer(t, &accept, 42)
	defer stream.Close()

	hub := testHub(stream.URL)
	client := api.NewClient(rest.URL, "")

	a := New(hub, client, 20*time.Millisecond, nil)
	cancel := a.Subscribe(func() {})
	defer cancel()

	// Disconnected: fetches flow.
	waitFor(t, time.Second, func() bool { return fetches.Load() >= 2 })

	// Bring the stream up; polling must stop within one interval tick.
	accept.Store(true)
	a.Reconnect()
	waitFor(t, time.Second, func() bool { return a.View().Connected })

	time.Sleep(50 * time.Millisecond)
	settled := fetches.Load()
	time.Sleep(200 * time.Millisecond) // ten poll intervals
	if got := fetches.Load(); got != settled {
		t.Errorf("fetches grew from %d to %d while connected", settled, got)
	}

	// Live source wins while connected.
	v := a.View()
	if v.State == nil || v.State.Source != "ws" {
		t.Fatalf("State = %+v, want live snapshot", v.State)
	}
	if v.State.StateVersion != 42 {
		t.Errorf("State.StateVersion = %d, want 42", v.State.StateVersion)
	}
}

func TestAccessor_PollFailureKeepsStaleSnapshot(t *testing.T) {
	var fetches atomic.Int32
	var version atomic.Int64
	version.Store(5)
	rest := stateServer(t, &fetches, &version)
	defer rest.Close()

	var accept atomic.Bool
	stream := streamServer(t, &accept, 0)
	defer stream.Close()

	hub := testHub(stream.URL)
	client := api.NewClient(rest.URL, "")

	a := New(hub, client, 20*time.Millisecond, nil)
	cancel := a.Subscribe(func() {})
	defer cancel()

	waitFor(t, time.Second, func() bool { return a.View().State != nil })

	// Break the endpoint: subsequent polls fail but the view keeps the
	// last good snapshot.
	version.Store(0)
	waitFor(t, time.Second, func() bool { return a.View().Err != nil })

	v := a.View()
	if v.State == nil {
		t.Fatal("State = nil, stale snapshot should be kept on poll failure")
	}
	if v.State.StateVersion != 5 {
		t.Errorf("State.StateVersion = %d, want stale 5", v.State.StateVersion)
	}
	if v.Loading {
		t.Error("Loading = true, want false once any value has been seen")
	}
}

func TestAccessor_LoadingUntilFirstValue(t *testing.T) {
	var fetches atomic.Int32
	var version atomic.Int64 // zero: every poll fails
	rest := stateServer(t, &fetches, &version)
	defer rest.Close()

	var accept atomic.Bool
	stream := streamServer(t, &accept, 0)
	defer stream.Close()

	hub := testHub(stream.URL)
	client := api.NewClient(rest.URL, "")

	a := New(hub, client, 20*time.Millisecond, nil)
	cancel := a.Subscribe(func() {})
	defer cancel()

	waitFor(t, time.Second, func() bool { return a.View().Err != nil })
	if v := a.View(); !v.Loading {
		t.Error("Loading = false with no value from either source")
	}

	version.Store(9)
	waitFor(t, time.Second, func() bool { return a.View().State != nil })
	if v := a.View(); v.Loading {
		t.Error("Loading = true after the first value arrived")
	}
}

func TestAccessor_Refetch(t *testing.T) {
	var fetches atomic.Int32
	var version atomic.Int64
	version.Store(1)
	rest := stateServer(t, &fetches, &version)
	defer rest.Close()

	var accept atomic.Bool
	stream := streamServer(t, &accept, 0)
	defer stream.Close()

	hub := testHub(stream.URL)
	client := api.NewClient(rest.URL, "")

	// Hour-long interval: only the activation poll and explicit refetches.
	a := New(hub, client, time.Hour, nil)
	cancel := a.Subscribe(func() {})
	defer cancel()

	waitFor(t, time.Second, func() bool { return a.View().State != nil })

	version.Store(2)
	if err := a.Refetch(context.Background()); err != nil {
		t.Fatalf("Refetch failed: %v", err)
	}

	if v := a.View(); v.State.StateVersion != 2 {
		t.Errorf("State.StateVersion = %d, want 2 after refetch", v.State.StateVersion)
	}
}

func TestAccessor_TeardownClearsFallbackState(t *testing.T) {
	var fetches atomic.Int32
	var version atomic.Int64
	version.Store(5)
	rest := stateServer(t, &fetches, &version)
	defer rest.Close()

	var accept atomic.Bool
	stream := streamServer(t, &accept, 0)
	defer stream.Close()

	hub := testHub(stream.URL)
	client := api.NewClient(rest.URL, "")

	a := New(hub, client, 20*time.Millisecond, nil)
	cancel := a.Subscribe(func() {})

	waitFor(t, time.Second, func() bool { return a.View().State != nil })

	cancel()

	v := a.View()
	if v.State != nil {
		t.Error("State should be cleared after the last unsubscribe")
	}
	if v.Err != nil {
		t.Errorf("Err should be cleared after the last unsubscribe, got %v", v.Err)
	}
	if !v.Loading {
		t.Error("a later first subscriber should start from a loading state")
	}

	// No further polls after teardown.
	time.Sleep(50 * time.Millisecond)
	settled := fetches.Load()
	time.Sleep(100 * time.Millisecond)
	if got := fetches.Load(); got != settled {
		t.Errorf("fetches grew from %d to %d after teardown", settled, got)
	}
}
