package connmgr

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/coachpo/feedgate/internal/config"
)

func TestReconnectDelayGrowsExponentially(t *testing.T) {
	policy := config.RetryPolicy{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		BackoffBase:  2.0,
		JitterOn:     false,
	}
	rng := rand.New(rand.NewSource(1))

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}
	for _, tc := range cases {
		if got := reconnectDelay(policy, tc.attempt, rng); got != tc.want {
			t.Errorf("reconnectDelay(attempt=%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestReconnectDelayCapsAtMaxDelay(t *testing.T) {
	policy := config.RetryPolicy{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		BackoffBase:  2.0,
		JitterOn:     false,
	}
	rng := rand.New(rand.NewSource(1))
	got := reconnectDelay(policy, 10, rng)
	if got != 10*time.Second {
		t.Errorf("reconnectDelay(attempt=10) = %v, want capped at %v", got, 10*time.Second)
	}
}

func TestReconnectDelayJitterStaysInBounds(t *testing.T) {
	policy := config.RetryPolicy{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		BackoffBase:  2.0,
		JitterOn:     true,
	}
	rng := rand.New(rand.NewSource(42))
	base := 4 * time.Second // attempt 3, no jitter
	low := time.Duration(float64(base) * 0.5)
	high := time.Duration(float64(base) * 1.5)

	for i := 0; i < 20; i++ {
		got := reconnectDelay(policy, 3, rng)
		if got < low || got > high {
			t.Errorf("reconnectDelay with jitter = %v, want within [%v, %v]", got, low, high)
		}
	}
}

func TestReconnectDelayAppliesDefaultsWhenUnset(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	got := reconnectDelay(config.RetryPolicy{}, 1, rng)
	if got != time.Second {
		t.Errorf("reconnectDelay with zero-value policy = %v, want default initial delay %v", got, time.Second)
	}
}

func TestManagerAddStreamEnforcesLimit(t *testing.T) {
	cfg := config.DefaultConnectionConfig("wss://stream.example.com")
	cfg.CombinedStream.MaxStreams = 2
	cfg.CombinedStream.AutoManage = false
	m := New("binance", "test-1", cfg, nil, nil)

	if err := m.AddStream("a@trade"); err != nil {
		t.Fatalf("AddStream(a) unexpected error: %v", err)
	}
	if err := m.AddStream("b@trade"); err != nil {
		t.Fatalf("AddStream(b) unexpected error: %v", err)
	}
	if err := m.AddStream("c@trade"); err == nil {
		t.Fatalf("expected AddStream to fail once MaxStreams is reached")
	}
	// Re-adding an existing member must not count against the limit.
	if err := m.AddStream("a@trade"); err != nil {
		t.Fatalf("AddStream(a) re-add unexpected error: %v", err)
	}
}

func TestManagerAddStreamNoOpDoesNotDuplicate(t *testing.T) {
	cfg := config.DefaultConnectionConfig("wss://stream.example.com")
	cfg.CombinedStream.AutoManage = false
	m := New("binance", "test-2", cfg, nil, nil)

	_ = m.AddStream("a@trade")
	_ = m.AddStream("a@trade")

	streams := m.GetActiveStreams()
	if len(streams) != 1 {
		t.Fatalf("expected 1 active stream after duplicate add, got %d", len(streams))
	}
}

func TestManagerTransitionSkipsNoOpSameState(t *testing.T) {
	cfg := config.DefaultConnectionConfig("wss://stream.example.com")
	var events []Event
	m := New("binance", "test-3", cfg, nil, func(e Event) {
		events = append(events, e)
	})

	m.transition(StateIdle, "", nil) // already idle: must be a no-op
	if len(events) != 0 {
		t.Fatalf("expected no events for a same-state transition, got %d", len(events))
	}

	m.transition(StateConnecting, "", nil)
	if len(events) != 1 || events[0].Type != EventStatusChange {
		t.Fatalf("expected a single statusChange event, got %v", events)
	}
	if events[0].Previous != StateIdle || events[0].State != StateConnecting {
		t.Fatalf("unexpected transition recorded: %+v", events[0])
	}
}

func TestManagerDestroyIsIdempotent(t *testing.T) {
	cfg := config.DefaultConnectionConfig("wss://stream.example.com")
	m := New("binance", "test-4", cfg, nil, nil)

	m.Destroy()
	m.Destroy() // must not panic or double-close

	if m.State() != StateDisconnected {
		t.Fatalf("expected DISCONNECTED after Destroy, got %s", m.State())
	}
	if err := m.Connect(context.Background()); err == nil {
		t.Fatalf("expected Connect on a destroyed manager to fail")
	}
}

func TestManagerConnectRejectsEmptyURL(t *testing.T) {
	cfg := config.DefaultConnectionConfig("")
	m := New("binance", "test-5", cfg, nil, nil)
	if err := m.Connect(context.Background()); err == nil {
		t.Fatalf("expected Connect to reject an empty URL before dialing")
	}
}

func TestManagerBeginReconnectCoalescesConcurrentCallers(t *testing.T) {
	cfg := config.DefaultConnectionConfig("wss://stream.example.com")
	m := New("binance", "test-6", cfg, nil, nil)

	if !m.beginReconnect() {
		t.Fatal("expected the first caller to claim the reconnect slot")
	}
	if m.beginReconnect() {
		t.Fatal("expected a second concurrent caller to coalesce, not claim its own slot")
	}

	m.endReconnect()
	if !m.beginReconnect() {
		t.Fatal("expected the slot to be claimable again once the in-flight attempt ended")
	}
}

func TestNewControlLimiterAppliesDefaultsWhenUnset(t *testing.T) {
	limiter := newControlLimiter(config.CombinedStreamConfig{})
	if limiter.Limit() != 5 {
		t.Fatalf("default control rate = %v, want 5", limiter.Limit())
	}
	if limiter.Burst() != 1 {
		t.Fatalf("default control burst = %d, want 1", limiter.Burst())
	}
}

func TestNewControlLimiterHonorsConfiguredRate(t *testing.T) {
	limiter := newControlLimiter(config.CombinedStreamConfig{ControlMessagesPerSecond: 10, ControlBurst: 3})
	if limiter.Limit() != 10 {
		t.Fatalf("control rate = %v, want 10", limiter.Limit())
	}
	if limiter.Burst() != 3 {
		t.Fatalf("control burst = %d, want 3", limiter.Burst())
	}
}
