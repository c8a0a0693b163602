package connmgr

import (
	"testing"
	"time"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	b := newCircuitBreaker(3, 10, time.Minute)
	for i := 0; i < 2; i++ {
		if !b.allow() {
			t.Fatalf("expected closed breaker to allow attempt %d", i)
		}
		b.recordFailure()
	}
	if b.isOpen() {
		t.Fatalf("breaker should not be open before threshold is reached")
	}
	b.recordFailure()
	if !b.isOpen() {
		t.Fatalf("expected breaker to open after %d consecutive failures", 3)
	}
	if b.allow() {
		t.Fatalf("expected open breaker to reject attempts within cooldown")
	}
}

func TestCircuitBreakerHalfOpenProbeSucceeds(t *testing.T) {
	now := time.Now()
	b := newCircuitBreaker(1, 10, time.Second)
	b.now = func() time.Time { return now }

	b.allow()
	b.recordFailure() // opens immediately at threshold 1

	now = now.Add(2 * time.Second)
	if !b.allow() {
		t.Fatalf("expected breaker to admit a half-open probe after cooldown")
	}
	if b.allow() {
		t.Fatalf("expected a second concurrent probe to be rejected while one is in flight")
	}
	b.recordSuccess()
	if b.isOpen() {
		t.Fatalf("expected breaker to close after a successful probe")
	}
}

func TestCircuitBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	now := time.Now()
	b := newCircuitBreaker(1, 10, time.Second)
	b.now = func() time.Time { return now }

	b.allow()
	b.recordFailure()
	now = now.Add(2 * time.Second)
	b.allow()
	b.recordFailure()

	if !b.isOpen() {
		t.Fatalf("expected a failed half-open probe to reopen the breaker")
	}
}
