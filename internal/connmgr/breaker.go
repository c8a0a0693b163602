package connmgr

import (
	"sync"
	"time"
)

type breakerPhase int

const (
	breakerClosed breakerPhase = iota
	breakerOpen
	breakerHalfOpen
)

// circuitBreaker fails connect() fast once consecutive connect failures
// reach threshold, until cooldown elapses, then admits exactly one
// half-open probe (spec.md §4.1 "Circuit breaker").
type circuitBreaker struct {
	mu sync.Mutex

	threshold int
	window    int
	cooldown  time.Duration

	phase         breakerPhase
	consecutive   int
	recent        []bool // rolling window of recent attempt outcomes, most-recent last
	openedAt      time.Time
	probeInFlight bool

	now func() time.Time
}

func newCircuitBreaker(threshold, window int, cooldown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if window <= 0 {
		window = 10
	}
	return &circuitBreaker{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// allow reports whether a connect attempt may proceed. When the breaker is
// open and the cooldown has not elapsed, it returns false. When the
// cooldown has elapsed it transitions to half-open and allows exactly one
// probe through.
func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.phase {
	case breakerClosed:
		return true
	case breakerHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	case breakerOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.phase = breakerHalfOpen
			b.probeInFlight = true
			return true
		}
		return false
	default:
		return true
	}
}

// recordSuccess closes the breaker and resets the consecutive-failure
// counter.
func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutive = 0
	b.phase = breakerClosed
	b.probeInFlight = false
	b.pushLocked(true)
}

// recordFailure increments the consecutive-failure counter and opens the
// breaker once threshold is reached (or immediately re-opens on a failed
// half-open probe).
func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushLocked(false)

	if b.phase == breakerHalfOpen {
		b.phase = breakerOpen
		b.openedAt = b.now()
		b.probeInFlight = false
		return
	}

	b.consecutive++
	if b.consecutive >= b.threshold {
		b.phase = breakerOpen
		b.openedAt = b.now()
	}
}

func (b *circuitBreaker) pushLocked(ok bool) {
	b.recent = append(b.recent, ok)
	if len(b.recent) > b.window {
		b.recent = b.recent[len(b.recent)-b.window:]
	}
}

// isOpen reports the breaker's current state for observability.
func (b *circuitBreaker) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase == breakerOpen
}
