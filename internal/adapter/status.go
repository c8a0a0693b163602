package adapter

import (
	"sync"
	"time"

	"github.com/coachpo/feedgate/internal/connmgr"
	"github.com/coachpo/feedgate/internal/errs"
)

// Health buckets an Adapter's recent error experience into the three
// levels AdapterStatus exposes.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthDegraded  Health = "degraded"
	HealthUnhealthy Health = "unhealthy"
)

// Status is the aggregated adapter-level status (spec.md §3 AdapterStatus).
type Status struct {
	Status       connmgr.State
	Health       Health
	Connected    bool
	Reconnecting bool
	ErrorRate    float64
	AvgLatencyMs float64
	// RTTMs is the Connection Manager's heartbeat-measured round-trip
	// time (connmgr.Metrics.averageRTTms), distinct from AvgLatencyMs
	// which tracks receivedAt->publishAck processing latency.
	RTTMs float64
}

// healthTracker scores recent classified errors into a Health bucket. A
// rolling window of outcomes (ok/warning/critical) drives errorRate; any
// critical observation in the window forces unhealthy regardless of rate.
type healthTracker struct {
	mu          sync.Mutex
	window      []errs.Classification // "" marks a clean tick
	windowSize  int
	degradeRate float64
}

func newHealthTracker() *healthTracker {
	return &healthTracker{windowSize: 50, degradeRate: 0.1}
}

func (h *healthTracker) recordOK() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.push("")
}

func (h *healthTracker) recordClassified(c errs.Classification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.push(c)
}

func (h *healthTracker) push(c errs.Classification) {
	h.window = append(h.window, c)
	if len(h.window) > h.windowSize {
		h.window = h.window[len(h.window)-h.windowSize:]
	}
}

func (h *healthTracker) snapshot() (health Health, errorRate float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.window) == 0 {
		return HealthHealthy, 0
	}

	var errorCount, warnCount int
	for _, c := range h.window {
		switch c {
		case "":
			continue
		case errs.ClassCritical, errs.ClassAuth:
			return HealthUnhealthy, float64(errorCount+1) / float64(len(h.window))
		case errs.ClassWarning:
			warnCount++
			errorCount++
		default:
			errorCount++
		}
	}

	rate := float64(errorCount) / float64(len(h.window))
	switch {
	case rate >= h.degradeRate:
		return HealthUnhealthy, rate
	case warnCount > 0:
		return HealthDegraded, rate
	default:
		return HealthHealthy, rate
	}
}

// latencyEWMA tracks receivedAt->publishAck latency (spec.md §4.4), alpha
// matching the Connection Manager's RTT smoothing for consistency.
type latencyEWMA struct {
	mu    sync.Mutex
	value float64
	set   bool
}

func (l *latencyEWMA) record(d time.Duration) {
	const alpha = 0.2
	ms := float64(d.Milliseconds())
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.set {
		l.value = ms
		l.set = true
		return
	}
	l.value = alpha*ms + (1-alpha)*l.value
}

func (l *latencyEWMA) snapshot() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}
