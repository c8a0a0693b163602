// Package publisher implements the Publisher component (spec.md §4.3):
// batches normalized records per topic and republishes them onto an
// external bus.Bus, with bounded retry and no local durable queue.
package publisher

import (
	"context"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/coachpo/feedgate/internal/bus"
	"github.com/coachpo/feedgate/internal/config"
)

// Publisher batches and republishes records, one topicQueue per topic.
type Publisher struct {
	bus bus.Bus
	cfg config.PublisherConfig

	metrics *metrics
	pool    *pool.Pool

	mu     sync.Mutex
	topics map[string]*topicQueue
	closed bool
}

// New constructs a Publisher over the given external bus. workers bounds
// the number of topics that may flush concurrently; zero picks
// runtime.GOMAXPROCS(0), mirroring the teacher's dispatcher.Fanout
// default (core/dispatcher/fanout.go).
func New(b bus.Bus, cfg config.PublisherConfig, workers int) *Publisher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Publisher{
		bus:     b,
		cfg:     cfg,
		metrics: newMetrics(),
		pool:    pool.New().WithMaxGoroutines(workers),
		topics:  make(map[string]*topicQueue),
	}
}

// Topic builds the external-bus topic name for a record (spec.md §6
// "Topic naming"): "<prefix>.<exchange>.<dataType>".
func Topic(prefix, exchange string, dataType bus.DataType) string {
	return prefix + "." + exchange + "." + string(dataType)
}

// Publish enqueues rec for topic and returns immediately. The returned
// channel receives exactly one value — nil on success, the publish error
// after retries are exhausted — once the batch containing rec is
// flushed. Callers that don't need the ack latency may discard it.
func (p *Publisher) Publish(ctx context.Context, topic string, rec *bus.Record) (<-chan error, error) {
	if topic == "" {
		return nil, errTopicRequired()
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errClosed()
	}
	tq, ok := p.topics[topic]
	if !ok {
		tq = newTopicQueue(topic, p)
		p.topics[topic] = tq
	}
	p.mu.Unlock()

	done := make(chan error, 1)
	tq.enqueue(entry{rec: rec, done: done})
	return done, nil
}

// Flush forces every topic's partially-filled batch out immediately,
// without waiting for batchSize or batchTimeout. Used by the Adapter
// Integration's stop() to drain pending publishes (spec.md §4.4).
func (p *Publisher) Flush() {
	p.mu.Lock()
	queues := make([]*topicQueue, 0, len(p.topics))
	for _, tq := range p.topics {
		queues = append(queues, tq)
	}
	p.mu.Unlock()
	for _, tq := range queues {
		tq.drainPending()
	}
}

// Close flushes pending batches and waits for all in-flight flushes to
// complete. A closed Publisher rejects further Publish calls.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.Flush()
	p.pool.Wait()
}

// Snapshot returns a point-in-time read of the publisher's counters.
func (p *Publisher) Snapshot() Snapshot {
	return p.metrics.snapshot()
}
