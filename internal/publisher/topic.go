package publisher

import (
	"context"
	"sync"
	"time"

	"github.com/coachpo/feedgate/internal/bus"
)

// entry pairs a record with the channel its publish outcome is reported
// on, letting a caller (the Adapter Integration) measure publish-ack
// latency without the Publisher blocking on every call.
type entry struct {
	rec  *bus.Record
	done chan error
}

// topicQueue accumulates one topic's pending batch and drains resolved
// batches strictly in submission order. Only one drain goroutine per
// topic is ever active, so cross-batch ordering is never left to the
// underlying worker pool's scheduling.
type topicQueue struct {
	name string
	pub  *Publisher

	mu       sync.Mutex
	pending  []entry
	timer    *time.Timer
	queue    [][]entry
	draining bool
}

func newTopicQueue(name string, pub *Publisher) *topicQueue {
	return &topicQueue{name: name, pub: pub}
}

func (q *topicQueue) enqueue(e entry) {
	q.mu.Lock()
	q.pending = append(q.pending, e)

	if !q.pub.cfg.EnableBatching || len(q.pending) >= q.pub.cfg.BatchSize {
		batch := q.pending
		q.pending = nil
		q.stopTimerLocked()
		q.mu.Unlock()
		q.submit(batch)
		return
	}
	if q.timer == nil {
		q.timer = time.AfterFunc(q.pub.cfg.BatchTimeout, q.flushOnTimeout)
	}
	q.mu.Unlock()
}

func (q *topicQueue) flushOnTimeout() {
	q.mu.Lock()
	q.timer = nil
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()
	q.submit(batch)
}

func (q *topicQueue) stopTimerLocked() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

func (q *topicQueue) submit(batch []entry) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	q.queue = append(q.queue, batch)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()
	q.pub.pool.Go(q.drain)
}

func (q *topicQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.queue) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		batch := q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()
		q.flush(batch)
	}
}

// drainPending forces any partially-filled batch out immediately,
// bypassing the batch-size/timeout triggers; used by Publisher.Flush.
func (q *topicQueue) drainPending() {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	batch := q.pending
	q.pending = nil
	q.stopTimerLocked()
	q.mu.Unlock()
	q.submit(batch)
}

func (q *topicQueue) flush(batch []entry) {
	ctx := context.Background()
	records := make([]*bus.Record, len(batch))
	for i, e := range batch {
		records[i] = e.rec
	}

	q.pub.metrics.recordBatch(ctx, q.name, len(records))
	err := retryPublish(ctx, q.pub.bus, q.name, records, q.pub.cfg)
	if err != nil {
		q.pub.metrics.recordError(ctx, q.name)
		q.pub.metrics.recordDropped(ctx, q.name, len(records))
	} else {
		q.pub.metrics.recordPublished(ctx, q.name, len(records))
	}
	for _, e := range batch {
		e.done <- err
		close(e.done)
	}
}
