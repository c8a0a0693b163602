package publisher

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/feedgate/internal/telemetry"
)

// metrics holds the publisherErrors counter (spec.md §4.3) plus the OTel
// instruments that mirror it, registered on the shared "publisher" meter.
type metrics struct {
	published atomic.Int64
	errors    atomic.Int64
	dropped   atomic.Int64
	batches   atomic.Int64

	inst *instruments
}

type instruments struct {
	published metric.Int64Counter
	errors    metric.Int64Counter
	dropped   metric.Int64Counter
	batchSize metric.Int64Histogram
}

func newMetrics() *metrics {
	meter := otel.Meter("publisher")
	inst := &instruments{}
	inst.published, _ = meter.Int64Counter("publisher.records.published",
		metric.WithDescription("Records successfully handed to the external bus"), metric.WithUnit("{record}"))
	inst.errors, _ = meter.Int64Counter("publisher.errors",
		metric.WithDescription("Publish attempts that exhausted retries"), metric.WithUnit("{error}"))
	inst.dropped, _ = meter.Int64Counter("publisher.records.dropped",
		metric.WithDescription("Records dropped after retry exhaustion"), metric.WithUnit("{record}"))
	inst.batchSize, _ = meter.Int64Histogram("publisher.batch.size",
		metric.WithDescription("Number of records flushed per batch"), metric.WithUnit("{record}"))
	return &metrics{inst: inst}
}

func (m *metrics) recordPublished(ctx context.Context, topic string, n int) {
	m.published.Add(int64(n))
	if m.inst.published != nil {
		m.inst.published.Add(ctx, int64(n), metric.WithAttributes(attribute.Key("topic").String(topic)))
	}
}

func (m *metrics) recordBatch(ctx context.Context, topic string, n int) {
	m.batches.Add(1)
	if m.inst.batchSize != nil {
		m.inst.batchSize.Record(ctx, int64(n), metric.WithAttributes(telemetry.AttrTopic.String(topic)))
	}
}

func (m *metrics) recordError(ctx context.Context, topic string) {
	m.errors.Add(1)
	if m.inst.errors != nil {
		m.inst.errors.Add(ctx, 1, metric.WithAttributes(telemetry.AttrTopic.String(topic)))
	}
}

func (m *metrics) recordDropped(ctx context.Context, topic string, n int) {
	m.dropped.Add(int64(n))
	if m.inst.dropped != nil {
		m.inst.dropped.Add(ctx, int64(n), metric.WithAttributes(telemetry.AttrTopic.String(topic)))
	}
}

// Snapshot is an immutable point-in-time read of the publisher's counters.
type Snapshot struct {
	Published int64
	Errors    int64
	Dropped   int64
	Batches   int64
}

func (m *metrics) snapshot() Snapshot {
	return Snapshot{
		Published: m.published.Load(),
		Errors:    m.errors.Load(),
		Dropped:   m.dropped.Load(),
		Batches:   m.batches.Load(),
	}
}
