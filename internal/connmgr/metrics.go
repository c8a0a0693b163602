package connmgr

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/feedgate/internal/telemetry"
)

// Metrics holds ConnectionMetrics (spec.md §3) plus the OTel instruments
// that mirror them: counters (messagesSent, messagesReceived, bytesSent,
// bytesReceived, errorCount, reconnectCount, streamChanges,
// streamOperations), gauges (averageRTTms, activeStreamCount), and
// timestamps (connectedAt, lastActivity). Updated only from within the
// Manager; readable by any observer via Snapshot.
type Metrics struct {
	exchange string
	instance string

	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	bytesSent        atomic.Int64
	bytesReceived    atomic.Int64
	errorCount       atomic.Int64
	reconnectCount   atomic.Int64
	streamChanges    atomic.Int64
	streamAdds       atomic.Int64
	streamRemoves    atomic.Int64
	streamMods       atomic.Int64

	mu           sync.RWMutex
	averageRTTms float64
	connectedAt  time.Time
	lastActivity time.Time

	inst *instruments
}

type instruments struct {
	reconnects       metric.Int64Counter
	messagesReceived metric.Int64Counter
	messageBytes     metric.Int64Histogram
	pingLatency      metric.Float64Histogram
	reconnectDelay   metric.Float64Histogram
	errors           metric.Int64Counter
}

// NewMetrics constructs per-instance ConnectionMetrics with OTel
// instruments registered on the shared "connmgr" meter.
func NewMetrics(exchange, instance string) *Metrics {
	meter := otel.Meter("connmgr")
	inst := &instruments{}
	inst.reconnects, _ = meter.Int64Counter("connmgr.reconnect.count",
		metric.WithDescription("Connection manager reconnect attempts"), metric.WithUnit("{attempt}"))
	inst.messagesReceived, _ = meter.Int64Counter("connmgr.messages.received",
		metric.WithDescription("Stream messages received"), metric.WithUnit("{message}"))
	inst.messageBytes, _ = meter.Int64Histogram("connmgr.message.bytes",
		metric.WithDescription("Size of received stream messages"), metric.WithUnit("By"))
	inst.pingLatency, _ = meter.Float64Histogram("connmgr.ping.rtt",
		metric.WithDescription("Measured heartbeat RTT"), metric.WithUnit("ms"))
	inst.reconnectDelay, _ = meter.Float64Histogram("connmgr.reconnect.delay",
		metric.WithDescription("Computed backoff delay before a reconnect attempt"), metric.WithUnit("s"))
	inst.errors, _ = meter.Int64Counter("connmgr.error.count",
		metric.WithDescription("Errors observed by the connection manager"), metric.WithUnit("{error}"))

	return &Metrics{exchange: exchange, instance: instance, inst: inst}
}

func (m *Metrics) attrs(state string) []attribute.KeyValue {
	return telemetry.ConnectionAttributes(m.exchange, m.instance, state)
}

func (m *Metrics) recordSend(n int) {
	m.messagesSent.Add(1)
	m.bytesSent.Add(int64(n))
	m.touch()
}

func (m *Metrics) recordReceive(ctx context.Context, n int) {
	m.messagesReceived.Add(1)
	m.bytesReceived.Add(int64(n))
	m.touch()
	if m.inst.messagesReceived != nil {
		m.inst.messagesReceived.Add(ctx, 1, metric.WithAttributes(m.attrs("connected")...))
	}
	if m.inst.messageBytes != nil {
		m.inst.messageBytes.Record(ctx, int64(n), metric.WithAttributes(m.attrs("connected")...))
	}
}

func (m *Metrics) recordError(ctx context.Context) {
	m.errorCount.Add(1)
	if m.inst.errors != nil {
		m.inst.errors.Add(ctx, 1, metric.WithAttributes(m.attrs("error")...))
	}
}

func (m *Metrics) recordReconnectAttempt(ctx context.Context, delay time.Duration) {
	m.reconnectCount.Add(1)
	if m.inst.reconnects != nil {
		m.inst.reconnects.Add(ctx, 1, metric.WithAttributes(m.attrs("reconnecting")...))
	}
	if m.inst.reconnectDelay != nil {
		m.inst.reconnectDelay.Record(ctx, delay.Seconds(), metric.WithAttributes(m.attrs("reconnecting")...))
	}
}

func (m *Metrics) recordStreamAdd()     { m.streamChanges.Add(1); m.streamAdds.Add(1) }
func (m *Metrics) recordStreamRemove()  { m.streamChanges.Add(1); m.streamRemoves.Add(1) }
func (m *Metrics) recordStreamBatch()   { m.streamMods.Add(1) }

func (m *Metrics) recordRTT(ctx context.Context, rtt time.Duration) {
	const alpha = 0.2
	m.mu.Lock()
	if m.averageRTTms == 0 {
		m.averageRTTms = float64(rtt.Milliseconds())
	} else {
		m.averageRTTms = alpha*float64(rtt.Milliseconds()) + (1-alpha)*m.averageRTTms
	}
	m.mu.Unlock()
	if m.inst.pingLatency != nil {
		m.inst.pingLatency.Record(ctx, float64(rtt.Milliseconds()), metric.WithAttributes(m.attrs("connected")...))
	}
}

func (m *Metrics) markConnected() {
	m.mu.Lock()
	m.connectedAt = time.Now()
	m.mu.Unlock()
}

func (m *Metrics) touch() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

// Snapshot is an immutable point-in-time read of Metrics, safe to expose
// over the control plane.
type Snapshot struct {
	MessagesSent     int64
	MessagesReceived int64
	BytesSent        int64
	BytesReceived    int64
	ErrorCount       int64
	ReconnectCount   int64
	StreamChanges    int64
	StreamAdditions  int64
	StreamRemovals   int64
	StreamMods       int64
	AverageRTTms     float64
	ActiveStreams    int
	ConnectedAt      time.Time
	LastActivity     time.Time
}

func (m *Metrics) Snapshot(activeStreams int) Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		MessagesSent:     m.messagesSent.Load(),
		MessagesReceived: m.messagesReceived.Load(),
		BytesSent:        m.bytesSent.Load(),
		BytesReceived:    m.bytesReceived.Load(),
		ErrorCount:       m.errorCount.Load(),
		ReconnectCount:   m.reconnectCount.Load(),
		StreamChanges:    m.streamChanges.Load(),
		StreamAdditions:  m.streamAdds.Load(),
		StreamRemovals:   m.streamRemoves.Load(),
		StreamMods:       m.streamMods.Load(),
		AverageRTTms:     m.averageRTTms,
		ActiveStreams:    activeStreams,
		ConnectedAt:      m.connectedAt,
		LastActivity:     m.lastActivity,
	}
}
