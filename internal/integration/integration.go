// Package integration implements the Adapter Integration component
// (spec.md §4.4): binds one Exchange Adapter to one Publisher, routes
// each data event to a topic, and tracks per-instance metrics.
package integration

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coachpo/feedgate/internal/adapter"
	"github.com/coachpo/feedgate/internal/bus"
	"github.com/coachpo/feedgate/internal/config"
	"github.com/coachpo/feedgate/internal/publisher"
)

// State is the Integration's lifecycle state.
type State string

const (
	StateCreated   State = "created"
	StateRunning   State = "running"
	StateStopped   State = "stopped"
	StateDestroyed State = "destroyed"
)

// EventType enumerates the events an Integration emits.
type EventType string

const (
	EventStarted EventType = "started"
	EventStopped EventType = "stopped"
	EventAdapter EventType = "adapter" // wraps an underlying adapter.Event
)

// Event is delivered to an Integration's EventHandler.
type Event struct {
	Type    EventType
	Adapter *adapter.Event
}

// EventHandler observes Integration lifecycle and adapter events.
type EventHandler func(Event)

// Metrics is the per-instance metric set spec.md §4.4 names:
// {adapterStatus, messagesProcessed, messagesPublished, processingErrors,
// publishErrors, averageProcessingLatency, lastActivity}.
type Metrics struct {
	AdapterStatus              adapter.Status
	MessagesProcessed          int64
	MessagesPublished          int64
	ProcessingErrors           int64
	PublishErrors              int64
	AverageProcessingLatencyMs float64
	LastActivity               time.Time
}

// Integration binds an Adapter and a Publisher per spec.md §4.4.
type Integration struct {
	cfg config.IntegrationConfig
	adp *adapter.Adapter
	pub *publisher.Publisher

	onEvent EventHandler

	mu    sync.RWMutex
	state State

	messagesProcessed atomic.Int64
	messagesPublished atomic.Int64
	processingErrors  atomic.Int64
	publishErrors     atomic.Int64
	lastActivityMs    atomic.Int64

	latency *latencyEWMA
}

// New constructs and initializes an Integration: it builds the Adapter
// wired to this Integration's event handler and calls Adapter.Initialize
// with the connection settings and exchange-specific parse/stream-name
// functions from cfg (spec.md §4.4 "initialize(cfg)").
func New(cfg config.IntegrationConfig, parse adapter.ParseFunc, streamName adapter.StreamNameFunc, pub *publisher.Publisher, onEvent EventHandler) (*Integration, error) {
	integ := &Integration{
		cfg:     cfg,
		pub:     pub,
		onEvent: onEvent,
		state:   StateCreated,
		latency: newLatencyEWMA(),
	}
	integ.adp = adapter.New(integ.handleAdapterEvent)

	adapterCfg := adapter.Config{
		Exchange:   cfg.Adapter,
		Instance:   cfg.Name,
		Connection: cfg.Connection,
		StreamName: streamName,
		Parse:      parse,
	}
	if err := integ.adp.Initialize(adapterCfg); err != nil {
		return nil, err
	}
	return integ, nil
}

// Name returns the integration's instance name.
func (i *Integration) Name() string {
	return i.cfg.Name
}

// State reports the current lifecycle state.
func (i *Integration) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// Start opens the adapter connection and, if configured, its default
// subscription (spec.md §4.4 "start()").
func (i *Integration) Start(ctx context.Context) error {
	i.mu.Lock()
	switch i.state {
	case StateRunning:
		i.mu.Unlock()
		return errAlreadyRunning()
	case StateDestroyed:
		i.mu.Unlock()
		return errDestroyed()
	}
	i.mu.Unlock()

	if err := i.adp.Connect(ctx); err != nil {
		return err
	}

	if len(i.cfg.DefaultSubscribe.Symbols) > 0 {
		types := dataTypesFromStrings(i.cfg.DefaultSubscribe.DataTypes)
		if _, err := i.adp.Subscribe(i.cfg.DefaultSubscribe.Symbols, types); err != nil {
			return err
		}
	}

	i.mu.Lock()
	i.state = StateRunning
	i.mu.Unlock()
	i.emit(Event{Type: EventStarted})
	return nil
}

// Stop unsubscribes, disconnects, and flushes pending publishes
// (spec.md §4.4 "stop()"). If the adapter does not disconnect within
// StopGracePeriod, Stop forces termination by destroying the adapter.
func (i *Integration) Stop(ctx context.Context) error {
	i.mu.Lock()
	if i.state != StateRunning {
		i.mu.Unlock()
		return errNotRunning()
	}
	i.state = StateStopped
	i.mu.Unlock()

	_ = i.adp.UnsubscribeAll()

	grace := i.cfg.StopGracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}
	done := make(chan error, 1)
	go func() { done <- i.adp.Disconnect() }()
	select {
	case <-done:
	case <-time.After(grace):
		i.adp.Destroy()
	}

	if i.pub != nil {
		i.pub.Flush()
	}
	i.emit(Event{Type: EventStopped})
	return nil
}

// Destroy is idempotent and releases all resources (spec.md §4.4
// "destroy()").
func (i *Integration) Destroy() {
	i.mu.Lock()
	if i.state == StateDestroyed {
		i.mu.Unlock()
		return
	}
	i.state = StateDestroyed
	i.mu.Unlock()

	i.adp.Destroy()
	if i.pub != nil {
		i.pub.Close()
	}
}

// GetMetrics returns a point-in-time read of the instance's metrics.
func (i *Integration) GetMetrics() Metrics {
	return Metrics{
		AdapterStatus:              i.adp.GetStatus(),
		MessagesProcessed:          i.messagesProcessed.Load(),
		MessagesPublished:          i.messagesPublished.Load(),
		ProcessingErrors:           i.processingErrors.Load(),
		PublishErrors:              i.publishErrors.Load(),
		AverageProcessingLatencyMs: i.latency.snapshot(),
		LastActivity:               i.lastActivity(),
	}
}

func (i *Integration) handleAdapterEvent(evt adapter.Event) {
	if evt.Type == adapter.EventData {
		i.processRecord(evt.Record)
	}
	if evt.Type == adapter.EventError {
		i.processingErrors.Add(1)
	}
	i.emit(Event{Type: EventAdapter, Adapter: &evt})
}

func (i *Integration) processRecord(rec *bus.Record) {
	if rec == nil || i.pub == nil {
		return
	}
	i.messagesProcessed.Add(1)
	i.touch()

	topic := publisher.Topic(i.cfg.Publisher.TopicPrefix, rec.Exchange, rec.Type)
	done, err := i.pub.Publish(context.Background(), topic, rec)
	if err != nil {
		i.publishErrors.Add(1)
		return
	}
	go i.awaitAck(done, rec.ReceivedAt)
}

func (i *Integration) awaitAck(done <-chan error, receivedAt int64) {
	err := <-done
	if err != nil {
		i.publishErrors.Add(1)
		return
	}
	i.messagesPublished.Add(1)
	if receivedAt > 0 {
		i.latency.record(time.Duration(bus.Now()-receivedAt) * time.Millisecond)
	}
}

func (i *Integration) touch() {
	i.lastActivityMs.Store(bus.Now())
}

func (i *Integration) lastActivity() time.Time {
	ms := i.lastActivityMs.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (i *Integration) emit(evt Event) {
	if i.onEvent != nil {
		i.onEvent(evt)
	}
}

func dataTypesFromStrings(values []string) []bus.DataType {
	out := make([]bus.DataType, 0, len(values))
	for _, v := range values {
		out = append(out, bus.DataType(strings.ToUpper(strings.TrimSpace(v))))
	}
	return out
}
