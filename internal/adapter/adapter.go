// Package adapter implements the generic Exchange Adapter: it owns a
// Connection Manager, translates subscription requests into stream-set
// mutations, and turns raw frames into NormalizedRecords via a pluggable,
// pure parse function (spec.md §4.2).
package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/coachpo/feedgate/internal/bus"
	"github.com/coachpo/feedgate/internal/config"
	"github.com/coachpo/feedgate/internal/connmgr"
	"github.com/coachpo/feedgate/internal/errs"
)

// ParseFunc turns one raw frame into a NormalizedRecord. It must be a pure,
// total function: malformed input returns (nil, false), never a panic or
// exception. The returned record's Exchange field may be left blank — the
// Adapter fills it in from its own configured exchange name.
type ParseFunc func(frame []byte) (*bus.Record, bool)

// EventType names a lifecycle or data notification emitted by an Adapter.
type EventType string

const (
	EventStatusChange EventType = "statusChange"
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventError        EventType = "error"
	EventSubscribed   EventType = "subscribed"
	EventUnsubscribed EventType = "unsubscribed"
	EventData         EventType = "data"
)

// Event is delivered to the Adapter's onEvent callback. Callbacks must not
// block.
type Event struct {
	Type       EventType
	Status     connmgr.State
	Previous   connmgr.State
	Err        error
	Descriptor *SubscriptionDescriptor
	Record     *bus.Record
}

// EventHandler receives Adapter lifecycle and data notifications.
type EventHandler func(Event)

// Config binds an Adapter to one exchange (spec.md §4.2 initialize(cfg)).
type Config struct {
	Exchange   string
	Instance   string
	Connection config.ConnectionConfig
	// StreamName overrides the default lower(symbol)+"@"+lower(dataType) rule.
	StreamName StreamNameFunc
	Parse      ParseFunc
}

// Adapter owns a Connection Manager and the active SubscriptionDescriptor
// set derived from subscribe/unsubscribe calls.
type Adapter struct {
	exchange string
	instance string
	parse    ParseFunc
	nameFn   StreamNameFunc

	mu          sync.RWMutex
	initialized bool
	destroyed   bool
	conn        *connmgr.Manager
	lastState   connmgr.State

	descriptors *descriptorTable
	health      *healthTracker
	latency     *latencyEWMA

	onEvent EventHandler
}

// New constructs an uninitialized Adapter. Call Initialize before use.
func New(onEvent EventHandler) *Adapter {
	return &Adapter{
		descriptors: newDescriptorTable(),
		health:      newHealthTracker(),
		latency:     &latencyEWMA{},
		onEvent:     onEvent,
		lastState:   connmgr.StateIdle,
	}
}

// Initialize binds the Adapter to cfg, constructing its Connection Manager.
// Moves the Adapter to IDLE.
func (a *Adapter) Initialize(cfg Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return errDestroyed()
	}

	nameFn := cfg.StreamName
	if nameFn == nil {
		nameFn = DefaultStreamName
	}
	parse := cfg.Parse
	if parse == nil {
		parse = func([]byte) (*bus.Record, bool) { return nil, false }
	}

	a.exchange = cfg.Exchange
	a.instance = cfg.Instance
	a.nameFn = nameFn
	a.parse = parse
	a.conn = connmgr.New(cfg.Exchange, cfg.Instance, cfg.Connection, a.handleMessage, a.handleConnEvent)
	a.initialized = true
	return nil
}

func (a *Adapter) handleMessage(frame []byte) {
	rec, ok := a.parse(frame)
	if !ok || rec == nil {
		a.health.recordClassified(errs.ClassDataFormat)
		return
	}
	a.emitData(rec)
}

func (a *Adapter) emitData(rec *bus.Record) {
	a.mu.RLock()
	exchange := a.exchange
	a.mu.RUnlock()
	if rec.Exchange == "" {
		rec.Exchange = exchange
	}
	a.health.recordOK()
	a.emit(Event{Type: EventData, Record: rec})
}

func (a *Adapter) handleConnEvent(evt connmgr.Event) {
	switch evt.Type {
	case connmgr.EventStatusChange:
		a.mu.Lock()
		a.lastState = evt.State
		a.mu.Unlock()
		a.emit(Event{Type: EventStatusChange, Status: evt.State, Previous: evt.Previous})
	case connmgr.EventConnected, connmgr.EventReconnected:
		a.emit(Event{Type: EventConnected, Status: evt.State})
	case connmgr.EventDisconnected:
		a.emit(Event{Type: EventDisconnected, Status: evt.State})
	case connmgr.EventError, connmgr.EventHeartbeatTimeout:
		a.health.recordClassified(classify(evt.Err))
		a.emit(Event{Type: EventError, Status: evt.State, Err: evt.Err})
	}
}

func (a *Adapter) emit(evt Event) {
	if a.onEvent == nil {
		return
	}
	a.onEvent(evt)
}

// Connect triggers the Connection Manager's connect.
func (a *Adapter) Connect(ctx context.Context) error {
	conn, err := a.connManager()
	if err != nil {
		return err
	}
	return conn.Connect(ctx)
}

// Disconnect triggers the Connection Manager's disconnect.
func (a *Adapter) Disconnect() error {
	conn, err := a.connManager()
	if err != nil {
		return err
	}
	return conn.Disconnect()
}

// Subscribe creates a SubscriptionDescriptor for every (symbol, dataType)
// pair and adds the resulting stream names to the Connection Manager's
// StreamSet.
func (a *Adapter) Subscribe(symbols []string, dataTypes []bus.DataType) ([]SubscriptionDescriptor, error) {
	conn, err := a.connManager()
	if err != nil {
		return nil, err
	}
	a.mu.RLock()
	nameFn := a.nameFn
	a.mu.RUnlock()

	created := make([]SubscriptionDescriptor, 0, len(symbols)*len(dataTypes))
	for _, symbol := range symbols {
		for _, dt := range dataTypes {
			d, isNewStream := a.descriptors.add(symbol, dt, nameFn)
			if isNewStream {
				if err := conn.AddStream(d.Stream); err != nil {
					return created, err
				}
			}
			created = append(created, *d)
			a.emit(Event{Type: EventSubscribed, Descriptor: d})
		}
	}
	return created, nil
}

// Unsubscribe removes the named descriptors, recomputing the StreamSet.
func (a *Adapter) Unsubscribe(ids []string) error {
	conn, err := a.connManager()
	if err != nil {
		return err
	}
	removed, drained := a.descriptors.remove(ids)
	for _, stream := range drained {
		if err := conn.RemoveStream(stream); err != nil {
			return err
		}
	}
	for _, d := range removed {
		a.emit(Event{Type: EventUnsubscribed, Descriptor: d})
	}
	return nil
}

// UnsubscribeAll removes every descriptor and empties the StreamSet.
func (a *Adapter) UnsubscribeAll() error {
	conn, err := a.connManager()
	if err != nil {
		return err
	}
	removed, streams := a.descriptors.clear()
	for _, stream := range streams {
		if err := conn.RemoveStream(stream); err != nil {
			return err
		}
	}
	for _, d := range removed {
		a.emit(Event{Type: EventUnsubscribed, Descriptor: d})
	}
	return nil
}

// ParseMessage exposes the bound ParseFunc directly, for callers (tests,
// offline tooling) that want to run it outside the live message loop.
func (a *Adapter) ParseMessage(frame []byte) (*bus.Record, bool) {
	a.mu.RLock()
	parse := a.parse
	exchange := a.exchange
	a.mu.RUnlock()
	if parse == nil {
		return nil, false
	}
	rec, ok := parse(frame)
	if ok && rec != nil && rec.Exchange == "" {
		rec.Exchange = exchange
	}
	return rec, ok
}

// GetStatus aggregates Connection Manager state and recent error/latency
// statistics into an AdapterStatus.
func (a *Adapter) GetStatus() Status {
	conn, err := a.connManager()
	if err != nil {
		return Status{Status: connmgr.StateIdle, Health: HealthUnhealthy}
	}
	state := conn.State()
	health, errorRate := a.health.snapshot()
	return Status{
		Status:       state,
		Health:       health,
		Connected:    state == connmgr.StateConnected,
		Reconnecting: state == connmgr.StateReconnecting,
		ErrorRate:    errorRate,
		AvgLatencyMs: a.latency.snapshot(),
		RTTMs:        conn.Snapshot().AverageRTTms,
	}
}

// RecordPublishLatency feeds the Integration's observed receivedAt ->
// publishAck duration into the adapter's latency EWMA.
func (a *Adapter) RecordPublishLatency(d time.Duration) {
	a.latency.record(d)
}

// Descriptors lists all currently active subscription descriptors.
func (a *Adapter) Descriptors() []SubscriptionDescriptor {
	return a.descriptors.list()
}

// Destroy tears down the Connection Manager and clears descriptors.
func (a *Adapter) Destroy() {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	a.destroyed = true
	conn := a.conn
	a.mu.Unlock()

	if conn != nil {
		conn.Destroy()
	}
	a.descriptors.clear()
}

func (a *Adapter) connManager() (*connmgr.Manager, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.destroyed {
		return nil, errDestroyed()
	}
	if !a.initialized || a.conn == nil {
		return nil, errNotInitialized()
	}
	return a.conn, nil
}
