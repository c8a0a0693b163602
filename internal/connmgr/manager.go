package connmgr

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/coachpo/feedgate/internal/config"
)

// MessageHandler receives raw frames read off the socket while CONNECTED.
type MessageHandler func([]byte)

// EventHandler receives lifecycle notifications. Must not block.
type EventHandler func(Event)

// Manager owns a single WebSocket connection, its state machine, heartbeat,
// reconnect policy, and stream set (spec.md §4.1). A Manager is created by
// an Adapter and torn down exclusively via Destroy.
type Manager struct {
	exchange string
	instance string
	cfg      config.ConnectionConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.RWMutex
	state         State
	conn          *websocket.Conn
	attempt       int
	heartbeatIntv time.Duration

	streams        *StreamSet
	connectedURL   string
	breaker        *circuitBreaker
	metrics        *Metrics
	controlLimiter *rate.Limiter

	onMessage MessageHandler
	onEvent   EventHandler

	batchMu    sync.Mutex
	batchTimer *time.Timer

	reconnectMu      sync.Mutex
	reconnectPending bool

	destroyed bool

	rng *rand.Rand
}

// New constructs a Manager for one exchange/instance pair. The Manager does
// not connect until Connect is called.
func New(exchange, instance string, cfg config.ConnectionConfig, onMessage MessageHandler, onEvent EventHandler) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		exchange:       exchange,
		instance:       instance,
		cfg:            cfg,
		ctx:            ctx,
		cancel:         cancel,
		state:          StateIdle,
		heartbeatIntv:  cfg.HeartbeatInterval,
		streams:        NewStreamSet(),
		breaker:        newCircuitBreaker(cfg.Retry.CircuitThreshold, cfg.Retry.CircuitWindow, cfg.Retry.CircuitCooldown),
		metrics:        NewMetrics(exchange, instance),
		controlLimiter: newControlLimiter(cfg.CombinedStream),
		onMessage:      onMessage,
		onEvent:        onEvent,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	return m
}

// newControlLimiter builds the token-bucket pacing outbound stream
// control operations, replacing the teacher's hand-rolled
// waitForControlWindowLocked timestamp check with rate.Limiter.
func newControlLimiter(cfg config.CombinedStreamConfig) *rate.Limiter {
	perSecond := cfg.ControlMessagesPerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := cfg.ControlBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// State returns the Manager's current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// GetActiveStreams returns a snapshot of the current stream set.
func (m *Manager) GetActiveStreams() []string {
	return m.streams.Snapshot()
}

// Snapshot returns the Manager's metrics.
func (m *Manager) Snapshot() Snapshot {
	return m.metrics.Snapshot(m.streams.Len())
}

// SetHeartbeatInterval updates the heartbeat interval used starting from
// the next ping cycle.
func (m *Manager) SetHeartbeatInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.heartbeatIntv = d
	m.mu.Unlock()
}

// transition moves the Manager to next, emitting statusChange followed by
// any event-specific notification. Never observes the same state twice in
// a row as a change event.
func (m *Manager) transition(next State, evt EventType, err error) {
	m.mu.Lock()
	prev := m.state
	if prev == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	m.mu.Unlock()

	m.emit(Event{Type: EventStatusChange, State: next, Previous: prev})
	if evt != "" {
		m.emit(Event{Type: evt, State: next, Previous: prev, Err: err})
	}
}

func (m *Manager) emit(evt Event) {
	if m.onEvent == nil {
		return
	}
	m.onEvent(evt)
}

func (m *Manager) isDestroyed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.destroyed
}

// Connect dials the socket and resolves once CONNECTED, starting the
// heartbeat and read loops. Fails with Timeout, ConnectFailed, or
// InvalidConfig.
func (m *Manager) Connect(ctx context.Context) error {
	if m.isDestroyed() {
		return errDestroyed()
	}
	if m.cfg.URL == "" {
		return errInvalidConfig("connection url must not be empty")
	}
	if !m.breaker.allow() {
		return errCircuitOpen()
	}

	m.transition(StateConnecting, "", nil)

	conn, err := m.dial(ctx)
	if err != nil {
		m.breaker.recordFailure()
		m.metrics.recordError(ctx)
		m.transition(StateError, EventError, err)
		if errors.Is(err, context.DeadlineExceeded) {
			return errTimeout("connect timed out")
		}
		return errConnectFailed(err)
	}

	m.breaker.recordSuccess()
	m.mu.Lock()
	m.conn = conn
	m.attempt = 0
	m.connectedURL, _ = BuildURL(m.cfg.URL, m.streams.Snapshot())
	m.mu.Unlock()
	m.metrics.markConnected()

	m.transition(StateConnected, EventConnected, nil)
	m.runConnectionLoops(conn)
	return nil
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	streams := m.streams.Snapshot()
	target, err := BuildURL(m.cfg.URL, streams)
	if err != nil {
		return nil, err
	}

	timeout := m.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := &websocket.DialOptions{}
	if len(m.cfg.Headers) > 0 {
		header := make(http.Header, len(m.cfg.Headers))
		for k, v := range m.cfg.Headers {
			header.Set(k, v)
		}
		opts.HTTPHeader = header
	}
	conn, _, err := websocket.Dial(dialCtx, target, opts)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// runConnectionLoops starts the read and heartbeat loops for conn and
// blocks in the background until the connection ends, at which point it
// drives the RECONNECTING transition and kicks off the reconnect loop.
func (m *Manager) runConnectionLoops(conn *websocket.Conn) {
	connCtx, connCancel := context.WithCancel(m.ctx)
	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		errCh <- m.readLoop(connCtx, conn)
	}()
	go func() {
		defer wg.Done()
		errCh <- m.heartbeatLoop(connCtx, conn)
	}()

	go func() {
		first := <-errCh
		connCancel()
		wg.Wait()
		close(errCh)

		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		closing := m.state == StateClosing
		m.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")

		if m.isDestroyed() {
			return
		}
		if closing {
			m.transition(StateDisconnected, EventDisconnected, nil)
			return
		}
		if errors.Is(first, context.Canceled) {
			return
		}

		heartbeatFailed := errors.Is(first, errHeartbeatTimeoutSentinel)
		evt := EventError
		if heartbeatFailed {
			evt = EventHeartbeatTimeout
		}
		m.transition(StateReconnecting, evt, first)
		if m.beginReconnect() {
			m.reconnectLoop()
			m.endReconnect()
		}
	}()
}

// beginReconnect claims the Manager's single reconnect slot, returning
// false if a reconnect cycle is already in flight. A caller that loses
// the race coalesces into the in-flight attempt instead of racing it on
// m.conn and m.attempt.
func (m *Manager) beginReconnect() bool {
	m.reconnectMu.Lock()
	defer m.reconnectMu.Unlock()
	if m.reconnectPending {
		return false
	}
	m.reconnectPending = true
	return true
}

func (m *Manager) endReconnect() {
	m.reconnectMu.Lock()
	m.reconnectPending = false
	m.reconnectMu.Unlock()
}

var errHeartbeatTimeoutSentinel = errors.New("heartbeat timeout")

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return context.Canceled
			}
			return fmt.Errorf("connmgr: read: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}
		m.metrics.recordReceive(ctx, len(data))
		if m.onMessage != nil {
			m.onMessage(data)
		}
	}
}

func (m *Manager) heartbeatLoop(ctx context.Context, conn *websocket.Conn) error {
	m.mu.RLock()
	interval := m.heartbeatIntv
	m.mu.RUnlock()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case <-ticker.C:
			timeout := m.cfg.HeartbeatTimeout
			if timeout <= 0 {
				timeout = 5 * time.Second
			}
			pingCtx, cancel := context.WithTimeout(ctx, timeout)
			start := time.Now()
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return context.Canceled
				}
				return errHeartbeatTimeoutSentinel
			}
			m.metrics.recordRTT(ctx, time.Since(start))

			m.mu.RLock()
			next := m.heartbeatIntv
			m.mu.RUnlock()
			if next != interval && next > 0 {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// Ping issues an immediate heartbeat outside the regular ticker, returning
// the measured RTT.
func (m *Manager) Ping(ctx context.Context) (time.Duration, error) {
	m.mu.RLock()
	conn := m.conn
	state := m.state
	m.mu.RUnlock()
	if state != StateConnected || conn == nil {
		return 0, errNotOpen()
	}

	timeout := m.cfg.HeartbeatTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := conn.Ping(pingCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, errTimeout("ping timed out")
		}
		return 0, errNetworkIssue(err)
	}
	rtt := time.Since(start)
	m.metrics.recordRTT(ctx, rtt)
	return rtt, nil
}

// Send writes payload to the socket as a control frame, paced by
// controlLimiter so a burst of subscribe/unsubscribe requests can't
// exceed the exchange's control-message budget. Fails with NotOpen
// unless CONNECTED.
func (m *Manager) Send(ctx context.Context, payload []byte) error {
	m.mu.RLock()
	conn := m.conn
	state := m.state
	m.mu.RUnlock()
	if state != StateConnected || conn == nil {
		return errNotOpen()
	}
	if err := m.controlLimiter.Wait(ctx); err != nil {
		return errNetworkIssue(err)
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return errNetworkIssue(err)
	}
	m.metrics.recordSend(len(payload))
	return nil
}

// reconnectDelay computes attempt n's (1-indexed) backoff delay per
// spec.md §4.1 "Reconnect policy".
func reconnectDelay(policy config.RetryPolicy, attempt int, rng *rand.Rand) time.Duration {
	base := policy.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	backoffBase := policy.BackoffBase
	if backoffBase <= 0 {
		backoffBase = 2.0
	}

	raw := float64(base) * math.Pow(backoffBase, float64(attempt-1))
	delay := time.Duration(math.Min(raw, float64(maxDelay)))

	if policy.JitterOn {
		factor := 0.5 + rng.Float64() // [0.5, 1.5)
		delay = time.Duration(float64(delay) * factor)
	}
	return delay
}

// reconnectLoop retries Connect with backoff until it succeeds, exhausts
// maxRetries, or the Manager is destroyed.
func (m *Manager) reconnectLoop() {
	for {
		if m.isDestroyed() {
			return
		}

		m.mu.Lock()
		m.attempt++
		attempt := m.attempt
		m.mu.Unlock()

		if !m.cfg.Retry.Unlimited() && attempt > m.cfg.Retry.MaxRetries {
			m.transition(StateError, EventError, errReconnectExhausted())
			return
		}

		if !m.breaker.allow() {
			m.transition(StateError, EventError, errCircuitOpen())
			return
		}

		delay := reconnectDelay(m.cfg.Retry, attempt, m.rng)
		m.metrics.recordReconnectAttempt(m.ctx, delay)

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}

		conn, err := m.dial(m.ctx)
		if err != nil {
			m.breaker.recordFailure()
			m.metrics.recordError(m.ctx)
			continue
		}

		m.breaker.recordSuccess()
		m.mu.Lock()
		m.conn = conn
		m.attempt = 0
		m.connectedURL, _ = BuildURL(m.cfg.URL, m.streams.Snapshot())
		m.mu.Unlock()
		m.metrics.markConnected()

		m.transition(StateConnected, EventReconnected, nil)
		m.runConnectionLoops(conn)
		return
	}
}

// Reconnect forces an explicit reconnect cycle, resolving when CONNECTED
// or when retries are exhausted. If a reconnect cycle is already in
// flight (e.g. the background loop started one after a dropped
// connection), this call coalesces into it rather than racing it with a
// second reconnectLoop.
func (m *Manager) Reconnect() error {
	if m.isDestroyed() {
		return errDestroyed()
	}
	m.closeCurrentConn(StateReconnecting, EventReconnecting)
	if !m.beginReconnect() {
		for {
			m.reconnectMu.Lock()
			pending := m.reconnectPending
			m.reconnectMu.Unlock()
			if !pending || m.isDestroyed() {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		if m.State() != StateConnected {
			return errReconnectExhausted()
		}
		return nil
	}
	defer m.endReconnect()
	m.reconnectLoop()
	if m.State() != StateConnected {
		return errReconnectExhausted()
	}
	return nil
}

// Disconnect closes the socket gracefully and resolves once DISCONNECTED.
// Idempotent.
func (m *Manager) Disconnect() error {
	if m.State() == StateDisconnected || m.State() == StateIdle {
		return nil
	}
	m.mu.RLock()
	hasConn := m.conn != nil
	m.mu.RUnlock()
	m.closeCurrentConn(StateClosing, EventDisconnecting)
	if !hasConn {
		m.transition(StateDisconnected, EventDisconnected, nil)
		return nil
	}
	for m.State() == StateClosing && !m.isDestroyed() {
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func (m *Manager) closeCurrentConn(intermediate State, evt EventType) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	m.transition(intermediate, evt, nil)
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "reconnecting")
	}
}

// AddStream mutates the stream set and schedules (or performs) the
// resulting connection update per the combined-stream batching policy.
func (m *Manager) AddStream(name string) error {
	if m.streams.Len() >= m.cfg.CombinedStream.MaxStreams && m.cfg.CombinedStream.MaxStreams > 0 && !m.streams.Contains(name) {
		return errStreamLimitReached(m.cfg.CombinedStream.MaxStreams)
	}
	if !m.streams.Add(name) {
		return nil
	}
	m.metrics.recordStreamAdd()
	m.scheduleStreamUpdate()
	return nil
}

// RemoveStream mutates the stream set, scheduling a batched reconnect the
// same way AddStream does.
func (m *Manager) RemoveStream(name string) error {
	if !m.streams.Remove(name) {
		return nil
	}
	m.metrics.recordStreamRemove()
	m.scheduleStreamUpdate()
	return nil
}

func (m *Manager) scheduleStreamUpdate() {
	if !m.cfg.CombinedStream.AutoManage {
		return
	}
	delay := time.Duration(m.cfg.CombinedStream.BatchDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}

	m.batchMu.Lock()
	defer m.batchMu.Unlock()
	if m.batchTimer != nil {
		return // a batch is already pending; it will pick up this mutation too
	}
	m.batchTimer = time.AfterFunc(delay, func() {
		m.batchMu.Lock()
		m.batchTimer = nil
		m.batchMu.Unlock()
		m.applyStreamBatch()
	})
}

func (m *Manager) applyStreamBatch() {
	if m.isDestroyed() {
		return
	}
	state := m.State()
	if state != StateConnected && state != StateReconnecting {
		return
	}
	if err := m.controlLimiter.Wait(m.ctx); err != nil {
		return
	}
	target, err := BuildURL(m.cfg.URL, m.streams.Snapshot())
	if err != nil {
		return
	}

	m.mu.RLock()
	current := m.connectedURL
	m.mu.RUnlock()
	if target == current {
		return // coalesced mutations canceled each other out; no reconnect needed
	}

	m.metrics.recordStreamBatch()
	_ = m.Reconnect()
}

// Destroy releases all resources unconditionally, terminating timers and
// the socket. Never emits further events.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	m.batchMu.Lock()
	if m.batchTimer != nil {
		m.batchTimer.Stop()
		m.batchTimer = nil
	}
	m.batchMu.Unlock()

	m.cancel()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "destroy")
	}
	m.mu.Lock()
	m.state = StateDisconnected
	m.mu.Unlock()
}
