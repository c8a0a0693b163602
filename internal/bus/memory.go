package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coachpo/feedgate/internal/errs"
)

// MemoryBus is an in-memory implementation of Bus, topic-keyed.
type MemoryBus struct {
	cfg MemoryConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	subscribers  map[string]map[SubscriptionID]*subscriber
	shutdownOnce sync.Once
	nextID       uint64
}

type subscriber struct {
	ctx    context.Context
	cancel context.CancelFunc
	ch     chan *Record
	once   sync.Once
}

// NewMemoryBus constructs a memory-backed bus.
func NewMemoryBus(cfg MemoryConfig) *MemoryBus {
	cfg = cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryBus{
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[string]map[SubscriptionID]*subscriber),
	}
}

// Publish fans the record out to every subscriber of topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, rec *Record) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if rec == nil {
		return nil
	}
	if topic == "" {
		return errs.New("bus/publish", errs.CodeInvalid, errs.WithMessage("topic required"))
	}
	if b.ctx.Err() != nil {
		return errs.New("bus/publish", errs.CodeUnavailable, errs.WithMessage("bus closed"))
	}

	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subscribers[topic]))
	for _, sub := range b.subscribers[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := b.deliver(ctx, sub, rec); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers for records on topic.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (SubscriptionID, <-chan *Record, error) {
	if topic == "" {
		return "", nil, errs.New("bus/subscribe", errs.CodeInvalid, errs.WithMessage("topic required"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	sub := &subscriber{
		ctx:    ctx,
		cancel: cancel,
		ch:     make(chan *Record, b.cfg.BufferSize),
	}
	id := SubscriptionID(fmt.Sprintf("sub-%d", atomic.AddUint64(&b.nextID, 1)))

	b.mu.Lock()
	if _, ok := b.subscribers[topic]; !ok {
		b.subscribers[topic] = make(map[SubscriptionID]*subscriber)
	}
	b.subscribers[topic][id] = sub
	b.mu.Unlock()

	go b.observe(topic, id, sub)
	return id, sub.ch, nil
}

// Unsubscribe removes the subscription and closes its channel.
func (b *MemoryBus) Unsubscribe(id SubscriptionID) {
	if id == "" {
		return
	}
	b.mu.Lock()
	for topic, subs := range b.subscribers {
		if sub, ok := subs[id]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.subscribers, topic)
			}
			b.mu.Unlock()
			sub.close()
			return
		}
	}
	b.mu.Unlock()
}

// Close shuts down the bus and every live subscription.
func (b *MemoryBus) Close() {
	b.shutdownOnce.Do(func() {
		b.cancel()
		b.mu.Lock()
		for topic, subs := range b.subscribers {
			for id, sub := range subs {
				sub.close()
				delete(subs, id)
			}
			delete(b.subscribers, topic)
		}
		b.mu.Unlock()
	})
}

func (b *MemoryBus) observe(topic string, id SubscriptionID, sub *subscriber) {
	<-sub.ctx.Done()
	b.mu.Lock()
	if subs := b.subscribers[topic]; subs != nil {
		if stored, ok := subs[id]; ok && stored == sub {
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.subscribers, topic)
			}
		}
	}
	b.mu.Unlock()
	sub.close()
}

func (b *MemoryBus) deliver(ctx context.Context, sub *subscriber, rec *Record) error {
	if err := sub.ctx.Err(); err != nil {
		return nil
	}
	select {
	case <-b.ctx.Done():
		return errs.New("bus/publish", errs.CodeUnavailable, errs.WithMessage("bus closed"))
	case <-ctx.Done():
		return fmt.Errorf("bus: deliver context: %w", ctx.Err())
	case <-sub.ctx.Done():
		return nil
	case sub.ch <- rec.Clone():
		return nil
	default:
		return errs.New("bus/publish", errs.CodeUnavailable, errs.WithMessage("subscriber buffer full"))
	}
}

func (s *subscriber) close() {
	s.once.Do(func() {
		s.cancel()
		close(s.ch)
	})
}
