package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coachpo/feedgate/internal/bus"
	"github.com/coachpo/feedgate/internal/config"
)

type recordingBus struct {
	mu    sync.Mutex
	calls [][]*bus.Record
	fail  int // number of leading Publish calls to fail
}

func (b *recordingBus) Publish(_ context.Context, _ string, rec *bus.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail > 0 {
		b.fail--
		return errTopicRequired() // any error value works for the test
	}
	b.calls = append(b.calls, []*bus.Record{rec})
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (bus.SubscriptionID, <-chan *bus.Record, error) {
	return "", nil, nil
}
func (b *recordingBus) Unsubscribe(bus.SubscriptionID) {}
func (b *recordingBus) Close()                         {}

func (b *recordingBus) flat() []*bus.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*bus.Record, 0)
	for _, batch := range b.calls {
		out = append(out, batch...)
	}
	return out
}

func testConfig() config.PublisherConfig {
	return config.PublisherConfig{
		EnableBatching: true,
		BatchSize:      2,
		BatchTimeout:   20 * time.Millisecond,
		MaxRetries:     2,
		InitialDelay:   time.Millisecond,
		MaxRetryDelay:  5 * time.Millisecond,
		TopicPrefix:    "market-data",
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestPublisherFlushesOnBatchSize(t *testing.T) {
	b := &recordingBus{}
	p := New(b, testConfig(), 1)

	done1, err := p.Publish(context.Background(), "market-data.binance.trade", &bus.Record{Symbol: "A"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	done2, err := p.Publish(context.Background(), "market-data.binance.trade", &bus.Record{Symbol: "B"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if err := <-done1; err != nil {
		t.Errorf("done1 = %v, want nil", err)
	}
	if err := <-done2; err != nil {
		t.Errorf("done2 = %v, want nil", err)
	}
	if len(b.flat()) != 2 {
		t.Fatalf("expected 2 published records, got %d", len(b.flat()))
	}
}

func TestPublisherFlushesOnTimeout(t *testing.T) {
	b := &recordingBus{}
	cfg := testConfig()
	cfg.BatchSize = 10
	p := New(b, cfg, 1)

	done, err := p.Publish(context.Background(), "market-data.binance.trade", &bus.Record{Symbol: "A"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected the batch timeout to flush the single pending record")
	}
}

func TestPublisherPreservesOrderWithinTopic(t *testing.T) {
	b := &recordingBus{}
	cfg := testConfig()
	cfg.EnableBatching = false
	p := New(b, cfg, 1)

	const n = 20
	dones := make([]<-chan error, n)
	for i := 0; i < n; i++ {
		rec := &bus.Record{Timestamp: int64(i)}
		d, err := p.Publish(context.Background(), "market-data.binance.trade", rec)
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		dones[i] = d
	}
	for _, d := range dones {
		<-d
	}

	records := b.flat()
	if len(records) != n {
		t.Fatalf("expected %d records, got %d", n, len(records))
	}
	for i, rec := range records {
		if rec.Timestamp != int64(i) {
			t.Fatalf("record %d out of order: timestamp=%d", i, rec.Timestamp)
		}
	}
}

func TestPublisherDropsAfterRetryExhaustion(t *testing.T) {
	b := &recordingBus{fail: 10}
	cfg := testConfig()
	cfg.EnableBatching = false
	cfg.MaxRetries = 1
	p := New(b, cfg, 1)

	done, err := p.Publish(context.Background(), "market-data.binance.trade", &bus.Record{Symbol: "A"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := <-done; err == nil {
		t.Fatalf("expected the record to fail after retries are exhausted")
	}

	waitFor(t, func() bool { return p.Snapshot().Errors == 1 })
	if got := p.Snapshot().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestPublisherRejectsEmptyTopic(t *testing.T) {
	p := New(&recordingBus{}, testConfig(), 1)
	if _, err := p.Publish(context.Background(), "", &bus.Record{}); err == nil {
		t.Fatalf("expected an empty topic to be rejected")
	}
}

func TestPublisherRejectsAfterClose(t *testing.T) {
	p := New(&recordingBus{}, testConfig(), 1)
	p.Close()
	if _, err := p.Publish(context.Background(), "market-data.binance.trade", &bus.Record{}); err == nil {
		t.Fatalf("expected Publish to fail after Close")
	}
}

func TestTopicNaming(t *testing.T) {
	if got := Topic("market-data", "binance", bus.DataTypeTrade); got != "market-data.binance.TRADE" {
		t.Errorf("Topic() = %q, want market-data.binance.TRADE", got)
	}
}
