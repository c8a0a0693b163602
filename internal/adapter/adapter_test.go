package adapter

import (
	"testing"

	"github.com/coachpo/feedgate/internal/bus"
	"github.com/coachpo/feedgate/internal/config"
)

func newTestAdapter(t *testing.T, onEvent EventHandler) *Adapter {
	t.Helper()
	a := New(onEvent)
	cfg := Config{
		Exchange:   "binance",
		Instance:   "test",
		Connection: config.DefaultConnectionConfig("wss://stream.example.com"),
	}
	cfg.Connection.CombinedStream.AutoManage = false
	if err := a.Initialize(cfg); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return a
}

func TestAdapterSubscribeAddsDescriptorsAndStreams(t *testing.T) {
	a := newTestAdapter(t, nil)
	descs, err := a.Subscribe([]string{"BTCUSDT", "ETHUSDT"}, []bus.DataType{bus.DataTypeTrade, bus.DataTypeTicker})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if len(descs) != 4 {
		t.Fatalf("expected 4 descriptors (2 symbols x 2 types), got %d", len(descs))
	}
}

func TestAdapterUnsubscribeAllEmptiesStreamSet(t *testing.T) {
	a := newTestAdapter(t, nil)
	_, err := a.Subscribe([]string{"BTCUSDT"}, []bus.DataType{bus.DataTypeTrade, bus.DataTypeTicker})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if len(a.Descriptors()) != 2 {
		t.Fatalf("expected 2 active descriptors before unsubscribeAll")
	}

	if err := a.UnsubscribeAll(); err != nil {
		t.Fatalf("UnsubscribeAll failed: %v", err)
	}
	if len(a.Descriptors()) != 0 {
		t.Fatalf("expected 0 descriptors after unsubscribeAll")
	}
}

func TestAdapterOperationsFailBeforeInitialize(t *testing.T) {
	a := New(nil)
	if _, err := a.Subscribe([]string{"BTCUSDT"}, []bus.DataType{bus.DataTypeTrade}); err == nil {
		t.Fatalf("expected Subscribe on an uninitialized adapter to fail")
	}
}

func TestAdapterOperationsFailAfterDestroy(t *testing.T) {
	a := newTestAdapter(t, nil)
	a.Destroy()
	a.Destroy() // idempotent

	if _, err := a.Subscribe([]string{"BTCUSDT"}, []bus.DataType{bus.DataTypeTrade}); err == nil {
		t.Fatalf("expected Subscribe on a destroyed adapter to fail")
	}
}

func TestAdapterParseMessageFillsExchange(t *testing.T) {
	a := New(nil)
	cfg := Config{
		Exchange: "binance",
		Instance: "test",
		Parse: func(frame []byte) (*bus.Record, bool) {
			return &bus.Record{Symbol: "BTCUSDT", Type: bus.DataTypeTicker}, true
		},
	}
	if err := a.Initialize(cfg); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	rec, ok := a.ParseMessage([]byte(`irrelevant`))
	if !ok {
		t.Fatalf("expected ParseMessage to succeed")
	}
	if rec.Exchange != "binance" {
		t.Errorf("Exchange = %q, want binance", rec.Exchange)
	}
}

func TestAdapterGetStatusReflectsHealth(t *testing.T) {
	a := newTestAdapter(t, nil)
	status := a.GetStatus()
	if status.Health != HealthHealthy {
		t.Errorf("expected a fresh adapter to report healthy, got %s", status.Health)
	}
}
