package registry

import (
	"context"
	"testing"

	"github.com/coachpo/feedgate/internal/adapter"
	"github.com/coachpo/feedgate/internal/bus"
	"github.com/coachpo/feedgate/internal/config"
	"github.com/coachpo/feedgate/internal/publisher"
)

func fakeFactory() (adapter.ParseFunc, adapter.StreamNameFunc) {
	return func(frame []byte) (*bus.Record, bool) {
		return &bus.Record{Exchange: "binance", Symbol: "BTCUSDT", Type: bus.DataTypeTrade, ReceivedAt: bus.Now()}, true
	}, adapter.DefaultStreamName
}

func testIntegrationConfig(name string) config.IntegrationConfig {
	cfg := config.DefaultIntegrationConfig(name, "binance", "wss://stream.example.com")
	cfg.Connection.CombinedStream.AutoManage = false
	return cfg
}

func testPublisher() *publisher.Publisher {
	return publisher.New(bus.NewMemoryBus(bus.MemoryConfig{}), config.DefaultPublisherConfig(), 1)
}

func TestRegisterIsIdempotentOnIdenticalEntries(t *testing.T) {
	r := New()
	entry := Entry{Description: "Binance", Version: "1.0", Enabled: true}
	if err := r.Register("binance", fakeFactory, entry); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := r.Register("binance", fakeFactory, entry); err != nil {
		t.Fatalf("re-registering an identical entry should be a no-op, got %v", err)
	}
}

func TestRegisterRejectsConflictingEntry(t *testing.T) {
	r := New()
	if err := r.Register("binance", fakeFactory, Entry{Enabled: true}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("binance", fakeFactory, Entry{Enabled: false}); err == nil {
		t.Fatalf("expected a conflicting re-registration to fail")
	}
}

func TestUnregisterFailsWithLiveInstance(t *testing.T) {
	r := New()
	if err := r.Register("binance", fakeFactory, Entry{Enabled: true}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	pub := testPublisher()
	if err := r.CreateInstance(context.Background(), "binance", testIntegrationConfig("binance"), pub); err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	if err := r.Unregister("binance"); err == nil {
		t.Fatalf("expected Unregister to fail while an instance exists")
	}
	if err := r.DestroyInstance("binance"); err != nil {
		t.Fatalf("DestroyInstance failed: %v", err)
	}
	if err := r.Unregister("binance"); err != nil {
		t.Fatalf("Unregister after DestroyInstance failed: %v", err)
	}
}

func TestInstanceLifecycleThroughRegistry(t *testing.T) {
	r := New()
	if err := r.Register("binance", fakeFactory, Entry{Enabled: true}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	pub := testPublisher()
	if err := r.CreateInstance(context.Background(), "binance", testIntegrationConfig("binance"), pub); err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	if err := r.CreateInstance(context.Background(), "binance", testIntegrationConfig("binance"), pub); err == nil {
		t.Fatalf("expected a second CreateInstance for the same name to fail")
	}

	if err := r.StartInstance(context.Background(), "binance"); err != nil {
		t.Fatalf("StartInstance failed: %v", err)
	}
	if err := r.StartInstance(context.Background(), "binance"); err == nil {
		t.Fatalf("expected a second StartInstance to fail")
	}

	status := r.GetStatus()
	if status.RunningInstances != 1 {
		t.Fatalf("expected 1 running instance, got %d", status.RunningInstances)
	}

	if err := r.StopInstance(context.Background(), "binance"); err != nil {
		t.Fatalf("StopInstance failed: %v", err)
	}
	if err := r.StopInstance(context.Background(), "binance"); err == nil {
		t.Fatalf("expected StopInstance on a non-running instance to fail")
	}

	if err := r.DestroyInstance("binance"); err != nil {
		t.Fatalf("DestroyInstance failed: %v", err)
	}
	if _, ok := r.GetInstance("binance"); ok {
		t.Fatalf("expected GetInstance to report absent after DestroyInstance")
	}
}

func TestSetAdapterEnabledTogglesWithoutAffectingInstances(t *testing.T) {
	r := New()
	if err := r.Register("binance", fakeFactory, Entry{Enabled: true}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.SetAdapterEnabled("binance", false); err != nil {
		t.Fatalf("SetAdapterEnabled failed: %v", err)
	}
	entry, ok := r.GetRegistryEntry("binance")
	if !ok || entry.Enabled {
		t.Fatalf("expected entry.Enabled=false after SetAdapterEnabled, got %+v", entry)
	}
}

func TestStartAutoAdaptersStartsOnlyEnabledEntries(t *testing.T) {
	r := New()
	if err := r.Register("binance", fakeFactory, Entry{Enabled: true}); err != nil {
		t.Fatalf("Register binance failed: %v", err)
	}
	if err := r.Register("okx", fakeFactory, Entry{Enabled: false}); err != nil {
		t.Fatalf("Register okx failed: %v", err)
	}
	pub := testPublisher()
	configs := map[string]config.IntegrationConfig{
		"binance": testIntegrationConfig("binance"),
		"okx":     testIntegrationConfig("okx"),
	}

	results := r.StartAutoAdapters(context.Background(), configs, pub)
	if err, ok := results["binance"]; !ok || err != nil {
		t.Fatalf("expected binance to start cleanly, got %v", err)
	}
	if _, ok := results["okx"]; ok {
		t.Fatalf("expected okx (disabled) to be skipped entirely")
	}
	if _, ok := r.GetInstance("okx"); ok {
		t.Fatalf("expected no instance created for a disabled entry")
	}
}

func TestRegistryEventsEmitInOrder(t *testing.T) {
	r := New()
	var events []EventType
	r.Subscribe(func(evt Event) { events = append(events, evt.Type) })

	if err := r.Register("binance", fakeFactory, Entry{Enabled: true}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	pub := testPublisher()
	if err := r.CreateInstance(context.Background(), "binance", testIntegrationConfig("binance"), pub); err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	if err := r.StartInstance(context.Background(), "binance"); err != nil {
		t.Fatalf("StartInstance failed: %v", err)
	}
	if err := r.StopInstance(context.Background(), "binance"); err != nil {
		t.Fatalf("StopInstance failed: %v", err)
	}
	if err := r.DestroyInstance("binance"); err != nil {
		t.Fatalf("DestroyInstance failed: %v", err)
	}

	want := []EventType{
		EventInstanceCreated,
		EventInstanceStarted, EventInstanceStatusChange,
		EventInstanceStopped, EventInstanceStatusChange,
		EventInstanceDestroyed,
	}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i, w := range want {
		if events[i] != w {
			t.Errorf("events[%d] = %s, want %s", i, events[i], w)
		}
	}
}

func TestDestroyTearsDownEverything(t *testing.T) {
	r := New()
	if err := r.Register("binance", fakeFactory, Entry{Enabled: true}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	pub := testPublisher()
	if err := r.CreateInstance(context.Background(), "binance", testIntegrationConfig("binance"), pub); err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	if err := r.StartInstance(context.Background(), "binance"); err != nil {
		t.Fatalf("StartInstance failed: %v", err)
	}

	r.Destroy(context.Background())

	if r.HasAdapter("binance") {
		t.Fatalf("expected the catalog to be cleared after Destroy")
	}
	if _, ok := r.GetInstance("binance"); ok {
		t.Fatalf("expected no instances after Destroy")
	}
}
