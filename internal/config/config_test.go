package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConnectionConfig(t *testing.T) {
	cfg := DefaultConnectionConfig("wss://stream.binance.com:9443")
	if cfg.URL != "wss://stream.binance.com:9443" {
		t.Fatalf("unexpected URL: %s", cfg.URL)
	}
	if cfg.HeartbeatInterval <= cfg.HeartbeatTimeout {
		t.Fatalf("heartbeat interval must exceed heartbeat timeout by default")
	}
	if cfg.Retry.CircuitThreshold <= 0 {
		t.Fatalf("expected a positive circuit threshold by default")
	}
}

func TestRetryPolicyUnlimited(t *testing.T) {
	p := DefaultRetryPolicy()
	if !p.Unlimited() {
		t.Fatalf("expected default policy to be unlimited")
	}
	p.MaxRetries = 3
	if p.Unlimited() {
		t.Fatalf("expected policy with MaxRetries=3 to not be unlimited")
	}
}

func TestLoadFileNormalizesAdapterNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "collector.yaml")
	doc := `
environment: dev
registry:
  persistence_dsn: ""
integrations:
  binance-spot:
    adapter: "  BINANCE  "
    connection:
      url: "wss://stream.binance.com:9443"
      connect_timeout: 10s
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	integration, ok := cfg.Integrations["binance-spot"]
	if !ok {
		t.Fatalf("expected integration binance-spot to be present")
	}
	if integration.Adapter != "binance" {
		t.Fatalf("expected normalized adapter name, got %q", integration.Adapter)
	}
	if integration.Name != "binance-spot" {
		t.Fatalf("expected name to be filled from the map key, got %q", integration.Name)
	}
	if integration.Connection.ConnectTimeout != 10*time.Second {
		t.Fatalf("expected parsed duration, got %v", integration.Connection.ConnectTimeout)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
