// Command collector launches the feedgate market-data collector.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachpo/feedgate/internal/adapter"
	"github.com/coachpo/feedgate/internal/adapter/binance"
	"github.com/coachpo/feedgate/internal/bus"
	"github.com/coachpo/feedgate/internal/config"
	"github.com/coachpo/feedgate/internal/controlplane"
	"github.com/coachpo/feedgate/internal/publisher"
	"github.com/coachpo/feedgate/internal/registry"
	"github.com/coachpo/feedgate/internal/registry/pgstore"
	"github.com/coachpo/feedgate/internal/telemetry"
)

const (
	defaultConfigPath      = "config/collector.yaml"
	collectorLogPrefix     = "collector "
	controlAddr            = ":8080"
	shutdownTimeout        = 30 * time.Second
	serverShutdownGrace    = 5 * time.Second
	registryShutdownGrace  = 10 * time.Second
	telemetryShutdownGrace = 5 * time.Second
	serviceVersion         = "1.0.0"
)

func main() {
	cfgPathFlag := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := newCollectorLogger()

	fileCfg, err := loadConfig(resolveConfigPath(cfgPathFlag), logger)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	logger.Printf("configuration loaded: env=%s, integrations=%d", fileCfg.Environment, len(fileCfg.Integrations))

	telemetryProvider, serviceName, err := initTelemetry(ctx, logger, fileCfg.Environment)
	if err != nil {
		logger.Fatalf("initialize telemetry: %v", err)
	}

	externalBus := bus.NewMemoryBus(bus.MemoryConfig{BufferSize: 256})
	pub := publisher.New(externalBus, config.DefaultPublisherConfig(), 0)

	reg := registry.New()
	registerAdapters(reg)

	store, pgpool := maybeOpenStore(ctx, logger, fileCfg.Registry)
	applyPersistedState(ctx, logger, reg, store)

	results := reg.StartAutoAdapters(ctx, fileCfg.Integrations, pub)
	for name, err := range results {
		if err != nil {
			logger.Printf("adapter %s failed to auto-start: %v", name, err)
			continue
		}
		logger.Printf("adapter %s started", name)
	}

	saveInitialState(ctx, store, fileCfg.Integrations)

	server := &http.Server{
		Addr:              controlAddr,
		Handler:           controlplane.NewHandler(reg, pub, serviceName, serviceVersion),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("control server: %v", err)
		}
	}()
	logger.Printf("control plane listening on %s", server.Addr)

	logger.Print("collector started; awaiting shutdown signal")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownStart := time.Now()
	performGracefulShutdown(shutdownCtx, logger, gracefulShutdownConfig{
		server:    server,
		registry:  reg,
		bus:       externalBus,
		telemetry: telemetryProvider,
		pgpool:    pgpool,
	})
	logger.Printf("shutdown completed in %v", time.Since(shutdownStart))
}

func parseFlags() string {
	cfgPath := flag.String("config", "", fmt.Sprintf("Path to collector configuration file (default: %s)", defaultConfigPath))
	flag.Parse()
	return *cfgPath
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newCollectorLogger() *log.Logger {
	return log.New(os.Stdout, collectorLogPrefix, log.LstdFlags|log.Lmicroseconds)
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return defaultConfigPath
}

func loadConfig(path string, logger *log.Logger) (config.FileConfig, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Printf("configuration file not found at %s, starting with an empty catalog", path)
			return config.FileConfig{Integrations: map[string]config.IntegrationConfig{}}, nil
		}
		return config.FileConfig{}, err
	}
	return cfg, nil
}

func initTelemetry(ctx context.Context, logger *log.Logger, env config.Environment) (*telemetry.Provider, string, error) {
	cfg := telemetry.DefaultConfig()
	cfg.Environment = string(env)

	provider, err := telemetry.NewProvider(ctx, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("initialize telemetry provider: %w", err)
	}
	if cfg.Enabled {
		logger.Printf("telemetry initialized: endpoint=%s", cfg.OTLPEndpoint)
	} else {
		logger.Print("telemetry disabled")
	}
	return provider, cfg.ServiceName, nil
}

// registerAdapters populates the catalog with every exchange-specific
// adapter this binary ships. New exchanges are added here, mirroring
// the teacher's adapters.RegisterAll(registry) call.
func registerAdapters(reg *registry.Registry) {
	factory := func() (adapter.ParseFunc, adapter.StreamNameFunc) {
		return binance.ParseMessage, adapter.DefaultStreamName
	}
	entry := registry.Entry{
		Name:              "binance",
		Description:       "Binance spot market-data adapter",
		Version:           serviceVersion,
		Enabled:           true,
		SupportedFeatures: []string{"trade", "ticker", "depth", "kline"},
		Metadata:          map[string]any{"exchange": "binance", "transport": "websocket"},
	}
	if err := reg.Register(entry.Name, factory, entry); err != nil {
		log.Printf("register binance adapter: %v", err)
	}
}

// maybeOpenStore wires the optional Postgres-backed registry
// persistence (internal/registry/pgstore) when a DSN is configured; the
// registry otherwise runs purely in-memory.
func maybeOpenStore(ctx context.Context, logger *log.Logger, cfg config.RegistryConfig) (*pgstore.Store, *pgxpool.Pool) {
	if cfg.PersistenceDSN == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.PersistenceDSN)
	if err != nil {
		logger.Printf("registry persistence disabled: connect: %v", err)
		return nil, nil
	}
	logger.Print("registry persistence enabled")
	return pgstore.New(pool), pool
}

func applyPersistedState(ctx context.Context, logger *log.Logger, reg *registry.Registry, store *pgstore.Store) {
	if store == nil {
		return
	}
	states, err := store.LoadAll(ctx)
	if err != nil {
		logger.Printf("load persisted registry state: %v", err)
		return
	}
	for name, state := range states {
		if err := reg.SetAdapterEnabled(name, state.Enabled); err != nil {
			logger.Printf("apply persisted enabled flag for %s: %v", name, err)
		}
	}
}

func saveInitialState(ctx context.Context, store *pgstore.Store, configs map[string]config.IntegrationConfig) {
	if store == nil {
		return
	}
	for name, cfg := range configs {
		_ = store.Save(ctx, pgstore.State{Name: name, Enabled: true, Config: cfg})
	}
}

type gracefulShutdownConfig struct {
	server    *http.Server
	registry  *registry.Registry
	bus       bus.Bus
	telemetry *telemetry.Provider
	pgpool    *pgxpool.Pool
}

func performGracefulShutdown(ctx context.Context, logger *log.Logger, cfg gracefulShutdownConfig) {
	shutdownStep := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		logger.Printf("shutdown: %s...", name)
		if err := fn(stepCtx); err != nil {
			logger.Printf("shutdown: %s failed: %v", name, err)
		} else {
			logger.Printf("shutdown: %s completed", name)
		}
	}

	if cfg.server != nil {
		shutdownStep("stopping control server", serverShutdownGrace, func(stepCtx context.Context) error {
			return cfg.server.Shutdown(stepCtx)
		})
	}

	if cfg.registry != nil {
		shutdownStep("destroying adapter registry", registryShutdownGrace, func(stepCtx context.Context) error {
			cfg.registry.Destroy(stepCtx)
			return nil
		})
	}

	if cfg.bus != nil {
		shutdownStep("closing external bus", serverShutdownGrace, func(_ context.Context) error {
			cfg.bus.Close()
			return nil
		})
	}

	if cfg.pgpool != nil {
		shutdownStep("closing registry persistence pool", serverShutdownGrace, func(_ context.Context) error {
			cfg.pgpool.Close()
			return nil
		})
	}

	if cfg.telemetry != nil {
		shutdownStep("shutting down telemetry", telemetryShutdownGrace, func(stepCtx context.Context) error {
			return cfg.telemetry.Shutdown(stepCtx)
		})
	}
}
