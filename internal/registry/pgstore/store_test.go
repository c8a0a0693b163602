package pgstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/coachpo/feedgate/internal/config"
	"github.com/coachpo/feedgate/internal/registry/pgstore"
)

var (
	testPool    *pgxpool.Pool
	pgContainer testcontainers.Container
	setupErr    error
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_USER": "postgres", "POSTGRES_DB": "feedgate"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}
	pgContainer = container

	setupErr = initialiseDatabase(ctx)
	exitCode := 0
	if setupErr != nil {
		fmt.Fprintf(os.Stderr, "pgstore contract tests skipped: %v\n", setupErr)
	} else {
		exitCode = m.Run()
	}

	if testPool != nil {
		testPool.Close()
	}
	if pgContainer != nil {
		_ = pgContainer.Terminate(ctx)
	}
	os.Exit(exitCode)
}

func initialiseDatabase(ctx context.Context) error {
	host, err := pgContainer.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return fmt.Errorf("container port: %w", err)
	}
	dsn := fmt.Sprintf("postgres://postgres:secret@%s:%s/feedgate?sslmode=disable", host, port.Port())

	if err := applyMigrations(dsn); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgx pool: %w", err)
	}
	testPool = pool
	return nil
}

func applyMigrations(dsn string) error {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return fmt.Errorf("runtime caller lookup failed")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", "..", "db", "migrations"))
	sourceURL := fmt.Sprintf("file://%s", root)

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open sql connection: %w", err)
	}
	defer sqlDB.Close()

	driver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func TestStoreSaveLoadDelete(t *testing.T) {
	if setupErr != nil {
		t.Skipf("pgstore contract setup unavailable: %v", setupErr)
	}
	ctx := context.Background()
	store := pgstore.New(testPool)

	cfg := config.DefaultIntegrationConfig("binance", "binance", "wss://stream.example.com")
	if err := store.Save(ctx, pgstore.State{Name: "binance", Enabled: true, Config: cfg}); err != nil {
		t.Fatalf("save: %v", err)
	}

	states, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	got, ok := states["binance"]
	if !ok {
		t.Fatalf("expected a persisted state for binance")
	}
	if !got.Enabled {
		t.Fatalf("expected Enabled=true, got false")
	}
	if got.Config.Adapter != cfg.Adapter {
		t.Fatalf("expected adapter %s, got %s", cfg.Adapter, got.Config.Adapter)
	}

	if err := store.SetEnabled(ctx, "binance", false); err != nil {
		t.Fatalf("set enabled: %v", err)
	}
	states, err = store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load all after disable: %v", err)
	}
	if states["binance"].Enabled {
		t.Fatalf("expected Enabled=false after SetEnabled")
	}

	if err := store.Delete(ctx, "binance"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	states, err = store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load all after delete: %v", err)
	}
	if _, ok := states["binance"]; ok {
		t.Fatalf("expected binance to be gone after Delete")
	}
}

func TestSetEnabledFailsForUnknownAdapter(t *testing.T) {
	if setupErr != nil {
		t.Skipf("pgstore contract setup unavailable: %v", setupErr)
	}
	store := pgstore.New(testPool)
	if err := store.SetEnabled(context.Background(), "does-not-exist", true); err == nil {
		t.Fatalf("expected an error for an unpersisted adapter")
	}
}
