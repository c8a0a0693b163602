// Package pgstore is the Adapter Registry's optional Postgres-backed
// persistence of per-adapter enabled flags and last-known instance
// config (SPEC_FULL.md §3 domain stack), so restarts resume the
// registry's state across process restarts. The registry works
// without this package: it is an upgrade wired in only when a DSN is
// configured (spec.md §9's "constructed lazily" global-state rule).
package pgstore

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachpo/feedgate/internal/config"
)

// State is one adapter name's persisted registry state.
type State struct {
	Name    string
	Enabled bool
	Config  config.IntegrationConfig
}

// Store persists registry State in PostgreSQL, mirroring the
// teacher's ProviderStore upsert/list/delete shape
// (internal/infra/persistence/postgres/provider_store.go) but hand-
// written against pgx directly: the sqlc generator and its checked-in
// output aren't part of this module, so the queries below are the
// same upsert/select/delete statements sqlc would have produced.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Save upserts one adapter's enabled flag and config snapshot.
func (s *Store) Save(ctx context.Context, state State) error {
	name := strings.TrimSpace(state.Name)
	if name == "" {
		return fmt.Errorf("pgstore: adapter name required")
	}
	cfg, err := json.Marshal(state.Config)
	if err != nil {
		return fmt.Errorf("pgstore: marshal config: %w", err)
	}
	const stmt = `
		INSERT INTO registry_adapters (name, enabled, config, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    config = EXCLUDED.config,
		    updated_at = now()`
	if _, err := s.pool.Exec(ctx, stmt, name, state.Enabled, cfg); err != nil {
		return fmt.Errorf("pgstore: upsert %s: %w", name, err)
	}
	return nil
}

// SetEnabled updates only the enabled flag for an already-persisted
// adapter, leaving its config untouched.
func (s *Store) SetEnabled(ctx context.Context, name string, enabled bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("pgstore: adapter name required")
	}
	const stmt = `UPDATE registry_adapters SET enabled = $2, updated_at = now() WHERE name = $1`
	tag, err := s.pool.Exec(ctx, stmt, name, enabled)
	if err != nil {
		return fmt.Errorf("pgstore: set enabled %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pgstore: adapter not persisted: %s", name)
	}
	return nil
}

// Delete removes a persisted adapter's state.
func (s *Store) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("pgstore: adapter name required")
	}
	const stmt = `DELETE FROM registry_adapters WHERE name = $1`
	if _, err := s.pool.Exec(ctx, stmt, name); err != nil {
		return fmt.Errorf("pgstore: delete %s: %w", name, err)
	}
	return nil
}

// LoadAll retrieves every persisted adapter state, keyed by name.
func (s *Store) LoadAll(ctx context.Context) (map[string]State, error) {
	const stmt = `SELECT name, enabled, config FROM registry_adapters ORDER BY name`
	rows, err := s.pool.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list: %w", err)
	}
	defer rows.Close()

	out := make(map[string]State)
	for rows.Next() {
		var (
			name    string
			enabled bool
			raw     []byte
		)
		if err := rows.Scan(&name, &enabled, &raw); err != nil {
			return nil, fmt.Errorf("pgstore: scan: %w", err)
		}
		var cfg config.IntegrationConfig
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return nil, fmt.Errorf("pgstore: decode config for %s: %w", name, err)
			}
		}
		out[name] = State{Name: name, Enabled: enabled, Config: cfg}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: rows: %w", err)
	}
	return out, nil
}
