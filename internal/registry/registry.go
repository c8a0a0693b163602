// Package registry implements the Adapter Registry component (spec.md
// §4.5): a process-wide catalog of adapter factories plus the running
// Adapter Integration instances materialized from them.
package registry

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/coachpo/feedgate/internal/adapter"
)

// Factory supplies the exchange-specific parse and stream-naming
// functions an Adapter Integration needs (spec.md §4.2's "exchange-
// specific adapters may override" hook), e.g.
// adapterbinance.ParseMessage paired with adapter.DefaultStreamName.
type Factory func() (adapter.ParseFunc, adapter.StreamNameFunc)

// Entry is the registry's catalog record for one adapter name.
type Entry struct {
	Name              string
	Description       string
	Version           string
	Enabled           bool
	SupportedFeatures []string
	Metadata          map[string]any
}

type entryRecord struct {
	entry   Entry
	factory Factory
}

// Registry is the process-wide adapter catalog and instance supervisor.
type Registry struct {
	eventBus

	mu        sync.RWMutex
	entries   map[string]*entryRecord
	instances map[string]*instanceRecord
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		entries:   make(map[string]*entryRecord),
		instances: make(map[string]*instanceRecord),
	}
}

// Subscribe registers h to observe Registry events.
func (r *Registry) Subscribe(h EventHandler) {
	r.eventBus.subscribe(h)
}

// Register adds name's factory and catalog entry. Calling it again with
// an identical factory and entry is a no-op; calling it with a different
// factory or entry for the same name fails (spec.md §4.5 "register").
func (r *Registry) Register(name string, factory Factory, entry Entry) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return errInvalidRegistration()
	}
	entry.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.entries[name]
	if !ok {
		r.entries[name] = &entryRecord{entry: entry, factory: factory}
		return nil
	}
	if funcsEqual(existing.factory, factory) && reflect.DeepEqual(existing.entry, entry) {
		return nil
	}
	return errAlreadyRegistered(name)
}

// Unregister removes name's catalog entry; fails if a live instance
// still exists for it.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.instances[name]; exists {
		return errInstanceExists(name)
	}
	if _, ok := r.entries[name]; !ok {
		return errNotFound(name)
	}
	delete(r.entries, name)
	return nil
}

// HasAdapter reports whether name is registered.
func (r *Registry) HasAdapter(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// GetRegistryEntry returns a copy of name's catalog entry.
func (r *Registry) GetRegistryEntry(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.entries[name]
	if !ok {
		return Entry{}, false
	}
	return rec.entry, true
}

// ListEntries returns a snapshot of every catalog entry, sorted by name.
func (r *Registry) ListEntries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, rec := range r.entries {
		out = append(out, rec.entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetAdapterEnabled toggles name's enabled flag without starting or
// stopping any live instance.
func (r *Registry) SetAdapterEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.entries[name]
	if !ok {
		return errNotFound(name)
	}
	rec.entry.Enabled = enabled
	return nil
}

func funcsEqual(a, b Factory) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
