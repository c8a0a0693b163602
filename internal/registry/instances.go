package registry

import (
	"context"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/coachpo/feedgate/internal/adapter"
	"github.com/coachpo/feedgate/internal/config"
	"github.com/coachpo/feedgate/internal/integration"
	"github.com/coachpo/feedgate/internal/publisher"
)

// instanceRecord guards one named instance's lifecycle operations with
// its own mutex, so operations on distinct names never contend with each
// other while operations on the same name are strictly serialized
// (spec.md §4.5 "Concurrency").
type instanceRecord struct {
	opMu        sync.Mutex
	integration *integration.Integration
}

// CreateInstance constructs and initializes an instance from name's
// registered factory (spec.md §4.5 "createInstance").
func (r *Registry) CreateInstance(_ context.Context, name string, cfg config.IntegrationConfig, pub *publisher.Publisher) error {
	r.mu.Lock()
	entry, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return errNotFound(name)
	}
	if _, exists := r.instances[name]; exists {
		r.mu.Unlock()
		return errInstanceExists(name)
	}
	rec := &instanceRecord{}
	rec.opMu.Lock()
	r.instances[name] = rec
	factory := entry.factory
	r.mu.Unlock()
	defer rec.opMu.Unlock()

	parse, streamName := factory()
	integ, err := integration.New(cfg, parse, streamName, pub, func(evt integration.Event) {
		r.handleIntegrationEvent(name, evt)
	})
	if err != nil {
		r.mu.Lock()
		delete(r.instances, name)
		r.mu.Unlock()
		return errInvalidConfig(name, err)
	}
	rec.integration = integ
	r.emit(Event{Type: EventInstanceCreated, Name: name})
	return nil
}

func (r *Registry) lookupInstance(name string) (*instanceRecord, error) {
	r.mu.RLock()
	rec, ok := r.instances[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errInstanceNotFound(name)
	}
	return rec, nil
}

// StartInstance transitions a created/stopped instance to running
// (spec.md §4.5 "startInstance").
func (r *Registry) StartInstance(ctx context.Context, name string) error {
	rec, err := r.lookupInstance(name)
	if err != nil {
		return err
	}
	rec.opMu.Lock()
	defer rec.opMu.Unlock()
	if rec.integration == nil {
		return errInstanceNotFound(name)
	}

	prev := rec.integration.State()
	if prev == integration.StateRunning {
		return errAlreadyRunning(name)
	}
	if err := rec.integration.Start(ctx); err != nil {
		return err
	}
	r.emit(Event{Type: EventInstanceStarted, Name: name})
	r.emit(Event{Type: EventInstanceStatusChange, Name: name, PrevState: prev, NewState: integration.StateRunning})
	return nil
}

// StopInstance transitions a running instance to stopped (spec.md §4.5
// "stopInstance").
func (r *Registry) StopInstance(ctx context.Context, name string) error {
	rec, err := r.lookupInstance(name)
	if err != nil {
		return err
	}
	rec.opMu.Lock()
	defer rec.opMu.Unlock()
	if rec.integration == nil {
		return errInstanceNotFound(name)
	}

	prev := rec.integration.State()
	if prev != integration.StateRunning {
		return errNotRunning(name)
	}
	if err := rec.integration.Stop(ctx); err != nil {
		return err
	}
	r.emit(Event{Type: EventInstanceStopped, Name: name})
	r.emit(Event{Type: EventInstanceStatusChange, Name: name, PrevState: prev, NewState: integration.StateStopped})
	return nil
}

// DestroyInstance removes name's instance; safe to call after Stop
// (spec.md §4.5 "destroyInstance").
func (r *Registry) DestroyInstance(name string) error {
	r.mu.Lock()
	rec, ok := r.instances[name]
	if !ok {
		r.mu.Unlock()
		return errInstanceNotFound(name)
	}
	delete(r.instances, name)
	r.mu.Unlock()

	rec.opMu.Lock()
	if rec.integration != nil {
		rec.integration.Destroy()
	}
	rec.opMu.Unlock()
	r.emit(Event{Type: EventInstanceDestroyed, Name: name})
	return nil
}

// GetInstance returns the live Integration for name, if any.
func (r *Registry) GetInstance(name string) (*integration.Integration, bool) {
	r.mu.RLock()
	rec, ok := r.instances[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return rec.integration, true
}

// StartAutoAdapters creates and starts, in parallel, one instance per
// enabled catalog entry that has a supplied config. Per-instance
// failures are collected but never abort the others (spec.md §4.5
// "startAutoAdapters").
func (r *Registry) StartAutoAdapters(ctx context.Context, configs map[string]config.IntegrationConfig, pub *publisher.Publisher) map[string]error {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name, entry := range r.entries {
		if entry.entry.Enabled {
			names = append(names, name)
		}
	}
	r.mu.RUnlock()

	var mu sync.Mutex
	results := make(map[string]error, len(names))
	p := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for _, name := range names {
		name := name
		cfg, ok := configs[name]
		if !ok {
			continue
		}
		p.Go(func() {
			err := r.CreateInstance(ctx, name, cfg, pub)
			if err == nil {
				err = r.StartInstance(ctx, name)
			}
			mu.Lock()
			results[name] = err
			mu.Unlock()
		})
	}
	p.Wait()
	return results
}

// StopAllInstances stops every currently running instance.
func (r *Registry) StopAllInstances(ctx context.Context) {
	r.mu.RLock()
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	r.mu.RUnlock()
	for _, name := range names {
		_ = r.StopInstance(ctx, name)
	}
}

// Destroy stops and destroys every instance and clears the catalog.
func (r *Registry) Destroy(ctx context.Context) {
	r.StopAllInstances(ctx)

	r.mu.RLock()
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	r.mu.RUnlock()
	for _, name := range names {
		_ = r.DestroyInstance(name)
	}

	r.mu.Lock()
	r.entries = make(map[string]*entryRecord)
	r.mu.Unlock()
}

func (r *Registry) handleIntegrationEvent(name string, evt integration.Event) {
	if evt.Type != integration.EventAdapter || evt.Adapter == nil {
		return
	}
	if evt.Adapter.Type == adapter.EventData {
		r.emit(Event{Type: EventInstanceDataProcessed, Name: name, Record: evt.Adapter.Record})
	}
}
