package registry

import (
	"sort"

	"github.com/coachpo/feedgate/internal/integration"
)

// InstanceStatus is one entry of Status.InstanceStatuses.
type InstanceStatus struct {
	Name    string
	State   integration.State
	Metrics integration.Metrics
}

// Status is the snapshot spec.md §4.5 "getStatus" returns.
type Status struct {
	Initialized        bool
	RegisteredAdapters int
	EnabledAdapters    int
	RunningInstances   int
	InstanceStatuses   []InstanceStatus
}

// GetStatus takes a consistent, point-in-time snapshot of the catalog
// and every live instance (spec.md §4.5 "concurrent reads during
// mutation").
func (r *Registry) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := Status{
		Initialized:        true,
		RegisteredAdapters: len(r.entries),
	}
	for _, rec := range r.entries {
		if rec.entry.Enabled {
			status.EnabledAdapters++
		}
	}
	for name, rec := range r.instances {
		if rec.integration == nil {
			continue
		}
		state := rec.integration.State()
		if state == integration.StateRunning {
			status.RunningInstances++
		}
		status.InstanceStatuses = append(status.InstanceStatuses, InstanceStatus{
			Name:    name,
			State:   state,
			Metrics: rec.integration.GetMetrics(),
		})
	}
	sort.Slice(status.InstanceStatuses, func(i, j int) bool {
		return status.InstanceStatuses[i].Name < status.InstanceStatuses[j].Name
	})
	return status
}
