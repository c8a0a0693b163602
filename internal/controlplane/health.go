package controlplane

import (
	"net/http"
	"time"

	"github.com/coachpo/feedgate/internal/adapter"
)

type adapterCheckDetail struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Healthy bool   `json:"healthy"`
}

type adaptersCheck struct {
	Status          string               `json:"status"`
	RegisteredCount int                  `json:"registeredCount"`
	RunningCount    int                  `json:"runningCount"`
	Details         []adapterCheckDetail `json:"details"`
}

type healthChecks struct {
	Adapters adaptersCheck `json:"adapters"`
}

type healthResponse struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Service   string       `json:"service"`
	Version   string       `json:"version"`
	Uptime    float64      `json:"uptime"`
	Checks    healthChecks `json:"checks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := s.reg.GetStatus()

	details := make([]adapterCheckDetail, 0, len(status.InstanceStatuses))
	healthy := status.RunningInstances > 0
	for _, inst := range status.InstanceStatuses {
		instHealthy := inst.State == "running" && inst.Metrics.AdapterStatus.Health == adapter.HealthHealthy
		if inst.State == "running" && inst.Metrics.AdapterStatus.Health != adapter.HealthHealthy {
			healthy = false
		}
		details = append(details, adapterCheckDetail{
			Name:    inst.Name,
			Status:  string(inst.State),
			Healthy: instHealthy,
		})
	}

	checkStatus := "fail"
	overall := "unhealthy"
	if healthy {
		checkStatus = "pass"
		overall = "healthy"
	}

	resp := healthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   s.serviceName,
		Version:   s.version,
		Uptime:    s.uptime().Seconds(),
		Checks: healthChecks{Adapters: adaptersCheck{
			Status:          checkStatus,
			RegisteredCount: status.RegisteredAdapters,
			RunningCount:    status.RunningInstances,
			Details:         details,
		}},
	}

	code := http.StatusOK
	if overall != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

type readyResponse struct {
	Ready     bool         `json:"ready"`
	Timestamp string       `json:"timestamp"`
	Details   readyDetails `json:"details"`
}

type readyDetails struct {
	Initialized     bool     `json:"initialized"`
	RunningAdapters []string `json:"runningAdapters"`
}

// handleHealthReady reports the server ready once at least one adapter
// is registered in the catalog — an empty catalog means nothing has
// been wired to accept traffic yet (an Open Question decision: see
// DESIGN.md).
func (s *Server) handleHealthReady(w http.ResponseWriter, _ *http.Request) {
	status := s.reg.GetStatus()

	running := make([]string, 0, len(status.InstanceStatuses))
	for _, inst := range status.InstanceStatuses {
		if inst.State == "running" {
			running = append(running, inst.Name)
		}
	}

	ready := status.Initialized && status.RegisteredAdapters > 0
	resp := readyResponse{
		Ready:     ready,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Details: readyDetails{
			Initialized:     status.Initialized,
			RunningAdapters: running,
		},
	}
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleHealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"alive":     true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
