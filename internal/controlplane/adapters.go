package controlplane

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/coachpo/feedgate/internal/adapter"
	"github.com/coachpo/feedgate/internal/config"
	"github.com/coachpo/feedgate/internal/integration"
	"github.com/coachpo/feedgate/internal/registry"
)

type adapterSummary struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Enabled     bool              `json:"enabled"`
	Running     bool              `json:"running"`
	Status      integration.State `json:"status,omitempty"`
	Healthy     bool              `json:"healthy"`
	Metrics     *metricsView      `json:"metrics,omitempty"`
}

type adapterRecord struct {
	adapterSummary
	SupportedFeatures []string       `json:"supportedFeatures"`
	Metadata          map[string]any `json:"metadata"`
}

func (s *Server) summarize(entry registry.Entry) adapterSummary {
	summary := adapterSummary{
		Name:        entry.Name,
		Version:     entry.Version,
		Description: entry.Description,
		Enabled:     entry.Enabled,
	}
	inst, ok := s.reg.GetInstance(entry.Name)
	if !ok {
		return summary
	}
	summary.Status = inst.State()
	summary.Running = summary.Status == integration.StateRunning
	metrics := inst.GetMetrics()
	view := newMetricsView(metrics)
	summary.Metrics = &view
	summary.Healthy = metrics.AdapterStatus.Health == adapter.HealthHealthy
	return summary
}

func (s *Server) listAdapters(w http.ResponseWriter, _ *http.Request) {
	entries := s.reg.ListEntries()
	adapters := make([]adapterSummary, 0, len(entries))
	running := 0
	for _, entry := range entries {
		summary := s.summarize(entry)
		if summary.Running {
			running++
		}
		adapters = append(adapters, summary)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":    len(adapters),
		"running":  running,
		"adapters": adapters,
	})
}

func (s *Server) handleAdapterDetail(w http.ResponseWriter, r *http.Request) {
	rest := trimName(adapterDetailPrefix, r.URL.Path)
	if rest == "" {
		writeError(w, r, http.StatusNotFound, "adapter name required")
		return
	}
	name, action, hasAction := splitFirstSegment(rest)
	if name == "" {
		writeError(w, r, http.StatusNotFound, "adapter name required")
		return
	}
	if !hasAction {
		s.handleAdapterResource(w, r, name)
		return
	}
	s.handleAdapterAction(w, r, name, action)
}

func (s *Server) handleAdapterResource(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	entry, ok := s.reg.GetRegistryEntry(name)
	if !ok {
		writeError(w, r, http.StatusNotFound, "adapter not found: "+name)
		return
	}
	record := adapterRecord{
		adapterSummary:    s.summarize(entry),
		SupportedFeatures: entry.SupportedFeatures,
		Metadata:          entry.Metadata,
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleAdapterAction(w http.ResponseWriter, r *http.Request, name, action string) {
	switch action {
	case "start":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		s.startAdapter(w, r, name)
	case "stop":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		s.stopAdapter(w, r, name)
	case "restart":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		s.restartAdapter(w, r, name)
	case "enabled":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		s.setAdapterEnabled(w, r, name)
	default:
		writeError(w, r, http.StatusNotFound, "unsupported action: "+action)
	}
}

func (s *Server) startAdapter(w http.ResponseWriter, r *http.Request, name string) {
	if !s.reg.HasAdapter(name) {
		writeError(w, r, http.StatusNotFound, "adapter not found: "+name)
		return
	}
	cfg, err := decodeIntegrationConfig(w, r, name)
	if err != nil {
		writeDecodeError(w, r, err)
		return
	}

	ctx := r.Context()
	if _, exists := s.reg.GetInstance(name); !exists {
		if err := s.reg.CreateInstance(ctx, name, cfg, s.pub); err != nil {
			writeRegistryError(w, r, err)
			return
		}
	}
	if err := s.reg.StartInstance(ctx, name); err != nil {
		writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "adapter started: " + name})
}

func (s *Server) stopAdapter(w http.ResponseWriter, r *http.Request, name string) {
	if !s.reg.HasAdapter(name) {
		writeError(w, r, http.StatusNotFound, "adapter not found: "+name)
		return
	}
	if err := s.reg.StopInstance(r.Context(), name); err != nil {
		writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "adapter stopped: " + name})
}

func (s *Server) restartAdapter(w http.ResponseWriter, r *http.Request, name string) {
	if !s.reg.HasAdapter(name) {
		writeError(w, r, http.StatusNotFound, "adapter not found: "+name)
		return
	}
	inst, ok := s.reg.GetInstance(name)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "adapter not running: "+name)
		return
	}
	previous := inst.GetMetrics()

	ctx := r.Context()
	if err := s.reg.StopInstance(ctx, name); err != nil {
		writeRegistryError(w, r, err)
		return
	}
	if err := s.reg.StartInstance(ctx, name); err != nil {
		writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "adapter restarted: " + name,
		"previousMetrics": newMetricsView(previous),
	})
}

type enabledPayload struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) setAdapterEnabled(w http.ResponseWriter, r *http.Request, name string) {
	limitRequestBody(w, r)
	defer func() { _ = r.Body.Close() }()

	var payload enabledPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	if payload.Enabled == nil {
		writeError(w, r, http.StatusBadRequest, "enabled must be a boolean")
		return
	}
	if err := s.reg.SetAdapterEnabled(name, *payload.Enabled); err != nil {
		writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "adapter enabled flag updated: " + name})
}

func decodeIntegrationConfig(w http.ResponseWriter, r *http.Request, name string) (config.IntegrationConfig, error) {
	limitRequestBody(w, r)
	defer func() { _ = r.Body.Close() }()

	cfg := config.DefaultIntegrationConfig(name, name, "")
	if r.ContentLength == 0 {
		return cfg, nil
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func splitFirstSegment(path string) (head, rest string) {
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i], path[i+1:]
		}
	}
	return path, ""
}
