// Package controlplane implements the HTTP control-plane surface
// (spec.md §6): health checks, Prometheus/JSON metrics, and
// adapter-instance lifecycle endpoints. It consumes only the Adapter
// Registry's public contract.
package controlplane

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coachpo/feedgate/internal/publisher"
	"github.com/coachpo/feedgate/internal/registry"
)

const (
	healthPath      = "/health"
	healthReadyPath = "/health/ready"
	healthLivePath  = "/health/live"
	metricsPath     = "/metrics"
	metricsJSONPath = "/metrics/json"

	adaptersPath        = "/api/adapters"
	adapterDetailPrefix = adaptersPath + "/"

	maxJSONBodyBytes int64 = 1 << 20 // 1 MiB
)

type handlerFunc func(http.ResponseWriter, *http.Request)

// Server wires the Adapter Registry and a process-wide Publisher into
// the control-plane's HTTP surface.
type Server struct {
	reg         *registry.Registry
	pub         *publisher.Publisher
	serviceName string
	version     string
	startedAt   time.Time

	promReg *prometheus.Registry
	prom    *promMetrics
}

// NewServer constructs a Server. pub is the shared Publisher every
// HTTP-started adapter instance is wired to (spec.md §5: "the external
// bus client is shared across Publishers").
func NewServer(reg *registry.Registry, pub *publisher.Publisher, serviceName, version string) *Server {
	promReg := prometheus.NewRegistry()
	return &Server{
		reg:         reg,
		pub:         pub,
		serviceName: serviceName,
		version:     version,
		startedAt:   time.Now(),
		promReg:     promReg,
		prom:        newPromMetrics(promReg, reg),
	}
}

// NewHandler builds the complete routed HTTP handler.
func NewHandler(reg *registry.Registry, pub *publisher.Publisher, serviceName, version string) http.Handler {
	return NewServer(reg, pub, serviceName, version).Handler()
}

// Handler returns the routed HTTP handler for s.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle(healthPath, s.methodHandlers(map[string]handlerFunc{http.MethodGet: s.handleHealth}))
	mux.Handle(healthReadyPath, s.methodHandlers(map[string]handlerFunc{http.MethodGet: s.handleHealthReady}))
	mux.Handle(healthLivePath, s.methodHandlers(map[string]handlerFunc{http.MethodGet: s.handleHealthLive}))

	mux.Handle(metricsPath, promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	mux.Handle(metricsJSONPath, s.methodHandlers(map[string]handlerFunc{http.MethodGet: s.handleMetricsJSON}))

	mux.Handle(adaptersPath, s.methodHandlers(map[string]handlerFunc{http.MethodGet: s.listAdapters}))
	mux.Handle(adapterDetailPrefix, http.HandlerFunc(s.handleAdapterDetail))

	return withRequestID(withCORS(mux))
}

func (s *Server) methodHandlers(handlers map[string]handlerFunc) http.Handler {
	allowed := allowedMethods(handlers)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler(w, r)
			return
		}
		methodNotAllowed(w, r, allowed...)
	})
}

func allowedMethods(handlers map[string]handlerFunc) []string {
	if len(handlers) == 0 {
		return nil
	}
	out := make([]string, 0, len(handlers))
	for method := range handlers {
		out = append(out, method)
	}
	return out
}

func (s *Server) uptime() time.Duration {
	return time.Since(s.startedAt)
}

func trimName(prefix, path string) string {
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}
