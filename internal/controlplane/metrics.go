package controlplane

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coachpo/feedgate/internal/registry"
)

// promMetrics is a pull-based prometheus.Collector: every scrape reads
// a fresh registry.Status snapshot rather than tracking duplicate
// counters that could drift from the registry's own state.
type promMetrics struct {
	reg *registry.Registry

	registeredDesc *prometheus.Desc
	enabledDesc    *prometheus.Desc
	runningDesc    *prometheus.Desc
	processedDesc  *prometheus.Desc
	publishedDesc  *prometheus.Desc
	procErrDesc    *prometheus.Desc
	pubErrDesc     *prometheus.Desc
	latencyDesc    *prometheus.Desc
}

func newPromMetrics(promReg *prometheus.Registry, reg *registry.Registry) *promMetrics {
	m := &promMetrics{
		reg:            reg,
		registeredDesc: prometheus.NewDesc("feedgate_registry_adapters_registered", "Number of adapters registered in the catalog.", nil, nil),
		enabledDesc:    prometheus.NewDesc("feedgate_registry_adapters_enabled", "Number of adapters currently enabled.", nil, nil),
		runningDesc:    prometheus.NewDesc("feedgate_registry_instances_running", "Number of running adapter instances.", nil, nil),
		processedDesc:  prometheus.NewDesc("feedgate_integration_messages_processed_total", "Messages processed per instance.", []string{"instance"}, nil),
		publishedDesc:  prometheus.NewDesc("feedgate_integration_messages_published_total", "Messages published per instance.", []string{"instance"}, nil),
		procErrDesc:    prometheus.NewDesc("feedgate_integration_processing_errors_total", "Processing errors per instance.", []string{"instance"}, nil),
		pubErrDesc:     prometheus.NewDesc("feedgate_integration_publish_errors_total", "Publish errors per instance.", []string{"instance"}, nil),
		latencyDesc:    prometheus.NewDesc("feedgate_integration_average_processing_latency_ms", "EWMA processing latency per instance, in milliseconds.", []string{"instance"}, nil),
	}
	promReg.MustRegister(m)
	return m
}

func (m *promMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.registeredDesc
	ch <- m.enabledDesc
	ch <- m.runningDesc
	ch <- m.processedDesc
	ch <- m.publishedDesc
	ch <- m.procErrDesc
	ch <- m.pubErrDesc
	ch <- m.latencyDesc
}

func (m *promMetrics) Collect(ch chan<- prometheus.Metric) {
	if m.reg == nil {
		return
	}
	status := m.reg.GetStatus()
	ch <- prometheus.MustNewConstMetric(m.registeredDesc, prometheus.GaugeValue, float64(status.RegisteredAdapters))
	ch <- prometheus.MustNewConstMetric(m.enabledDesc, prometheus.GaugeValue, float64(status.EnabledAdapters))
	ch <- prometheus.MustNewConstMetric(m.runningDesc, prometheus.GaugeValue, float64(status.RunningInstances))

	for _, inst := range status.InstanceStatuses {
		ch <- prometheus.MustNewConstMetric(m.processedDesc, prometheus.CounterValue, float64(inst.Metrics.MessagesProcessed), inst.Name)
		ch <- prometheus.MustNewConstMetric(m.publishedDesc, prometheus.CounterValue, float64(inst.Metrics.MessagesPublished), inst.Name)
		ch <- prometheus.MustNewConstMetric(m.procErrDesc, prometheus.CounterValue, float64(inst.Metrics.ProcessingErrors), inst.Name)
		ch <- prometheus.MustNewConstMetric(m.pubErrDesc, prometheus.CounterValue, float64(inst.Metrics.PublishErrors), inst.Name)
		ch <- prometheus.MustNewConstMetric(m.latencyDesc, prometheus.GaugeValue, inst.Metrics.AverageProcessingLatencyMs, inst.Name)
	}
}

type metricsJSONService struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Uptime  float64     `json:"uptime"`
	Memory  memoryStats `json:"memory"`
	CPU     cpuStats    `json:"cpu"`
}

type memoryStats struct {
	AllocBytes uint64 `json:"allocBytes"`
	SysBytes   uint64 `json:"sysBytes"`
}

type cpuStats struct {
	Goroutines int `json:"goroutines"`
	NumCPU     int `json:"numCPU"`
}

type metricsJSONAdapters struct {
	Registered int            `json:"registered"`
	Enabled    int            `json:"enabled"`
	Running    int            `json:"running"`
	Instances  []instanceView `json:"instances"`
}

type metricsJSONResponse struct {
	Service   metricsJSONService  `json:"service"`
	Adapters  metricsJSONAdapters `json:"adapters"`
	Timestamp string              `json:"timestamp"`
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, _ *http.Request) {
	status := s.reg.GetStatus()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	instances := make([]instanceView, 0, len(status.InstanceStatuses))
	for _, inst := range status.InstanceStatuses {
		instances = append(instances, instanceView{
			Name:    inst.Name,
			State:   inst.State,
			Metrics: newMetricsView(inst.Metrics),
		})
	}

	resp := metricsJSONResponse{
		Service: metricsJSONService{
			Name:    s.serviceName,
			Version: s.version,
			Uptime:  s.uptime().Seconds(),
			Memory:  memoryStats{AllocBytes: mem.Alloc, SysBytes: mem.Sys},
			CPU:     cpuStats{Goroutines: runtime.NumGoroutine(), NumCPU: runtime.NumCPU()},
		},
		Adapters: metricsJSONAdapters{
			Registered: status.RegisteredAdapters,
			Enabled:    status.EnabledAdapters,
			Running:    status.RunningInstances,
			Instances:  instances,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, resp)
}
