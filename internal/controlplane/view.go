package controlplane

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/feedgate/internal/adapter"
	"github.com/coachpo/feedgate/internal/connmgr"
	"github.com/coachpo/feedgate/internal/integration"
)

// millisPrecision is the rounding applied to latency/RTT values at the
// JSON boundary, matching the milliseconds the underlying EWMAs already
// operate at.
const millisPrecision = 3

// statusView renders adapter.Status for JSON, backing its latency/RTT
// fields with decimal.Decimal so exchange-observed timings survive the
// boundary without float-rounding artifacts, the way the teacher uses
// decimal for exchange-sourced numeric fields.
type statusView struct {
	Status       connmgr.State   `json:"status"`
	Health       adapter.Health  `json:"health"`
	Connected    bool            `json:"connected"`
	Reconnecting bool            `json:"reconnecting"`
	ErrorRate    decimal.Decimal `json:"errorRate"`
	AvgLatencyMs decimal.Decimal `json:"avgLatencyMs"`
	RTTMs        decimal.Decimal `json:"rttMs"`
}

func newStatusView(s adapter.Status) statusView {
	return statusView{
		Status:       s.Status,
		Health:       s.Health,
		Connected:    s.Connected,
		Reconnecting: s.Reconnecting,
		ErrorRate:    decimal.NewFromFloat(s.ErrorRate).Round(4),
		AvgLatencyMs: decimal.NewFromFloat(s.AvgLatencyMs).Round(millisPrecision),
		RTTMs:        decimal.NewFromFloat(s.RTTMs).Round(millisPrecision),
	}
}

// metricsView renders integration.Metrics for JSON.
type metricsView struct {
	AdapterStatus              statusView      `json:"adapterStatus"`
	MessagesProcessed          int64           `json:"messagesProcessed"`
	MessagesPublished          int64           `json:"messagesPublished"`
	ProcessingErrors           int64           `json:"processingErrors"`
	PublishErrors              int64           `json:"publishErrors"`
	AverageProcessingLatencyMs decimal.Decimal `json:"averageProcessingLatencyMs"`
	LastActivity               time.Time       `json:"lastActivity"`
}

func newMetricsView(m integration.Metrics) metricsView {
	return metricsView{
		AdapterStatus:              newStatusView(m.AdapterStatus),
		MessagesProcessed:          m.MessagesProcessed,
		MessagesPublished:          m.MessagesPublished,
		ProcessingErrors:           m.ProcessingErrors,
		PublishErrors:              m.PublishErrors,
		AverageProcessingLatencyMs: decimal.NewFromFloat(m.AverageProcessingLatencyMs).Round(millisPrecision),
		LastActivity:               m.LastActivity,
	}
}

// instanceView renders registry.InstanceStatus for JSON.
type instanceView struct {
	Name    string          `json:"name"`
	State   integration.State `json:"state"`
	Metrics metricsView     `json:"metrics"`
}
