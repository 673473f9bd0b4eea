package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the server's Prometheus collectors. It is optional
// everywhere: a nil *Registry disables recording.
type Registry struct {
	reg *prometheus.Registry

	framesTotal      *prometheus.CounterVec
	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	catalogSize      prometheus.Gauge
}

// New creates a registry with all collectors registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odata_mcp_frames_total",
			Help: "JSON-RPC frames processed, by method and outcome.",
		}, []string{"method", "outcome"}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odata_mcp_tool_calls_total",
			Help: "Tool invocations, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odata_mcp_tool_call_duration_seconds",
			Help:    "Wall-clock duration of tool invocations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		catalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "odata_mcp_catalog_tools",
			Help: "Number of tools in the published catalog snapshot.",
		}),
	}
	reg.MustRegister(m.framesTotal, m.toolCallsTotal, m.toolCallDuration, m.catalogSize)
	return m
}

// ObserveFrame records one processed protocol frame.
func (m *Registry) ObserveFrame(method, outcome string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(method, outcome).Inc()
}

// ObserveToolCall records one tool invocation.
func (m *Registry) ObserveToolCall(tool, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	m.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// SetCatalogSize records the size of the published snapshot.
func (m *Registry) SetCatalogSize(n int) {
	if m == nil {
		return
	}
	m.catalogSize.Set(float64(n))
}

// Handler exposes the collectors for an optional /metrics listener.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
