// Package monitoring exposes Prometheus metrics and health state for the server.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Service name for metrics
	ServiceName = "navermapmcp"
)

var (
	// MCP tool metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navermapmcp_mcp_requests_total",
			Help: "Total number of MCP tool calls processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navermapmcp_mcp_request_duration_seconds",
			Help:    "MCP tool call duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"tool"},
	)

	// ToolOutcomesTotal splits tool results into found, not_found and failed.
	ToolOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navermapmcp_tool_outcomes_total",
			Help: "Tool results by outcome",
		},
		[]string{"tool", "outcome"},
	)

	// Provider metrics
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navermapmcp_provider_requests_total",
			Help: "Total number of Naver Maps API requests",
		},
		[]string{"endpoint", "status"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navermapmcp_provider_request_duration_seconds",
			Help:    "Naver Maps API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"endpoint"},
	)

	ProviderResponseStatus = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navermapmcp_provider_response_status_total",
			Help: "Naver Maps API responses by HTTP status code",
		},
		[]string{"endpoint", "code"},
	)

	// Inbound HTTP throttling
	HTTPThrottledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "navermapmcp_http_throttled_total",
			Help: "HTTP transport requests rejected by the per-client throttle",
		},
	)

	// Connection metrics
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navermapmcp_active_connections",
			Help: "Number of active connections",
		},
		[]string{"transport", "type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navermapmcp_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navermapmcp_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "navermapmcp_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "navermapmcp_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)

	GCRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "navermapmcp_gc_runs",
			Help: "Number of completed GC cycles",
		},
	)
)

// TransportInfo holds transport configuration and status
type TransportInfo struct {
	Type     string `json:"type"`                // "streamable_http" or "stdio"
	HTTPAddr string `json:"http_addr,omitempty"` // HTTP address if enabled
}

// ServiceHealth is the payload served on /health.
type ServiceHealth struct {
	Service       string                 `json:"service"`
	Version       string                 `json:"version"`
	Status        string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime        time.Duration          `json:"uptime"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	StartTime     time.Time              `json:"start_time,omitempty"`
	Connections   map[string]ConnStatus  `json:"connections"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
	Transport     *TransportInfo         `json:"transport,omitempty"`
}

// ConnStatus is the last known state of one upstream dependency.
type ConnStatus struct {
	Status    string    `json:"status"`               // "connected", "degraded", "error"
	Latency   int64     `json:"latency_ms,omitempty"` // last observed latency
	LastError string    `json:"last_error,omitempty"` // last error message if any
	CheckedAt time.Time `json:"checked_at"`
}

// Helper functions for common metric updates
func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	MCPRequestsTotal.WithLabelValues(tool, status).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordToolOutcome(tool, outcome string) {
	ToolOutcomesTotal.WithLabelValues(tool, outcome).Inc()
}

func RecordProviderRequest(endpoint string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	ProviderRequestsTotal.WithLabelValues(endpoint, status).Inc()
	ProviderRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func RecordProviderStatus(endpoint string, code int) {
	ProviderResponseStatus.WithLabelValues(endpoint, statusClass(code)).Inc()
}

func RecordThrottled() {
	HTTPThrottledTotal.Inc()
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func UpdateActiveConnections(transport, connType string, count int) {
	ActiveConnections.WithLabelValues(transport, connType).Set(float64(count))
}

// statusClass keeps label cardinality bounded: 2xx..5xx, or "other".
func statusClass(code int) string {
	if code < 200 || code > 599 {
		return "other"
	}
	return string(rune('0'+code/100)) + "xx"
}
