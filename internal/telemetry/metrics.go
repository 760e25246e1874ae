package telemetry

import "github.com/prometheus/client_golang/prometheus"

// HTTPRequestDuration records HTTP request latency by method, route pattern,
// and status code. Registered on every server regardless of domain.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "keymaster",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	},
	[]string{"method", "route", "status"},
)

// ValidateDuration records the latency of the key validation state machine,
// independent of the surrounding HTTP request.
var ValidateDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "keymaster",
		Subsystem: "validate",
		Name:      "duration_seconds",
		Help:      "Key validation duration in seconds.",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	},
)

// ValidateResultsTotal counts validation outcomes by result
// (ok, denied, rate_limited), matching the audit event taxonomy.
var ValidateResultsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "keymaster",
		Subsystem: "validate",
		Name:      "results_total",
		Help:      "Total number of key validations by result.",
	},
	[]string{"result"},
)

// KeysMintedTotal counts successful key minting operations by project.
var KeysMintedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "keymaster",
		Subsystem: "keys",
		Name:      "minted_total",
		Help:      "Total number of API keys minted.",
	},
	[]string{"project_id"},
)

// KeysRevokedTotal counts successful key revocation operations by project.
var KeysRevokedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "keymaster",
		Subsystem: "keys",
		Name:      "revoked_total",
		Help:      "Total number of API keys revoked.",
	},
	[]string{"project_id"},
)

// RateLimitDeniedTotal counts requests denied by the per-key rate limiter.
var RateLimitDeniedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "keymaster",
		Subsystem: "validate",
		Name:      "rate_limit_denied_total",
		Help:      "Total number of validations denied by the rate limiter.",
	},
	[]string{"project_id"},
)

// All returns every KeyMaster-specific collector for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		ValidateDuration,
		ValidateResultsTotal,
		KeysMintedTotal,
		KeysRevokedTotal,
		RateLimitDeniedTotal,
	}
}

// NewMetricsRegistry builds a Prometheus registry carrying the Go/process
// collectors plus every KeyMaster collector and any extras the caller
// supplies.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	for _, c := range All() {
		reg.MustRegister(c)
	}
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
