package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for certchain
type Metrics struct {
	// Ledger metrics
	LedgerCalls       *prometheus.CounterVec
	LedgerCallLatency *prometheus.HistogramVec

	// Workflow metrics
	IssuanceOutcomes     *prometheus.CounterVec
	VerificationOutcomes *prometheus.CounterVec
	ArtifactsExported    prometheus.Counter
	ExportLatency        prometheus.Histogram

	// Binding metrics
	BindingRefreshes *prometheus.CounterVec
	NetworkID        prometheus.Gauge

	EndpointLatency *prometheus.HistogramVec
}

// New registers all metrics with reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LedgerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certchain_ledger_calls_total",
			Help: "Ledger invocations and queries, labeled by method, mode and outcome",
		}, []string{"method", "mode", "outcome"}),
		// generateCertificate waits for a receipt, so buckets reach well past a block time
		LedgerCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certchain_ledger_call_latency_seconds",
			Help:    "Latency of ledger calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"method", "mode"}),
		IssuanceOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certchain_issuance_outcomes_total",
			Help: "Certificate submissions, labeled by outcome",
		}, []string{"outcome"}),
		VerificationOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certchain_verification_outcomes_total",
			Help: "Verification attempts, labeled by outcome",
		}, []string{"outcome"}),
		ArtifactsExported: f.NewCounter(prometheus.CounterOpts{
			Name: "certchain_artifacts_exported_total",
			Help: "Total number of certificate documents exported",
		}),
		ExportLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "certchain_export_latency_seconds",
			Help:    "Latency of rasterize and export in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		BindingRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certchain_binding_refreshes_total",
			Help: "Ledger binding refreshes after identity changes, labeled by outcome",
		}, []string{"outcome"}),
		NetworkID: f.NewGauge(prometheus.GaugeOpts{
			Name: "certchain_network_id",
			Help: "Network id of the current ledger binding, 0 when unbound",
		}),
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certchain_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// ObserveLedgerCall records one ledger call and its latency.
func (m *Metrics) ObserveLedgerCall(method, mode, outcome string, durationSeconds float64) {
	m.LedgerCalls.WithLabelValues(method, mode, outcome).Inc()
	m.LedgerCallLatency.WithLabelValues(method, mode).Observe(durationSeconds)
}

func (m *Metrics) IncrementIssuance(outcome string) {
	m.IssuanceOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementVerification(outcome string) {
	m.VerificationOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveExport records an exported artifact
func (m *Metrics) ObserveExport(durationSeconds float64) {
	m.ArtifactsExported.Inc()
	m.ExportLatency.Observe(durationSeconds)
}

// RecordBindingRefresh records a rebind attempt and the resulting network.
func (m *Metrics) RecordBindingRefresh(outcome string, networkID uint64) {
	m.BindingRefreshes.WithLabelValues(outcome).Inc()
	m.NetworkID.Set(float64(networkID))
}

// ObserveEndpointLatency records the latency for a given endpoint
func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}
