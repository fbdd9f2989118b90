// Package metrics exposes Prometheus instrumentation for the support cache
// and the reporting pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup outcomes
const (
	LookupHit         = "hit"
	LookupNegativeHit = "negative_hit"
	LookupMiss        = "miss"
	LookupExpired     = "expired"
	LookupError       = "resolver_error"
)

// Metrics provides observability for support lookups and Peppol reporting.
type Metrics struct {
	// Support cache lookups by cache name and outcome
	CacheLookups *prometheus.CounterVec

	// Directory resolution latency by cache name
	ResolveLatency *prometheus.HistogramVec

	// Validation results by report type and validity
	ReportsValidated *prometheus.CounterVec

	// Storage calls by backend, record kind and result
	StorageWrites *prometheus.CounterVec

	// Send attempts by report type and result
	ReportsSent *prometheus.CounterVec
}

// New registers all metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peppol_support_cache_lookups_total",
			Help: "Support cache lookups by cache and outcome",
		}, []string{"cache", "outcome"}),

		ResolveLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "peppol_support_resolve_duration_seconds",
			Help:    "Duration of directory resolutions triggered by cache misses",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"cache"}),

		ReportsValidated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peppol_reporting_validations_total",
			Help: "Report validations by report type and validity",
		}, []string{"report_type", "valid"}),

		StorageWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peppol_reporting_storage_writes_total",
			Help: "Report storage writes by backend, kind and result",
		}, []string{"backend", "kind", "result"}),

		ReportsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peppol_reporting_sends_total",
			Help: "Report transmissions by report type and result",
		}, []string{"report_type", "result"}),
	}
}

// IncLookup records a cache lookup outcome.
func (m *Metrics) IncLookup(cache, outcome string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(cache, outcome).Inc()
	}
}

// ObserveResolve records how long a directory resolution took.
func (m *Metrics) ObserveResolve(cache string, d time.Duration) {
	if m != nil {
		m.ResolveLatency.WithLabelValues(cache).Observe(d.Seconds())
	}
}

// IncValidated records a validation result.
func (m *Metrics) IncValidated(reportType string, valid bool) {
	if m != nil {
		m.ReportsValidated.WithLabelValues(reportType, boolLabel(valid)).Inc()
	}
}

// IncStorageWrite records a storage write.
func (m *Metrics) IncStorageWrite(backend, kind string, err error) {
	if m != nil {
		m.StorageWrites.WithLabelValues(backend, kind, errLabel(err)).Inc()
	}
}

// IncSent records a send attempt.
func (m *Metrics) IncSent(reportType string, err error) {
	if m != nil {
		m.ReportsSent.WithLabelValues(reportType, errLabel(err)).Inc()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func errLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
