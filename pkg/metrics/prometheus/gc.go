// Package prometheus provides the Prometheus implementations of the metric
// interfaces used across blobsweep. Import it for side effects to make the
// constructors in pkg/metrics return live sinks:
//
//	import _ "github.com/marmos91/blobsweep/pkg/metrics/prometheus"
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/blobsweep/pkg/gc"
	"github.com/marmos91/blobsweep/pkg/metrics"
	"github.com/marmos91/blobsweep/pkg/reference"
)

func init() {
	metrics.RegisterGCMetricsConstructor(newGCMetricsIface)
	metrics.RegisterObjectStoreMetricsConstructor(newObjectStoreMetricsIface)
}

// gcMetrics is the Prometheus implementation of gc.Metrics.
type gcMetrics struct {
	passesTotal       *prometheus.CounterVec
	passDuration      prometheus.Histogram
	lastPassTimestamp *prometheus.GaugeVec
	scopesTotal       *prometheus.CounterVec
	scopeDuration     prometheus.Histogram
	objectsListed     prometheus.Counter
	orphansFound      prometheus.Counter
	objectsDeleted    prometheus.Counter
	deleteFailures    prometheus.Counter
	deletesByOutcome  *prometheus.CounterVec
	bytesReclaimed    prometheus.Counter
}

// NewGCMetrics creates a new Prometheus-backed gc.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewGCMetrics() *gcMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &gcMetrics{
		passesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blobsweep_passes_total",
				Help: "Total number of reconciliation passes by status",
			},
			[]string{"status"}, // "success", "partial", "aborted"
		),
		passDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "blobsweep_pass_duration_seconds",
				Help: "Wall-clock duration of reconciliation passes in seconds",
				Buckets: []float64{
					1,    // 1s - tiny deployments
					10,   // 10s
					60,   // 1m
					300,  // 5m
					900,  // 15m
					1800, // 30m
					3600, // 1h - default pass timeout
				},
			},
		),
		lastPassTimestamp: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "blobsweep_last_pass_timestamp_seconds",
				Help: "Unix time at which the last pass finished, by status",
			},
			[]string{"status"},
		),
		scopesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blobsweep_scopes_total",
				Help: "Total number of scopes walked by status",
			},
			[]string{"status"}, // "success", "failed"
		),
		scopeDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blobsweep_scope_duration_seconds",
				Help:    "Duration of a single scope walk in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms .. ~164s
			},
		),
		objectsListed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blobsweep_objects_listed_total",
				Help: "Total number of objects read from the object store",
			},
		),
		orphansFound: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blobsweep_orphans_found_total",
				Help: "Total number of unreferenced objects found",
			},
		),
		objectsDeleted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blobsweep_objects_deleted_total",
				Help: "Total number of orphan objects deleted, including already-absent ones",
			},
		),
		deleteFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blobsweep_delete_failures_total",
				Help: "Total number of failed orphan deletes",
			},
		),
		deletesByOutcome: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blobsweep_deletes_total",
				Help: "Orphans handed to the executor by outcome",
			},
			[]string{"outcome"}, // "deleted", "not_found", "failed", "dry_run"
		),
		bytesReclaimed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "blobsweep_bytes_reclaimed_total",
				Help: "Total payload bytes freed by deletes",
			},
		),
	}
}

func newGCMetricsIface() gc.Metrics {
	m := NewGCMetrics()
	if m == nil {
		return nil
	}
	return m
}

func passStatus(r *gc.PassResult) string {
	switch {
	case r.Aborted:
		return "aborted"
	case r.HasFailures():
		return "partial"
	default:
		return "success"
	}
}

func (m *gcMetrics) ObservePass(r *gc.PassResult) {
	if m == nil || r == nil {
		return
	}
	status := passStatus(r)
	m.passesTotal.WithLabelValues(status).Inc()
	m.passDuration.Observe(r.Duration().Seconds())
	m.lastPassTimestamp.WithLabelValues(status).Set(float64(r.FinishedAt.Unix()))
}

func (m *gcMetrics) ObserveScope(r *gc.ScopeResult) {
	if m == nil || r == nil {
		return
	}
	status := "success"
	if r.Failed() {
		status = "failed"
	}
	m.scopesTotal.WithLabelValues(status).Inc()
	m.scopeDuration.Observe(r.DurationMs / 1000)
	m.objectsListed.Add(float64(r.Listed))
	m.orphansFound.Add(float64(r.Report.Orphans))
	m.bytesReclaimed.Add(float64(r.Report.BytesReclaimed))
}

func (m *gcMetrics) RecordDelete(_ reference.Scope, outcome gc.DeleteOutcome) {
	if m == nil {
		return
	}
	m.deletesByOutcome.WithLabelValues(string(outcome)).Inc()
	switch outcome {
	case gc.OutcomeDeleted, gc.OutcomeNotFound:
		m.objectsDeleted.Inc()
	case gc.OutcomeFailed:
		m.deleteFailures.Inc()
	}
}
