package metrics

import "github.com/marmos91/blobsweep/pkg/gc"

// NewGCMetrics returns a Prometheus-backed gc.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or if the
// prometheus package was not linked in. gc.New treats nil as a no-op sink.
//
// Example usage:
//
//	metrics.InitRegistry()
//	collector := gc.New(refs, objects, gc.WithMetrics(metrics.NewGCMetrics()))
func NewGCMetrics() gc.Metrics {
	if !IsEnabled() || newPrometheusGCMetrics == nil {
		return nil
	}
	return newPrometheusGCMetrics()
}

// newPrometheusGCMetrics is implemented in pkg/metrics/prometheus/gc.go.
// This indirection avoids import cycles while keeping the API clean.
var newPrometheusGCMetrics func() gc.Metrics

// RegisterGCMetricsConstructor registers the Prometheus gc metrics constructor.
// Called by pkg/metrics/prometheus during package initialization.
func RegisterGCMetricsConstructor(constructor func() gc.Metrics) {
	newPrometheusGCMetrics = constructor
}
