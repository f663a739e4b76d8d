package metrics

import "github.com/marmos91/blobsweep/pkg/objectstore"

// NewObjectStoreMetrics returns a Prometheus-backed objectstore.OperationMetrics.
//
// Returns nil if metrics are not enabled; objectstore.Instrument then only
// records spans.
func NewObjectStoreMetrics() objectstore.OperationMetrics {
	if !IsEnabled() || newPrometheusObjectStoreMetrics == nil {
		return nil
	}
	return newPrometheusObjectStoreMetrics()
}

var newPrometheusObjectStoreMetrics func() objectstore.OperationMetrics

// RegisterObjectStoreMetricsConstructor registers the Prometheus object store
// metrics constructor. Called by pkg/metrics/prometheus during package
// initialization.
func RegisterObjectStoreMetricsConstructor(constructor func() objectstore.OperationMetrics) {
	newPrometheusObjectStoreMetrics = constructor
}
