package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/blobsweep/pkg/metrics"
	"github.com/marmos91/blobsweep/pkg/objectstore"
)

// objectStoreMetrics is the Prometheus implementation of objectstore.OperationMetrics.
type objectStoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	pageEntries       *prometheus.HistogramVec
}

// NewObjectStoreMetrics creates a new Prometheus-backed object store metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewObjectStoreMetrics() *objectStoreMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &objectStoreMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blobsweep_objectstore_operations_total",
				Help: "Total number of object store operations by store, operation and status",
			},
			[]string{"store", "operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "blobsweep_objectstore_operation_duration_milliseconds",
				Help: "Duration of object store operations in milliseconds",
				Buckets: []float64{
					1,     // 1ms - local backends
					10,    // 10ms
					50,    // 50ms - single delete
					100,   // 100ms
					500,   // 500ms - full list page
					1000,  // 1s
					5000,  // 5s - throttled
					30000, // 30s
				},
			},
			[]string{"store", "operation"},
		),
		pageEntries: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blobsweep_objectstore_page_entries",
				Help:    "Distribution of entries returned per list page",
				Buckets: []float64{0, 1, 10, 100, 500, 1000},
			},
			[]string{"store"},
		),
	}
}

func newObjectStoreMetricsIface() objectstore.OperationMetrics {
	m := NewObjectStoreMetrics()
	if m == nil {
		return nil
	}
	return m
}

func (m *objectStoreMetrics) ObserveOperation(storeType, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(storeType, operation, status).Inc()
	m.operationDuration.WithLabelValues(storeType, operation).Observe(duration.Seconds() * 1000)
}

func (m *objectStoreMetrics) ObserveListed(storeType string, entries int) {
	if m == nil {
		return
	}
	m.pageEntries.WithLabelValues(storeType).Observe(float64(entries))
}
