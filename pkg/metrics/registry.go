// Package metrics holds the process-wide Prometheus registry and the
// constructors that hand out metric sinks to the rest of blobsweep.
//
// Metrics are opt-in. Until InitRegistry is called every constructor returns
// nil, and callers treat a nil sink as "metrics disabled" at zero cost.
//
// The Prometheus implementations live in pkg/metrics/prometheus and register
// themselves here from init, so that packages defining metric interfaces
// (pkg/gc, pkg/objectstore) never import Prometheus directly.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry enables metrics and creates a fresh registry carrying the Go
// runtime and process collectors. Calling it again replaces the registry.
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mu.Lock()
	registry = reg
	mu.Unlock()
	return reg
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the active registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Handler serves the active registry in the Prometheus exposition format.
// With metrics disabled it answers 404.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Disable drops the registry. Used by tests and on shutdown.
func Disable() {
	mu.Lock()
	registry = nil
	mu.Unlock()
}
