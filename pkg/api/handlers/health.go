package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker is implemented by both reference and object stores.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StoreCheck names one store probed by the readiness endpoints.
type StoreCheck struct {
	Name    string
	Kind    string // "reference" or "object"
	Checker HealthChecker
}

// StoreHealth is the health status of a single store.
type StoreHealth struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthHandler serves the /health endpoints.
type HealthHandler struct {
	stores    []StoreCheck
	startedAt time.Time
	timeout   time.Duration
}

// NewHealthHandler creates a health handler over stores.
func NewHealthHandler(stores ...StoreCheck) *HealthHandler {
	return &HealthHandler{
		stores:    stores,
		startedAt: time.Now(),
		timeout:   5 * time.Second,
	}
}

// Liveness handles GET /health. It succeeds whenever the process can answer.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt)
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "blobsweep",
		"started_at": h.startedAt.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready: 200 when every store answers its
// health check, 503 otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if len(h.stores) == 0 {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no stores configured", nil))
		return
	}

	results, ok := h.check(r.Context())
	if !ok {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("store unhealthy", results))
		return
	}
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]int{"stores": len(results)}))
}

// Stores handles GET /health/stores with per-store detail.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	results, ok := h.check(r.Context())
	if !ok {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("store unhealthy", results))
		return
	}
	WriteJSON(w, http.StatusOK, healthyResponse(results))
}

func (h *HealthHandler) check(ctx context.Context) ([]StoreHealth, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make([]StoreHealth, 0, len(h.stores))
	allHealthy := true
	for _, s := range h.stores {
		start := time.Now()
		err := s.Checker.HealthCheck(ctx)

		health := StoreHealth{
			Name:    s.Name,
			Kind:    s.Kind,
			Status:  "healthy",
			Latency: time.Since(start).String(),
		}
		if err != nil {
			health.Status = "unhealthy"
			health.Error = err.Error()
			allHealthy = false
		}
		results = append(results, health)
	}
	return results, allHealthy
}
