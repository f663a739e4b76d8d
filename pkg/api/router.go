package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/marmos91/blobsweep/internal/logger"
	"github.com/marmos91/blobsweep/internal/telemetry"
	"github.com/marmos91/blobsweep/pkg/api/auth"
	"github.com/marmos91/blobsweep/pkg/api/handlers"
	apimw "github.com/marmos91/blobsweep/pkg/api/middleware"
	"github.com/marmos91/blobsweep/pkg/metrics"
)

// NewRouter creates the chi router with all middleware and routes. Every
// /api/v1 route requires a bearer token accepted by tokens; health probes
// and /metrics are open.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /health/stores - Detailed store health
//   - POST /api/v1/passes - Start a pass in the background
//   - GET /api/v1/passes/last - Result of the most recent pass
//   - GET /api/v1/passes/status - Running flag and next scheduled run
//   - DELETE /api/v1/objects/* - Delete one object by key
//   - DELETE /api/v1/scopes/{scope}/records/{id} - Delete a record and its object
//   - GET /metrics - Prometheus metrics, when enabled
func NewRouter(cfg APIConfig, deps Dependencies, tokens *auth.JWTService) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestTracer)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(deps.storeChecks()...)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/stores", healthHandler.Stores)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	if cfg.ExposeMetrics {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apimw.JWTAuth(tokens))

		if deps.Passes != nil {
			passHandler := handlers.NewPassHandler(deps.Passes)
			r.Route("/passes", func(r chi.Router) {
				r.Post("/", passHandler.Start)
				r.Get("/last", passHandler.Last)
				r.Get("/status", passHandler.Status)
			})
		}

		if deps.Objects != nil && deps.References != nil {
			objectHandler := handlers.NewObjectHandler(deps.Objects, deps.References, deps.Records, deps.Namespace)
			r.Delete("/objects/*", objectHandler.Forget)
			r.Delete("/scopes/{scope}/records/{id}", objectHandler.ForgetRecord)
		}
	})

	return r
}

// requestTracer opens one span per request and names it after the matched
// chi route once routing has happened.
func requestTracer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := telemetry.StartSpan(r.Context(), telemetry.SpanAPIRequest)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		span.SetAttributes(
			attribute.String(telemetry.AttrHTTPMethod, r.Method),
			attribute.String(telemetry.AttrHTTPRoute, route),
			attribute.Int(telemetry.AttrHTTPStatus, ww.Status()),
		)
		if ww.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

// requestLogger logs request start at DEBUG and completion at INFO.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.DebugCtx(r.Context(), "API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.InfoCtx(r.Context(), "API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, float64(time.Since(start).Microseconds())/1000,
		)
	})
}
