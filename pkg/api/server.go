// Package api serves the blobsweep operator HTTP API: health probes, pass
// control and on-demand object deletion.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/blobsweep/internal/logger"
	"github.com/marmos91/blobsweep/pkg/api/auth"
	"github.com/marmos91/blobsweep/pkg/api/handlers"
	"github.com/marmos91/blobsweep/pkg/objectstore"
	"github.com/marmos91/blobsweep/pkg/reference"
)

// Dependencies are the components the API exposes. Any of them may be nil;
// the routes that need a missing one are not mounted. Object deletion needs
// References to check that a key is no longer referenced, and record
// deletion additionally needs Records.
type Dependencies struct {
	References reference.Store
	Records    reference.ReadWriter
	Objects    objectstore.Store
	Passes     handlers.PassController

	// Namespace is the key prefix above scope directories, as in gc.Options.
	Namespace string
}

func (d Dependencies) storeChecks() []handlers.StoreCheck {
	var checks []handlers.StoreCheck
	if d.References != nil {
		checks = append(checks, handlers.StoreCheck{Name: "references", Kind: "reference", Checker: d.References})
	}
	if d.Objects != nil {
		checks = append(checks, handlers.StoreCheck{Name: "objects", Kind: "object", Checker: d.Objects})
	}
	return checks
}

// Server is the API HTTP server.
type Server struct {
	server       *http.Server
	config       APIConfig
	shutdownOnce sync.Once

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a stopped API server. Defaults are applied here too so
// tests can build one from a bare config. It fails when the JWT secret is
// missing or too short, since /api/v1 is never served unauthenticated.
func NewServer(config APIConfig, deps Dependencies) (*Server, error) {
	config.ApplyDefaults()

	tokens, err := auth.NewJWTService(config.JWTConfig())
	if err != nil {
		return nil, fmt.Errorf("api.jwt_secret: %w", err)
	}

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      NewRouter(config, deps, tokens),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
	}, nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("API server failed: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// ctx is already cancelled, so shutdown gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.KeyError, err)
			return
		}
		logger.Info("API server stopped gracefully")
	})
	return shutdownErr
}

// Addr returns the bound address once Start is listening, or the configured
// one before that.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Handler returns the router, for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
