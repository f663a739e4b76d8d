package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/blobsweep/internal/logger"
	"github.com/marmos91/blobsweep/pkg/api"
	"github.com/marmos91/blobsweep/pkg/gc"
	"github.com/marmos91/blobsweep/pkg/metrics"
	"github.com/marmos91/blobsweep/pkg/scheduler"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/blobsweep/pkg/metrics/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run passes on a schedule",
	Long: `Run reconciliation passes on the configured cron schedule until stopped.

The metrics endpoint and the HTTP API are started when enabled in the
configuration. On SIGINT or SIGTERM the API stops accepting requests, a pass
in progress gets shutdown_timeout to finish and is cancelled after that.

Examples:
  # Serve with the default config location
  blobsweep serve

  # Sweep every hour, Chicago time
  BLOBSWEEP_SCHEDULE_CRON="CRON_TZ=America/Chicago 0 * * * *" blobsweep serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := initObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	logger.Info("blobsweep starting", "version", Version, "commit", Commit)
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	// The registry must exist before any store or collector asks for a sink.
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	collector := gc.New(st.refs, st.objects, cfg.GC.Options(gc.WithMetrics(metrics.NewGCMetrics()))...)

	sched, err := scheduler.New(cfg.Schedule, collector, cfg.GC.PassTimeout)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	var apiServer *api.Server
	if cfg.API.IsEnabled() {
		apiServer, err = api.NewServer(cfg.API, api.Dependencies{
			References: st.refs,
			Records:    st.refs,
			Objects:    st.objects,
			Passes:     sched,
			Namespace:  cfg.GC.Namespace,
		})
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
		logger.Info("API server enabled", "port", cfg.API.Port)
	} else {
		logger.Info("API server disabled")
	}

	serverErr := make(chan error, 2)
	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- err
			}
		}()
	}
	if apiServer != nil {
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				serverErr <- err
			}
		}()
	}

	sched.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("Server is running. Press Ctrl+C to stop.")

	var runErr error
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
	case runErr = <-serverErr:
		logger.Error("Server error", logger.KeyError, runErr)
	}
	signal.Stop(sigChan)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if apiServer != nil {
		if err := apiServer.Stop(shutdownCtx); err != nil {
			logger.Error("API server shutdown error", logger.KeyError, err)
		}
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("Running pass cancelled at shutdown", logger.KeyError, err)
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown error", logger.KeyError, err)
		}
	}
	cancel()

	if runErr != nil {
		return runErr
	}
	logger.Info("Server stopped gracefully")
	return nil
}
