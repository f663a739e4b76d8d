package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marmos91/blobsweep/internal/logger"
	"github.com/marmos91/blobsweep/internal/telemetry"
	"github.com/marmos91/blobsweep/pkg/config"
	"github.com/marmos91/blobsweep/pkg/objectstore"
	"github.com/marmos91/blobsweep/pkg/reference"
)

const serviceName = "blobsweep"

// loadConfig reads --config, or the default file when it exists. Without
// either, defaults plus BLOBSWEEP_* environment overrides are used, which is
// how containers usually run the binary.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile == "" && !config.DefaultConfigExists() {
		cfg, err = config.Load("")
	} else {
		cfg, err = config.MustLoad(cfgFile)
	}
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(logLevel)
	}
	return cfg, nil
}

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initObservability starts tracing and profiling when configured. The
// returned func flushes both.
func initObservability(ctx context.Context, cfg *config.Config) (func(), error) {
	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		_ = telemetryShutdown(ctx)
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}

	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	return func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err)
		}
		// The caller's ctx may already be cancelled; flushing needs its own.
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := telemetryShutdown(flushCtx); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}, nil
}

// stores bundles the two backends a command works against.
type stores struct {
	refs    reference.ReadWriter
	objects objectstore.Store
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	refs, err := config.CreateReferenceStore(ctx, cfg.References)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference store: %w", err)
	}
	objects, err := config.CreateObjectStore(ctx, cfg.Objects)
	if err != nil {
		_ = refs.Close()
		return nil, fmt.Errorf("failed to open object store: %w", err)
	}

	logger.Info("Stores opened", "references", cfg.References.Type, "objects", cfg.Objects.Type)
	return &stores{refs: refs, objects: objects}, nil
}

func (s *stores) Close() error {
	return errors.Join(s.refs.Close(), s.objects.Close())
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
