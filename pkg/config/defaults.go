package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/blobsweep/internal/telemetry"
	"github.com/marmos91/blobsweep/pkg/api"
	"github.com/marmos91/blobsweep/pkg/gc"
	"github.com/marmos91/blobsweep/pkg/objectstore"
)

// Defaults for fields where zero is a meaningful setting. They are applied
// by GetDefaultConfig (and therefore by Load for omitted keys) but never by
// ApplyDefaults, so an explicit 0 in the file survives.
const (
	DefaultGracePeriod = 10 * time.Minute
	DefaultPassTimeout = time.Hour
	DefaultCron        = "0 2 * * *"
)

// ApplyDefaults fills zero values that have no meaningful zero setting.
// Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	cfg.API.ApplyDefaults()

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = DefaultCron
	}

	applyGCDefaults(&cfg.GC)
	applyReferencesDefaults(&cfg.References)
	applyObjectsDefaults(&cfg.Objects)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = append([]string(nil), telemetry.DefaultProfileTypes...)
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyGCDefaults(cfg *GCConfig) {
	cfg.Namespace = strings.Trim(cfg.Namespace, "/")
	if cfg.ScopeConcurrency == 0 {
		cfg.ScopeConcurrency = gc.DefaultScopeConcurrency
	}
	if cfg.DeleteConcurrency == 0 {
		cfg.DeleteConcurrency = gc.DefaultDeleteConcurrency
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = objectstore.DefaultPageSize
	}
}

func applyReferencesDefaults(cfg *ReferencesConfig) {
	if cfg.Type == "" {
		cfg.Type = ReferenceStoreMemory
	}
	switch cfg.Type {
	case ReferenceStorePostgres:
		cfg.Postgres.ApplyDefaults()
	case ReferenceStoreSQL:
		cfg.SQL.ApplyDefaults()
	case ReferenceStoreBadger:
		if cfg.Badger.Path == "" && !cfg.Badger.InMemory {
			cfg.Badger.Path = filepath.Join(GetConfigDir(), "references.badger")
		}
	}
}

func applyObjectsDefaults(cfg *ObjectsConfig) {
	if cfg.Type == "" {
		cfg.Type = ObjectStoreMemory
	}
}

// GetDefaultConfig returns a Config with every default applied. Load seeds
// viper with it, so omitted keys in a file take these values.
func GetDefaultConfig() *Config {
	disabled := false
	cfg := &Config{
		API: api.APIConfig{Enabled: &disabled},
		GC: GCConfig{
			GracePeriod: DefaultGracePeriod,
			PassTimeout: DefaultPassTimeout,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
