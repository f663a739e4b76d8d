package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/blobsweep/pkg/api/auth"
	"github.com/marmos91/blobsweep/pkg/scheduler"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags across the whole config, then the backend
// section selected by each store type, then the cron schedule.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateReferences(&cfg.References); err != nil {
		return fmt.Errorf("references.%s: %w", cfg.References.Type, err)
	}
	if err := validateObjects(&cfg.Objects); err != nil {
		return fmt.Errorf("objects.%s: %w", cfg.Objects.Type, err)
	}

	if _, err := scheduler.Parse(cfg.Schedule.Cron); err != nil {
		return fmt.Errorf("schedule.cron: %w", err)
	}

	if cfg.API.IsEnabled() && len(cfg.API.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("api.jwt_secret must be at least %d characters when the API is enabled", auth.MinSecretLength)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return errors.New("telemetry.profiling.endpoint is required when profiling is enabled")
	}
	return nil
}

func validateReferences(cfg *ReferencesConfig) error {
	switch cfg.Type {
	case ReferenceStorePostgres:
		pg := cfg.Postgres
		pg.ApplyDefaults()
		if err := validate.Struct(&pg); err != nil {
			return formatValidationError(err)
		}
		return pg.Validate()
	case ReferenceStoreSQL:
		sqlCfg := cfg.SQL
		sqlCfg.ApplyDefaults()
		return sqlCfg.Validate()
	case ReferenceStoreBadger:
		if cfg.Badger.Path == "" && !cfg.Badger.InMemory {
			return errors.New("path is required unless in_memory is set")
		}
	}
	return nil
}

func validateObjects(cfg *ObjectsConfig) error {
	var section any
	switch cfg.Type {
	case ObjectStoreFS:
		section = &cfg.FS
	case ObjectStoreS3:
		section = &cfg.S3
		if (cfg.S3.AccessKeyID == "") != (cfg.S3.SecretAccessKey == "") {
			return errors.New("access_key_id and secret_access_key must be set together")
		}
	case ObjectStoreGCS:
		section = &cfg.GCS
	case ObjectStoreAzure:
		section = &cfg.Azblob
	default:
		return nil
	}
	if err := validate.Struct(section); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError turns validator errors into one readable line per
// field, keeping the failed tag name so callers can match on it.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q (%s) validation, got %v", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q validation", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
