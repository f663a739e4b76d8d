package config

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/marmos91/blobsweep/internal/logger"
	"github.com/marmos91/blobsweep/internal/telemetry"
	"github.com/marmos91/blobsweep/pkg/metrics"
	"github.com/marmos91/blobsweep/pkg/objectstore"
	objazure "github.com/marmos91/blobsweep/pkg/objectstore/azblob"
	objfs "github.com/marmos91/blobsweep/pkg/objectstore/fs"
	objgcs "github.com/marmos91/blobsweep/pkg/objectstore/gcs"
	objmemory "github.com/marmos91/blobsweep/pkg/objectstore/memory"
	objs3 "github.com/marmos91/blobsweep/pkg/objectstore/s3"
	"github.com/marmos91/blobsweep/pkg/reference"
	refbadger "github.com/marmos91/blobsweep/pkg/reference/badger"
	refmemory "github.com/marmos91/blobsweep/pkg/reference/memory"
	refpostgres "github.com/marmos91/blobsweep/pkg/reference/postgres"
	"github.com/marmos91/blobsweep/pkg/reference/sqlstore"
)

// Reference store backends.
const (
	ReferenceStoreMemory   = "memory"
	ReferenceStorePostgres = "postgres"
	ReferenceStoreSQL      = "sql"
	ReferenceStoreBadger   = "badger"
)

// Object store backends.
const (
	ObjectStoreMemory = "memory"
	ObjectStoreFS     = "fs"
	ObjectStoreS3     = "s3"
	ObjectStoreGCS    = "gcs"
	ObjectStoreAzure  = "azblob"
)

// ReferencesConfig selects and configures the reference store. Only the
// section matching Type is read or validated.
type ReferencesConfig struct {
	Type     string             `mapstructure:"type" validate:"required,oneof=memory postgres sql badger" yaml:"type" json:"type" jsonschema:"enum=memory,enum=postgres,enum=sql,enum=badger"`
	Postgres refpostgres.Config `mapstructure:"postgres" validate:"-" yaml:"postgres" json:"postgres"`
	SQL      sqlstore.Config    `mapstructure:"sql" validate:"-" yaml:"sql" json:"sql"`
	Badger   refbadger.Config   `mapstructure:"badger" validate:"-" yaml:"badger" json:"badger"`
}

// ObjectsConfig selects and configures the object store. Only the section
// matching Type is read or validated.
type ObjectsConfig struct {
	Type   string          `mapstructure:"type" validate:"required,oneof=memory fs s3 gcs azblob" yaml:"type" json:"type" jsonschema:"enum=memory,enum=fs,enum=s3,enum=gcs,enum=azblob"`
	FS     objfs.Config    `mapstructure:"fs" validate:"-" yaml:"fs" json:"fs"`
	S3     objs3.Config    `mapstructure:"s3" validate:"-" yaml:"s3" json:"s3"`
	GCS    objgcs.Config   `mapstructure:"gcs" validate:"-" yaml:"gcs" json:"gcs"`
	Azblob objazure.Config `mapstructure:"azblob" validate:"-" yaml:"azblob" json:"azblob"`
}

// CreateReferenceStore opens the configured reference store.
func CreateReferenceStore(ctx context.Context, cfg ReferencesConfig) (reference.ReadWriter, error) {
	switch cfg.Type {
	case ReferenceStoreMemory, "":
		return refmemory.New(), nil
	case ReferenceStorePostgres:
		pgCfg := cfg.Postgres
		pgCfg.ApplyDefaults()
		store, err := refpostgres.New(ctx, &pgCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres reference store: %w", err)
		}
		return store, nil
	case ReferenceStoreSQL:
		sqlCfg := cfg.SQL
		sqlCfg.ApplyDefaults()
		store, err := sqlstore.New(&sqlCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create sql reference store: %w", err)
		}
		return store, nil
	case ReferenceStoreBadger:
		store, err := refbadger.New(cfg.Badger)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger reference store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown reference store type: %q", cfg.Type)
	}
}

// CreateObjectStore opens the configured object store, instrumented with
// tracing and, when enabled, Prometheus operation metrics.
func CreateObjectStore(ctx context.Context, cfg ObjectsConfig) (objectstore.Store, error) {
	store, err := createObjectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	attrs, fields := objectStoreTarget(cfg)
	logger.Info("Object store opened", append([]any{logger.KeyStoreType, cfg.Type}, fields...)...)
	return objectstore.Instrument(store, cfg.Type, metrics.NewObjectStoreMetrics(), attrs...), nil
}

// objectStoreTarget names the bucket or container a cloud store points at,
// as span attributes and as log fields.
func objectStoreTarget(cfg ObjectsConfig) ([]attribute.KeyValue, []any) {
	switch cfg.Type {
	case ObjectStoreS3:
		return []attribute.KeyValue{telemetry.Bucket(cfg.S3.Bucket), telemetry.Region(cfg.S3.Region)},
			[]any{logger.KeyBucket, cfg.S3.Bucket, logger.KeyRegion, cfg.S3.Region}
	case ObjectStoreGCS:
		return []attribute.KeyValue{telemetry.Bucket(cfg.GCS.Bucket)},
			[]any{logger.KeyBucket, cfg.GCS.Bucket}
	case ObjectStoreAzure:
		return []attribute.KeyValue{telemetry.Container(cfg.Azblob.Container)},
			[]any{logger.KeyContainer, cfg.Azblob.Container}
	default:
		return nil, nil
	}
}

func createObjectStore(ctx context.Context, cfg ObjectsConfig) (objectstore.Store, error) {
	switch cfg.Type {
	case ObjectStoreMemory, "":
		return objmemory.New(), nil
	case ObjectStoreFS:
		store, err := objfs.New(cfg.FS)
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem object store: %w", err)
		}
		return store, nil
	case ObjectStoreS3:
		store, err := objs3.NewFromConfig(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 object store: %w", err)
		}
		return store, nil
	case ObjectStoreGCS:
		store, err := objgcs.New(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("failed to create gcs object store: %w", err)
		}
		return store, nil
	case ObjectStoreAzure:
		store, err := objazure.New(cfg.Azblob)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure blob object store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown object store type: %q", cfg.Type)
	}
}
