// Package sqlstore provides a GORM-backed reference store over SQLite or PostgreSQL.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/blobsweep/pkg/reference"
)

// Store implements reference.ReadWriter using GORM.
type Store struct {
	db     *gorm.DB
	config *Config

	mu     sync.RWMutex
	closed bool
}

// New opens the database and creates the schema via AutoMigrate.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL lets the sweep read while the application writes.
		dsn := config.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)

	case DatabaseTypePostgres:
		dialector = postgres.Open(config.Postgres.DSN())

	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if config.Type == DatabaseTypePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	return &Store{db: db, config: config}, nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return reference.ErrStoreClosed
	}
	return nil
}

// ListScopes returns every registered scope ordered by ID.
func (s *Store) ListScopes(ctx context.Context) ([]reference.Scope, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var ids []string
	if err := s.db.WithContext(ctx).Model(&ScopeModel{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}

	scopes := make([]reference.Scope, len(ids))
	for i, id := range ids {
		scopes[i] = reference.Scope(id)
	}
	return scopes, nil
}

// ListRecords streams the scope's records row by row.
func (s *Store) ListRecords(ctx context.Context, scope reference.Scope, fn func(reference.Record) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	rows, err := db.Model(&RecordModel{}).Where("scope_id = ?", string(scope)).Order("id").Rows()
	if err != nil {
		return fmt.Errorf("list records for scope %s: %w", scope, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var m RecordModel
		if err := db.ScanRows(rows, &m); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}

		rec := reference.Record{ID: m.ID, Scope: scope}
		if m.ObjectKey != nil {
			rec.ObjectKey = *m.ObjectKey
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list records for scope %s: %w", scope, err)
	}
	return nil
}

// PutScope registers a scope.
func (s *Store) PutScope(ctx context.Context, scope reference.Scope) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ScopeModel{ID: string(scope)}).Error
	if err != nil {
		return fmt.Errorf("put scope: %w", err)
	}
	return nil
}

// PutRecord upserts a record and its scope in one transaction.
func (s *Store) PutRecord(ctx context.Context, rec reference.Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ScopeModel{ID: string(rec.Scope)}).Error; err != nil {
			return fmt.Errorf("put scope: %w", err)
		}

		m := RecordModel{ScopeID: string(rec.Scope), ID: rec.ID}
		if rec.ObjectKey != "" {
			key := rec.ObjectKey
			m.ObjectKey = &key
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope_id"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"object_key", "updated_at"}),
		}).Create(&m).Error
		if err != nil {
			return fmt.Errorf("put record: %w", err)
		}
		return nil
	})
}

// DeleteRecord removes a record and returns its object key.
func (s *Store) DeleteRecord(ctx context.Context, scope reference.Scope, id string) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	var objectKey string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m RecordModel
		err := tx.Where("scope_id = ? AND id = ?", string(scope), id).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			var count int64
			if cerr := tx.Model(&ScopeModel{}).Where("id = ?", string(scope)).Count(&count).Error; cerr == nil && count == 0 {
				return reference.ErrScopeNotFound
			}
			return reference.ErrRecordNotFound
		}
		if err != nil {
			return err
		}

		if m.ObjectKey != nil {
			objectKey = *m.ObjectKey
		}
		return tx.Where("scope_id = ? AND id = ?", string(scope), id).Delete(&RecordModel{}).Error
	})
	if err != nil {
		if errors.Is(err, reference.ErrScopeNotFound) || errors.Is(err, reference.ErrRecordNotFound) {
			return "", err
		}
		return "", fmt.Errorf("delete record: %w", err)
	}
	return objectKey, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Ensure Store implements reference.ReadWriter.
var _ reference.ReadWriter = (*Store)(nil)
