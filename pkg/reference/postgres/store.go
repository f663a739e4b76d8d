// Package postgres provides a PostgreSQL reference store built on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marmos91/blobsweep/internal/logger"
	"github.com/marmos91/blobsweep/pkg/reference"
)

// Store is a PostgreSQL implementation of reference.ReadWriter.
//
// Records live in a "records" table keyed by (scope_id, id); scopes have
// their own table so tenants without records are still enumerated.
type Store struct {
	pool *pgxpool.Pool

	mu     sync.RWMutex
	closed bool
}

// New opens a connection pool and, if configured, applies migrations.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.AutoMigrate {
		if err := RunMigrations(ctx, cfg); err != nil {
			return nil, err
		}
	}

	pool, err := createConnectionPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool. The store takes ownership of it.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func createConnectionPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	if cfg.QueryTimeout > 0 {
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%dms", cfg.QueryTimeout.Milliseconds())
	}

	logger.Info("Creating PostgreSQL connection pool",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
		"max_conns", cfg.MaxConns,
		"ssl_mode", cfg.SSLMode,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return pool, nil
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

	rows, err := s.pool.Query(ctx, `SELECT id FROM scopes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}

	scopes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (reference.Scope, error) {
		var id string
		err := row.Scan(&id)
		return reference.Scope(id), err
	})
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	return scopes, nil
}

// ListRecords streams the scope's records from a single cursor.
func (s *Store) ListRecords(ctx context.Context, scope reference.Scope, fn func(reference.Record) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, COALESCE(object_key, '') FROM records WHERE scope_id = $1 ORDER BY id`,
		string(scope),
	)
	if err != nil {
		return fmt.Errorf("list records for scope %s: %w", scope, err)
	}
	defer rows.Close()

	for rows.Next() {
		rec := reference.Record{Scope: scope}
		if err := rows.Scan(&rec.ID, &rec.ObjectKey); err != nil {
			return fmt.Errorf("scan record: %w", err)
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

	_, err := s.pool.Exec(ctx, `INSERT INTO scopes (id) VALUES ($1) ON CONFLICT DO NOTHING`, string(scope))
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

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO scopes (id) VALUES ($1) ON CONFLICT DO NOTHING`, string(rec.Scope)); err != nil {
			return fmt.Errorf("put scope: %w", err)
		}

		var objectKey *string
		if rec.ObjectKey != "" {
			objectKey = &rec.ObjectKey
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO records (scope_id, id, object_key) VALUES ($1, $2, $3)
			ON CONFLICT (scope_id, id) DO UPDATE SET object_key = EXCLUDED.object_key, updated_at = now()`,
			string(rec.Scope), rec.ID, objectKey,
		)
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
	err := s.pool.QueryRow(ctx,
		`DELETE FROM records WHERE scope_id = $1 AND id = $2 RETURNING COALESCE(object_key, '')`,
		string(scope), id,
	).Scan(&objectKey)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if qerr := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM scopes WHERE id = $1)`, string(scope)).Scan(&exists); qerr == nil && !exists {
			return "", reference.ErrScopeNotFound
		}
		return "", reference.ErrRecordNotFound
	}
	if err != nil {
		return "", fmt.Errorf("delete record: %w", err)
	}
	return objectKey, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.pool.Close()
	return nil
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}

// Ensure Store implements reference.ReadWriter.
var _ reference.ReadWriter = (*Store)(nil)
