// Package badger provides an embedded reference store on BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/blobsweep/internal/bytesize"
	"github.com/marmos91/blobsweep/pkg/reference"
)

// Key layout:
//
//	s:<scope>              -> ""
//	r:<scope>\x00<id>      -> object key
const (
	prefixScope  = "s:"
	prefixRecord = "r:"
	sep          = "\x00"
)

// Config holds configuration for the Badger reference store.
type Config struct {
	// Path is the database directory.
	Path string `mapstructure:"path" yaml:"path"`

	// InMemory keeps everything in memory; Path is ignored.
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory"`

	// ValueLogFileSize caps each value log file, e.g. "64Mi".
	// Zero keeps the Badger default.
	ValueLogFileSize bytesize.ByteSize `mapstructure:"value_log_file_size" yaml:"value_log_file_size,omitempty"`

	// BlockCacheSize is the block cache budget, e.g. "32Mi".
	// Zero keeps the Badger default.
	BlockCacheSize bytesize.ByteSize `mapstructure:"block_cache_size" yaml:"block_cache_size,omitempty"`
}

// Store is a BadgerDB implementation of reference.ReadWriter.
type Store struct {
	db *badgerdb.DB

	mu     sync.RWMutex
	closed bool
}

// New opens (or creates) a Badger database.
func New(cfg Config) (*Store, error) {
	var opts badgerdb.Options
	switch {
	case cfg.InMemory:
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	case cfg.Path != "":
		opts = badgerdb.DefaultOptions(cfg.Path)
	default:
		return nil, errors.New("badger path is required")
	}
	opts = opts.WithLogger(nil)
	if cfg.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize.Int64())
	}
	if cfg.BlockCacheSize > 0 {
		opts = opts.WithBlockCacheSize(cfg.BlockCacheSize.Int64())
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

func scopeKey(scope reference.Scope) []byte {
	return []byte(prefixScope + string(scope))
}

func recordPrefix(scope reference.Scope) []byte {
	return []byte(prefixRecord + string(scope) + sep)
}

func recordKey(scope reference.Scope, id string) []byte {
	return append(recordPrefix(scope), id...)
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return reference.ErrStoreClosed
	}
	return nil
}

// ListScopes returns every registered scope in key order.
func (s *Store) ListScopes(ctx context.Context) ([]reference.Scope, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var scopes []reference.Scope
	err := s.db.View(func(txn *badgerdb.Txn) error {
		prefix := []byte(prefixScope)
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			scopes = append(scopes, reference.Scope(key[len(prefix):]))
		}
		return nil
	})
	return scopes, err
}

// ListRecords iterates the scope's records inside one read transaction, so
// the callback sees a consistent snapshot.
func (s *Store) ListRecords(ctx context.Context, scope reference.Scope, fn func(reference.Record) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.View(func(txn *badgerdb.Txn) error {
		prefix := recordPrefix(scope)
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read record value: %w", err)
			}

			rec := reference.Record{
				ID:        string(item.Key()[len(prefix):]),
				Scope:     scope,
				ObjectKey: string(value),
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutScope registers a scope.
func (s *Store) PutScope(ctx context.Context, scope reference.Scope) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(scopeKey(scope), nil)
	})
}

// PutRecord writes a record and registers its scope atomically.
func (s *Store) PutRecord(ctx context.Context, rec reference.Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(scopeKey(rec.Scope), nil); err != nil {
			return err
		}
		return txn.Set(recordKey(rec.Scope, rec.ID), []byte(rec.ObjectKey))
	})
}

// DeleteRecord removes a record and returns its object key.
func (s *Store) DeleteRecord(ctx context.Context, scope reference.Scope, id string) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	var objectKey string
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(scopeKey(scope)); errors.Is(err, badgerdb.ErrKeyNotFound) {
			return reference.ErrScopeNotFound
		} else if err != nil {
			return err
		}

		key := recordKey(scope, id)
		item, err := txn.Get(key)
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return reference.ErrRecordNotFound
		}
		if err != nil {
			return err
		}

		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		objectKey = string(value)
		return txn.Delete(key)
	})
	return objectKey, err
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// HealthCheck verifies the database is open.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return reference.ErrStoreClosed
	}
	return nil
}

// Ensure Store implements reference.ReadWriter.
var _ reference.ReadWriter = (*Store)(nil)
