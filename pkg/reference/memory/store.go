// Package memory provides an in-memory reference store for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/marmos91/blobsweep/pkg/reference"
)

// Store is an in-memory implementation of reference.ReadWriter.
type Store struct {
	mu     sync.RWMutex
	scopes map[reference.Scope]map[string]reference.Record
	closed bool
}

// New creates a new in-memory reference store.
func New() *Store {
	return &Store{
		scopes: make(map[reference.Scope]map[string]reference.Record),
	}
}

// ListScopes returns all scopes in sorted order.
func (s *Store) ListScopes(ctx context.Context) ([]reference.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, reference.ErrStoreClosed
	}

	scopes := make([]reference.Scope, 0, len(s.scopes))
	for scope := range s.scopes {
		scopes = append(scopes, scope)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })
	return scopes, nil
}

// ListRecords streams a snapshot of the scope's records ordered by ID.
// An unknown scope yields no records.
func (s *Store) ListRecords(ctx context.Context, scope reference.Scope, fn func(reference.Record) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return reference.ErrStoreClosed
	}
	records := make([]reference.Record, 0, len(s.scopes[scope]))
	for _, rec := range s.scopes[scope] {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// PutScope registers an empty scope.
func (s *Store) PutScope(ctx context.Context, scope reference.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return reference.ErrStoreClosed
	}
	if _, ok := s.scopes[scope]; !ok {
		s.scopes[scope] = make(map[string]reference.Record)
	}
	return nil
}

// PutRecord inserts or replaces a record.
func (s *Store) PutRecord(ctx context.Context, rec reference.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return reference.ErrStoreClosed
	}
	records, ok := s.scopes[rec.Scope]
	if !ok {
		records = make(map[string]reference.Record)
		s.scopes[rec.Scope] = records
	}
	records[rec.ID] = rec
	return nil
}

// DeleteRecord removes a record and returns the object key it pointed at.
func (s *Store) DeleteRecord(ctx context.Context, scope reference.Scope, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", reference.ErrStoreClosed
	}
	records, ok := s.scopes[scope]
	if !ok {
		return "", reference.ErrScopeNotFound
	}
	rec, ok := records[id]
	if !ok {
		return "", reference.ErrRecordNotFound
	}
	delete(records, id)
	return rec.ObjectKey, nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.scopes = nil
	return nil
}

// HealthCheck verifies the store is accessible and operational.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return reference.ErrStoreClosed
	}
	return nil
}

// Ensure Store implements reference.ReadWriter.
var _ reference.ReadWriter = (*Store)(nil)
