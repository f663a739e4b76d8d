// Package memory provides an in-memory object store implementation for testing.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/blobsweep/pkg/objectstore"
)

// Store is an in-memory implementation of objectstore.Store for testing.
//
// Listings are ordered by key and the continuation token is the last key of
// the previous page, so objects added or removed between pages never cause a
// surviving key to be skipped.
type Store struct {
	mu        sync.RWMutex
	objects   map[string]objectstore.Entry
	maxPage   int
	closed    bool
	listCalls int
}

// New creates a new in-memory object store.
func New() *Store {
	return &Store{
		objects: make(map[string]objectstore.Entry),
	}
}

// NewWithPageSize creates a store that never returns more than maxPage
// entries per page, regardless of the limit requested.
func NewWithPageSize(maxPage int) *Store {
	s := New()
	s.maxPage = maxPage
	return s
}

// Put stores an object with the given payload size and modification time.
// A zero modTime is replaced with the current time.
func (s *Store) Put(key string, size int64, modTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if modTime.IsZero() {
		modTime = time.Now()
	}
	s.objects[key] = objectstore.Entry{Key: key, Size: size, ModTime: modTime}
}

// PutMarker stores a zero-payload directory marker.
func (s *Store) PutMarker(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = objectstore.Entry{Key: key, IsDirectoryMarker: true}
}

// ListPage returns up to limit entries under prefix that sort after token.
func (s *Store) ListPage(ctx context.Context, prefix, token string, limit int) (objectstore.Page, error) {
	if err := ctx.Err(); err != nil {
		return objectstore.Page{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return objectstore.Page{}, objectstore.ErrStoreClosed
	}
	s.listCalls++

	if limit <= 0 {
		limit = objectstore.DefaultPageSize
	}
	if s.maxPage > 0 && limit > s.maxPage {
		limit = s.maxPage
	}

	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) && key > token {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var page objectstore.Page
	if len(keys) > limit {
		keys = keys[:limit]
		page.NextToken = keys[len(keys)-1]
	}

	page.Entries = make([]objectstore.Entry, 0, len(keys))
	for _, key := range keys {
		page.Entries = append(page.Entries, s.objects[key])
	}
	return page, nil
}

// Delete removes an object. Returns ErrObjectNotFound if absent.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return objectstore.ErrStoreClosed
	}

	if _, ok := s.objects[key]; !ok {
		return objectstore.ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.objects = nil
	return nil
}

// HealthCheck verifies the store is accessible and operational.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return objectstore.ErrStoreClosed
	}
	return nil
}

// Has reports whether key is stored (for testing).
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.objects[key]
	return ok
}

// Keys returns all stored keys in order (for testing).
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of stored objects, markers included (for testing).
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// ListCalls returns how many ListPage calls were served (for testing).
func (s *Store) ListCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCalls
}

// Ensure Store implements objectstore.Store.
var _ objectstore.Store = (*Store)(nil)
