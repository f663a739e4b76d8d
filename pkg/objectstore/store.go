// Package objectstore provides the blob store interface swept by the garbage
// collector, together with a lazy paginated iterator over it.
package objectstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DefaultPageSize is the page size requested when callers pass a non-positive limit.
const DefaultPageSize = 1000

// Common errors returned by Store implementations.
var (
	// ErrObjectNotFound is returned when a requested object doesn't exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// Entry describes a single object returned by a listing.
type Entry struct {
	// Key is the full object key, e.g. "place_images/u1/a.jpg".
	Key string

	// Size is the payload size in bytes.
	Size int64

	// ModTime is the last modification time reported by the backend.
	// Zero when the backend does not expose one.
	ModTime time.Time

	// IsDirectoryMarker is set by backends that can tell a folder
	// placeholder apart from a real object.
	IsDirectoryMarker bool
}

// IsMarker reports whether the entry is a directory marker: either flagged by
// the backend, or a zero-payload key ending in "/".
func (e Entry) IsMarker() bool {
	if e.IsDirectoryMarker {
		return true
	}
	return e.Size == 0 && strings.HasSuffix(e.Key, "/")
}

// Page is one bounded chunk of a prefix listing.
type Page struct {
	Entries []Entry

	// NextToken continues the listing. Empty means this is the last page.
	NextToken string
}

// Lister lists objects under a prefix one page at a time.
type Lister interface {
	// ListPage returns up to limit entries under prefix, starting at the
	// position identified by token (empty for the first page).
	ListPage(ctx context.Context, prefix, token string, limit int) (Page, error)
}

// Deleter removes objects by key.
type Deleter interface {
	// Delete removes the object with the given key.
	// Returns nil or ErrObjectNotFound if the object doesn't exist.
	Delete(ctx context.Context, key string) error
}

// Store defines the interface for object storage backends.
//
// Key format: "{namespace}/{scope}/{name}"
// Example: "place_images/u1/a.jpg"
type Store interface {
	Lister
	Deleter

	// Close releases any resources held by the store.
	Close() error

	// HealthCheck verifies the store is accessible and operational.
	// Returns nil if healthy, error describing the issue otherwise.
	HealthCheck(ctx context.Context) error
}

// IsNotFound reports whether err means the object is already absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}
