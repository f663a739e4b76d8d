package gc

import (
	"context"
	"strings"

	"github.com/marmos91/blobsweep/internal/telemetry"
	"github.com/marmos91/blobsweep/pkg/objectstore"
	"github.com/marmos91/blobsweep/pkg/reference"
)

// ScopePrefix returns the object key prefix owned by scope: "<namespace>/<scope>/".
func ScopePrefix(namespace string, scope reference.Scope) string {
	ns := strings.Trim(namespace, "/")
	if ns == "" {
		return string(scope) + "/"
	}
	return ns + "/" + string(scope) + "/"
}

// ScopeOf returns the scope whose prefix holds key, the inverse of
// ScopePrefix. ok is false when key is outside namespace or names no object
// below a scope directory.
func ScopeOf(namespace, key string) (scope reference.Scope, ok bool) {
	rest := key
	if ns := strings.Trim(namespace, "/"); ns != "" {
		if !strings.HasPrefix(key, ns+"/") {
			return "", false
		}
		rest = key[len(ns)+1:]
	}
	i := strings.IndexByte(rest, '/')
	if i <= 0 || i == len(rest)-1 {
		return "", false
	}
	return reference.Scope(rest[:i]), true
}

// LiveSet is the set of object keys referenced by a scope's records.
type LiveSet map[string]struct{}

// NewLiveSet builds a live set from keys, ignoring empty ones.
func NewLiveSet(keys ...string) LiveSet {
	s := make(LiveSet, len(keys))
	for _, k := range keys {
		if k != "" {
			s[k] = struct{}{}
		}
	}
	return s
}

// Contains reports whether key is referenced.
func (s LiveSet) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

// LiveKeys reads every record of scope and returns the distinct non-empty
// object keys. Records with no object are skipped. Any read failure is
// returned as a *ReferenceStoreError.
func LiveKeys(ctx context.Context, refs reference.Store, scope reference.Scope) (LiveSet, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanLiveKeys)
	defer span.End()

	live := make(LiveSet)
	err := refs.ListRecords(ctx, scope, func(rec reference.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.ObjectKey != "" {
			live[rec.ObjectKey] = struct{}{}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, &ReferenceStoreError{Scope: scope, Err: err}
	}
	span.SetAttributes(telemetry.Scope(string(scope)), telemetry.LiveKeys(len(live)))
	return live, nil
}

// EntrySource yields object entries one at a time.
// *ObjectEnumerator and *objectstore.Iterator both satisfy it.
type EntrySource interface {
	Next(ctx context.Context) (objectstore.Entry, bool)
	Err() error
}

// ObjectEnumerator lists the objects of one scope lazily, page by page,
// skipping directory markers.
type ObjectEnumerator struct {
	scope reference.Scope
	it    *objectstore.Iterator
}

// NewObjectEnumerator binds an iterator to the prefix of scope.
func NewObjectEnumerator(lister objectstore.Lister, namespace string, scope reference.Scope, pageSize int) *ObjectEnumerator {
	return &ObjectEnumerator{
		scope: scope,
		it:    objectstore.NewIterator(lister, ScopePrefix(namespace, scope), pageSize),
	}
}

// Next returns the next object of the scope.
func (e *ObjectEnumerator) Next(ctx context.Context) (objectstore.Entry, bool) {
	return e.it.Next(ctx)
}

// Err returns the listing failure as a *ObjectStoreError, or nil.
func (e *ObjectEnumerator) Err() error {
	if err := e.it.Err(); err != nil {
		return &ObjectStoreError{Scope: e.scope, Err: err}
	}
	return nil
}

// Pages returns how many pages have been fetched.
func (e *ObjectEnumerator) Pages() int {
	return e.it.Pages()
}

// Reset restarts the listing from the first page.
func (e *ObjectEnumerator) Reset() {
	e.it.Reset()
}
