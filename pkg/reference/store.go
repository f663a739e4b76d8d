// Package reference defines the structured store whose records say which
// objects should exist. The garbage collector only ever reads from it.
package reference

import (
	"context"
	"errors"
)

// Common errors returned by Store implementations.
var (
	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrScopeNotFound is returned by writers and lookups on an unknown scope.
	ErrScopeNotFound = errors.New("scope not found")

	// ErrRecordNotFound is returned when deleting a record that doesn't exist.
	ErrRecordNotFound = errors.New("record not found")
)

// Scope is an opaque tenant identifier (e.g. a user ID).
type Scope string

// Record is one reference record. ObjectKey is empty when the record
// points at no object.
type Record struct {
	ID        string `json:"id"`
	Scope     Scope  `json:"scope"`
	ObjectKey string `json:"object_key,omitempty"`
}

// Store is the read side of a reference store.
type Store interface {
	// ListScopes returns every scope known to the store.
	ListScopes(ctx context.Context) ([]Scope, error)

	// ListRecords streams every record of scope to fn. Iteration stops at
	// the first error returned by fn, which is passed through.
	ListRecords(ctx context.Context, scope Scope, fn func(Record) error) error

	// Close releases any resources held by the store.
	Close() error

	// HealthCheck verifies the store is accessible and operational.
	HealthCheck(ctx context.Context) error
}

// Writer mutates a reference store. Only seeding tools and tests use it.
type Writer interface {
	// PutScope registers a scope, with no records.
	PutScope(ctx context.Context, scope Scope) error

	// PutRecord inserts or replaces a record, creating its scope if needed.
	PutRecord(ctx context.Context, rec Record) error

	// DeleteRecord removes a record and returns its object key.
	DeleteRecord(ctx context.Context, scope Scope, id string) (string, error)
}

// ReadWriter combines Store and Writer.
type ReadWriter interface {
	Store
	Writer
}
