package gc

import (
	"errors"
	"fmt"

	"github.com/marmos91/blobsweep/pkg/reference"
)

var (
	// ErrStillReferenced is returned by Forget when a record still points at
	// the object. The object is left in place.
	ErrStillReferenced = errors.New("object is still referenced")

	// ErrOutsideNamespace is returned by Forget for a key that no scope owns.
	ErrOutsideNamespace = errors.New("object key is not under a scope prefix")
)

// ReferenceStoreError reports a failure to read the records of one scope.
// It aborts that scope only.
type ReferenceStoreError struct {
	Scope reference.Scope
	Err   error
}

func (e *ReferenceStoreError) Error() string {
	return fmt.Sprintf("reference store: scope %q: %v", e.Scope, e.Err)
}

func (e *ReferenceStoreError) Unwrap() error { return e.Err }

// ObjectStoreError reports a failure to list the objects of one scope.
// It aborts that scope only.
type ObjectStoreError struct {
	Scope reference.Scope
	Err   error
}

func (e *ObjectStoreError) Error() string {
	return fmt.Sprintf("object store: scope %q: %v", e.Scope, e.Err)
}

func (e *ObjectStoreError) Unwrap() error { return e.Err }

// DeleteError reports a failed delete of a single key. It never escalates
// beyond the key.
type DeleteError struct {
	Key string
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete %q: %v", e.Key, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// PassAbortedError is returned by Collector.Run when the pass could not
// proceed at all (scope listing failed) or was cancelled midway.
type PassAbortedError struct {
	Reason string
	Err    error
}

func (e *PassAbortedError) Error() string {
	if e.Err == nil {
		return "pass aborted: " + e.Reason
	}
	return fmt.Sprintf("pass aborted: %s: %v", e.Reason, e.Err)
}

func (e *PassAbortedError) Unwrap() error { return e.Err }
