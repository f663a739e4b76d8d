package gc

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/blobsweep/internal/logger"
	"github.com/marmos91/blobsweep/internal/telemetry"
	"github.com/marmos91/blobsweep/pkg/objectstore"
	"github.com/marmos91/blobsweep/pkg/reference"
)

// Forget deletes a single object right away, typically because the record
// pointing at it was just removed. The owning scope is derived from key
// under namespace, and the delete is refused with ErrStillReferenced while
// any record of that scope references key. An empty key is a no-op and an
// object that is already gone is not an error. Passes catch anything Forget
// misses, so callers are free to ignore its error.
func Forget(ctx context.Context, refs reference.Store, objects objectstore.Deleter, namespace, key string) error {
	if key == "" {
		return nil
	}
	scope, ok := ScopeOf(namespace, key)
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrOutsideNamespace)
	}
	return forget(ctx, refs, objects, key, scope)
}

// ForgetRecord removes a record from the reference store and then forgets
// its object, unless another record still references it. The record is
// always removed before the object. The returned key is the record's object
// key, empty when it had none.
func ForgetRecord(ctx context.Context, refs reference.ReadWriter, objects objectstore.Deleter, namespace string, scope reference.Scope, id string) (string, error) {
	key, err := refs.DeleteRecord(ctx, scope, id)
	if err != nil {
		return "", fmt.Errorf("delete record %s/%s: %w", scope, id, err)
	}
	if key == "" {
		return "", nil
	}

	scopes := []reference.Scope{scope}
	if owner, ok := ScopeOf(namespace, key); ok && owner != scope {
		scopes = append(scopes, owner)
	}
	return key, forget(ctx, refs, objects, key, scopes...)
}

// forget deletes key once no record of scopes references it.
func forget(ctx context.Context, refs reference.Store, objects objectstore.Deleter, key string, scopes ...reference.Scope) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanForget)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.ObjectKey(key))

	for _, scope := range scopes {
		live, err := LiveKeys(ctx, refs, scope)
		if err != nil && !errors.Is(err, reference.ErrScopeNotFound) {
			telemetry.RecordError(ctx, err)
			return err
		}
		if live.Contains(key) {
			logger.InfoCtx(ctx, "GC: object still referenced, not forgotten",
				logger.KeyScope, string(scope), logger.KeyObjectKey, key)
			return fmt.Errorf("%s: %w", key, ErrStillReferenced)
		}
	}

	err := objects.Delete(ctx, key)
	switch {
	case err == nil:
		logger.InfoCtx(ctx, "GC: forgot object", logger.KeyObjectKey, key)
		return nil
	case objectstore.IsNotFound(err):
		logger.DebugCtx(ctx, "GC: object to forget already gone", logger.KeyObjectKey, key)
		return nil
	default:
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "GC: failed to forget object", logger.KeyObjectKey, key, logger.KeyError, err)
		return &DeleteError{Key: key, Err: err}
	}
}
