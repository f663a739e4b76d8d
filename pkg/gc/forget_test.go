package gc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/blobsweep/pkg/gc"
	"github.com/marmos91/blobsweep/pkg/reference"
)

func TestScopeOf(t *testing.T) {
	tests := []struct {
		namespace string
		key       string
		want      reference.Scope
		ok        bool
	}{
		{"imgs", "imgs/u1/a.jpg", "u1", true},
		{"/imgs/", "imgs/u1/nested/a.jpg", "u1", true},
		{"", "u1/a.jpg", "u1", true},
		{"imgs", "other/u1/a.jpg", "", false},
		{"imgs", "imgs/u1/", "", false},
		{"imgs", "imgs/u1", "", false},
		{"imgs", "imgs//a.jpg", "", false},
		{"", "a.jpg", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := gc.ScopeOf(tt.namespace, tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	refs := newFlakyRefs()
	objects := newFlakyObjects(0)
	objects.Put("imgs/u1/a", 1, time.Time{})

	require.NoError(t, gc.Forget(ctx, refs, objects, "imgs", ""))
	assert.Empty(t, objects.Deleted(), "empty key is a no-op")

	require.NoError(t, gc.Forget(ctx, refs, objects, "imgs", "imgs/u1/a"))
	assert.False(t, objects.Has("imgs/u1/a"))

	require.NoError(t, gc.Forget(ctx, refs, objects, "imgs", "imgs/u1/a"), "already gone is success")

	boom := errors.New("throttled")
	objects.Put("imgs/u1/b", 1, time.Time{})
	objects.deleteErr["imgs/u1/b"] = boom
	err := gc.Forget(ctx, refs, objects, "imgs", "imgs/u1/b")
	var de *gc.DeleteError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "imgs/u1/b", de.Key)
	assert.ErrorIs(t, err, boom)
}

func TestForgetRefusesReferencedKey(t *testing.T) {
	ctx := context.Background()
	refs := newFlakyRefs()
	objects := newFlakyObjects(0)
	seed(t, refs, "u1", "imgs/u1/a")
	objects.Put("imgs/u1/a", 1, time.Time{})
	objects.forbidden["imgs/u1/a"] = true

	err := gc.Forget(ctx, refs, objects, "imgs", "imgs/u1/a")
	assert.ErrorIs(t, err, gc.ErrStillReferenced)
	assert.True(t, objects.Has("imgs/u1/a"))
	assert.Empty(t, objects.violations)
}

func TestForgetRejectsKeyOutsideNamespace(t *testing.T) {
	objects := newFlakyObjects(0)
	objects.Put("other/u1/a", 1, time.Time{})

	err := gc.Forget(context.Background(), newFlakyRefs(), objects, "imgs", "other/u1/a")
	assert.ErrorIs(t, err, gc.ErrOutsideNamespace)
	assert.True(t, objects.Has("other/u1/a"))
}

func TestForgetReferenceStoreFailure(t *testing.T) {
	refs := newFlakyRefs()
	refs.recordsErr["u1"] = errors.New("connection reset")
	objects := newFlakyObjects(0)
	objects.Put("imgs/u1/a", 1, time.Time{})

	err := gc.Forget(context.Background(), refs, objects, "imgs", "imgs/u1/a")
	var rse *gc.ReferenceStoreError
	require.ErrorAs(t, err, &rse)
	assert.True(t, objects.Has("imgs/u1/a"), "no delete without a live set")
}

func TestForgetRecord(t *testing.T) {
	ctx := context.Background()
	refs := newFlakyRefs()
	objects := newFlakyObjects(0)
	require.NoError(t, refs.PutRecord(ctx, reference.Record{ID: "r1", Scope: "u1", ObjectKey: "imgs/u1/a"}))
	require.NoError(t, refs.PutRecord(ctx, reference.Record{ID: "r2", Scope: "u1"}))
	objects.Put("imgs/u1/a", 1, time.Time{})

	key, err := gc.ForgetRecord(ctx, refs, objects, "imgs", "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "imgs/u1/a", key)
	assert.False(t, objects.Has("imgs/u1/a"))

	_, err = gc.ForgetRecord(ctx, refs, objects, "imgs", "u1", "r1")
	assert.ErrorIs(t, err, reference.ErrRecordNotFound)

	key, err = gc.ForgetRecord(ctx, refs, objects, "imgs", "u1", "r2")
	require.NoError(t, err)
	assert.Empty(t, key, "record without an object")
}

func TestForgetRecordKeepsSharedObject(t *testing.T) {
	ctx := context.Background()
	refs := newFlakyRefs()
	objects := newFlakyObjects(0)
	require.NoError(t, refs.PutRecord(ctx, reference.Record{ID: "r1", Scope: "u1", ObjectKey: "imgs/u1/a"}))
	require.NoError(t, refs.PutRecord(ctx, reference.Record{ID: "r2", Scope: "u1", ObjectKey: "imgs/u1/a"}))
	objects.Put("imgs/u1/a", 1, time.Time{})

	key, err := gc.ForgetRecord(ctx, refs, objects, "imgs", "u1", "r1")
	assert.Equal(t, "imgs/u1/a", key)
	assert.ErrorIs(t, err, gc.ErrStillReferenced)
	assert.True(t, objects.Has("imgs/u1/a"), "r2 still points at the object")

	live, err := gc.LiveKeys(ctx, refs, "u1")
	require.NoError(t, err)
	assert.True(t, live.Contains("imgs/u1/a"))

	// Dropping the last reference releases the object.
	key, err = gc.ForgetRecord(ctx, refs, objects, "imgs", "u1", "r2")
	require.NoError(t, err)
	assert.Equal(t, "imgs/u1/a", key)
	assert.False(t, objects.Has("imgs/u1/a"))
}

func TestForgetRecordChecksOwningScope(t *testing.T) {
	ctx := context.Background()
	refs := newFlakyRefs()
	objects := newFlakyObjects(0)
	require.NoError(t, refs.PutRecord(ctx, reference.Record{ID: "r1", Scope: "u1", ObjectKey: "imgs/u2/shared"}))
	require.NoError(t, refs.PutRecord(ctx, reference.Record{ID: "r9", Scope: "u2", ObjectKey: "imgs/u2/shared"}))
	objects.Put("imgs/u2/shared", 1, time.Time{})

	_, err := gc.ForgetRecord(ctx, refs, objects, "imgs", "u1", "r1")
	assert.ErrorIs(t, err, gc.ErrStillReferenced)
	assert.True(t, objects.Has("imgs/u2/shared"))
}
