package gc_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/blobsweep/pkg/gc"
	"github.com/marmos91/blobsweep/pkg/objectstore"
	"github.com/marmos91/blobsweep/pkg/reference"
)

func TestScopePrefix(t *testing.T) {
	tests := []struct {
		ns    string
		scope reference.Scope
		want  string
	}{
		{"place_images", "u1", "place_images/u1/"},
		{"place_images/", "u1", "place_images/u1/"},
		{"/a/b/", "u1", "a/b/u1/"},
		{"", "u1", "u1/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gc.ScopePrefix(tt.ns, tt.scope), "ns=%q", tt.ns)
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name string
		live []string
		keys []string
		want []string
	}{
		{"nothing live", nil, []string{"a", "b"}, []string{"a", "b"}},
		{"all live", []string{"a", "b"}, []string{"b", "a"}, nil},
		{"difference", []string{"a", "b"}, []string{"a", "b", "c"}, []string{"c"}},
		{"duplicates collapsed", []string{"a"}, []string{"c", "a", "c", "d", "d"}, []string{"c", "d"}},
		{"live keys without objects", []string{"x", "y"}, []string{"z"}, []string{"z"}},
		{"empty listing", []string{"a"}, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gc.Reconcile(gc.NewLiveSet(tt.live...), tt.keys))
		})
	}
}

func TestReconcileIsOrderIndependentAsASet(t *testing.T) {
	live := gc.NewLiveSet("k1", "k3", "k5")
	forward := gc.Reconcile(live, []string{"k1", "k2", "k3", "k4", "k5", "k6"})
	backward := gc.Reconcile(live, []string{"k6", "k5", "k4", "k3", "k2", "k1"})

	sort.Strings(forward)
	sort.Strings(backward)
	assert.Equal(t, forward, backward)
	for _, k := range forward {
		assert.False(t, live.Contains(k))
	}
}

func TestNewLiveSetSkipsEmptyKeys(t *testing.T) {
	live := gc.NewLiveSet("", "a", "a")
	assert.Len(t, live, 1)
	assert.True(t, live.Contains("a"))
	assert.False(t, live.Contains(""))
}

func TestLiveKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("distinct non-empty keys", func(t *testing.T) {
		refs := newFlakyRefs()
		seed(t, refs, "u1", "img/u1/a", "img/u1/b", "img/u1/a", "")

		live, err := gc.LiveKeys(ctx, refs, "u1")
		require.NoError(t, err)
		assert.Equal(t, gc.NewLiveSet("img/u1/a", "img/u1/b"), live)
	})

	t.Run("unknown scope is empty", func(t *testing.T) {
		live, err := gc.LiveKeys(ctx, newFlakyRefs(), "nobody")
		require.NoError(t, err)
		assert.Empty(t, live)
	})

	t.Run("read failure is a ReferenceStoreError", func(t *testing.T) {
		refs := newFlakyRefs()
		boom := errors.New("connection reset")
		refs.recordsErr["u1"] = boom

		live, err := gc.LiveKeys(ctx, refs, "u1")
		assert.Nil(t, live)

		var rse *gc.ReferenceStoreError
		require.ErrorAs(t, err, &rse)
		assert.Equal(t, reference.Scope("u1"), rse.Scope)
		assert.ErrorIs(t, err, boom)
	})
}

func TestObjectEnumerator(t *testing.T) {
	ctx := context.Background()

	t.Run("lists only the scope prefix and skips markers", func(t *testing.T) {
		objects := newFlakyObjects(2)
		objects.PutMarker("img/u1/")
		for i := 0; i < 5; i++ {
			objects.Put(fmt.Sprintf("img/u1/%d", i), 10, time.Time{})
		}
		objects.Put("img/u10/x", 10, time.Time{})
		objects.Put("img/u2/x", 10, time.Time{})

		en := gc.NewObjectEnumerator(objects, "img", "u1", 2)
		var keys []string
		for {
			e, ok := en.Next(ctx)
			if !ok {
				break
			}
			keys = append(keys, e.Key)
		}
		require.NoError(t, en.Err())
		assert.Equal(t, []string{"img/u1/0", "img/u1/1", "img/u1/2", "img/u1/3", "img/u1/4"}, keys)
		assert.Equal(t, 3, en.Pages())

		en.Reset()
		assert.Equal(t, 0, en.Pages())
		_, ok := en.Next(ctx)
		assert.True(t, ok)
	})

	t.Run("listing failure is an ObjectStoreError", func(t *testing.T) {
		objects := newFlakyObjects(0)
		boom := errors.New("access denied")
		objects.listErr["img/u3/"] = boom

		en := gc.NewObjectEnumerator(objects, "img", "u3", 0)
		_, ok := en.Next(ctx)
		assert.False(t, ok)

		var ose *gc.ObjectStoreError
		require.ErrorAs(t, en.Err(), &ose)
		assert.Equal(t, reference.Scope("u3"), ose.Scope)
		assert.ErrorIs(t, en.Err(), boom)
	})
}

func orphanKeys(scan *gc.OrphanScan) []string {
	var keys []string
	for _, e := range scan.Orphans {
		keys = append(keys, e.Key)
	}
	return keys
}

func TestOrphans(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	src := &sliceSource{entries: []objectstore.Entry{
		{Key: "a", ModTime: now.Add(-time.Hour)},
		{Key: "b", ModTime: now.Add(-time.Hour)},
		{Key: "c", ModTime: now.Add(-time.Hour)},
		{Key: "c", ModTime: now.Add(-time.Hour)},
		{Key: "young", ModTime: now.Add(-time.Minute)},
		{Key: "no-modtime"},
	}}

	scan, err := gc.Orphans(ctx, gc.NewLiveSet("a", "b"), src, now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "no-modtime"}, orphanKeys(scan))
	assert.Equal(t, int64(6), scan.Listed)
	assert.Equal(t, int64(2), scan.Live)
	assert.Equal(t, int64(1), scan.Young)
}

func TestOrphansZeroCutoffDisablesWindow(t *testing.T) {
	src := &sliceSource{entries: []objectstore.Entry{{Key: "fresh", ModTime: time.Now()}}}
	scan, err := gc.Orphans(context.Background(), gc.NewLiveSet(), src, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, orphanKeys(scan))
	assert.Zero(t, scan.Young)
}

func TestOrphansSourceErrorYieldsNothing(t *testing.T) {
	boom := errors.New("list failed")
	src := &sliceSource{entries: []objectstore.Entry{{Key: "a"}, {Key: "b"}}, err: boom}
	scan, err := gc.Orphans(context.Background(), gc.NewLiveSet(), src, time.Time{})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, scan.Orphans, "a partial listing must not produce deletions")
	assert.Equal(t, int64(2), scan.Listed)
}

func TestOrphansStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	entries := make([]objectstore.Entry, 100)
	for i := range entries {
		entries[i] = objectstore.Entry{Key: fmt.Sprintf("k%03d", i)}
	}

	scan, err := gc.Orphans(ctx, gc.NewLiveSet(), &sliceSource{entries: entries}, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, scan.Orphans)
	assert.Zero(t, scan.Listed)
}
