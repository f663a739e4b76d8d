package objectstore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/marmos91/blobsweep/pkg/objectstore"
	"github.com/marmos91/blobsweep/pkg/objectstore/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedLister serves a fixed sequence of pages, failing at failAt (1-based) if set.
type pagedLister struct {
	pages  [][]objectstore.Entry
	failAt int
	calls  int
}

func (l *pagedLister) ListPage(_ context.Context, _, token string, _ int) (objectstore.Page, error) {
	l.calls++
	if l.failAt > 0 && l.calls == l.failAt {
		return objectstore.Page{}, errors.New("listing unavailable")
	}

	idx := 0
	if token != "" {
		_, err := fmt.Sscanf(token, "page-%d", &idx)
		if err != nil {
			return objectstore.Page{}, err
		}
	}

	page := objectstore.Page{Entries: l.pages[idx]}
	if idx+1 < len(l.pages) {
		page.NextToken = fmt.Sprintf("page-%d", idx+1)
	}
	return page, nil
}

func entries(keys ...string) []objectstore.Entry {
	out := make([]objectstore.Entry, 0, len(keys))
	for _, k := range keys {
		size := int64(10)
		if k[len(k)-1] == '/' {
			size = 0
		}
		out = append(out, objectstore.Entry{Key: k, Size: size})
	}
	return out
}

func TestEntry_IsMarker(t *testing.T) {
	tests := []struct {
		name  string
		entry objectstore.Entry
		want  bool
	}{
		{"plain object", objectstore.Entry{Key: "imgs/u1/a.jpg", Size: 3}, false},
		{"zero-byte object", objectstore.Entry{Key: "imgs/u1/empty.jpg"}, false},
		{"folder placeholder", objectstore.Entry{Key: "imgs/u1/"}, true},
		{"trailing slash with payload", objectstore.Entry{Key: "imgs/u1/", Size: 5}, false},
		{"backend flagged", objectstore.Entry{Key: "imgs/u1/dir", IsDirectoryMarker: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.IsMarker())
		})
	}
}

func TestIterator_FlattensPages(t *testing.T) {
	ctx := context.Background()

	for pageCount := 1; pageCount <= 5; pageCount++ {
		t.Run(fmt.Sprintf("%d pages", pageCount), func(t *testing.T) {
			var pages [][]objectstore.Entry
			var want []string
			for p := 0; p < pageCount; p++ {
				a := fmt.Sprintf("imgs/u1/p%d-a.jpg", p)
				b := fmt.Sprintf("imgs/u1/p%d-b.jpg", p)
				pages = append(pages, entries(a, "imgs/u1/", b))
				want = append(want, a, b)
			}

			lister := &pagedLister{pages: pages}
			keys, err := objectstore.Collect(ctx, objectstore.NewIterator(lister, "imgs/u1/", 3))
			require.NoError(t, err)
			assert.Equal(t, want, keys)
			assert.Equal(t, pageCount, lister.calls)
		})
	}
}

func TestIterator_EmptyPagesInTheMiddle(t *testing.T) {
	lister := &pagedLister{pages: [][]objectstore.Entry{
		entries("imgs/u1/a.jpg"),
		nil,
		entries("imgs/u1/"),
		entries("imgs/u1/b.jpg"),
	}}

	keys, err := objectstore.Collect(context.Background(), objectstore.NewIterator(lister, "imgs/u1/", 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"imgs/u1/a.jpg", "imgs/u1/b.jpg"}, keys)
}

func TestIterator_FailureStopsAndIsReported(t *testing.T) {
	lister := &pagedLister{
		pages:  [][]objectstore.Entry{entries("imgs/u1/a.jpg"), entries("imgs/u1/b.jpg")},
		failAt: 2,
	}
	it := objectstore.NewIterator(lister, "imgs/u1/", 1)
	ctx := context.Background()

	e, ok := it.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, "imgs/u1/a.jpg", e.Key)

	_, ok = it.Next(ctx)
	assert.False(t, ok)
	require.Error(t, it.Err())
	assert.Contains(t, it.Err().Error(), "listing unavailable")

	// Stays failed without issuing more requests.
	_, ok = it.Next(ctx)
	assert.False(t, ok)
	assert.Equal(t, 2, lister.calls)
}

func TestIterator_Reset(t *testing.T) {
	store := memory.NewWithPageSize(2)
	for _, k := range []string{"imgs/u1/a.jpg", "imgs/u1/b.jpg", "imgs/u1/c.jpg"} {
		store.Put(k, 1, time.Time{})
	}
	ctx := context.Background()
	it := objectstore.NewIterator(store, "imgs/u1/", 10)

	first, err := objectstore.Collect(ctx, it)
	require.NoError(t, err)
	assert.Equal(t, 2, it.Pages())

	it.Reset()
	second, err := objectstore.Collect(ctx, it)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIterator_CancelledContext(t *testing.T) {
	store := memory.New()
	store.Put("imgs/u1/a.jpg", 1, time.Time{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	it := objectstore.NewIterator(store, "imgs/u1/", 10)
	_, ok := it.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, it.Err(), context.Canceled)
}

func TestIterator_StuckTokenIsAnError(t *testing.T) {
	lister := listerFunc(func(context.Context, string, string, int) (objectstore.Page, error) {
		return objectstore.Page{Entries: entries("imgs/u1/a.jpg"), NextToken: "same"}, nil
	})

	_, err := objectstore.Collect(context.Background(), objectstore.NewIterator(lister, "imgs/u1/", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not advance")
}

type listerFunc func(ctx context.Context, prefix, token string, limit int) (objectstore.Page, error)

func (f listerFunc) ListPage(ctx context.Context, prefix, token string, limit int) (objectstore.Page, error) {
	return f(ctx, prefix, token, limit)
}
