package memory

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/blobsweep/pkg/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ListPagePrefixAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer func() { _ = s.Close() }()

	s.Put("imgs/u2/x.jpg", 1, time.Time{})
	s.Put("imgs/u1/b.jpg", 2, time.Time{})
	s.Put("imgs/u1/a.jpg", 3, time.Time{})
	s.PutMarker("imgs/u1/")

	page, err := s.ListPage(ctx, "imgs/u1/", "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.NextToken)

	var keys []string
	for _, e := range page.Entries {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"imgs/u1/", "imgs/u1/a.jpg", "imgs/u1/b.jpg"}, keys)
	assert.True(t, page.Entries[0].IsMarker())
}

func TestStore_PageSizeCap(t *testing.T) {
	ctx := context.Background()
	s := NewWithPageSize(2)
	defer func() { _ = s.Close() }()

	for _, k := range []string{"p/a", "p/b", "p/c", "p/d", "p/e"} {
		s.Put(k, 1, time.Time{})
	}

	keys, err := objectstore.Collect(ctx, objectstore.NewIterator(s, "p/", 100))
	require.NoError(t, err)
	assert.Equal(t, []string{"p/a", "p/b", "p/c", "p/d", "p/e"}, keys)
	assert.Equal(t, 3, s.ListCalls())
}

func TestStore_MutationBetweenPages(t *testing.T) {
	ctx := context.Background()
	s := NewWithPageSize(2)
	defer func() { _ = s.Close() }()

	for _, k := range []string{"p/a", "p/b", "p/c", "p/d"} {
		s.Put(k, 1, time.Time{})
	}

	first, err := s.ListPage(ctx, "p/", "", 2)
	require.NoError(t, err)
	require.Equal(t, "p/b", first.NextToken)

	// Removing an already listed key must not shift later keys out of view.
	require.NoError(t, s.Delete(ctx, "p/a"))

	second, err := s.ListPage(ctx, "p/", first.NextToken, 2)
	require.NoError(t, err)
	require.Len(t, second.Entries, 2)
	assert.Equal(t, "p/c", second.Entries[0].Key)
	assert.Equal(t, "p/d", second.Entries[1].Key)
}

func TestStore_DeleteNotFound(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()

	err := s.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, objectstore.ErrObjectNotFound)
	assert.True(t, objectstore.IsNotFound(err))
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())

	_, err := s.ListPage(ctx, "", "", 1)
	assert.ErrorIs(t, err, objectstore.ErrStoreClosed)
	assert.ErrorIs(t, s.Delete(ctx, "k"), objectstore.ErrStoreClosed)
	assert.ErrorIs(t, s.HealthCheck(ctx), objectstore.ErrStoreClosed)
}
