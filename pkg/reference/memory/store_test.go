package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/blobsweep/pkg/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s *Store, scope reference.Scope) []reference.Record {
	t.Helper()
	var out []reference.Record
	require.NoError(t, s.ListRecords(context.Background(), scope, func(r reference.Record) error {
		out = append(out, r)
		return nil
	}))
	return out
}

func TestStore_ScopesAndRecords(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer func() { _ = s.Close() }()

	require.NoError(t, s.PutScope(ctx, "u3"))
	require.NoError(t, s.PutRecord(ctx, reference.Record{ID: "p2", Scope: "u1", ObjectKey: "imgs/u1/b.jpg"}))
	require.NoError(t, s.PutRecord(ctx, reference.Record{ID: "p1", Scope: "u1", ObjectKey: "imgs/u1/a.jpg"}))
	require.NoError(t, s.PutRecord(ctx, reference.Record{ID: "p1", Scope: "u2"}))

	scopes, err := s.ListScopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []reference.Scope{"u1", "u2", "u3"}, scopes)

	records := collect(t, s, "u1")
	require.Len(t, records, 2)
	assert.Equal(t, "p1", records[0].ID)
	assert.Equal(t, "imgs/u1/a.jpg", records[0].ObjectKey)

	assert.Empty(t, collect(t, s, "u3"))
	assert.Empty(t, collect(t, s, "unknown"))
}

func TestStore_ListRecordsStopsOnCallbackError(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.PutRecord(ctx, reference.Record{ID: "a", Scope: "u1"}))
	require.NoError(t, s.PutRecord(ctx, reference.Record{ID: "b", Scope: "u1"}))

	stop := errors.New("stop")
	calls := 0
	err := s.ListRecords(ctx, "u1", func(reference.Record) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestStore_DeleteRecord(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.PutRecord(ctx, reference.Record{ID: "p1", Scope: "u1", ObjectKey: "imgs/u1/a.jpg"}))

	key, err := s.DeleteRecord(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "imgs/u1/a.jpg", key)

	_, err = s.DeleteRecord(ctx, "u1", "p1")
	assert.ErrorIs(t, err, reference.ErrRecordNotFound)

	_, err = s.DeleteRecord(ctx, "nobody", "p1")
	assert.ErrorIs(t, err, reference.ErrScopeNotFound)
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())

	_, err := s.ListScopes(ctx)
	assert.ErrorIs(t, err, reference.ErrStoreClosed)
	assert.ErrorIs(t, s.ListRecords(ctx, "u1", func(reference.Record) error { return nil }), reference.ErrStoreClosed)
	assert.ErrorIs(t, s.HealthCheck(ctx), reference.ErrStoreClosed)
}
