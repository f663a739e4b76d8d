package gc_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/blobsweep/pkg/gc"
	"github.com/marmos91/blobsweep/pkg/objectstore"
	objmem "github.com/marmos91/blobsweep/pkg/objectstore/memory"
	"github.com/marmos91/blobsweep/pkg/reference"
	refmem "github.com/marmos91/blobsweep/pkg/reference/memory"
)

// flakyObjects wraps the memory object store with injectable failures,
// latency and an in-flight delete gauge.
type flakyObjects struct {
	*objmem.Store

	mu         sync.Mutex
	listErr    map[string]error // by prefix
	failAfter  map[string]int   // by prefix: pages served before listing fails
	listCalls  map[string]int
	deleteErr  map[string]error // by key
	forbidden  map[string]bool  // keys that must never be deleted
	deleted    []string
	violations []string

	delay       time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFlakyObjects(pageSize int) *flakyObjects {
	return &flakyObjects{
		Store:     objmem.NewWithPageSize(pageSize),
		listErr:   map[string]error{},
		failAfter: map[string]int{},
		listCalls: map[string]int{},
		deleteErr: map[string]error{},
		forbidden: map[string]bool{},
	}
}

func (f *flakyObjects) ListPage(ctx context.Context, prefix, token string, limit int) (objectstore.Page, error) {
	f.mu.Lock()
	err := f.listErr[prefix]
	call := f.listCalls[prefix]
	f.listCalls[prefix]++
	if n, ok := f.failAfter[prefix]; ok && call >= n {
		err = fmt.Errorf("page %d: transient", call+1)
	}
	f.mu.Unlock()
	if err != nil {
		return objectstore.Page{}, err
	}
	return f.Store.ListPage(ctx, prefix, token, limit)
}

func (f *flakyObjects) Delete(ctx context.Context, key string) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	if f.forbidden[key] {
		f.violations = append(f.violations, key)
	}
	err := f.deleteErr[key]
	if err == nil {
		f.deleted = append(f.deleted, key)
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return f.Store.Delete(ctx, key)
}

func (f *flakyObjects) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// flakyRefs wraps the memory reference store with injectable failures and
// an in-flight ListRecords gauge.
type flakyRefs struct {
	*refmem.Store

	scopesErr  error
	recordsErr map[reference.Scope]error

	delay       time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFlakyRefs() *flakyRefs {
	return &flakyRefs{Store: refmem.New(), recordsErr: map[reference.Scope]error{}}
}

func (f *flakyRefs) ListScopes(ctx context.Context) ([]reference.Scope, error) {
	if f.scopesErr != nil {
		return nil, f.scopesErr
	}
	return f.Store.ListScopes(ctx)
}

func (f *flakyRefs) ListRecords(ctx context.Context, scope reference.Scope, fn func(reference.Record) error) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := f.recordsErr[scope]; err != nil {
		return err
	}
	return f.Store.ListRecords(ctx, scope, fn)
}

// sliceSource is an EntrySource over a fixed slice.
type sliceSource struct {
	entries []objectstore.Entry
	pos     int
	err     error
}

func (s *sliceSource) Next(context.Context) (objectstore.Entry, bool) {
	if s.pos >= len(s.entries) {
		return objectstore.Entry{}, false
	}
	e := s.entries[s.pos]
	s.pos++
	return e, true
}

func (s *sliceSource) Err() error { return s.err }

// recordingMetrics counts observations.
type recordingMetrics struct {
	mu       sync.Mutex
	passes   []*gc.PassResult
	scopes   []reference.Scope
	outcomes map[gc.DeleteOutcome]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: map[gc.DeleteOutcome]int{}}
}

func (m *recordingMetrics) ObservePass(r *gc.PassResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passes = append(m.passes, r)
}

func (m *recordingMetrics) ObserveScope(r *gc.ScopeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopes = append(m.scopes, r.Scope)
}

func (m *recordingMetrics) RecordDelete(_ reference.Scope, outcome gc.DeleteOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

// seed registers scope and one record per live key.
func seed(t *testing.T, refs reference.Writer, scope reference.Scope, liveKeys ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, refs.PutScope(ctx, scope))
	for i, key := range liveKeys {
		require.NoError(t, refs.PutRecord(ctx, reference.Record{
			ID:        fmt.Sprintf("%s-%03d", scope, i),
			Scope:     scope,
			ObjectKey: key,
		}))
	}
}

func scopeResult(t *testing.T, res *gc.PassResult, scope reference.Scope) gc.ScopeResult {
	t.Helper()
	for _, sr := range res.Scopes {
		if sr.Scope == scope {
			return sr
		}
	}
	t.Fatalf("scope %q not in result", scope)
	return gc.ScopeResult{}
}
