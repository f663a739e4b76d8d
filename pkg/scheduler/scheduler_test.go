package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/blobsweep/pkg/gc"
)

// blockingRunner blocks each pass until release is closed or ctx ends.
type blockingRunner struct {
	started  chan string
	release  chan struct{}
	calls    atomic.Int32
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan string, 16), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, trigger string) (*gc.PassResult, error) {
	r.calls.Add(1)
	if r.inFlight.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.inFlight.Add(-1)

	r.started <- trigger
	res := &gc.PassResult{ID: "pass-" + trigger, Trigger: trigger}
	select {
	case <-r.release:
		return res, nil
	case <-ctx.Done():
		res.Aborted = true
		return res, &gc.PassAbortedError{Reason: "cancelled", Err: ctx.Err()}
	}
}

type instantRunner struct{ calls atomic.Int32 }

func (r *instantRunner) Run(_ context.Context, trigger string) (*gc.PassResult, error) {
	r.calls.Add(1)
	return &gc.PassResult{ID: "p", Trigger: trigger}, nil
}

// panickyRunner panics on its first pass only.
type panickyRunner struct{ calls atomic.Int32 }

func (r *panickyRunner) Run(_ context.Context, trigger string) (*gc.PassResult, error) {
	if r.calls.Add(1) == 1 {
		panic("nil reference store")
	}
	return &gc.PassResult{ID: "p", Trigger: trigger}, nil
}

func waitStarted(t *testing.T, r *blockingRunner) string {
	t.Helper()
	select {
	case trig := <-r.started:
		return trig
	case <-time.After(2 * time.Second):
		t.Fatal("pass did not start")
		return ""
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"standard", Config{Cron: "0 2 * * *"}, ""},
		{"descriptor", Config{Cron: "@hourly"}, ""},
		{"cron tz prefix", Config{Cron: "CRON_TZ=Europe/Rome 30 3 * * *"}, ""},
		{"timezone", Config{Cron: "0 2 * * *", Timezone: "America/New_York"}, ""},
		{"bad expression", Config{Cron: "every day"}, "invalid cron expression"},
		{"six fields", Config{Cron: "0 0 2 * * *"}, "invalid cron expression"},
		{"bad timezone", Config{Cron: "0 2 * * *", Timezone: "Mars/Olympus"}, "invalid timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg, &instantRunner{}, 0)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestRunNow_RecordsLastResult(t *testing.T) {
	r := &instantRunner{}
	s, err := New(Config{Cron: "@daily"}, r, 0)
	require.NoError(t, err)

	last, lastErr := s.LastResult()
	assert.Nil(t, last)
	assert.NoError(t, lastErr)

	res, err := s.RunNow(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, "manual", res.Trigger)

	last, lastErr = s.LastResult()
	require.NotNil(t, last)
	assert.Equal(t, "manual", last.Trigger)
	assert.NoError(t, lastErr)
	assert.False(t, s.Running())
}

func TestRunNow_PanicReleasesRunningFlag(t *testing.T) {
	r := &panickyRunner{}
	s, err := New(Config{Cron: "@daily"}, r, 0)
	require.NoError(t, err)

	res, err := s.RunNow(context.Background(), "manual")
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil reference store")
	assert.False(t, s.Running())

	_, lastErr := s.LastResult()
	assert.Error(t, lastErr)

	require.NoError(t, s.Trigger("api"), "a panicked pass must not block later triggers")
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, int32(2), r.calls.Load())
}

func TestTrigger_NoOverlap(t *testing.T) {
	r := newBlockingRunner()
	s, err := New(Config{Cron: "@daily"}, r, 0)
	require.NoError(t, err)

	require.NoError(t, s.Trigger("api"))
	assert.Equal(t, "api", waitStarted(t, r))
	assert.True(t, s.Running())

	assert.ErrorIs(t, s.Trigger("api"), ErrPassRunning)
	_, err = s.RunNow(context.Background(), "manual")
	assert.ErrorIs(t, err, ErrPassRunning)

	close(r.release)
	require.NoError(t, s.Stop(context.Background()))

	assert.Equal(t, int32(1), r.calls.Load())
	assert.False(t, r.overlap.Load())
	assert.False(t, s.Running())

	last, _ := s.LastResult()
	require.NotNil(t, last)
	assert.Equal(t, "pass-api", last.ID)
}

func TestPassTimeout(t *testing.T) {
	r := newBlockingRunner()
	s, err := New(Config{Cron: "@daily"}, r, 50*time.Millisecond)
	require.NoError(t, err)

	res, err := s.RunNow(context.Background(), "manual")
	require.Error(t, err)
	assert.True(t, gc.IsPassAborted(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	require.NotNil(t, res)
	assert.True(t, res.Aborted)

	last, lastErr := s.LastResult()
	assert.Same(t, res, last)
	assert.Equal(t, err, lastErr)
}

func TestStop_DeadlineCancelsRunningPass(t *testing.T) {
	r := newBlockingRunner()
	s, err := New(Config{Cron: "@daily"}, r, 0)
	require.NoError(t, err)

	require.NoError(t, s.Trigger("api"))
	waitStarted(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = s.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	last, lastErr := s.LastResult()
	require.NotNil(t, last)
	assert.True(t, last.Aborted)
	assert.True(t, gc.IsPassAborted(lastErr))
}

func TestStart_RunOnStart(t *testing.T) {
	r := newBlockingRunner()
	s, err := New(Config{Cron: "@daily", RunOnStart: true}, r, 0)
	require.NoError(t, err)

	s.Start()
	assert.Equal(t, TriggerStartup, waitStarted(t, r))
	assert.False(t, s.Next().IsZero())

	close(r.release)
	require.NoError(t, s.Stop(context.Background()))
}

func TestStart_CronFires(t *testing.T) {
	r := &instantRunner{}
	s, err := New(Config{Cron: "@every 1s"}, r, 0)
	require.NoError(t, err)

	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()

	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	last, _ := s.LastResult()
	require.NotNil(t, last)
	assert.Equal(t, TriggerCron, last.Trigger)
}

func TestNext_HonoursTimezone(t *testing.T) {
	s, err := New(Config{Cron: "0 2 * * *", Timezone: "Asia/Tokyo"}, &instantRunner{}, 0)
	require.NoError(t, err)
	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	next := s.Next().In(tokyo)
	assert.Equal(t, 2, next.Hour())
	assert.Equal(t, 0, next.Minute())
}
