// Package scheduler triggers reconciliation passes on a cron schedule and
// guarantees that at most one pass runs at a time, whatever started it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/marmos91/blobsweep/internal/logger"
	"github.com/marmos91/blobsweep/pkg/gc"
)

// ErrPassRunning is returned when a pass is requested while another is in flight.
var ErrPassRunning = errors.New("a pass is already running")

// Triggers recorded on passes started by the scheduler.
const (
	TriggerCron    = "cron"
	TriggerStartup = "startup"
)

// Config holds the schedule.
type Config struct {
	// Cron is a standard 5-field cron expression, optionally prefixed with
	// "CRON_TZ=<zone> ". Descriptors such as "@daily" are accepted.
	Cron string `mapstructure:"cron" validate:"required" yaml:"cron" json:"cron" jsonschema:"default=0 2 * * *"`

	// Timezone is the IANA zone the expression is evaluated in.
	// Empty means the process local zone. A CRON_TZ prefix wins over it.
	Timezone string `mapstructure:"timezone" yaml:"timezone" json:"timezone,omitempty"`

	// RunOnStart triggers one pass as soon as the scheduler starts.
	RunOnStart bool `mapstructure:"run_on_start" yaml:"run_on_start" json:"run_on_start"`
}

// Runner runs one pass. *gc.Collector satisfies it.
type Runner interface {
	Run(ctx context.Context, trigger string) (*gc.PassResult, error)
}

// Scheduler owns the cron loop and the single-pass guard.
type Scheduler struct {
	runner      Runner
	passTimeout time.Duration
	runOnStart  bool

	cron    *cron.Cron
	entryID cron.EntryID

	mu      sync.Mutex
	running bool
	last    *gc.PassResult
	lastErr error

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates cfg and builds a stopped scheduler. passTimeout bounds each
// pass's wall-clock time; zero means unbounded.
func New(cfg Config, runner Runner, passTimeout time.Duration) (*Scheduler, error) {
	loc := time.Local
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}

	schedule, err := Parse(cfg.Cron)
	if err != nil {
		return nil, err
	}

	base, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner:      runner,
		passTimeout: passTimeout,
		runOnStart:  cfg.RunOnStart,
		base:        base,
		cancel:      cancel,
	}

	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{})),
	)
	s.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		if _, err := s.RunNow(s.base, TriggerCron); errors.Is(err, ErrPassRunning) {
			logger.Warn("GC: skipping scheduled pass, previous pass still running")
		}
	}))

	return s, nil
}

// Parse parses a standard cron expression, with optional CRON_TZ prefix.
func Parse(expr string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// Start begins firing scheduled passes.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("GC: scheduler started", "next_run", s.Next().Format(time.RFC3339))

	if s.runOnStart {
		if err := s.Trigger(TriggerStartup); err != nil {
			logger.Warn("GC: startup pass not triggered", logger.KeyError, err)
		}
	}
}

// Stop stops scheduling and waits for a running pass to finish. If ctx
// expires first, the running pass is cancelled and Stop returns ctx's error
// once it has returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		logger.Info("GC: scheduler stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("GC: shutdown deadline reached, cancelling running pass")
		s.cancel()
		<-done
		return ctx.Err()
	}
}

// RunNow runs a pass synchronously on the caller's goroutine. It returns
// ErrPassRunning without running anything if a pass is already in flight.
func (s *Scheduler) RunNow(ctx context.Context, trigger string) (*gc.PassResult, error) {
	if !s.acquire() {
		return nil, ErrPassRunning
	}
	s.wg.Add(1)
	defer s.wg.Done()
	return s.run(ctx, trigger)
}

// Trigger starts a pass in the background. It returns ErrPassRunning if a
// pass is already in flight.
func (s *Scheduler) Trigger(trigger string) error {
	if !s.acquire() {
		return ErrPassRunning
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.run(s.base, trigger)
	}()
	return nil
}

func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

// run executes one pass. The running flag is cleared on every exit path,
// and a panicking runner is reported as a failed pass.
func (s *Scheduler) run(ctx context.Context, trigger string) (res *gc.PassResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("pass panicked: %v", r)
		}

		s.mu.Lock()
		s.running = false
		if res != nil {
			s.last = res
		}
		s.lastErr = err
		s.mu.Unlock()

		if err != nil {
			logger.Error("GC: pass failed", logger.KeyTrigger, trigger, logger.KeyError, err)
		}
	}()

	if s.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.passTimeout)
		defer cancel()
	}

	return s.runner.Run(ctx, trigger)
}

// Running reports whether a pass is in flight.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastResult returns the most recent pass result and the error it ended
// with. Both are nil before the first pass.
func (s *Scheduler) LastResult() (*gc.PassResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastErr
}

// Next returns when the next scheduled pass fires. Zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// cronLogger routes cron's own logging through internal/logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error("cron: "+msg, append(keysAndValues, logger.KeyError, err)...)
}
