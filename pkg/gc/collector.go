package gc

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/blobsweep/internal/logger"
	"github.com/marmos91/blobsweep/internal/telemetry"
	"github.com/marmos91/blobsweep/pkg/objectstore"
	"github.com/marmos91/blobsweep/pkg/reference"
)

// Collector runs reconciliation passes between a reference store and an
// object store. It holds no per-pass state and may run passes concurrently,
// although callers normally serialise them.
type Collector struct {
	refs    reference.Store
	objects objectstore.Store
	opts    Options
}

// New creates a collector over the given stores.
func New(refs reference.Store, objects objectstore.Store, opts ...Option) *Collector {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	o.applyDefaults()
	return &Collector{refs: refs, objects: objects, opts: o}
}

// Options returns the effective options, defaults applied.
func (c *Collector) Options() Options {
	return c.opts
}

// ============================================================================
// Pass
// ============================================================================

// Run executes one reconciliation pass over every scope.
//
// A failure to list scopes aborts the pass before anything is deleted. When
// ctx is cancelled, no new scope is started and no new delete is issued;
// Run then returns the partial result together with a *PassAbortedError
// wrapping the context error. Scope-level failures never abort the pass;
// they are reported in PassResult.ScopeErrors.
func (c *Collector) Run(ctx context.Context, trigger string) (*PassResult, error) {
	start := c.opts.Now()
	result := &PassResult{
		ID:          uuid.NewString(),
		Trigger:     trigger,
		StartedAt:   start,
		DryRun:      c.opts.DryRun,
		ScopeErrors: make(map[reference.Scope]error),
		Errors:      make(map[reference.Scope]string),
	}

	ctx, span := telemetry.StartPassSpan(ctx, result.ID, trigger, c.opts.DryRun)
	defer span.End()

	lc := logger.NewLogContext(result.ID, trigger).WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	logger.InfoCtx(ctx, "GC: pass starting",
		logger.KeyDryRun, c.opts.DryRun,
		logger.KeyGrace, c.opts.GracePeriod.String(),
		"namespace", c.opts.Namespace)

	scopes, err := c.refs.ListScopes(ctx)
	if err != nil {
		return c.abort(ctx, result, &PassAbortedError{Reason: "list scopes", Err: err})
	}
	scopes = c.selectScopes(ctx, scopes)

	cutoff := c.opts.cutoff(start)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.opts.ScopeConcurrency)

	for _, scope := range scopes {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			sr := c.runScope(ctx, result.ID, scope, cutoff)
			mu.Lock()
			result.add(sr)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(result.Scopes, func(a, b ScopeResult) int {
		switch {
		case a.Scope < b.Scope:
			return -1
		case a.Scope > b.Scope:
			return 1
		}
		return 0
	})

	if err := ctx.Err(); err != nil {
		return c.abort(ctx, result, &PassAbortedError{Reason: "cancelled", Err: err})
	}

	result.FinishedAt = c.opts.Now()
	span.SetAttributes(
		telemetry.Deleted(result.TotalDeleted),
		telemetry.Failed(result.TotalFailed),
		telemetry.BytesReclaimed(result.BytesReclaimed),
	)

	outcome := "success"
	if result.HasFailures() {
		outcome = "partial"
		span.SetStatus(codes.Error, "pass completed with failures")
	}
	span.SetAttributes(telemetry.Outcome(outcome))
	c.opts.Metrics.ObservePass(result)

	logger.InfoCtx(ctx, "GC: pass complete",
		logger.KeyScopes, result.ScopesProcessed,
		logger.KeyOrphans, result.TotalOrphans,
		logger.KeyAttempted, result.TotalAttempted,
		logger.KeyDeleted, result.TotalDeleted,
		logger.KeyFailed, result.TotalFailed,
		logger.KeyBytes, result.BytesReclaimed,
		"scope_errors", len(result.ScopeErrors),
		logger.KeyDurationMs, lc.DurationMs())

	return result, nil
}

func (c *Collector) abort(ctx context.Context, result *PassResult, err *PassAbortedError) (*PassResult, error) {
	result.Aborted = true
	result.FinishedAt = c.opts.Now()

	telemetry.RecordError(ctx, err)
	telemetry.SetAttributes(ctx, telemetry.Outcome("aborted"))
	c.opts.Metrics.ObservePass(result)

	logger.ErrorCtx(ctx, "GC: pass aborted",
		"reason", err.Reason,
		logger.KeyScopes, result.ScopesProcessed,
		logger.KeyDeleted, result.TotalDeleted,
		logger.KeyError, err.Err)
	return result, err
}

// selectScopes applies the Scopes option. Requested scopes the reference
// store does not know are dropped: walking them would treat every object
// under their prefix as an orphan.
func (c *Collector) selectScopes(ctx context.Context, scopes []reference.Scope) []reference.Scope {
	if len(c.opts.Scopes) == 0 {
		return scopes
	}
	known := make(map[reference.Scope]struct{}, len(scopes))
	for _, s := range scopes {
		known[s] = struct{}{}
	}
	selected := make([]reference.Scope, 0, len(c.opts.Scopes))
	for _, s := range c.opts.Scopes {
		if _, ok := known[s]; !ok {
			logger.WarnCtx(ctx, "GC: requested scope unknown to reference store, skipping", logger.KeyScope, string(s))
			continue
		}
		selected = append(selected, s)
	}
	return selected
}

// ============================================================================
// Scope
// ============================================================================

// RunScope reconciles a single scope. The grace window is measured from now.
func (c *Collector) RunScope(ctx context.Context, scope reference.Scope) ScopeResult {
	return c.runScope(ctx, "", scope, c.opts.cutoff(c.opts.Now()))
}

func (c *Collector) runScope(ctx context.Context, passID string, scope reference.Scope, cutoff time.Time) ScopeResult {
	start := time.Now()
	prefix := ScopePrefix(c.opts.Namespace, scope)
	sr := ScopeResult{Scope: scope, Prefix: prefix}

	ctx, span := telemetry.StartScopeSpan(ctx, string(scope), prefix)
	defer span.End()

	lc := logger.FromContext(ctx)
	if lc == nil {
		lc = logger.NewLogContext(passID, "")
	}
	ctx = logger.WithContext(ctx, lc.WithScope(string(scope)))

	telemetry.WithScopeLabels(ctx, passID, string(scope), func(ctx context.Context) {
		c.walk(ctx, &sr, cutoff)
	})

	sr.DurationMs = logger.Duration(start)
	span.SetAttributes(
		telemetry.LiveKeys(sr.LiveKeys),
		telemetry.Listed(sr.Listed),
		telemetry.Orphans(sr.Report.Orphans),
		telemetry.Deleted(sr.Report.Deleted),
		telemetry.Failed(sr.Report.Failed),
	)

	if sr.Err != nil {
		telemetry.RecordError(ctx, sr.Err)
		logger.ErrorCtx(ctx, "GC: scope failed",
			logger.KeyAttempted, sr.Report.Attempted,
			logger.KeyDeleted, sr.Report.Deleted,
			logger.KeyError, sr.Err,
			logger.KeyDurationMs, sr.DurationMs)
	} else {
		logger.InfoCtx(ctx, "GC: scope complete",
			logger.KeyLiveKeys, sr.LiveKeys,
			logger.KeyListed, sr.Listed,
			logger.KeyPages, sr.Pages,
			logger.KeyOrphans, sr.Report.Orphans,
			logger.KeyAttempted, sr.Report.Attempted,
			logger.KeyDeleted, sr.Report.Deleted,
			logger.KeyFailed, sr.Report.Failed,
			logger.KeySkipped, sr.Young+sr.Report.Deferred,
			logger.KeyBytes, sr.Report.BytesReclaimed,
			logger.KeyDurationMs, sr.DurationMs)
	}

	c.opts.Metrics.ObserveScope(&sr)
	if c.opts.ProgressCallback != nil {
		c.opts.ProgressCallback(sr)
	}
	return sr
}

// walk fills sr. The live set is complete before the listing starts, and
// the listing is complete before the first delete, so a scope whose listing
// fails part way reports the failure and no deletions.
func (c *Collector) walk(ctx context.Context, sr *ScopeResult, cutoff time.Time) {
	live, err := LiveKeys(ctx, c.refs, sr.Scope)
	if err != nil {
		sr.setErr(err)
		return
	}
	sr.LiveKeys = len(live)

	objects := NewObjectEnumerator(c.objects, c.opts.Namespace, sr.Scope, c.opts.PageSize)
	scan, err := Orphans(ctx, live, objects, cutoff)
	sr.Listed = scan.Listed
	sr.Young = scan.Young
	sr.Pages = objects.Pages()
	if err != nil {
		sr.setErr(err)
		return
	}

	exec := NewExecutor(c.objects, c.opts)
	sr.Report = exec.DeleteEntries(ctx, sr.Scope, scan.Orphans)
	if err := ctx.Err(); err != nil {
		sr.setErr(err)
	}
}

// IsPassAborted reports whether err is, or wraps, a *PassAbortedError.
func IsPassAborted(err error) bool {
	var pa *PassAbortedError
	return errors.As(err, &pa)
}
