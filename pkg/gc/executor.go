package gc

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/marmos91/blobsweep/internal/logger"
	"github.com/marmos91/blobsweep/internal/telemetry"
	"github.com/marmos91/blobsweep/pkg/objectstore"
	"github.com/marmos91/blobsweep/pkg/reference"
)

// DeletionReport summarises the deletes issued for one scope.
type DeletionReport struct {
	Orphans        int64          `json:"orphans"`         // Orphans received from the reconciler
	Attempted      int64          `json:"attempted"`       // Deletes issued
	Deleted        int64          `json:"deleted"`         // Deletes that succeeded, including not-found
	NotFound       int64          `json:"not_found"`       // Subset of Deleted already absent
	Failed         int64          `json:"failed"`          // Deletes that returned an error
	Deferred       int64          `json:"deferred"`        // Orphans left for a later pass by MaxDeletesPerScope
	BytesReclaimed int64          `json:"bytes_reclaimed"` // Sum of sizes of deleted objects
	Failures       []*DeleteError `json:"-"`
}

// FailedKeys returns the keys of failed deletes.
func (r *DeletionReport) FailedKeys() []string {
	keys := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		keys = append(keys, f.Key)
	}
	return keys
}

// Executor deletes orphans with per-key isolation and bounded concurrency.
type Executor struct {
	deleter     objectstore.Deleter
	concurrency int
	maxDeletes  int
	rateLimit   float64
	dryRun      bool
	metrics     Metrics
}

// NewExecutor creates an executor from opts. Zero values get the package defaults.
func NewExecutor(deleter objectstore.Deleter, opts Options) *Executor {
	opts.applyDefaults()
	return &Executor{
		deleter:     deleter,
		concurrency: opts.DeleteConcurrency,
		maxDeletes:  opts.MaxDeletesPerScope,
		rateLimit:   opts.DeleteRateLimit,
		dryRun:      opts.DryRun,
		metrics:     opts.Metrics,
	}
}

// DeleteAll drains orphans and deletes each one. A failed delete is logged
// and recorded, and processing continues with the next key. A not-found
// result counts as deleted. Once ctx is done no new deletes are issued;
// deletes already in flight run to completion. The channel is always
// drained so the producer can exit.
func (e *Executor) DeleteAll(ctx context.Context, scope reference.Scope, orphans <-chan objectstore.Entry) DeletionReport {
	var (
		report DeletionReport
		mu     sync.Mutex
	)

	var limiter *rate.Limiter
	if e.rateLimit > 0 {
		burst := int(e.rateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(e.rateLimit), burst)
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for entry := range orphans {
		report.Orphans++

		if e.dryRun {
			logger.InfoCtx(ctx, "GC: would delete orphan", logger.KeyObjectKey, entry.Key, "size", entry.Size)
			e.metrics.RecordDelete(scope, OutcomeDryRun)
			continue
		}
		if ctx.Err() != nil {
			continue
		}
		if e.maxDeletes > 0 && report.Attempted >= int64(e.maxDeletes) {
			report.Deferred++
			continue
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				continue
			}
		}

		report.Attempted++
		g.Go(func() error {
			outcome, err := e.deleteOne(ctx, scope, entry)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case OutcomeDeleted:
				report.Deleted++
				report.BytesReclaimed += entry.Size
			case OutcomeNotFound:
				report.Deleted++
				report.NotFound++
			default:
				report.Failed++
				report.Failures = append(report.Failures, &DeleteError{Key: entry.Key, Err: err})
			}
			return nil
		})
	}

	_ = g.Wait()
	return report
}

// DeleteEntries is DeleteAll over an already collected slice of orphans.
func (e *Executor) DeleteEntries(ctx context.Context, scope reference.Scope, orphans []objectstore.Entry) DeletionReport {
	ch := make(chan objectstore.Entry, len(orphans))
	for _, entry := range orphans {
		ch <- entry
	}
	close(ch)
	return e.DeleteAll(ctx, scope, ch)
}

func (e *Executor) deleteOne(ctx context.Context, scope reference.Scope, entry objectstore.Entry) (DeleteOutcome, error) {
	ctx, span := telemetry.StartDeleteSpan(ctx, entry.Key, telemetry.Scope(string(scope)))
	defer span.End()

	err := e.deleter.Delete(ctx, entry.Key)
	switch {
	case err == nil:
		logger.InfoCtx(ctx, "GC: deleted orphan", logger.KeyObjectKey, entry.Key, "size", entry.Size)
		e.metrics.RecordDelete(scope, OutcomeDeleted)
		return OutcomeDeleted, nil
	case objectstore.IsNotFound(err):
		logger.DebugCtx(ctx, "GC: orphan already gone", logger.KeyObjectKey, entry.Key)
		e.metrics.RecordDelete(scope, OutcomeNotFound)
		return OutcomeNotFound, nil
	default:
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "GC: failed to delete orphan", logger.KeyObjectKey, entry.Key, logger.KeyError, err)
		e.metrics.RecordDelete(scope, OutcomeFailed)
		return OutcomeFailed, err
	}
}
