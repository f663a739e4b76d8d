package gc

import "github.com/marmos91/blobsweep/pkg/reference"

// DeleteOutcome classifies a single delete for metrics.
type DeleteOutcome string

const (
	OutcomeDeleted  DeleteOutcome = "deleted"
	OutcomeNotFound DeleteOutcome = "not_found"
	OutcomeFailed   DeleteOutcome = "failed"
	OutcomeDryRun   DeleteOutcome = "dry_run"
)

// Metrics receives collector observations. Implementations must be safe for
// concurrent use.
type Metrics interface {
	// ObservePass is called once per pass, including aborted ones.
	ObservePass(result *PassResult)

	// ObserveScope is called once per walked scope.
	ObserveScope(result *ScopeResult)

	// RecordDelete is called once per orphan handed to the executor.
	RecordDelete(scope reference.Scope, outcome DeleteOutcome)
}

type noopMetrics struct{}

func (noopMetrics) ObservePass(*PassResult) {}
func (noopMetrics) ObserveScope(*ScopeResult) {}
func (noopMetrics) RecordDelete(reference.Scope, DeleteOutcome) {}
