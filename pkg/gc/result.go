package gc

import (
	"time"

	"github.com/marmos91/blobsweep/pkg/reference"
)

// ScopeResult is the outcome of walking one scope.
type ScopeResult struct {
	Scope      reference.Scope `json:"scope"`
	Prefix     string          `json:"prefix"`
	LiveKeys   int             `json:"live_keys"`
	Listed     int64           `json:"listed"`
	Young      int64           `json:"young"` // Orphans held back by the grace window
	Pages      int             `json:"pages"`
	Report     DeletionReport  `json:"report"`
	DurationMs float64         `json:"duration_ms"`

	// Err is the failure that stopped the scope, a *ReferenceStoreError,
	// *ObjectStoreError or context error. Deletes issued before the failure
	// stay in Report.
	Err error `json:"-"`

	// Error mirrors Err for serialisation.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the scope stopped on an error.
func (r *ScopeResult) Failed() bool {
	return r.Err != nil
}

func (r *ScopeResult) setErr(err error) {
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}

// PassResult aggregates one reconciliation pass.
type PassResult struct {
	ID              string                     `json:"id"`
	Trigger         string                     `json:"trigger"`
	StartedAt       time.Time                  `json:"started_at"`
	FinishedAt      time.Time                  `json:"finished_at"`
	DryRun          bool                       `json:"dry_run"`
	ScopesProcessed int                        `json:"scopes_processed"`
	TotalOrphans    int64                      `json:"total_orphans"`
	TotalAttempted  int64                      `json:"total_attempted"`
	TotalDeleted    int64                      `json:"total_deleted"`
	TotalFailed     int64                      `json:"total_failed"`
	BytesReclaimed  int64                      `json:"bytes_reclaimed"`
	Scopes          []ScopeResult              `json:"scopes"`
	ScopeErrors     map[reference.Scope]error  `json:"-"`
	Errors          map[reference.Scope]string `json:"errors,omitempty"`

	// Aborted is set when Run returned a *PassAbortedError.
	Aborted bool `json:"aborted"`
}

// HasFailures reports whether any scope failed or any delete failed.
func (r *PassResult) HasFailures() bool {
	return r.Aborted || len(r.ScopeErrors) > 0 || r.TotalFailed > 0
}

// Duration returns how long the pass ran.
func (r *PassResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *PassResult) add(sr ScopeResult) {
	r.ScopesProcessed++
	r.TotalOrphans += sr.Report.Orphans
	r.TotalAttempted += sr.Report.Attempted
	r.TotalDeleted += sr.Report.Deleted
	r.TotalFailed += sr.Report.Failed
	r.BytesReclaimed += sr.Report.BytesReclaimed
	r.Scopes = append(r.Scopes, sr)
	if sr.Err != nil {
		r.ScopeErrors[sr.Scope] = sr.Err
		r.Errors[sr.Scope] = sr.Err.Error()
	}
}
