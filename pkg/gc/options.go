package gc

import (
	"time"

	"github.com/marmos91/blobsweep/pkg/objectstore"
	"github.com/marmos91/blobsweep/pkg/reference"
)

// Defaults applied by New when an option is left at its zero value.
const (
	DefaultScopeConcurrency  = 4
	DefaultDeleteConcurrency = 8
)

// Options configures a Collector.
type Options struct {
	// Namespace is the first path segment of every object key, e.g.
	// "place_images". Empty means scopes sit at the bucket root.
	Namespace string

	// GracePeriod exempts objects modified less than this long before the
	// pass started. Zero disables the window. Objects whose backend reports
	// no modification time are not exempt.
	GracePeriod time.Duration

	// DryRun if true, only reports orphans without deleting.
	DryRun bool

	// MaxDeletesPerScope caps the deletes issued for one scope in one pass.
	// Remaining orphans are left for the next pass. 0 means unlimited.
	MaxDeletesPerScope int

	// ScopeConcurrency bounds how many scopes are walked at once.
	ScopeConcurrency int

	// DeleteConcurrency bounds in-flight deletes within a scope.
	DeleteConcurrency int

	// DeleteRateLimit is the sustained delete rate per scope, in deletes per
	// second. 0 means unlimited.
	DeleteRateLimit float64

	// PageSize is the listing page size requested from the object store.
	PageSize int

	// Scopes restricts the pass to these scopes. Empty means every scope.
	Scopes []reference.Scope

	// Metrics receives pass, scope and delete observations. May be nil.
	Metrics Metrics

	// ProgressCallback is called after each scope completes. May be nil.
	// Calls may come from several goroutines at once.
	ProgressCallback func(ScopeResult)

	// Now is the clock used to stamp passes. Defaults to time.Now.
	Now func() time.Time
}

// Option mutates Options.
type Option func(*Options)

// WithOptions replaces the whole option set. Later options still apply on top.
func WithOptions(o Options) Option {
	return func(dst *Options) { *dst = o }
}

func WithNamespace(ns string) Option {
	return func(o *Options) { o.Namespace = ns }
}

func WithGracePeriod(d time.Duration) Option {
	return func(o *Options) { o.GracePeriod = d }
}

func WithDryRun(dry bool) Option {
	return func(o *Options) { o.DryRun = dry }
}

func WithMaxDeletesPerScope(n int) Option {
	return func(o *Options) { o.MaxDeletesPerScope = n }
}

func WithScopeConcurrency(n int) Option {
	return func(o *Options) { o.ScopeConcurrency = n }
}

func WithDeleteConcurrency(n int) Option {
	return func(o *Options) { o.DeleteConcurrency = n }
}

// WithDeleteRateLimit sets the per-scope delete rate in deletes per second.
func WithDeleteRateLimit(perSecond float64) Option {
	return func(o *Options) { o.DeleteRateLimit = perSecond }
}

func WithPageSize(n int) Option {
	return func(o *Options) { o.PageSize = n }
}

// WithScopes restricts passes to the given scopes.
func WithScopes(scopes ...reference.Scope) Option {
	return func(o *Options) { o.Scopes = append([]reference.Scope(nil), scopes...) }
}

func WithMetrics(m Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

func WithProgressCallback(fn func(ScopeResult)) Option {
	return func(o *Options) { o.ProgressCallback = fn }
}

// WithClock overrides the clock. Tests use it to pin the grace window.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

func (o *Options) applyDefaults() {
	if o.ScopeConcurrency <= 0 {
		o.ScopeConcurrency = DefaultScopeConcurrency
	}
	if o.DeleteConcurrency <= 0 {
		o.DeleteConcurrency = DefaultDeleteConcurrency
	}
	if o.PageSize <= 0 {
		o.PageSize = objectstore.DefaultPageSize
	}
	if o.MaxDeletesPerScope < 0 {
		o.MaxDeletesPerScope = 0
	}
	if o.DeleteRateLimit < 0 {
		o.DeleteRateLimit = 0
	}
	if o.Metrics == nil {
		o.Metrics = noopMetrics{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// cutoff returns the newest modification time still eligible for deletion
// in a pass started at start. Zero means no window.
func (o *Options) cutoff(start time.Time) time.Time {
	if o.GracePeriod <= 0 {
		return time.Time{}
	}
	return start.Add(-o.GracePeriod)
}
