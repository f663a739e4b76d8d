package config

import (
	"github.com/marmos91/blobsweep/pkg/gc"
	"github.com/marmos91/blobsweep/pkg/reference"
)

// Options converts the gc section into collector options. extra is
// appended last, so callers can override any configured value.
func (c GCConfig) Options(extra ...gc.Option) []gc.Option {
	opts := []gc.Option{
		gc.WithNamespace(c.Namespace),
		gc.WithGracePeriod(c.GracePeriod),
		gc.WithDryRun(c.DryRun),
		gc.WithMaxDeletesPerScope(c.MaxDeletesPerScope),
		gc.WithScopeConcurrency(c.ScopeConcurrency),
		gc.WithDeleteConcurrency(c.DeleteConcurrency),
		gc.WithDeleteRateLimit(c.DeleteRateLimit),
		gc.WithPageSize(c.PageSize),
	}
	if len(c.Scopes) > 0 {
		scopes := make([]reference.Scope, len(c.Scopes))
		for i, s := range c.Scopes {
			scopes[i] = reference.Scope(s)
		}
		opts = append(opts, gc.WithScopes(scopes...))
	}
	return append(opts, extra...)
}
