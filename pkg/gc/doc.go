// Package gc reconciles a reference store with an object store and deletes
// the orphan objects: objects stored under a scope's prefix that no record of
// that scope points at.
//
// A pass lists every scope known to the reference store and walks each one
// independently:
//
//	live set  <- every non-empty ObjectKey of the scope's records
//	objects   <- lazy paginated listing of "<namespace>/<scope>/"
//	orphans   <- objects - live set (directory markers skipped)
//	delete    <- each orphan, isolated per key
//
// The live set of a scope is always complete before the first delete decision
// for that scope. A key written to the reference store after that snapshot can
// still be deleted (the stores are not coupled transactionally); the grace
// window narrows that race by never touching objects younger than
// Options.GracePeriod.
//
// Failures are contained at the smallest possible level: a failed delete is
// recorded and the scope goes on, a failed scope is recorded and the pass goes
// on. Only a failure to list scopes, or cancellation of the pass context,
// aborts the pass with a *PassAbortedError.
//
// Usage:
//
//	// Dry run first
//	c := gc.New(refs, objects, gc.WithNamespace("place_images"), gc.WithDryRun(true))
//	res, err := c.Run(ctx, "cli")
//
//	// Then actually delete
//	c = gc.New(refs, objects, gc.WithNamespace("place_images"))
//	res, err = c.Run(ctx, "cli")
package gc
