package gc

import (
	"context"
	"time"

	"github.com/marmos91/blobsweep/pkg/objectstore"
)

// Reconcile returns the keys not in live, in first-seen order, without
// duplicates.
func Reconcile(live LiveSet, keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	var orphans []string
	for _, k := range keys {
		if live.Contains(k) {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		orphans = append(orphans, k)
	}
	return orphans
}

// OrphanScan is the outcome of reading one scope's listing against its
// live set.
type OrphanScan struct {
	// Orphans holds the unreferenced entries in listing order, each key once.
	Orphans []objectstore.Entry

	// Listed counts non-marker objects read from the source.
	Listed int64
	// Live counts listed objects found in the live set.
	Live int64
	// Young counts orphans held back by the grace window.
	Young int64
}

// Orphans reads src to the end and collects every entry whose key is not in
// live. Entries modified after cutoff are counted as Young and withheld; a
// zero cutoff disables the check, and entries with no modification time are
// never withheld.
//
// Nothing is returned for deletion until the listing has completed: when src
// fails or ctx is done the error is returned and the scan carries counters
// only. Memory is bounded by the number of orphans, not by the listing.
func Orphans(ctx context.Context, live LiveSet, src EntrySource, cutoff time.Time) (*OrphanScan, error) {
	scan := &OrphanScan{}
	seen := make(map[string]struct{})
	var orphans []objectstore.Entry

	for {
		if err := ctx.Err(); err != nil {
			return scan, err
		}
		e, ok := src.Next(ctx)
		if !ok {
			break
		}
		scan.Listed++
		if live.Contains(e.Key) {
			scan.Live++
			continue
		}
		if _, dup := seen[e.Key]; dup {
			continue
		}
		seen[e.Key] = struct{}{}
		if !cutoff.IsZero() && !e.ModTime.IsZero() && e.ModTime.After(cutoff) {
			scan.Young++
			continue
		}
		orphans = append(orphans, e)
	}

	if err := src.Err(); err != nil {
		return scan, err
	}
	if err := ctx.Err(); err != nil {
		return scan, err
	}
	scan.Orphans = orphans
	return scan, nil
}
