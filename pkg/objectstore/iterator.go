package objectstore

import (
	"context"
	"fmt"
)

// Iterator walks every object under a prefix, fetching pages lazily.
//
// A new page is requested only after the current one has been consumed, so
// memory stays bounded by the page size regardless of how many objects live
// under the prefix. Directory markers are skipped.
//
// An Iterator is not safe for concurrent use.
type Iterator struct {
	lister   Lister
	prefix   string
	pageSize int

	page    []Entry
	pos     int
	token   string
	fetched int
	done    bool
	err     error
}

// NewIterator creates an iterator over all objects under prefix.
func NewIterator(lister Lister, prefix string, pageSize int) *Iterator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Iterator{
		lister:   lister,
		prefix:   prefix,
		pageSize: pageSize,
	}
}

// Next returns the next object. The second return value is false once the
// listing is exhausted or has failed; check Err to tell the two apart.
func (it *Iterator) Next(ctx context.Context) (Entry, bool) {
	for {
		if it.err != nil {
			return Entry{}, false
		}

		for it.pos < len(it.page) {
			e := it.page[it.pos]
			it.pos++
			if e.IsMarker() {
				continue
			}
			return e, true
		}

		if it.done {
			return Entry{}, false
		}

		if err := ctx.Err(); err != nil {
			it.err = err
			return Entry{}, false
		}

		page, err := it.lister.ListPage(ctx, it.prefix, it.token, it.pageSize)
		if err != nil {
			it.err = fmt.Errorf("list %q (page %d): %w", it.prefix, it.fetched+1, err)
			return Entry{}, false
		}
		it.fetched++

		// A backend echoing the same token would loop forever.
		if page.NextToken != "" && page.NextToken == it.token {
			it.err = fmt.Errorf("list %q (page %d): continuation token did not advance", it.prefix, it.fetched)
			return Entry{}, false
		}

		it.page = page.Entries
		it.pos = 0
		it.token = page.NextToken
		it.done = page.NextToken == ""
	}
}

// Err returns the listing failure that stopped the iterator, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Pages returns how many pages have been fetched so far.
func (it *Iterator) Pages() int {
	return it.fetched
}

// Reset rewinds the iterator to the start of the listing.
func (it *Iterator) Reset() {
	it.page = nil
	it.pos = 0
	it.token = ""
	it.fetched = 0
	it.done = false
	it.err = nil
}

// Collect drains the iterator into a slice of keys.
func Collect(ctx context.Context, it *Iterator) ([]string, error) {
	var keys []string
	for {
		e, ok := it.Next(ctx)
		if !ok {
			break
		}
		keys = append(keys, e.Key)
	}
	return keys, it.Err()
}
