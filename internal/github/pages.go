package github

import (
	"context"
	"errors"
	"iter"
)

// perPage is the maximum page size accepted by the REST API.
const perPage = 100

// ErrPagerExhausted is yielded when a page sequence is ranged over a second time.
var ErrPagerExhausted = errors.New("page sequence already consumed")

// Limiter is consulted before fetching every page after the first.
type Limiter interface {
	Check(ctx context.Context) error
}

// Page is one page of translated results plus the server cursor for the next
// page. NextPage is zero on the last page.
type Page[T any] struct {
	Items    []T
	NextPage int
}

// PageFunc fetches a single page. Page 0 requests the first page.
type PageFunc[T any] func(ctx context.Context, page int) (Page[T], error)

// Pages returns a lazy, single-use sequence of pages produced by fetch,
// following NextPage cursors until the server reports no more pages.
//
// Breaking out of the range loop stops pagination. Fetch loops over
// endpoints sorted by update time descending rely on this to stop as soon as
// an item predates their watermark; that is only correct while the server
// honours the requested sort order.
func Pages[T any](ctx context.Context, limiter Limiter, fetch PageFunc[T]) iter.Seq2[[]T, error] {
	used := false
	return func(yield func([]T, error) bool) {
		if used {
			yield(nil, ErrPagerExhausted)
			return
		}
		used = true

		page := 0
		for first := true; ; first = false {
			if !first && limiter != nil {
				if err := limiter.Check(ctx); err != nil {
					yield(nil, err)
					return
				}
			}

			p, err := fetch(ctx, page)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(p.Items, nil) {
				return
			}
			if p.NextPage == 0 {
				return
			}
			page = p.NextPage
		}
	}
}
