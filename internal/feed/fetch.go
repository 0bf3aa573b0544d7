package feed

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/hnlive/internal/hn"
)

// ItemGetter resolves a single item. (nil, nil) means absent.
type ItemGetter interface {
	FetchItem(ctx context.Context, id int) (*hn.Item, error)
}

// Fetcher is the remote API as consumed by the engine. *hn.Client
// implements it; tests inject fakes.
type Fetcher interface {
	ItemGetter
	FetchLatestID(ctx context.Context) (int, error)
	FetchFilteredIDs(ctx context.Context, list string) ([]int, error)
}

// batchResult is the outcome of fetching a set of identifiers concurrently.
type batchResult struct {
	items  []*hn.Item // resolved items, in request order
	absent int
	failed int
	err    error // first failure, if any
}

// allFailed reports whether nothing came back and at least one request failed.
func (r batchResult) allFailed() bool {
	return r.failed > 0 && len(r.items) == 0 && r.absent == 0
}

// fetchBatch fetches ids concurrently with at most limit requests in flight.
// A failing identifier never fails the batch: successes are collected,
// failures are counted and dropped.
func fetchBatch(ctx context.Context, f ItemGetter, ids []int, limit int) batchResult {
	slots := make([]*hn.Item, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return nil
			}
			slots[i], errs[i] = f.FetchItem(ctx, id)
			return nil // never fail the group; errors are per item
		})
	}
	_ = g.Wait()

	var res batchResult
	for i := range ids {
		switch {
		case errs[i] != nil:
			res.failed++
			if res.err == nil {
				res.err = errs[i]
			}
		case slots[i] == nil:
			res.absent++
		default:
			res.items = append(res.items, slots[i])
		}
	}
	return res
}

// sortNewestFirst orders items by descending creation time. Ties keep their
// existing (request) order.
func sortNewestFirst(items []*hn.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Time > items[j].Time
	})
}
