package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abelbrown/hnlive/internal/hn"
)

// Poll fetches the remote frontier, fetches identifiers not seen before and
// prepends the ones passing the filter to the live buffer. It returns the
// items added. ErrInFlight is returned without effect while a poll runs.
//
// The first poll for a filter whose universe is unknown only records the
// baseline. Newness is decided by identifier, never by timestamp, so an
// item is reported at most once.
func (e *SyncEngine) Poll(ctx context.Context) ([]*hn.Item, error) {
	if !e.pollBusy.CompareAndSwap(false, true) {
		e.metrics.recordRefused(StreamPoll)
		e.log.Debug("Poll refused, cycle in flight")
		return nil, ErrInFlight
	}
	defer e.pollBusy.Store(false)

	started := time.Now()
	filter := e.Filter()
	added, outcome, err := e.poll(ctx)
	e.metrics.recordCycle(StreamPoll, outcome, started)
	if outcome == outcomeError {
		e.log.Warn("Poll cycle failed", "filter", filter, "err", err)
		e.notify(CycleFailed{Stream: StreamPoll, Filter: filter, Err: err})
	}
	return added, err
}

// remoteFrontier is what the API reports right now.
type remoteFrontier struct {
	latest int
	ids    []int
}

func (e *SyncEngine) poll(ctx context.Context) ([]*hn.Item, string, error) {
	e.mu.Lock()
	gen, filter := e.generation, e.filter
	e.mu.Unlock()

	remote, err := e.fetchFrontier(ctx, filter)
	if err != nil {
		return nil, outcomeError, err
	}

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return nil, outcomeStale, ErrFilterChanged
	}
	if !e.frontier.known {
		e.advanceFrontier(filter, remote)
		e.mu.Unlock()
		e.log.Debug("Poll baseline recorded", "filter", filter, "latest", remote.latest, "ids", len(remote.ids))
		return nil, outcomeNoop, nil
	}
	fresh, total := e.newIdentifiers(filter, remote, e.opts.PollFetchLimit)
	epoch := e.frontier.epoch
	e.mu.Unlock()

	if total == 0 {
		return nil, outcomeNoop, nil
	}
	skipped := total - len(fresh)

	res := fetchBatch(ctx, e.fetcher, fresh, e.opts.Concurrency)
	e.metrics.recordBatch(StreamPoll, len(res.items), res.failed)
	if res.allFailed() {
		return nil, outcomeError, fmt.Errorf("fetch live updates: %w", res.err)
	}

	matching := make([]*hn.Item, 0, len(res.items))
	for _, item := range res.items {
		if filter.Accepts(item) {
			matching = append(matching, item)
		}
	}
	sortNewestFirst(matching)

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return nil, outcomeStale, ErrFilterChanged
	}
	added := e.live.Push(matching)
	if e.frontier.epoch == epoch {
		e.advanceFrontier(filter, remote)
	} else {
		// The page stream anchored the frontier below what this poll
		// compared against; the next poll re-diffs from the anchor.
		e.log.Debug("Frontier re-anchored during poll", "filter", filter)
	}
	visible, hidden, total := e.live.Visible(), e.live.Hidden(), e.live.Len()
	e.mu.Unlock()

	e.metrics.LiveBuffered.Set(float64(total))
	e.log.Debug("Poll cycle finished", "filter", filter, "new", len(fresh)+skipped,
		"fetched", len(res.items), "added", len(added), "skipped", skipped, "failed", res.failed)

	if len(added) > 0 {
		e.notify(LiveUpdateAppended{Filter: filter, Items: added, Visible: visible, Hidden: hidden})
	}
	return added, outcomeOK, nil
}

func (e *SyncEngine) fetchFrontier(ctx context.Context, filter Filter) (remoteFrontier, error) {
	if filter.Countdown() {
		latest, err := e.fetcher.FetchLatestID(ctx)
		if err != nil {
			return remoteFrontier{}, fmt.Errorf("poll %s: %w", filter, err)
		}
		return remoteFrontier{latest: latest}, nil
	}
	ids, err := e.fetcher.FetchFilteredIDs(ctx, filter.Endpoint())
	if err != nil {
		return remoteFrontier{}, fmt.Errorf("poll %s: %w", filter, err)
	}
	return remoteFrontier{ids: ids}, nil
}

// newIdentifiers returns at most limit remote identifiers outside the
// known frontier, newest first, and how many there are in total. Callers
// hold e.mu.
func (e *SyncEngine) newIdentifiers(filter Filter, remote remoteFrontier, limit int) ([]int, int) {
	if filter.Countdown() {
		total := max(remote.latest-e.frontier.high, 0)
		fresh := make([]int, 0, min(total, limit))
		for id := remote.latest; id > e.frontier.high && len(fresh) < limit; id-- {
			fresh = append(fresh, id)
		}
		return fresh, total
	}
	var fresh []int
	total := 0
	for _, id := range remote.ids {
		if _, known := e.frontier.ids[id]; known {
			continue
		}
		total++
		if len(fresh) < limit {
			fresh = append(fresh, id)
		}
	}
	return fresh, total
}

// advanceFrontier absorbs the remote frontier. Callers hold e.mu.
func (e *SyncEngine) advanceFrontier(filter Filter, remote remoteFrontier) {
	if filter.Countdown() {
		e.frontier.absorbHigh(remote.latest)
		return
	}
	e.frontier.absorbIDs(remote.ids)
}

// Run polls once immediately and then every PollInterval until ctx is
// canceled. It returns at once; call Wait after canceling ctx.
func (e *SyncEngine) Run(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		e.pollTick(ctx)

		ticker := time.NewTicker(e.opts.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.pollTick(ctx)
			}
		}
	}()
}

// Wait blocks until the Run goroutine exits.
func (e *SyncEngine) Wait() {
	e.wg.Wait()
}

func (e *SyncEngine) pollTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := e.Poll(ctx); err != nil && !errors.Is(err, ErrInFlight) && !errors.Is(err, ErrFilterChanged) {
		e.log.Debug("Poll tick failed, will retry next tick", "err", err)
	}
}
