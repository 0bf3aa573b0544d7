// Package feed is the feed synchronization engine.
//
// A SyncEngine pages backwards through a filtered identifier universe,
// polls for identifiers that appeared since the last poll, and expands
// comment trees on demand. Each of those is a stream with its own
// single-flight guard: a call made while the stream is busy returns
// ErrInFlight immediately and is not queued. The streams run concurrently
// with each other.
//
// Results are returned to the caller and also emitted as typed events
// (PageAppended, LiveUpdateAppended, SubtreeResolved, ...) to subscribers,
// so a renderer never needs to touch engine state.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/hnlive/internal/hn"
	"github.com/abelbrown/hnlive/internal/logging"
)

// Defaults for Options.
const (
	DefaultPageSize       = 10
	DefaultLiveCapacity   = 10
	DefaultConcurrency    = 10
	DefaultPollFetchLimit = 50
	DefaultPollInterval   = 5 * time.Second
)

var (
	// ErrInFlight is returned when a stream already has a cycle running.
	// The call had no effect; trigger it again later.
	ErrInFlight = errors.New("feed: cycle already in flight")

	// ErrFilterChanged is returned by a cycle whose results were discarded
	// because the filter changed while it was fetching.
	ErrFilterChanged = errors.New("feed: filter changed during cycle")
)

// Options tunes a SyncEngine. Zero values take the defaults.
type Options struct {
	Filter          Filter
	PageSize        int
	LiveCapacity    int
	MaxCommentDepth int
	Concurrency     int // parallel item requests per batch
	PollFetchLimit  int // newest new identifiers fetched per poll
	PollInterval    time.Duration
	Metrics         *Metrics
}

func (o Options) withDefaults() Options {
	if o.Filter == "" {
		o.Filter = FilterStory
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.LiveCapacity <= 0 {
		o.LiveCapacity = DefaultLiveCapacity
	}
	if o.MaxCommentDepth <= 0 {
		o.MaxCommentDepth = DefaultMaxCommentDepth
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.PollFetchLimit <= 0 {
		o.PollFetchLimit = DefaultPollFetchLimit
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics(nil)
	}
	return o
}

// Page is the result of one NextPage cycle.
type Page struct {
	Filter Filter
	Number int
	Items  []*hn.Item
	// Done is set once the universe is exhausted; stop requesting pages.
	Done bool
}

// Stats is a point-in-time view of engine state.
type Stats struct {
	Filter      Filter
	Page        int
	Established bool
	Exhausted   bool
	PageBusy    bool
	PollBusy    bool
	LiveVisible int
	LiveTotal   int
}

// frontier is the known identifier universe used by polls to decide what
// is new. Countdown filters track a high-water mark, list filters a set.
type frontier struct {
	known bool
	epoch uint64 // bumped by anchor; polls that saw an older epoch do not advance
	high  int
	ids   map[int]struct{}
}

// anchor replaces the frontier with the paged snapshot. Identifiers a
// baseline poll recorded beyond the snapshot become new again; the live
// buffer drops any that were already shown.
func (f *frontier) anchor(high int, ids []int) {
	f.high = high
	f.ids = make(map[int]struct{}, len(ids))
	for _, id := range ids {
		f.ids[id] = struct{}{}
	}
	f.known = true
	f.epoch++
}

func (f *frontier) absorbHigh(high int) {
	if !f.known || high > f.high {
		f.high = high
	}
	f.known = true
}

func (f *frontier) absorbIDs(ids []int) {
	if f.ids == nil {
		f.ids = make(map[int]struct{}, len(ids))
	}
	for _, id := range ids {
		f.ids[id] = struct{}{}
	}
	f.known = true
}

// SyncEngine owns all cursor, flag and buffer state for one feed.
// Safe for concurrent use.
type SyncEngine struct {
	fetcher  Fetcher
	opts     Options
	comments *CommentLoader
	metrics  *Metrics
	log      *log.Logger

	// In-flight flags, checked-and-set before the first fetch of a cycle
	// and cleared by defer on every exit path.
	pageBusy atomic.Bool
	pollBusy atomic.Bool

	mu         sync.Mutex
	filter     Filter
	generation uint64 // bumped by SetFilter; stale cycles compare against it
	cursor     Cursor // nil until the universe is established
	exhausted  bool
	frontier   frontier
	live       *LiveBuffer
	expanding  map[int]struct{}

	subscribersMu sync.RWMutex
	subscribers   []chan Event

	wg sync.WaitGroup
}

// NewSyncEngine creates an engine over fetcher.
func NewSyncEngine(fetcher Fetcher, opts Options) *SyncEngine {
	opts = opts.withDefaults()
	return &SyncEngine{
		fetcher:   fetcher,
		opts:      opts,
		comments:  NewCommentLoader(fetcher, opts.MaxCommentDepth, opts.Concurrency),
		metrics:   opts.Metrics,
		log:       logging.WithPrefix("feed"),
		filter:    opts.Filter,
		live:      NewLiveBuffer(opts.LiveCapacity),
		expanding: make(map[int]struct{}),
	}
}

// Filter returns the active filter.
func (e *SyncEngine) Filter() Filter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filter
}

// SetFilter switches the feed to f. The cursor returns to page 0 with a
// fresh universe to be established, the poll frontier is forgotten and the
// live buffer is cleared. Cycles already running for the old filter finish
// with ErrFilterChanged and deliver nothing.
func (e *SyncEngine) SetFilter(f Filter) {
	e.mu.Lock()
	e.generation++
	e.filter = f
	e.cursor = nil
	e.exhausted = false
	e.frontier = frontier{}
	e.live.Clear()
	e.mu.Unlock()

	e.metrics.LiveBuffered.Set(0)
	e.log.Info("Filter changed", "filter", f)
	e.notify(FilterChanged{Filter: f})
}

// NextPage fetches the next page of the active filter. It returns
// ErrInFlight without doing anything if a page cycle is running.
func (e *SyncEngine) NextPage(ctx context.Context) (Page, error) {
	if !e.pageBusy.CompareAndSwap(false, true) {
		e.metrics.recordRefused(StreamPage)
		e.log.Debug("Page request refused, cycle in flight")
		return Page{}, ErrInFlight
	}
	defer e.pageBusy.Store(false)

	started := time.Now()
	page, outcome, err := e.nextPage(ctx)
	e.metrics.recordCycle(StreamPage, outcome, started)
	if outcome == outcomeError {
		e.log.Warn("Page cycle failed", "filter", page.Filter, "err", err)
		e.notify(CycleFailed{Stream: StreamPage, Filter: page.Filter, Err: err})
	}
	return page, err
}

func (e *SyncEngine) nextPage(ctx context.Context) (Page, string, error) {
	e.mu.Lock()
	gen, filter, cursor, exhausted := e.generation, e.filter, e.cursor, e.exhausted
	e.mu.Unlock()

	page := Page{Filter: filter}
	if exhausted {
		page.Done = true
		return page, outcomeDone, nil
	}

	if cursor == nil {
		var err error
		cursor, err = e.establish(ctx, filter, gen)
		if err != nil {
			if errors.Is(err, ErrFilterChanged) {
				return page, outcomeStale, err
			}
			return page, outcomeError, err
		}
	}

	page.Number = cursor.Page()
	window := cursor.Window()
	if len(window) == 0 {
		if !e.markExhausted(gen) {
			return page, outcomeStale, ErrFilterChanged
		}
		e.log.Debug("Feed exhausted", "filter", filter, "page", page.Number)
		e.notify(PageExhausted{Filter: filter})
		page.Done = true
		return page, outcomeDone, nil
	}

	e.log.Debug("Page cycle started", "filter", filter, "page", page.Number,
		"from", window[0], "to", window[len(window)-1])

	res := fetchBatch(ctx, e.fetcher, window, e.opts.Concurrency)
	e.metrics.recordBatch(StreamPage, len(res.items), res.failed)
	if res.allFailed() {
		return page, outcomeError, fmt.Errorf("fetch page %d: %w", page.Number, res.err)
	}
	if res.failed > 0 {
		e.log.Warn("Dropped failed items from page", "page", page.Number,
			"failed", res.failed, "err", res.err)
	}
	sortNewestFirst(res.items)

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return page, outcomeStale, ErrFilterChanged
	}
	cursor.Advance()
	e.exhausted = cursor.Exhausted()
	page.Done = e.exhausted
	e.mu.Unlock()

	page.Items = res.items
	e.notify(PageAppended{Filter: filter, Page: page.Number, Items: res.items})
	if page.Done {
		e.notify(PageExhausted{Filter: filter})
	}
	e.log.Debug("Page cycle finished", "filter", filter, "page", page.Number,
		"items", len(res.items), "absent", res.absent)
	return page, outcomeOK, nil
}

// establish snapshots the filter's universe and installs the cursor. It
// runs under the page flag, so it happens exactly once per filter.
func (e *SyncEngine) establish(ctx context.Context, filter Filter, gen uint64) (Cursor, error) {
	var (
		cursor Cursor
		ids    []int
		high   int
	)
	if filter.Countdown() {
		latest, err := e.fetcher.FetchLatestID(ctx)
		if err != nil {
			return nil, fmt.Errorf("establish %s: %w", filter, err)
		}
		high = latest
		cursor = NewCountdownCursor(latest, e.opts.PageSize)
	} else {
		list, err := e.fetcher.FetchFilteredIDs(ctx, filter.Endpoint())
		if err != nil {
			return nil, fmt.Errorf("establish %s: %w", filter, err)
		}
		ids = list
		cursor = NewSliceCursor(list, e.opts.PageSize)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen {
		return nil, ErrFilterChanged
	}
	e.cursor = cursor
	// The snapshot is the boundary between paged and live identifiers.
	e.frontier.anchor(high, ids)
	e.log.Debug("Universe established", "filter", filter, "high", high, "ids", len(ids))
	return cursor, nil
}

// markExhausted records exhaustion unless the filter changed meanwhile.
func (e *SyncEngine) markExhausted(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen {
		return false
	}
	e.exhausted = true
	return true
}

// Expand resolves the comment tree below itemID and emits SubtreeResolved.
// Each item has its own single-flight guard.
func (e *SyncEngine) Expand(ctx context.Context, itemID int) ([]Comment, error) {
	e.mu.Lock()
	if _, busy := e.expanding[itemID]; busy {
		e.mu.Unlock()
		e.metrics.recordRefused(StreamExpand)
		return nil, ErrInFlight
	}
	e.expanding[itemID] = struct{}{}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.expanding, itemID)
		e.mu.Unlock()
	}()

	started := time.Now()
	root, err := e.fetcher.FetchItem(ctx, itemID)
	if err != nil {
		return nil, e.expandFailed(itemID, started, err)
	}

	var comments []Comment
	if root != nil && len(root.Kids) > 0 {
		comments, err = e.comments.Collect(ctx, itemID, root.Kids)
		if err != nil {
			return nil, e.expandFailed(itemID, started, err)
		}
	}

	e.metrics.recordCycle(StreamExpand, outcomeOK, started)
	e.metrics.recordBatch(StreamExpand, len(comments), 0)
	e.notify(SubtreeResolved{ParentID: itemID, Comments: comments})
	return comments, nil
}

// OpenComments fetches itemID and returns a stream over its comment tree.
// Replies are fetched as the stream is read. It shares Expand's per-item
// guard while the root is being fetched.
func (e *SyncEngine) OpenComments(ctx context.Context, itemID int) (*CommentStream, error) {
	e.mu.Lock()
	if _, busy := e.expanding[itemID]; busy {
		e.mu.Unlock()
		e.metrics.recordRefused(StreamExpand)
		return nil, ErrInFlight
	}
	e.expanding[itemID] = struct{}{}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.expanding, itemID)
		e.mu.Unlock()
	}()

	started := time.Now()
	root, err := e.fetcher.FetchItem(ctx, itemID)
	if err != nil {
		return nil, e.expandFailed(itemID, started, err)
	}
	e.metrics.recordCycle(StreamExpand, outcomeOK, started)

	var kids []int
	if root != nil {
		kids = root.Kids
	}
	return NewCommentStream(e.comments.LoadSubtree(ctx, itemID, kids)), nil
}

func (e *SyncEngine) expandFailed(itemID int, started time.Time, err error) error {
	err = fmt.Errorf("expand %d: %w", itemID, err)
	e.metrics.recordCycle(StreamExpand, outcomeError, started)
	e.log.Warn("Expand failed", "item", itemID, "err", err)
	e.notify(CycleFailed{Stream: StreamExpand, Filter: e.Filter(), Err: err})
	return err
}

// LiveView returns the visible live updates and the count hidden behind
// the "show more" affordance.
func (e *SyncEngine) LiveView() ([]*hn.Item, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live.Visible(), e.live.Hidden()
}

// ShowAllLive exposes the full live history until the next filter change.
func (e *SyncEngine) ShowAllLive() []*hn.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live.ShowAll()
}

// Stats returns a snapshot of the engine state.
func (e *SyncEngine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Stats{
		Filter:      e.filter,
		Established: e.cursor != nil,
		Exhausted:   e.exhausted,
		PageBusy:    e.pageBusy.Load(),
		PollBusy:    e.pollBusy.Load(),
		LiveVisible: len(e.live.Visible()),
		LiveTotal:   e.live.Len(),
	}
	if e.cursor != nil {
		s.Page = e.cursor.Page()
	}
	return s
}

// Subscribe returns a channel receiving every event emitted from now on.
// Delivery is non-blocking: a subscriber that falls behind loses events.
func (e *SyncEngine) Subscribe() <-chan Event {
	ch := make(chan Event, 100)
	e.subscribersMu.Lock()
	e.subscribers = append(e.subscribers, ch)
	e.subscribersMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (e *SyncEngine) Unsubscribe(ch <-chan Event) {
	e.subscribersMu.Lock()
	defer e.subscribersMu.Unlock()

	for i, sub := range e.subscribers {
		if sub == ch {
			e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// notify sends an event to all subscribers.
func (e *SyncEngine) notify(ev Event) {
	e.subscribersMu.RLock()
	defer e.subscribersMu.RUnlock()

	for _, ch := range e.subscribers {
		select {
		case ch <- ev:
		default:
			e.metrics.EventsDropped.Inc()
			e.log.Debug("Event dropped (subscriber full)", "event", fmt.Sprintf("%T", ev))
		}
	}
}
