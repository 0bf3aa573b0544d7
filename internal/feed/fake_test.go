package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/abelbrown/hnlive/internal/hn"
)

var errBoom = errors.New("boom")

// fakeFetcher implements Fetcher for testing. Unknown identifiers resolve
// to absent, like the real API.
type fakeFetcher struct {
	mu         sync.Mutex
	items      map[int]*hn.Item
	latest     int
	lists      map[string][]int
	failIDs    map[int]bool
	failLatest bool
	failLists  bool

	itemCalls   []int
	latestCalls int
	listCalls   int

	// gate, when set, blocks FetchItem until closed. started receives one
	// value per blocked call.
	gate    chan struct{}
	started chan int

	// latestGate, when set, holds the next FetchLatestID call until closed.
	// That call answers with the value current when it started.
	latestGate    chan struct{}
	latestStarted chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		items:   make(map[int]*hn.Item),
		lists:   make(map[string][]int),
		failIDs: make(map[int]bool),
	}
}

func (f *fakeFetcher) add(items ...*hn.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		f.items[it.ID] = it
	}
}

func (f *fakeFetcher) setLatest(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = id
}

func (f *fakeFetcher) setList(name string, ids []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[name] = ids
}

func (f *fakeFetcher) setFailing(ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.failIDs[id] = true
	}
}

func (f *fakeFetcher) clearFailing() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failIDs = make(map[int]bool)
	f.failLatest = false
	f.failLists = false
}

func (f *fakeFetcher) FetchItem(ctx context.Context, id int) (*hn.Item, error) {
	f.mu.Lock()
	f.itemCalls = append(f.itemCalls, id)
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if gate != nil {
		if started != nil {
			started <- id
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[id] {
		return nil, &hn.TransientFetchError{Op: "item", Err: errBoom}
	}
	return f.items[id], nil
}

func (f *fakeFetcher) FetchLatestID(ctx context.Context) (int, error) {
	f.mu.Lock()
	f.latestCalls++
	latest, fail := f.latest, f.failLatest
	gate, started := f.latestGate, f.latestStarted
	f.latestGate = nil
	f.mu.Unlock()

	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if fail {
		return 0, &hn.TransientFetchError{Op: "maxitem", Err: errBoom}
	}
	return latest, nil
}

// holdItems makes FetchItem block until the returned channel is closed.
func (f *fakeFetcher) holdItems() (release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.started = make(chan int, 100)
	return f.gate
}

func (f *fakeFetcher) FetchFilteredIDs(ctx context.Context, list string) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failLists {
		return nil, &hn.TransientFetchError{Op: "list", Err: errBoom}
	}
	ids := f.lists[list]
	out := make([]int, len(ids))
	copy(out, ids)
	return out, nil
}

func (f *fakeFetcher) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.itemCalls))
	copy(out, f.itemCalls)
	return out
}

func (f *fakeFetcher) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemCalls = nil
	f.latestCalls = 0
	f.listCalls = 0
}

// story builds a story whose timestamp equals its id unless overridden.
func story(id int) *hn.Item {
	return &hn.Item{ID: id, Kind: hn.KindStory, Title: "story", Time: int64(id)}
}

func itemOfKind(id int, kind hn.Kind) *hn.Item {
	return &hn.Item{ID: id, Kind: kind, Title: string(kind), Time: int64(id)}
}

func comment(id, parent int, t int64, text string, kids ...int) *hn.Item {
	return &hn.Item{ID: id, Kind: hn.KindComment, Parent: parent, Time: t, Text: text, Kids: kids}
}

func ids(items []*hn.Item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func descending(from, to int) []int {
	var out []int
	for id := from; id >= to; id-- {
		out = append(out, id)
	}
	return out
}
