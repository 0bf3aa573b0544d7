package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/abelbrown/hnlive/internal/hn"
)

// countdownFeed builds a fetcher whose latest id is latest, with every id
// in [from, latest] present as a story.
func countdownFeed(latest, from int) *fakeFetcher {
	f := newFakeFetcher()
	f.setLatest(latest)
	for id := from; id <= latest; id++ {
		f.add(story(id))
	}
	return f
}

func waitEvent[T Event](t *testing.T, ch <-chan Event) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if typed, ok := ev.(T); ok {
				return typed
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func TestNextPageCountdownScenario(t *testing.T) {
	f := countdownFeed(1000, 900)
	// Timestamps out of id order; the page must come back sorted by time.
	f.add(&hn.Item{ID: 995, Kind: hn.KindStory, Title: "late", Time: 5000})
	delete(f.items, 993) // absent
	e := NewSyncEngine(f, Options{Filter: FilterAll, PageSize: 10})

	page, err := e.NextPage(context.Background())
	if err != nil {
		t.Fatalf("NextPage: %v", err)
	}
	if page.Number != 0 || page.Done {
		t.Errorf("unexpected page meta: %+v", page)
	}
	want := []int{995, 1000, 999, 998, 997, 996, 994, 992, 991}
	if !equalInts(ids(page.Items), want) {
		t.Errorf("page 0 = %v, want %v", ids(page.Items), want)
	}
	if calls := f.calls(); len(calls) != 10 {
		t.Errorf("expected 10 item requests, got %d", len(calls))
	}

	page, err = e.NextPage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !equalInts(ids(page.Items), descending(990, 981)) {
		t.Errorf("page 1 = %v", ids(page.Items))
	}
	if page.Number != 1 {
		t.Errorf("page number = %d, want 1", page.Number)
	}
}

func TestNextPageRefusesReentry(t *testing.T) {
	f := countdownFeed(100, 1)
	f.gate = make(chan struct{})
	f.started = make(chan int, 100)
	m := NewMetrics(nil)
	e := NewSyncEngine(f, Options{Filter: FilterAll, PageSize: 5, Metrics: m})
	events := e.Subscribe()

	var (
		wg    sync.WaitGroup
		first Page
		err1  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, err1 = e.NextPage(context.Background())
	}()

	// Wait until every fetch of the first window is suspended.
	for i := 0; i < 5; i++ {
		<-f.started
	}
	before := len(f.calls())

	_, err := e.NextPage(context.Background())
	if !errors.Is(err, ErrInFlight) {
		t.Fatalf("second NextPage err = %v, want ErrInFlight", err)
	}
	if after := len(f.calls()); after != before {
		t.Errorf("refused call issued requests: %d -> %d", before, after)
	}
	if !e.Stats().PageBusy {
		t.Error("expected page stream to be busy")
	}

	close(f.gate)
	wg.Wait()

	if err1 != nil {
		t.Fatalf("first NextPage: %v", err1)
	}
	if !equalInts(ids(first.Items), descending(100, 96)) {
		t.Errorf("first page = %v", ids(first.Items))
	}

	// Exactly one page was rendered.
	appended := waitEvent[PageAppended](t, events)
	if appended.Page != 0 {
		t.Errorf("appended page %d", appended.Page)
	}
	select {
	case ev := <-events:
		if _, ok := ev.(PageAppended); ok {
			t.Error("refused call produced a second PageAppended")
		}
	default:
	}

	if got := testutil.ToFloat64(m.CyclesTotal.WithLabelValues("page", "refused")); got != 1 {
		t.Errorf("refused metric = %v, want 1", got)
	}
	if e.Stats().PageBusy {
		t.Error("page flag left set after completion")
	}
}

func TestPollRunsWhilePageStreamBusy(t *testing.T) {
	f := countdownFeed(100, 1)
	f.gate = make(chan struct{})
	f.started = make(chan int, 100)
	e := NewSyncEngine(f, Options{Filter: FilterAll, PageSize: 5})

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.NextPage(context.Background())
	}()
	<-f.started

	// Frontier was established before the page fetch suspended; no new ids.
	if _, err := e.Poll(context.Background()); err != nil {
		t.Errorf("Poll blocked by page stream: %v", err)
	}

	close(f.gate)
	<-done
}

func TestNextPageTransientFailureKeepsCursor(t *testing.T) {
	f := countdownFeed(50, 1)
	f.failLatest = true
	m := NewMetrics(nil)
	e := NewSyncEngine(f, Options{Filter: FilterAll, PageSize: 10, Metrics: m})
	events := e.Subscribe()

	_, err := e.NextPage(context.Background())
	if !hn.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	failed := waitEvent[CycleFailed](t, events)
	if failed.Stream != StreamPage {
		t.Errorf("CycleFailed stream = %s", failed.Stream)
	}
	if e.Stats().Established || e.Stats().PageBusy {
		t.Errorf("unexpected state after failed establish: %+v", e.Stats())
	}

	// Every item of the first window fails.
	f.clearFailing()
	f.setFailing(descending(50, 41)...)
	if _, err := e.NextPage(context.Background()); !hn.IsTransient(err) {
		t.Fatalf("expected transient error for failed window, got %v", err)
	}
	if got := e.Stats().Page; got != 0 {
		t.Errorf("cursor advanced on failure: page %d", got)
	}

	f.clearFailing()
	page, err := e.NextPage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if page.Number != 0 || !equalInts(ids(page.Items), descending(50, 41)) {
		t.Errorf("retry did not deliver the same window: %d %v", page.Number, ids(page.Items))
	}
	if got := testutil.ToFloat64(m.CyclesTotal.WithLabelValues("page", "error")); got != 2 {
		t.Errorf("error metric = %v, want 2", got)
	}
}

func TestNextPagePartialFailure(t *testing.T) {
	f := countdownFeed(20, 1)
	f.setFailing(19, 17)
	m := NewMetrics(nil)
	e := NewSyncEngine(f, Options{Filter: FilterAll, PageSize: 5, Metrics: m})

	page, err := e.NextPage(context.Background())
	if err != nil {
		t.Fatalf("partial failure failed the batch: %v", err)
	}
	if !equalInts(ids(page.Items), []int{20, 18, 16}) {
		t.Errorf("page = %v, want [20 18 16]", ids(page.Items))
	}
	if got := testutil.ToFloat64(m.ItemFailures.WithLabelValues("page")); got != 2 {
		t.Errorf("item failures = %v, want 2", got)
	}
}

func TestNextPageSliceCursorExhaustion(t *testing.T) {
	f := newFakeFetcher()
	var list []int
	for id := 115; id > 100; id-- {
		list = append(list, id)
		f.add(story(id))
	}
	f.setList("newstories", list)
	e := NewSyncEngine(f, Options{Filter: FilterStory, PageSize: 10})
	events := e.Subscribe()

	p0, err := e.NextPage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(p0.Items) != 10 || p0.Done {
		t.Errorf("page 0: %d items, done=%v", len(p0.Items), p0.Done)
	}

	p1, err := e.NextPage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !equalInts(ids(p1.Items), descending(105, 101)) || !p1.Done {
		t.Errorf("page 1: %v, done=%v", ids(p1.Items), p1.Done)
	}
	waitEvent[PageExhausted](t, events)

	f.resetCalls()
	p2, err := e.NextPage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !p2.Done || len(p2.Items) != 0 {
		t.Errorf("expected done with no items, got %+v", p2)
	}
	if len(f.calls()) != 0 || f.listCalls != 0 {
		t.Error("exhausted feed issued requests")
	}
}

func TestNextPageEmptyUniverse(t *testing.T) {
	f := newFakeFetcher()
	f.setList("jobstories", nil)
	e := NewSyncEngine(f, Options{Filter: FilterJob})
	events := e.Subscribe()

	page, err := e.NextPage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !page.Done {
		t.Error("empty universe should be done on first page")
	}
	waitEvent[PageExhausted](t, events)
}

func TestNextPageEstablishesUniverseOnce(t *testing.T) {
	f := countdownFeed(100, 1)
	e := NewSyncEngine(f, Options{Filter: FilterAll, PageSize: 10})

	for i := 0; i < 3; i++ {
		if _, err := e.NextPage(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if f.latestCalls != 1 {
		t.Errorf("universe established %d times, want 1", f.latestCalls)
	}
}

func TestSetFilterResetsEverything(t *testing.T) {
	f := countdownFeed(1000, 950)
	f.setList("newstories", []int{1003, 1001})
	e := NewSyncEngine(f, Options{Filter: FilterAll, PageSize: 10})
	events := e.Subscribe()

	e.NextPage(context.Background())
	e.NextPage(context.Background())
	f.setLatest(1003)
	f.add(story(1001), story(1002), story(1003))
	added, err := e.Poll(context.Background())
	if err != nil || len(added) != 3 {
		t.Fatalf("poll added %d (%v), want 3", len(added), err)
	}

	e.SetFilter(FilterStory)
	changed := waitEvent[FilterChanged](t, events)
	if changed.Filter != FilterStory {
		t.Errorf("FilterChanged = %s", changed.Filter)
	}

	st := e.Stats()
	if st.Page != 0 || st.Established || st.Exhausted || st.LiveTotal != 0 || st.LiveVisible != 0 {
		t.Errorf("state not reset: %+v", st)
	}
	if visible, hidden := e.LiveView(); len(visible) != 0 || hidden != 0 {
		t.Errorf("live buffer kept %d items from the previous filter", len(visible))
	}

	page, err := e.NextPage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if page.Filter != FilterStory || page.Number != 0 || !equalInts(ids(page.Items), []int{1003, 1001}) {
		t.Errorf("first page after reset = %+v %v", page, ids(page.Items))
	}
}

func TestFilterChangeDiscardsInFlightPage(t *testing.T) {
	f := countdownFeed(100, 1)
	f.setList("newstories", []int{7})
	f.add(story(7))
	f.gate = make(chan struct{})
	f.started = make(chan int, 100)
	e := NewSyncEngine(f, Options{Filter: FilterAll, PageSize: 5})
	events := e.Subscribe()

	errc := make(chan error, 1)
	go func() {
		_, err := e.NextPage(context.Background())
		errc <- err
	}()
	<-f.started

	e.SetFilter(FilterStory)
	close(f.gate)

	if err := <-errc; !errors.Is(err, ErrFilterChanged) {
		t.Fatalf("stale cycle err = %v, want ErrFilterChanged", err)
	}

	waitEvent[FilterChanged](t, events)
	select {
	case ev := <-events:
		t.Errorf("stale cycle emitted %T", ev)
	default:
	}

	f.mu.Lock()
	f.gate = nil
	f.mu.Unlock()
	page, err := e.NextPage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if page.Filter != FilterStory || !equalInts(ids(page.Items), []int{7}) {
		t.Errorf("page after change = %+v", page)
	}
}

func TestExpandEmitsSubtree(t *testing.T) {
	f := newFakeFetcher()
	f.add(
		&hn.Item{ID: 1, Kind: hn.KindStory, Title: "root", Kids: []int{10, 11}},
		comment(10, 1, 100, "", 20), // removed, reply survives
		comment(11, 1, 50, "visible"),
		comment(20, 10, 300, "grandchild"),
	)
	e := NewSyncEngine(f, Options{})
	events := e.Subscribe()

	comments, err := e.Expand(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	want := []flat{{20, 0, 1}, {11, 0, 1}}
	if !equalFlat(flatten(comments), want) {
		t.Errorf("comments = %v, want %v", flatten(comments), want)
	}

	ev := waitEvent[SubtreeResolved](t, events)
	if ev.ParentID != 1 || len(ev.Comments) != 2 {
		t.Errorf("SubtreeResolved = %+v", ev)
	}
}

func TestExpandCanceledMidTreeReportsFailure(t *testing.T) {
	f := newFakeFetcher()
	f.add(&hn.Item{ID: 1, Kind: hn.KindStory, Title: "root", Kids: []int{10}}, comment(10, 1, 1, "x"))
	m := NewMetrics(nil)
	e := NewSyncEngine(f, Options{Metrics: m})
	events := e.Subscribe()

	// The fake resolves the root regardless of ctx; the tree walk notices.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Expand(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	ev := waitEvent[CycleFailed](t, events)
	if ev.Stream != StreamExpand || !errors.Is(ev.Err, context.Canceled) {
		t.Errorf("CycleFailed = %+v", ev)
	}
	if got := testutil.ToFloat64(m.CyclesTotal.WithLabelValues(string(StreamExpand), outcomeError)); got != 1 {
		t.Errorf("expand error cycles = %v, want 1", got)
	}
}

func TestOpenCommentsStreamsTree(t *testing.T) {
	f := newFakeFetcher()
	f.add(
		&hn.Item{ID: 1, Kind: hn.KindStory, Title: "root", Kids: []int{10, 11}},
		comment(10, 1, 100, "older"),
		comment(11, 1, 200, "newer"),
	)
	e := NewSyncEngine(f, Options{})

	s, err := e.OpenComments(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, done, err := s.Next(1)
	if err != nil || done || got[0].Item.ID != 11 {
		t.Fatalf("first chunk = %v, %v, %v", flatten(got), done, err)
	}
	got, done, _ = s.Next(1)
	if !done || got[0].Item.ID != 10 {
		t.Errorf("second chunk = %v, %v", flatten(got), done)
	}

	// The root guard is released once the stream is handed out.
	if _, err := e.Expand(context.Background(), 1); err != nil {
		t.Errorf("Expand after OpenComments: %v", err)
	}

	empty, err := e.OpenComments(context.Background(), 404)
	if err != nil {
		t.Fatal(err)
	}
	if got, done, _ := empty.Next(5); len(got) != 0 || !done {
		t.Errorf("absent root stream = %v, %v", flatten(got), done)
	}
}

func TestExpandAbsentItem(t *testing.T) {
	e := NewSyncEngine(newFakeFetcher(), Options{})
	comments, err := e.Expand(context.Background(), 404)
	if err != nil || len(comments) != 0 {
		t.Errorf("Expand(absent) = %v, %v", comments, err)
	}
}

func TestExpandSingleFlightPerItem(t *testing.T) {
	f := newFakeFetcher()
	f.add(&hn.Item{ID: 1, Kind: hn.KindStory, Kids: []int{10}}, comment(10, 1, 1, "x"))
	f.add(&hn.Item{ID: 2, Kind: hn.KindStory})
	f.gate = make(chan struct{})
	f.started = make(chan int, 100)
	e := NewSyncEngine(f, Options{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Expand(context.Background(), 1)
	}()
	<-f.started

	if _, err := e.Expand(context.Background(), 1); !errors.Is(err, ErrInFlight) {
		t.Errorf("second Expand(1) err = %v, want ErrInFlight", err)
	}

	// A different item is not blocked.
	errc := make(chan error, 1)
	go func() {
		_, err := e.Expand(context.Background(), 2)
		errc <- err
	}()
	<-f.started

	close(f.gate)
	<-done
	if err := <-errc; err != nil {
		t.Errorf("Expand(2): %v", err)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	e := NewSyncEngine(newFakeFetcher(), Options{})
	ch := e.Subscribe()
	e.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
	e.SetFilter(FilterJob) // must not panic on a removed subscriber
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	m := NewMetrics(nil)
	e := NewSyncEngine(newFakeFetcher(), Options{Metrics: m})
	_ = e.Subscribe() // never read

	for i := 0; i < 150; i++ {
		e.SetFilter(FilterJob)
	}
	if got := testutil.ToFloat64(m.EventsDropped); got != 50 {
		t.Errorf("dropped = %v, want 50", got)
	}
}
