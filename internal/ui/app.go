package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/hnlive/internal/feed"
	"github.com/abelbrown/hnlive/internal/hn"
	"github.com/abelbrown/hnlive/internal/logging"
)

// nearBottom is how close to the last entry the cursor gets before the
// next page is requested.
const nearBottom = 3

// commentChunk is how many comments one expand or "more" reads.
const commentChunk = 20

// Engine is the part of the sync engine the UI drives.
type Engine interface {
	Filter() feed.Filter
	SetFilter(feed.Filter)
	NextPage(ctx context.Context) (feed.Page, error)
	Poll(ctx context.Context) ([]*hn.Item, error)
	OpenComments(ctx context.Context, itemID int) (*feed.CommentStream, error)
	ShowAllLive() []*hn.Item
	Stats() feed.Stats
}

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Forward delivers engine events to the program until ctx is done or the
// channel is closed. Run it in its own goroutine.
func Forward(ctx context.Context, events <-chan feed.Event, to Sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			to.Send(ev)
		}
	}
}

// App is the root Bubble Tea model.
// IMPORTANT: App never touches engine state directly. Pages and comment
// trees arrive as command results; live updates arrive as forwarded events.
type App struct {
	ctx     context.Context
	engine  Engine
	keys    keyMap
	spinner spinner.Model

	filter     feed.Filter
	items      []*hn.Item
	live       []*hn.Item
	liveHidden int
	comments   map[int][]feed.Comment
	streams    map[int]*feed.CommentStream // expanded items with unread comments
	expanding  map[int]bool
	pages      int
	pending    int // page requests not yet answered
	exhausted  bool

	cursor  int
	loading bool
	err     error
	width   int
	height  int
	ready   bool

	recent       *ring[eventRecord]
	debugVisible bool
}

// NewApp creates an App driving engine. ctx bounds every engine call.
func NewApp(ctx context.Context, engine Engine) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	// pending accounts for the request Init issues.
	return App{
		ctx:       ctx,
		engine:    engine,
		keys:      defaultKeyMap(),
		spinner:   sp,
		filter:    engine.Filter(),
		comments:  make(map[int][]feed.Comment),
		streams:   make(map[int]*feed.CommentStream),
		expanding: make(map[int]bool),
		pending:   1,
		loading:   true,
		recent:    newRing[eventRecord](64),
	}
}

// Init requests the first page.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.pageCmd())
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if rec, ok := describe(msg, time.Now()); ok {
		a.recent.Push(rec)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case PageDone:
		return a.handlePageDone(msg)

	case PollDone:
		if msg.Err != nil && !benign(msg.Err) {
			a.err = msg.Err
		}
		return a, nil

	case ExpandDone:
		a.handleExpandDone(msg)
		return a, nil

	case feed.LiveUpdateAppended:
		if msg.Filter == a.filter {
			a.live = msg.Visible
			a.liveHidden = msg.Hidden
			a.clampCursor()
		}
		return a, nil

	case feed.FilterChanged:
		// Changes made through this App were already applied locally; an
		// event for a filter the engine has since left is stale.
		if msg.Filter != a.filter && a.engine.Filter() == msg.Filter {
			a.reset(msg.Filter)
			return a, a.requestPage()
		}
		return a, nil

	case feed.CycleFailed:
		if msg.Filter == a.filter {
			a.err = fmt.Errorf("%s: %w", msg.Stream, msg.Err)
		}
		return a, nil
	}

	return a, nil
}

func (a App) handlePageDone(msg PageDone) (tea.Model, tea.Cmd) {
	if a.pending > 0 {
		a.pending--
	}
	a.loading = a.pending > 0

	switch {
	case msg.Err == nil:
		if msg.Page.Filter != a.filter {
			return a, nil
		}
		a.items = append(a.items, msg.Page.Items...)
		a.pages++
		a.exhausted = msg.Page.Done
		return a, a.maybeNextPage()

	case errors.Is(msg.Err, feed.ErrFilterChanged):
		// The cycle belonged to the previous filter. If nothing has been
		// loaded for the current one yet, our own request may have been
		// refused while that cycle was running.
		if a.pages == 0 && a.pending == 0 && !a.exhausted {
			logging.Debug("Re-issuing page request after filter change", "filter", a.filter)
			return a, a.requestPage()
		}
		return a, nil

	case errors.Is(msg.Err, feed.ErrInFlight):
		return a, nil

	default:
		a.err = msg.Err
		return a, nil
	}
}

// handleExpandDone applies a comment chunk. Chunks for items that were
// collapsed or belong to a previous filter are dropped and their stream
// closed.
func (a *App) handleExpandDone(msg ExpandDone) {
	id := msg.ItemID
	delete(a.expanding, id)
	if msg.Err != nil && !benign(msg.Err) {
		a.err = msg.Err
	}
	if msg.Stream == nil {
		return
	}

	prev, open := a.comments[id]
	switch {
	case msg.First && !open && a.hasEntry(id):
		a.comments[id] = msg.Comments
	case !msg.First && open && a.streams[id] == msg.Stream:
		a.comments[id] = append(prev, msg.Comments...)
	default:
		msg.Stream.Close()
		return
	}

	if msg.More && msg.Err == nil {
		a.streams[id] = msg.Stream
		return
	}
	delete(a.streams, id)
	msg.Stream.Close()
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Clear any existing error on key press
	a.err = nil

	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Debug):
		a.debugVisible = !a.debugVisible
		return a, nil

	case key.Matches(msg, a.keys.Down):
		if a.cursor < len(a.entries())-1 {
			a.cursor++
		}
		return a, a.maybeNextPage()

	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil

	case key.Matches(msg, a.keys.Top):
		a.cursor = 0
		return a, nil

	case key.Matches(msg, a.keys.Bottom):
		if n := len(a.entries()); n > 0 {
			a.cursor = n - 1
		}
		return a, a.maybeNextPage()

	case key.Matches(msg, a.keys.Expand):
		return a, a.toggleComments()

	case key.Matches(msg, a.keys.More):
		return a, a.moreComments()

	case key.Matches(msg, a.keys.NextPage):
		if a.loading || a.exhausted {
			return a, nil
		}
		return a, a.requestPage()

	case key.Matches(msg, a.keys.Poll):
		return a, a.poll()

	case key.Matches(msg, a.keys.ShowAll):
		a.live = a.engine.ShowAllLive()
		a.liveHidden = 0
		return a, nil

	case key.Matches(msg, a.keys.Filter):
		idx := int(msg.String()[0] - '1')
		if idx < 0 || idx >= len(feed.Filters) || feed.Filters[idx] == a.filter {
			return a, nil
		}
		f := feed.Filters[idx]
		a.engine.SetFilter(f)
		a.reset(f)
		return a, a.requestPage()
	}

	return a, nil
}

// reset discards everything shown for the previous filter.
func (a *App) reset(f feed.Filter) {
	a.filter = f
	a.items = nil
	a.live = nil
	a.liveHidden = 0
	a.comments = make(map[int][]feed.Comment)
	for _, s := range a.streams {
		s.Close()
	}
	a.streams = make(map[int]*feed.CommentStream)
	a.expanding = make(map[int]bool)
	a.pages = 0
	a.exhausted = false
	a.cursor = 0
}

// requestPage issues a NextPage call.
func (a *App) requestPage() tea.Cmd {
	a.pending++
	a.loading = true
	return a.pageCmd()
}

func (a *App) pageCmd() tea.Cmd {
	engine, ctx := a.engine, a.ctx
	return func() tea.Msg {
		page, err := engine.NextPage(ctx)
		return PageDone{Page: page, Err: err}
	}
}

// maybeNextPage requests a page when the cursor is near the end of the
// list and nothing is loading.
func (a *App) maybeNextPage() tea.Cmd {
	if a.loading || a.exhausted {
		return nil
	}
	if a.cursor < len(a.entries())-nearBottom {
		return nil
	}
	return a.requestPage()
}

func (a *App) poll() tea.Cmd {
	engine, ctx := a.engine, a.ctx
	return func() tea.Msg {
		added, err := engine.Poll(ctx)
		return PollDone{Added: len(added), Err: err}
	}
}

// toggleComments collapses an expanded item or opens its comment stream
// and reads the first chunk.
func (a *App) toggleComments() tea.Cmd {
	id, ok := a.selectedID()
	if !ok || a.expanding[id] {
		return nil
	}
	if _, open := a.comments[id]; open {
		delete(a.comments, id)
		if s, ok := a.streams[id]; ok {
			s.Close()
			delete(a.streams, id)
		}
		return nil
	}
	a.expanding[id] = true
	engine, ctx := a.engine, a.ctx
	return func() tea.Msg {
		stream, err := engine.OpenComments(ctx, id)
		if err != nil {
			return ExpandDone{ItemID: id, First: true, Err: err}
		}
		comments, done, err := stream.Next(commentChunk)
		return ExpandDone{ItemID: id, Stream: stream, Comments: comments, First: true, More: !done, Err: err}
	}
}

// moreComments reads the next chunk of the selected item's open stream.
func (a *App) moreComments() tea.Cmd {
	id, ok := a.selectedID()
	if !ok || a.expanding[id] {
		return nil
	}
	stream, open := a.streams[id]
	if !open {
		return nil
	}
	a.expanding[id] = true
	return func() tea.Msg {
		comments, done, err := stream.Next(commentChunk)
		return ExpandDone{ItemID: id, Stream: stream, Comments: comments, More: !done, Err: err}
	}
}

func (a *App) selectedID() (int, bool) {
	entries := a.entries()
	if a.cursor >= len(entries) {
		return 0, false
	}
	return entries[a.cursor].ID, true
}

func (a *App) hasEntry(id int) bool {
	for _, it := range a.entries() {
		if it.ID == id {
			return true
		}
	}
	return false
}

// entries is the selectable list: live items first, then paged items.
func (a *App) entries() []*hn.Item {
	out := make([]*hn.Item, 0, len(a.live)+len(a.items))
	out = append(out, a.live...)
	return append(out, a.items...)
}

func (a *App) clampCursor() {
	if n := len(a.entries()); a.cursor >= n {
		a.cursor = max(n-1, 0)
	}
}

// benign reports errors that only mean "someone else is already on it".
func benign(err error) bool {
	return errors.Is(err, feed.ErrInFlight) || errors.Is(err, feed.ErrFilterChanged)
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.debugVisible {
		overlay := debugOverlay(a.engine.Stats(), a.recent, a.width, a.height-1)
		return overlay + "\n" + debugStatusBar(a.width)
	}

	// Tabs and status bar take one line each; the error bar one more.
	contentHeight := a.height - 2
	if a.err != nil {
		contentHeight--
	}

	tabs := renderFilterTabs(a.filter)
	stream := renderStream(buildRows(&a), a.cursor, a.width, contentHeight)

	errorBar := ""
	if a.err != nil {
		errorBar = "\n" + ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()+" (press any key to dismiss)")
	}

	entries := a.entries()
	position := 0
	if len(entries) > 0 {
		position = a.cursor + 1
	}
	statusBar := renderStatusBar(position, len(entries), a.width, a.keys.hints())

	return tabs + "\n" + stream + errorBar + "\n" + statusBar
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Items returns the paged items (for testing).
func (a App) Items() []*hn.Item {
	return a.items
}
