package feed

import (
	"github.com/abelbrown/hnlive/internal/hn"
)

// Stream names an independent single-flight stream.
type Stream string

const (
	StreamPage   Stream = "page"
	StreamPoll   Stream = "poll"
	StreamExpand Stream = "expand"
)

// Event is emitted to subscribers. Concrete types are the structs below;
// they double as Bubble Tea messages.
type Event interface {
	event()
}

// PageAppended carries one page of items, newest first.
type PageAppended struct {
	Filter Filter
	Page   int
	Items  []*hn.Item
}

// PageExhausted signals that the filter has no further pages.
type PageExhausted struct {
	Filter Filter
}

// LiveUpdateAppended carries items newly discovered by a poll.
type LiveUpdateAppended struct {
	Filter  Filter
	Items   []*hn.Item // only the new items, newest first
	Visible []*hn.Item // the buffer's visible view after the push
	Hidden  int        // items beyond the visible view
}

// SubtreeResolved carries the comments below ParentID in display order.
type SubtreeResolved struct {
	ParentID int
	Comments []Comment
}

// FilterChanged is emitted after a reset. Views should discard everything
// rendered for the previous filter.
type FilterChanged struct {
	Filter Filter
}

// CycleFailed reports an aborted cycle. Cursor and frontier are unchanged,
// so the next trigger retries the same work.
type CycleFailed struct {
	Stream Stream
	Filter Filter
	Err    error
}

func (PageAppended) event()       {}
func (PageExhausted) event()      {}
func (LiveUpdateAppended) event() {}
func (SubtreeResolved) event()    {}
func (FilterChanged) event()      {}
func (CycleFailed) event()        {}
