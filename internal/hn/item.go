// Package hn is a read-only client for the Hacker News item API.
//
// The API exposes three shapes: a single item by identifier, a flat list of
// identifiers per feed, and the highest identifier assigned so far. There is
// no server-side pagination; callers page through identifiers themselves.
package hn

import (
	"fmt"
	"time"
)

// Kind is the item type reported by the API.
type Kind string

const (
	KindStory   Kind = "story"
	KindJob     Kind = "job"
	KindPoll    Kind = "poll"
	KindComment Kind = "comment"
	KindPollOpt Kind = "pollopt"
)

// untitled is shown for top-level items that arrive without a title.
const untitled = "(untitled)"

// Item is an immutable snapshot of a remote item.
// Items returned by Client are shared with its cache; treat them as read-only.
type Item struct {
	ID          int    `json:"id"`
	Kind        Kind   `json:"type"`
	By          string `json:"by,omitempty"`
	Time        int64  `json:"time"`
	Title       string `json:"title,omitempty"`
	Text        string `json:"text,omitempty"` // sanitized HTML fragment
	Score       int    `json:"score,omitempty"`
	URL         string `json:"url,omitempty"`
	Kids        []int  `json:"kids,omitempty"`
	Parent      int    `json:"parent,omitempty"`
	Descendants int    `json:"descendants,omitempty"`
	Deleted     bool   `json:"deleted,omitempty"`
	Dead        bool   `json:"dead,omitempty"`
}

// TopLevel reports whether the kind is one that carries a title.
func (k Kind) TopLevel() bool {
	return k == KindStory || k == KindJob || k == KindPoll
}

// Published returns the creation time.
func (it *Item) Published() time.Time {
	return time.Unix(it.Time, 0)
}

// DisplayTitle returns the title, or a placeholder when a top-level item is
// missing one. Malformed items are labelled, never dropped.
func (it *Item) DisplayTitle() string {
	if it.Title != "" {
		return it.Title
	}
	if it.Kind != "" && !it.Kind.TopLevel() {
		return string(it.Kind)
	}
	return untitled
}

// Author returns the author or "anonymous".
func (it *Item) Author() string {
	if it.By == "" {
		return "anonymous"
	}
	return it.By
}

// CommentCount is the number of direct children.
func (it *Item) CommentCount() int {
	return len(it.Kids)
}

// Removed reports whether the item has no displayable body: comments that
// were deleted, killed, or stripped of text.
func (it *Item) Removed() bool {
	return it.Text == "" || it.Deleted || it.Dead
}

// DiscussionURL links to the item's page on the site.
func (it *Item) DiscussionURL() string {
	return fmt.Sprintf("https://news.ycombinator.com/item?id=%d", it.ID)
}
