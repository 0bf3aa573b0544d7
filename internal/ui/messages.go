// Package ui provides the Bubble Tea TUI for hnlive.
//
// Pages and comment trees arrive as the results of the commands below;
// live updates arrive as feed events forwarded into the program.
package ui

import "github.com/abelbrown/hnlive/internal/feed"

// PageDone is sent when a NextPage call returns.
type PageDone struct {
	Page feed.Page
	Err  error
}

// PollDone is sent when a manual Poll call returns.
type PollDone struct {
	Added int
	Err   error
}

// ExpandDone carries one chunk of an item's comment tree. First marks the
// chunk read right after the stream was opened; More reports that Stream
// has further comments.
type ExpandDone struct {
	ItemID   int
	Stream   *feed.CommentStream
	Comments []feed.Comment
	First    bool
	More     bool
	Err      error
}
