package feed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abelbrown/hnlive/internal/hn"
)

// ErrUnknownFilter is returned by ParseFilter.
var ErrUnknownFilter = errors.New("feed: unknown filter")

// Filter selects the identifier universe a feed pages through and polls.
type Filter string

const (
	FilterAll   Filter = "all"
	FilterStory Filter = "story"
	FilterJob   Filter = "job"
	FilterPoll  Filter = "poll"
)

// Filters lists every filter in display order.
var Filters = []Filter{FilterAll, FilterStory, FilterJob, FilterPoll}

// ParseFilter accepts a filter name, case-insensitively.
func ParseFilter(s string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Filters {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
}

// Endpoint is the identifier list backing the filter, or "" for FilterAll,
// which walks down from the latest identifier instead.
func (f Filter) Endpoint() string {
	switch f {
	case FilterStory:
		return "newstories"
	case FilterJob:
		return "jobstories"
	case FilterPoll:
		return "pollstories"
	}
	return ""
}

// Countdown reports whether the filter uses the countdown cursor.
func (f Filter) Countdown() bool {
	return f.Endpoint() == ""
}

// Accepts is the live-poll predicate. FilterAll accepts every kind.
func (f Filter) Accepts(item *hn.Item) bool {
	if item == nil {
		return false
	}
	switch f {
	case FilterStory:
		return item.Kind == hn.KindStory
	case FilterJob:
		return item.Kind == hn.KindJob
	case FilterPoll:
		return item.Kind == hn.KindPoll
	}
	return true
}

func (f Filter) String() string {
	return string(f)
}
