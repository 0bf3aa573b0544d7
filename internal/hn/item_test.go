package hn

import "testing"

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want string
	}{
		{"story with title", Item{Kind: KindStory, Title: "Show HN: x"}, "Show HN: x"},
		{"story missing title", Item{Kind: KindStory}, untitled},
		{"job missing title", Item{Kind: KindJob}, untitled},
		{"comment uses kind", Item{Kind: KindComment}, "comment"},
		{"no kind", Item{}, untitled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.DisplayTitle(); got != tt.want {
				t.Errorf("DisplayTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRemoved(t *testing.T) {
	tests := []struct {
		item Item
		want bool
	}{
		{Item{Text: "hi"}, false},
		{Item{}, true},
		{Item{Text: "hi", Deleted: true}, true},
		{Item{Text: "hi", Dead: true}, true},
	}
	for _, tt := range tests {
		if got := tt.item.Removed(); got != tt.want {
			t.Errorf("Removed(%+v) = %v, want %v", tt.item, got, tt.want)
		}
	}
}

func TestAuthorAndCounts(t *testing.T) {
	it := Item{ID: 8863, Kids: []int{1, 2, 3}}
	if it.Author() != "anonymous" {
		t.Errorf("Author() = %q", it.Author())
	}
	if it.CommentCount() != 3 {
		t.Errorf("CommentCount() = %d", it.CommentCount())
	}
	if it.DiscussionURL() != "https://news.ycombinator.com/item?id=8863" {
		t.Errorf("DiscussionURL() = %q", it.DiscussionURL())
	}
}
