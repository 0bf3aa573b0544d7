package feed

import "github.com/abelbrown/hnlive/internal/hn"

// LiveBuffer holds items discovered by polling, newest first.
//
// The visible view is capped at capacity; the full history is retained for
// ShowAll. An identifier never appears twice. LiveBuffer is not safe for
// concurrent use; SyncEngine serializes access under its mutex.
type LiveBuffer struct {
	capacity int
	items    []*hn.Item
	seen     map[int]struct{}
	showAll  bool
}

// NewLiveBuffer creates a buffer whose visible view holds capacity items.
func NewLiveBuffer(capacity int) *LiveBuffer {
	if capacity <= 0 {
		capacity = DefaultLiveCapacity
	}
	return &LiveBuffer{
		capacity: capacity,
		seen:     make(map[int]struct{}),
	}
}

// Push merges items, which must be newest first, into the buffer, skipping
// nil items and identifiers already present. New items normally all precede
// the existing ones; an item older than some existing entry is placed by
// its timestamp. Returns the items actually added.
func (b *LiveBuffer) Push(items []*hn.Item) []*hn.Item {
	added := make([]*hn.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		if _, dup := b.seen[it.ID]; dup {
			continue
		}
		b.seen[it.ID] = struct{}{}
		added = append(added, it)
	}
	if len(added) == 0 {
		return nil
	}

	merged := make([]*hn.Item, 0, len(added)+len(b.items))
	i, j := 0, 0
	for i < len(added) && j < len(b.items) {
		if added[i].Time >= b.items[j].Time {
			merged = append(merged, added[i])
			i++
		} else {
			merged = append(merged, b.items[j])
			j++
		}
	}
	merged = append(merged, added[i:]...)
	merged = append(merged, b.items[j:]...)
	b.items = merged
	return added
}

// Visible returns the capped view, or the full history after ShowAll.
func (b *LiveBuffer) Visible() []*hn.Item {
	n := len(b.items)
	if !b.showAll {
		n = min(n, b.capacity)
	}
	out := make([]*hn.Item, n)
	copy(out, b.items[:n])
	return out
}

// All returns the full history.
func (b *LiveBuffer) All() []*hn.Item {
	out := make([]*hn.Item, len(b.items))
	copy(out, b.items)
	return out
}

// ShowAll exposes the full history until the next Clear and returns it.
func (b *LiveBuffer) ShowAll() []*hn.Item {
	b.showAll = true
	return b.All()
}

// HasMore reports whether the "show more" affordance applies.
func (b *LiveBuffer) HasMore() bool {
	return !b.showAll && len(b.items) > b.capacity
}

// Hidden is the number of items beyond the visible view.
func (b *LiveBuffer) Hidden() int {
	if b.showAll || len(b.items) <= b.capacity {
		return 0
	}
	return len(b.items) - b.capacity
}

// Clear empties the visible view and history and re-arms "show more".
func (b *LiveBuffer) Clear() {
	b.items = nil
	b.seen = make(map[int]struct{})
	b.showAll = false
}

// Len is the size of the full history.
func (b *LiveBuffer) Len() int {
	return len(b.items)
}

// Contains reports whether id is in the buffer.
func (b *LiveBuffer) Contains(id int) bool {
	_, ok := b.seen[id]
	return ok
}
