package feed

import (
	"context"
	"iter"
	"sync"

	"github.com/abelbrown/hnlive/internal/hn"
	"github.com/abelbrown/hnlive/internal/logging"
)

// DefaultMaxCommentDepth bounds how many reply levels are fetched.
const DefaultMaxCommentDepth = 8

// Comment is one rendered comment record.
type Comment struct {
	Item *hn.Item
	// Depth is the display nesting level; 0 is a direct reply to the root.
	Depth int
	// ParentID is the nearest displayed ancestor, or the root item.
	ParentID int
}

// CommentLoader resolves comment subtrees.
//
// Siblings are fetched concurrently and shown newest first. A comment with
// no text (removed, deleted, dead) is not shown, but its replies are: they
// take its place at its depth, under its displayed parent. Traversal uses an
// explicit stack, stops after maxDepth levels of fetching and never visits
// an identifier twice, so a malformed reply graph cannot loop.
type CommentLoader struct {
	items       ItemGetter
	maxDepth    int
	concurrency int
}

// NewCommentLoader creates a loader. maxDepth counts fetch levels below the
// root; concurrency bounds parallel requests per level.
func NewCommentLoader(items ItemGetter, maxDepth, concurrency int) *CommentLoader {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxCommentDepth
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &CommentLoader{items: items, maxDepth: maxDepth, concurrency: concurrency}
}

// commentNode is a resolved item waiting on the traversal stack.
type commentNode struct {
	item     *hn.Item
	depth    int // display depth
	parentID int // displayed parent
	level    int // fetch level, 1 for the root's children
}

// LoadSubtree yields the subtree below rootID in display order (pre-order,
// newest sibling first). Children are fetched only as iteration reaches
// them. Each call starts from scratch; the sequence is restartable. The only
// error yielded is context cancellation, after which iteration stops.
func (l *CommentLoader) LoadSubtree(ctx context.Context, rootID int, childIDs []int) iter.Seq2[Comment, error] {
	return func(yield func(Comment, error) bool) {
		seen := map[int]struct{}{rootID: {}}

		var stack []commentNode
		push := func(ids []int, depth, parentID, level int) {
			resolved := l.resolve(ctx, ids, seen)
			// Reverse so the newest sibling is popped first.
			for i := len(resolved) - 1; i >= 0; i-- {
				stack = append(stack, commentNode{
					item:     resolved[i],
					depth:    depth,
					parentID: parentID,
					level:    level,
				})
			}
		}

		push(childIDs, 0, rootID, 1)
		for {
			// Cancellation empties resolve results, so check before
			// trusting an empty stack.
			if err := ctx.Err(); err != nil {
				yield(Comment{}, err)
				return
			}
			if len(stack) == 0 {
				return
			}

			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			canDescend := n.level < l.maxDepth && len(n.item.Kids) > 0
			if n.item.Removed() {
				if canDescend {
					push(n.item.Kids, n.depth, n.parentID, n.level+1)
				}
				continue
			}

			if !yield(Comment{Item: n.item, Depth: n.depth, ParentID: n.parentID}, nil) {
				return
			}
			if canDescend {
				push(n.item.Kids, n.depth+1, n.item.ID, n.level+1)
			}
		}
	}
}

// Collect drains LoadSubtree into a slice.
func (l *CommentLoader) Collect(ctx context.Context, rootID int, childIDs []int) ([]Comment, error) {
	var out []Comment
	for c, err := range l.LoadSubtree(ctx, rootID, childIDs) {
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

// resolve fetches the unseen ids concurrently, drops absent and failed
// ones, and sorts the rest newest first.
func (l *CommentLoader) resolve(ctx context.Context, ids []int, seen map[int]struct{}) []*hn.Item {
	fresh := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, id)
	}
	if len(fresh) == 0 {
		return nil
	}

	res := fetchBatch(ctx, l.items, fresh, l.concurrency)
	if res.failed > 0 {
		logging.Debug("Comment fetch partially failed",
			"requested", len(fresh), "failed", res.failed, "err", res.err)
	}
	sortNewestFirst(res.items)
	return res.items
}

// CommentStream reads a comment tree a chunk at a time. Because LoadSubtree
// fetches replies only as iteration reaches them, an unread part of the
// tree costs no requests. Safe for concurrent use: Next refuses with
// ErrInFlight while another Next runs, and Close during a Next releases the
// walk once that Next returns.
type CommentStream struct {
	next func() (Comment, error, bool)
	stop func()

	mu      sync.Mutex
	pending *Comment // read ahead to know whether more remain
	busy    bool
	done    bool
	closed  bool
}

// NewCommentStream wraps seq, typically CommentLoader.LoadSubtree.
func NewCommentStream(seq iter.Seq2[Comment, error]) *CommentStream {
	next, stop := iter.Pull2(seq)
	return &CommentStream{next: next, stop: stop}
}

// Next returns up to n further comments in display order and reports
// whether the tree has been read to the end. An error ends the stream.
func (s *CommentStream) Next(n int) ([]Comment, bool, error) {
	n = max(n, 1)
	s.mu.Lock()
	if s.done || s.closed {
		s.mu.Unlock()
		return nil, true, nil
	}
	if s.busy {
		s.mu.Unlock()
		return nil, false, ErrInFlight
	}
	s.busy = true
	out := make([]Comment, 0, n)
	if s.pending != nil {
		out = append(out, *s.pending)
		s.pending = nil
	}
	s.mu.Unlock()

	var (
		err       error
		exhausted bool
		ahead     *Comment
	)
	for len(out) <= n {
		c, cerr, ok := s.next()
		if !ok {
			exhausted = true
			break
		}
		if cerr != nil {
			err, exhausted = cerr, true
			break
		}
		if len(out) == n {
			ahead = &c
			break
		}
		out = append(out, c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.pending = ahead
	if exhausted {
		s.done = true
	}
	if s.done || s.closed {
		s.stop()
	}
	return out, s.done, err
}

// Close abandons the walk. It is safe to call more than once.
func (s *CommentStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if !s.busy {
		s.stop()
	}
}
