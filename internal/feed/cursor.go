package feed

// Cursor maps a page number onto a window of identifiers.
//
// Window is pure: calling it twice returns the same window. Advance moves to
// the next page and is only called after a window was delivered, so a failed
// fetch leaves the cursor where it was and the same window is retried.
type Cursor interface {
	// Window returns the identifiers of the current page, newest first.
	// An empty window means the universe is exhausted.
	Window() []int
	// Advance moves to the next page.
	Advance()
	// Page is the zero-based number of the current (not yet delivered) page.
	Page() int
	// Exhausted reports whether the current window is empty.
	Exhausted() bool
}

// NextWindow returns the current window and advances past it.
func NextWindow(c Cursor) []int {
	w := c.Window()
	c.Advance()
	return w
}

// SliceCursor pages through an immutable snapshot of an identifier list.
type SliceCursor struct {
	ids  []int
	size int
	page int
}

// NewSliceCursor copies ids so later changes by the caller cannot shift
// page boundaries.
func NewSliceCursor(ids []int, size int) *SliceCursor {
	if size <= 0 {
		size = DefaultPageSize
	}
	snapshot := make([]int, len(ids))
	copy(snapshot, ids)
	return &SliceCursor{ids: snapshot, size: size}
}

func (c *SliceCursor) Window() []int {
	start := c.page * c.size
	if start >= len(c.ids) {
		return nil
	}
	end := min(start+c.size, len(c.ids))
	w := make([]int, end-start)
	copy(w, c.ids[start:end])
	return w
}

func (c *SliceCursor) Advance() { c.page++ }

func (c *SliceCursor) Page() int { return c.page }

func (c *SliceCursor) Exhausted() bool { return c.page*c.size >= len(c.ids) }

// CountdownCursor walks down from a high-water mark in fixed steps. Page N
// covers [high - N*size, max(high - (N+1)*size + 1, 1)].
type CountdownCursor struct {
	high int
	size int
	page int
}

// NewCountdownCursor anchors the walk at high.
func NewCountdownCursor(high, size int) *CountdownCursor {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &CountdownCursor{high: high, size: size}
}

func (c *CountdownCursor) top() int {
	return c.high - c.page*c.size
}

func (c *CountdownCursor) Window() []int {
	top := c.top()
	if top < 1 {
		return nil
	}
	low := max(top-c.size+1, 1)
	w := make([]int, 0, top-low+1)
	for id := top; id >= low; id-- {
		w = append(w, id)
	}
	return w
}

func (c *CountdownCursor) Advance() { c.page++ }

func (c *CountdownCursor) Page() int { return c.page }

// Exhausted is true once a window reaching identifier 1 has been passed.
func (c *CountdownCursor) Exhausted() bool { return c.top() < 1 }
