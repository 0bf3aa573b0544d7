package ui

import "sync"

// ring is a fixed-size circular buffer. Goroutine-safe; App copies share one.
type ring[T any] struct {
	mu    sync.Mutex
	buf   []T
	head  int // next write position
	count int
}

func newRing[T any](size int) *ring[T] {
	if size <= 0 {
		size = 64
	}
	return &ring[T]{buf: make([]T, size)}
}

// Push adds v, overwriting the oldest entry when full.
func (r *ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Last returns the n most recent entries, oldest first.
func (r *ring[T]) Last(n int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || r.count == 0 {
		return nil
	}
	if n > r.count {
		n = r.count
	}
	out := make([]T, n)
	start := (r.head - n + len(r.buf)) % len(r.buf)
	for i := range out {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

func (r *ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *ring[T]) Cap() int {
	return len(r.buf)
}
