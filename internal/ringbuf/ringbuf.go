// Package ringbuf provides a fixed-capacity ring buffer that keeps the most
// recent items.
package ringbuf

// Buffer holds at most Cap items; pushing beyond capacity evicts the oldest.
// A Buffer is not safe for concurrent use.
type Buffer[T any] struct {
	items []T
	start int
	size  int
}

// New returns an empty buffer. capacity must be positive.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest item when full.
func (b *Buffer[T]) Push(v T) {
	if b.size < len(b.items) {
		b.items[(b.start+b.size)%len(b.items)] = v
		b.size++
		return
	}
	b.items[b.start] = v
	b.start = (b.start + 1) % len(b.items)
}

// Len returns the number of stored items.
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// Items returns a copy of the stored items, oldest first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.start+i)%len(b.items)]
	}
	return out
}
