package storage

import "sync"

// RingBuffer is a fixed-capacity, thread-safe FIFO. Once full, each Add
// overwrites the oldest item and hands it back so callers can keep side
// indexes in step.
type RingBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	head     int    // next write position
	size     int    // current number of items
	added    uint64 // total items ever added
}

// NewRingBuffer creates a ring buffer holding up to capacity items.
// The capacity must be greater than zero.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		panic("ring buffer capacity must be greater than zero")
	}
	return &RingBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends item. When the buffer was full the overwritten item is
// returned with evicted=true.
func (rb *RingBuffer[T]) Add(item T) (old T, evicted bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size == rb.capacity {
		old, evicted = rb.items[rb.head], true
	} else {
		rb.size++
	}
	rb.items[rb.head] = item
	rb.head = (rb.head + 1) % rb.capacity
	rb.added++
	return old, evicted
}

// All returns every item from oldest to newest as a fresh slice.
func (rb *RingBuffer[T]) All() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.size == 0 {
		return nil
	}
	result := make([]T, rb.size)
	if rb.size < rb.capacity {
		copy(result, rb.items[:rb.size])
	} else {
		// head points at the oldest item once wrapped
		n := copy(result, rb.items[rb.head:])
		copy(result[n:], rb.items[:rb.head])
	}
	return result
}

// Len is the number of items held.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

// Cap is the fixed capacity.
func (rb *RingBuffer[T]) Cap() int {
	return rb.capacity
}

// Added counts every Add, plus one per Reset. It never goes backwards and
// changes whenever the contents change, so readers can use it as a version.
func (rb *RingBuffer[T]) Added() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.added
}

// Reset empties the buffer.
func (rb *RingBuffer[T]) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	clear(rb.items)
	rb.size = 0
	rb.head = 0
	rb.added++
}
