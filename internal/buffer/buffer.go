package buffer

import (
	"sync"
)

// Buffer is an append-only, concurrency-safe list.
type Buffer[T any] struct {
	mu sync.RWMutex
	ts []T
}

func NewBuffer[T any]() *Buffer[T] {
	return &Buffer[T]{}
}

func (b *Buffer[T]) Add(e T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ts = append(b.ts, e)
}

// Snapshot returns a copy of the buffered items in insertion order.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]T, len(b.ts))
	copy(out, b.ts)
	return out
}

func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ts)
}
