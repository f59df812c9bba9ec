package queue

import (
	"sync"

	"github.com/ghalamif/VitalFlow/internal/ports"
)

// MemQueue is a bounded in-memory queue that preserves FIFO ordering.
type MemQueue[T any] struct {
	mu   sync.Mutex
	data []T
	cap  int
}

func NewMemQueue[T any](capacity int) *MemQueue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue[T]{
		data: make([]T, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemQueue[T]) Enqueue(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, v)
	return true
}

func (q *MemQueue[T]) DequeueBatch(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]T, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.Queue[int] = (*MemQueue[int])(nil)
