package ports

// Queue is a bounded FIFO. Enqueue reports false instead of blocking when full.
type Queue[T any] interface {
	Enqueue(v T) bool
	DequeueBatch(max int) []T
	Len() int
}
