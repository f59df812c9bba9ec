package queue

import (
	"testing"
)

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue[string](4)

	if !q.Enqueue("s1") || !q.Enqueue("s2") {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0] != "s1" {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0] != "s2" {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
	if q.DequeueBatch(1) != nil {
		t.Fatalf("empty queue must return nil batch")
	}
}

func TestMemQueueCapacity(t *testing.T) {
	q := NewMemQueue[int](2)

	if !q.Enqueue(1) || !q.Enqueue(2) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(3) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(4) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
	if got := q.DequeueBatch(0); len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Fatalf("unexpected drain order %v", got)
	}
}

func TestNewMemQueueClampsCapacity(t *testing.T) {
	q := NewMemQueue[int](0)
	if !q.Enqueue(1) || q.Enqueue(2) {
		t.Fatalf("zero capacity should be clamped to one")
	}
}
