// Package queue implements the unbounded mailbox shared by chunk listeners,
// bucket subscriptions and the chunk saver.
package queue

import "sync"

// Queue is an unbounded FIFO mailbox. Push never blocks the producer.
// Consumers either poll with Drain or wait for Signal before draining.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{}
}

// New returns an empty, open Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{signal: make(chan struct{}, 1)}
}

// Push appends v to the queue. It returns false if the queue was closed, in
// which case v is dropped.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, v)
	// Non-blocking signal: coalesce multiple pushes into one wake-up.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Drain removes and returns every queued item in FIFO order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Signal returns a channel that receives a value whenever items were pushed
// since the last receive. It is closed once the queue is closed.
func (q *Queue[T]) Signal() <-chan struct{} {
	return q.signal
}

// Close stops the queue from accepting new items. Items already queued stay
// available to Drain.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Closed reports whether Close was called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
