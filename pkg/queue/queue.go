// Package queue provides the unbounded byte-message FIFO shared between a
// connection's callers and its poll and dispatch loops.
package queue

import "sync"

// ByteQueue is a mutex-guarded FIFO of opaque messages. Push never blocks
// beyond the lock and never drops; Pop never waits for data.
type ByteQueue struct {
	mu    sync.Mutex
	items [][]byte
	head  int
}

// New returns an empty queue
func New() *ByteQueue {
	return &ByteQueue{}
}

// Push appends msg to the tail
func (q *ByteQueue) Push(msg []byte) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()
}

// Pop removes and returns the head. ok is false when the queue is empty.
func (q *ByteQueue) Pop() (msg []byte, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.items) {
		return nil, false
	}

	msg = q.items[q.head]
	q.items[q.head] = nil
	q.head++

	// reclaim the consumed prefix once it dominates the backing array
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	return msg, true
}

// IsEmpty reports whether the queue currently holds no messages
func (q *ByteQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of queued messages
func (q *ByteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Reset discards every queued message and returns how many were dropped
func (q *ByteQueue) Reset() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items) - q.head
	q.items = nil
	q.head = 0
	return n
}
