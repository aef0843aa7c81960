// SPDX-License-Identifier: Apache-2.0

// Package queue provides the bounded FIFO queues that decouple the network
// loop from the processing workers. A pop never raises on empty: callers get
// a comma-ok result from TryPop, or a bounded wait from Pop.
package queue

import (
	"errors"
	"time"
)

var (
	FullErr = errors.New("queue is full")
)

type Queue[T any] struct {
	entries chan T
}

func New[T any](size int) *Queue[T] {
	return &Queue[T]{
		entries: make(chan T, size),
	}
}

// Push appends an entry without blocking. A full queue refuses the entry and
// returns FullErr; the producer decides whether to log or drop.
func (q *Queue[T]) Push(entry T) error {
	select {
	case q.entries <- entry:
		return nil
	default:
		return FullErr
	}
}

// TryPop removes the oldest entry if one is immediately available.
func (q *Queue[T]) TryPop() (T, bool) {
	select {
	case entry := <-q.entries:
		return entry, true
	default:
		var zero T
		return zero, false
	}
}

// Pop removes the oldest entry, waiting up to timeout for one to arrive.
func (q *Queue[T]) Pop(timeout time.Duration) (T, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case entry := <-q.entries:
		return entry, true
	case <-timer.C:
		var zero T
		return zero, false
	}
}

// Drain discards every queued entry and returns how many were removed.
func (q *Queue[T]) Drain() int {
	drained := 0
	for {
		select {
		case <-q.entries:
			drained++
		default:
			return drained
		}
	}
}

func (q *Queue[T]) Len() int {
	return len(q.entries)
}
