package engine

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("engine closed")

// queue is the engine's FIFO. push never blocks so any goroutine, including
// the encoder and the RDS poller, can post without waiting on the worker.
type queue struct {
	mu     sync.Mutex
	items  []Command
	wake   chan struct{}
	closed bool
}

func newQueue() *queue {
	return &queue{wake: make(chan struct{}, 1)}
}

// push appends c after dropping the pending commands it supersedes and
// returns how many were dropped.
func (q *queue) push(c Command) (int, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, ErrClosed
	}
	dropped := q.removeLocked(func(p Command) bool { return supersedes(c, p) })
	q.items = append(q.items, c)
	q.mu.Unlock()
	q.signal()
	return dropped, nil
}

// seal closes the queue to new commands, drops everything pending and
// queues last as the final command.
func (q *queue) seal(last Command) int {
	q.mu.Lock()
	dropped := len(q.items)
	q.items = append(q.items[:0], last)
	q.closed = true
	q.mu.Unlock()
	q.signal()
	return dropped
}

func (q *queue) purge(match func(Command) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(match)
}

func (q *queue) removeLocked(match func(Command) bool) int {
	kept := q.items[:0]
	for _, p := range q.items {
		if !match(p) {
			kept = append(kept, p)
		}
	}
	dropped := len(q.items) - len(kept)
	clear(q.items[len(kept):])
	q.items = kept
	return dropped
}

func (q *queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// next blocks until a command is available or stop is closed.
func (q *queue) next(stop <-chan struct{}) (Command, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			c := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return c, true
		}
		q.mu.Unlock()
		select {
		case <-q.wake:
		case <-stop:
			return nil, false
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
