/*
Copyright (C) 2026  BAR Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package msgqueue implements a bounded, blocking, multi-producer
// multi-consumer FIFO with end-of-stream signaling, grounded on
// original_source/bar/bar/common/msgqueues.h and styled after the
// storage package's sync.Mutex+sync.Cond usage.
package msgqueue

import (
	"sync"
	"time"
)

// FreeFunc, if set, is invoked on every message discarded without being
// delivered to a Get, that is, by Clear (and Reset, which calls it).
// Messages still enqueued when a Queue is dropped are not freed.
type FreeFunc func(msg interface{})

// Queue is a bounded blocking message queue. maxMessages of 0 means
// unbounded.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond // signaled on put/get, broadcast on clear/reset/setEndOfMessage

	maxMessages int
	free        FreeFunc

	messages []interface{}
	ended    bool
}

// New creates a queue. maxMessages == 0 means unbounded capacity.
func New(maxMessages int, free FreeFunc) *Queue {
	q := &Queue{maxMessages: maxMessages, free: free}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put enqueues msg, blocking while the queue is full and not ended.
// Returns false without enqueuing if the queue has been ended.
func (q *Queue) Put(msg interface{}) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.maxMessages > 0 && len(q.messages) >= q.maxMessages && !q.ended {
		q.cond.Wait()
	}
	if q.ended {
		return false
	}
	q.messages = append(q.messages, msg)
	q.cond.Signal() // wake exactly one waiter, per spec §5 ordering guarantees
	return true
}

// PutTimeout is Put with a bound on how long to wait for room.
func (q *Queue) PutTimeout(msg interface{}, timeout time.Duration) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	deadline := time.Now().Add(timeout)
	for q.maxMessages > 0 && len(q.messages) >= q.maxMessages && !q.ended {
		if !waitUntil(q.cond, deadline) {
			return false
		}
	}
	if q.ended {
		return false
	}
	q.messages = append(q.messages, msg)
	q.cond.Signal()
	return true
}

// Get blocks until a message is available or the queue ends, then
// returns it. It returns false iff the queue is ended and empty, or the
// timeout (use 0 for WaitForever) expires first.
func (q *Queue) Get(timeout time.Duration) (interface{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}

	for len(q.messages) == 0 {
		if q.ended {
			return nil, false
		}
		if hasDeadline {
			if !waitUntil(q.cond, deadline) {
				return nil, false
			}
		} else {
			q.cond.Wait()
		}
	}

	msg := q.messages[0]
	q.messages = q.messages[1:]
	q.cond.Signal()
	return msg, true
}

// Clear empties the queue, running the configured free function (if
// any) on each discarded message.
func (q *Queue) Clear() {
	q.mu.Lock()
	pending := q.messages
	q.messages = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	if q.free != nil {
		for _, m := range pending {
			q.free(m)
		}
	}
}

// SetEndOfMessage sets the sticky end flag and wakes every waiter.
func (q *Queue) SetEndOfMessage() {
	q.mu.Lock()
	q.ended = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Reset clears the queue and re-arms it (clears the end flag).
func (q *Queue) Reset() {
	q.Clear()
	q.mu.Lock()
	q.ended = false
	q.mu.Unlock()
}

// Wait blocks until the queue is modified (a Put, Get, Clear, or Reset
// occurred), without consuming anything.
func (q *Queue) Wait() {
	q.mu.Lock()
	q.cond.Wait()
	q.mu.Unlock()
}

// Len reports the number of currently enqueued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Ended reports whether SetEndOfMessage has been called.
func (q *Queue) Ended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ended
}

// waitUntil waits on c, which must be locked by the caller, until it is
// signaled or deadline passes. Returns false iff the deadline passed.
func waitUntil(c *sync.Cond, deadline time.Time) bool {
	if time.Now().After(deadline) {
		return false
	}
	timedOut := false
	timer := time.AfterFunc(time.Until(deadline), func() {
		timedOut = true
		c.Broadcast()
	})
	c.Wait()
	timer.Stop()
	return !timedOut
}
