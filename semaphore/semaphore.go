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

// Package semaphore implements the archiver's read/write lock: a
// reader/writer semaphore with modification broadcast, a reentrant
// writing owner, and (in debug builds) cycle detection across the
// process-wide registry of live semaphores.
package semaphore

import (
	"sync"
	"time"
)

// Kind selects which acquisition protocol to run.
type Kind int

const (
	Read Kind = iota
	ReadWrite
)

// LockType mirrors the semaphore's externally observable state.
type LockType int

const (
	None LockType = iota
	LockRead
	LockReadWrite
)

func (l LockType) String() string {
	switch l {
	case LockRead:
		return "READ"
	case LockReadWrite:
		return "READ_WRITE"
	default:
		return "NONE"
	}
}

// WaitForever disables timeouts on Acquire/WaitModified.
const WaitForever time.Duration = -1

// Semaphore is a read/write lock with modification signaling. The zero
// value is not usable; create one with New.
type Semaphore struct {
	name string

	mu sync.Mutex // the internal mutex described in spec §4.1

	lockType      LockType
	readLock      int
	readWriteLock int
	writer        uint64 // goroutine id of the current READ_WRITE owner

	readRequest      int32 // atomic-ish, guarded by mu for simplicity of the invariant checks
	readWriteRequest int32
	readers          map[uint64]int // goroutines currently holding a READ acquisition, and how many levels

	readLockZero *sync.Cond // broadcast when readLock drops to zero
	modified     *sync.Cond // broadcast/signaled on release of a writer, or explicit signalModified

	end bool

	// debug-only bookkeeping
	pending map[uint64]Kind // goroutines currently blocked, and on what they wait
}

// New creates a semaphore. name is used only in deadlock diagnostics.
func New(name string) *Semaphore {
	s := &Semaphore{name: name, pending: make(map[uint64]Kind), readers: make(map[uint64]int)}
	s.readLockZero = sync.NewCond(&s.mu)
	s.modified = sync.NewCond(&s.mu)
	if debugEnabled {
		registerDebug(s)
	}
	return s
}

// Close removes the semaphore from the debug registry. Harmless to call
// on a non-debug build.
func (s *Semaphore) Close() {
	if debugEnabled {
		unregisterDebug(s)
	}
}

// Acquire obtains the lock of the given kind, blocking up to timeout
// (use WaitForever to block indefinitely). It returns false on timeout,
// leaving all internal counters rolled back to their pre-call state.
func (s *Semaphore) Acquire(kind Kind, timeout time.Duration) bool {
	gid := goroutineID()
	deadline, hasDeadline := deadlineFor(timeout)

	switch kind {
	case Read:
		return s.acquireRead(gid, deadline, hasDeadline)
	case ReadWrite:
		return s.acquireReadWrite(gid, deadline, hasDeadline)
	default:
		panic("semaphore: unknown lock kind")
	}
}

func (s *Semaphore) acquireRead(gid uint64, deadline time.Time, hasDeadline bool) bool {
	s.mu.Lock()
	s.readRequest++
	if debugEnabled {
		s.markPending(gid, Read)
		checkDeadlock(s, gid)
	}
	for s.readWriteLock > 0 && s.writer != gid {
		if !condWaitUntil(s.readLockZero, deadline, hasDeadline) {
			s.readRequest--
			s.clearPending(gid)
			s.mu.Unlock()
			return false
		}
	}
	if s.lockType == LockReadWrite && s.writer == gid {
		// the writing owner re-entering as a reader just deepens its write hold;
		// promoting a reader to a writer is refused elsewhere, but a writer
		// asking for read access is merely a recursive acquisition.
		s.readWriteLock++
	} else {
		s.lockType = LockRead
		s.readLock++
		s.readers[gid]++
	}
	s.readRequest--
	s.clearPending(gid)
	s.mu.Unlock()
	return true
}

func (s *Semaphore) acquireReadWrite(gid uint64, deadline time.Time, hasDeadline bool) bool {
	s.mu.Lock()
	if s.readers[gid] > 0 {
		// a reader promoting itself to writer is not supported and would
		// otherwise self-deadlock waiting on its own read hold to drain.
		s.mu.Unlock()
		panic("semaphore: reader cannot promote to writer")
	}
	s.readWriteRequest++
	if debugEnabled {
		s.markPending(gid, ReadWrite)
		checkDeadlock(s, gid)
	}
	for s.readLock > 0 {
		if !condWaitUntil(s.readLockZero, deadline, hasDeadline) {
			s.readWriteRequest--
			s.clearPending(gid)
			s.mu.Unlock()
			return false
		}
	}
	// wait for any other writer to finish (readWriteLock>0 by someone else)
	for s.readWriteLock > 0 && s.writer != gid {
		if !condWaitUntil(s.modified, deadline, hasDeadline) {
			s.readWriteRequest--
			s.clearPending(gid)
			s.mu.Unlock()
			return false
		}
	}
	s.lockType = LockReadWrite
	s.writer = gid
	s.readWriteLock++
	s.readWriteRequest--
	s.clearPending(gid)
	s.mu.Unlock()
	return true
}

// Release releases exactly one level of the current owner's
// acquisition. Releasing a semaphore the caller does not own is a
// programmer error and panics.
func (s *Semaphore) Release() {
	gid := goroutineID()
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.lockType {
	case LockRead:
		if s.readLock == 0 || s.readers[gid] == 0 {
			panic("semaphore: release of unowned READ lock")
		}
		s.readLock--
		if s.readers[gid] > 0 {
			s.readers[gid]--
			if s.readers[gid] == 0 {
				delete(s.readers, gid)
			}
		}
		if s.readLock == 0 {
			s.lockType = None
			s.readLockZero.Broadcast()
		}
	case LockReadWrite:
		if s.writer != gid || s.readWriteLock == 0 {
			panic("semaphore: release of unowned READ_WRITE lock")
		}
		s.readWriteLock--
		if s.readWriteLock == 0 {
			s.lockType = None
			s.writer = 0
			s.modified.Signal()
			// readers blocked in acquireRead wait on readLockZero, not
			// modified; broadcast it too so they re-check readWriteLock.
			s.readLockZero.Broadcast()
		}
	default:
		panic("semaphore: release of a semaphore that is not locked")
	}
}

// WaitModified atomically releases all of the caller's acquisitions,
// waits for a modification broadcast (or for the end flag), and
// re-acquires the same kind and depth before returning. Returns false
// on timeout; the lock state is restored exactly either way.
func (s *Semaphore) WaitModified(timeout time.Duration) bool {
	gid := goroutineID()
	deadline, hasDeadline := deadlineFor(timeout)

	s.mu.Lock()
	if s.end {
		s.mu.Unlock()
		return true
	}

	var kind Kind
	var depth int
	switch s.lockType {
	case LockRead:
		if s.readers[gid] == 0 {
			s.mu.Unlock()
			panic("semaphore: waitModified by non-owner of READ lock")
		}
		kind, depth = Read, s.readers[gid]
		s.readLock -= depth
		delete(s.readers, gid)
		if s.readLock == 0 {
			s.lockType = None
		}
		s.readLockZero.Broadcast()
	case LockReadWrite:
		if s.writer != gid {
			s.mu.Unlock()
			panic("semaphore: waitModified by non-owner of READ_WRITE lock")
		}
		kind, depth = ReadWrite, s.readWriteLock
		s.readWriteLock = 0
		s.lockType = None
		s.writer = 0
		s.modified.Signal()
		s.readLockZero.Broadcast()
	default:
		s.mu.Unlock()
		panic("semaphore: waitModified without holding the semaphore")
	}

	ok := condWaitUntil(s.modified, deadline, hasDeadline) || s.end
	s.mu.Unlock()

	// re-acquire the same kind and depth regardless of the wait outcome,
	// so the caller's lock discipline is never left inconsistent
	for i := 0; i < depth; i++ {
		if !s.Acquire(kind, WaitForever) {
			// WaitForever never times out
			panic("semaphore: re-acquire after waitModified failed unexpectedly")
		}
	}
	return ok
}

// SignalKind selects how many waiters SignalModified wakes.
type SignalKind int

const (
	SignalOne SignalKind = iota
	SignalAll
)

// SignalModified wakes waiters blocked in WaitModified. Must be called
// while holding a READ_WRITE acquisition.
func (s *Semaphore) SignalModified(kind SignalKind) {
	gid := goroutineID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockType != LockReadWrite || s.writer != gid {
		panic("semaphore: signalModified without holding the READ_WRITE lock")
	}
	if kind == SignalAll {
		s.modified.Broadcast()
	} else {
		s.modified.Signal()
	}
}

// IsOwned reports whether the calling goroutine currently holds any
// acquisition on this semaphore.
func (s *Semaphore) IsOwned() bool {
	gid := goroutineID()
	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.lockType == LockReadWrite && s.writer == gid) || s.readers[gid] > 0
}

// IsPending reports whether any goroutine is currently blocked waiting
// to acquire kind.
func (s *Semaphore) IsPending(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == Read {
		return s.readRequest > 0
	}
	return s.readWriteRequest > 0
}

// SetEnd sets the sticky end flag and wakes every waiter. After this,
// WaitModified always returns true immediately without blocking.
func (s *Semaphore) SetEnd() {
	s.mu.Lock()
	s.end = true
	s.modified.Broadcast()
	s.readLockZero.Broadcast()
	s.mu.Unlock()
}

func (s *Semaphore) markPending(gid uint64, kind Kind) {
	s.pending[gid] = kind
}

func (s *Semaphore) clearPending(gid uint64) {
	delete(s.pending, gid)
}

// condWaitUntil waits on c until it is signaled or deadline passes
// (when hasDeadline). It returns false iff the deadline passed first.
// c's Locker must already be held by the caller.
func condWaitUntil(c *sync.Cond, deadline time.Time, hasDeadline bool) bool {
	if !hasDeadline {
		c.Wait()
		return true
	}
	if time.Now().After(deadline) {
		return false
	}
	done := make(chan struct{})
	timedOut := false
	timer := time.AfterFunc(time.Until(deadline), func() {
		timedOut = true
		c.Broadcast()
	})
	c.Wait()
	timer.Stop()
	close(done)
	return !timedOut
}

func deadlineFor(timeout time.Duration) (time.Time, bool) {
	if timeout == WaitForever {
		return time.Time{}, false
	}
	return time.Now().Add(timeout), true
}
