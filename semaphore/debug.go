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

package semaphore

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
)

// debugEnabled gates the process-wide deadlock checker. It must not
// affect release builds; toggle it with SetDebug before creating
// semaphores that should be tracked.
var debugEnabled = false

// SetDebug enables or disables the deadlock-detection registry. Call
// this once at process startup, mirroring Settings.Debug in the
// storage package.
func SetDebug(enabled bool) {
	debugEnabled = enabled
}

var (
	registryMu sync.Mutex
	registry   = map[*Semaphore]struct{}{}
)

func registerDebug(s *Semaphore) {
	registryMu.Lock()
	registry[s] = struct{}{}
	registryMu.Unlock()
}

func unregisterDebug(s *Semaphore) {
	registryMu.Lock()
	delete(registry, s)
	registryMu.Unlock()
}

// checkDeadlock aborts the process with a diagnostic if gid, about to
// block on s, would complete a wait-for cycle: gid already holds s as
// writer (so waiting on it again, e.g. via a second Read/ReadWrite
// acquisition path that isn't the documented reentrant one, can never
// be satisfied), or some other goroutine holding s as writer is itself
// transitively blocked waiting on a semaphore gid holds as writer.
func checkDeadlock(s *Semaphore, gid uint64) {
	registryMu.Lock()
	defer registryMu.Unlock()

	visited := map[*Semaphore]bool{}
	var heldByGid func(target *Semaphore) bool
	heldByGid = func(target *Semaphore) bool {
		if visited[target] {
			return false
		}
		visited[target] = true

		target.mu.Lock()
		holder := target.writer
		isHeldByGidAsWriter := target.lockType == LockReadWrite && holder == gid
		target.mu.Unlock()
		if isHeldByGidAsWriter {
			return true
		}

		// does the current holder (if any) sit pending on a semaphore gid owns?
		if target.lockType == LockReadWrite {
			for other := range registry {
				other.mu.Lock()
				_, blocked := other.pending[holder]
				other.mu.Unlock()
				if blocked && heldByGid(other) {
					return true
				}
			}
		}
		return false
	}

	if heldByGid(s) {
		panic(fmt.Sprintf("semaphore %q: deadlock detected: goroutine %d would block on a semaphore it transitively holds", s.name, gid))
	}
}

// goroutineID extracts the calling goroutine's numeric id by parsing
// the header line of runtime.Stack, the same debug-only trick used
// throughout the Go ecosystem for diagnostics that want a goroutine
// identity without requiring every caller to thread one through
// explicitly. It is invoked once per Acquire, Release, WaitModified,
// SignalModified and IsOwned call.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
