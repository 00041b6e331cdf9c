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

// Package autofree implements the scoped auto-release registry: a
// thread-safe, ordered list of (resource, free function) pairs that
// unwinds in LIFO order on explicit restore or on full teardown.
//
// Grounded on original_source/bar/bar/autofree.c: List-backed registry
// with a mutex and a save/restore savepoint protocol.
package autofree

import (
	"fmt"
	"runtime"
	"sync"
)

// FreeFunc releases a previously registered resource.
type FreeFunc func(resource interface{})

type node struct {
	resource interface{}
	free     FreeFunc
	origin   string // file:line captured at Add, for programmer-error diagnostics
}

// List is a scoped auto-release registry. The zero value is ready to use.
type List struct {
	mu    sync.Mutex
	nodes []node
}

// New returns an empty registry.
func New() *List {
	return &List{}
}

// Add appends resource and its release function to the registry.
// Duplicates are permitted.
func (l *List) Add(resource interface{}, free FreeFunc) {
	origin := callerOrigin(2)
	l.mu.Lock()
	l.nodes = append(l.nodes, node{resource: resource, free: free, origin: origin})
	l.mu.Unlock()
}

// Remove deletes the first record matching resource (by identity,
// compared with ==) without running its free function. Removing a
// resource that was never added is a programmer error and panics.
func (l *List) Remove(resource interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 0; i < len(l.nodes); i++ {
		if l.nodes[i].resource == resource {
			l.nodes = append(l.nodes[:i], l.nodes[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("autofree: remove of resource %v that was never registered", resource))
}

// Free removes the first record matching resource and runs its free
// function. Programmer error (panics) if resource is not registered.
func (l *List) Free(resource interface{}) {
	l.mu.Lock()
	for i := 0; i < len(l.nodes); i++ {
		if l.nodes[i].resource == resource {
			n := l.nodes[i]
			l.nodes = append(l.nodes[:i], l.nodes[i+1:]...)
			l.mu.Unlock()
			if n.free != nil {
				n.free(n.resource)
			}
			return
		}
	}
	l.mu.Unlock()
	panic(fmt.Sprintf("autofree: free of resource %v that was never registered", resource))
}

// SavePoint is an opaque token capturing the registry's length at the
// moment of Save. Per original_source/bar/bar/autofree.c, it is just
// the tail position with no staleness check: only LIFO use (restore in
// the reverse order saves were taken) is safe against concurrent
// restores on the same list.
type SavePoint int

// Save captures the current length of the registry.
func (l *List) Save() SavePoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return SavePoint(len(l.nodes))
}

// Restore pops every entry added after sp, in LIFO order. When
// runReleases is true, each entry's free function is invoked before the
// entry is discarded.
func (l *List) Restore(sp SavePoint, runReleases bool) {
	l.mu.Lock()
	if int(sp) > len(l.nodes) {
		l.mu.Unlock()
		panic("autofree: restore to a savepoint beyond the current length")
	}
	tail := l.nodes[sp:]
	toFree := make([]node, len(tail))
	copy(toFree, tail)
	l.nodes = l.nodes[:sp]
	l.mu.Unlock()

	if !runReleases {
		return
	}
	for i := len(toFree) - 1; i >= 0; i-- {
		if toFree[i].free != nil {
			toFree[i].free(toFree[i].resource)
		}
	}
}

// FreeAll pops and runs every registered release function in LIFO
// order, leaving the registry empty.
func (l *List) FreeAll() {
	l.Restore(0, true)
}

// Origins returns the recorded "file:line" call sites for every
// currently registered resource, in registration order. Useful for
// programmer-error diagnostics when a resource should have been freed
// by now but wasn't.
func (l *List) Origins() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.nodes))
	for i, n := range l.nodes {
		out[i] = n.origin
	}
	return out
}

func callerOrigin(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}
