/*
Copyright (C) 2025-2026  Carl-Philip Hänsch

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
package storage

import (
	"sync"

	"github.com/dc0d/onexit"
)

// SharedState tracks a pooled server connection's allocation: COLD (no
// connection yet), SHARED (allocated, available for concurrent read
// use), WRITE (allocated, exclusively held for a write in progress).
// Carried over from the teacher's lazy-load/unload coordination model.
type SharedState uint8

const (
	COLD SharedState = iota
	SHARED
	WRITE
)

// ServerConnection is a pooled connection to a remote storage peer
// (SMB share, master RPC endpoint) keyed by host.
type ServerConnection struct {
	mu    sync.Mutex
	state SharedState
	refs  int
	Conn  interface{} // back-end specific: *websocket.Conn for master; unset for SMB
}

// ServerPool is the AllocateServer/FreeServer pool named in spec §4.7's
// SMB state machine. One pool instance is shared process-wide per
// back-end scheme so concurrent jobs against the same host reuse a
// connection instead of each opening their own.
type ServerPool struct {
	mu    sync.Mutex
	conns map[string]*ServerConnection
}

var (
	poolOnce sync.Once
	pools    map[string]*ServerPool
	poolsMu  sync.Mutex
)

// PoolFor returns the process-wide ServerPool for the given back-end
// scheme, creating it on first use.
func PoolFor(scheme string) *ServerPool {
	poolOnce.Do(func() {
		pools = make(map[string]*ServerPool)
		onexit.Register(func() {
			poolsMu.Lock()
			pools = nil
			poolsMu.Unlock()
		})
	})
	poolsMu.Lock()
	defer poolsMu.Unlock()
	p, ok := pools[scheme]
	if !ok {
		p = &ServerPool{conns: make(map[string]*ServerConnection)}
		pools[scheme] = p
	}
	return p
}

// Allocate returns the pooled connection for key (typically
// "host:port"), creating an empty COLD entry if none exists. The
// caller is responsible for dialing when state is COLD and for calling
// Free when done.
func (p *ServerPool) Allocate(key string) *ServerConnection {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.conns[key]
	if !ok {
		c = &ServerConnection{}
		p.conns[key] = c
	}
	c.mu.Lock()
	c.refs++
	c.mu.Unlock()
	return c
}

// Free releases a reference to c. When the last reference is released
// and closeConn is non-nil, the connection is torn down and removed
// from the pool.
func (p *ServerPool) Free(key string, c *ServerConnection, closeConn func(interface{}) error) error {
	c.mu.Lock()
	c.refs--
	remaining := c.refs
	c.mu.Unlock()

	if remaining > 0 {
		return nil
	}

	p.mu.Lock()
	delete(p.conns, key)
	p.mu.Unlock()

	if closeConn != nil && c.Conn != nil {
		return closeConn(c.Conn)
	}
	return nil
}

// GetState reports the connection's current allocation state.
func (c *ServerConnection) GetState() SharedState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState transitions the connection's allocation state.
func (c *ServerConnection) SetState(s SharedState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
