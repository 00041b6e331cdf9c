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
package storage

import "testing"

func TestServerPoolReusesConnectionForSameKey(t *testing.T) {
	p := &ServerPool{conns: map[string]*ServerConnection{}}

	a := p.Allocate("host:445")
	b := p.Allocate("host:445")
	if a != b {
		t.Fatalf("expected same connection for same key")
	}
}

func TestServerPoolFreeTearsDownOnLastRelease(t *testing.T) {
	p := &ServerPool{conns: map[string]*ServerConnection{}}

	a := p.Allocate("host:445")
	p.Allocate("host:445") // second ref

	closed := false
	if err := p.Free("host:445", a, func(interface{}) error { closed = true; return nil }); err != nil {
		t.Fatalf("free: %v", err)
	}
	if closed {
		t.Fatalf("expected connection to remain open with one ref left")
	}

	if err := p.Free("host:445", a, func(interface{}) error { closed = true; return nil }); err != nil {
		t.Fatalf("free: %v", err)
	}
	if !closed {
		t.Fatalf("expected teardown after last release")
	}
}

func TestServerConnectionStateTransitions(t *testing.T) {
	c := &ServerConnection{}
	if c.GetState() != COLD {
		t.Fatalf("expected initial state COLD")
	}
	c.SetState(SHARED)
	if c.GetState() != SHARED {
		t.Fatalf("expected SHARED after transition")
	}
	c.SetState(WRITE)
	if c.GetState() != WRITE {
		t.Fatalf("expected WRITE after transition")
	}
}

func TestDefaultPasswordRoundTrip(t *testing.T) {
	SetDefaultPassword("s3cr3t")
	if GetDefaultPassword() != "s3cr3t" {
		t.Fatalf("expected password to round-trip")
	}
	SetDefaultPassword("")
}
