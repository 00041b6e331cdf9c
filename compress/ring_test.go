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

package compress

import "testing"

func TestRingWriteReadRoundTrip(t *testing.T) {
	r := NewRing(8)
	n := r.Write([]byte("hello"))
	if n != 5 {
		t.Fatalf("expected 5 bytes written, got %d", n)
	}
	buf := make([]byte, 5)
	n = r.Read(buf)
	if n != 5 || string(buf) != "hello" {
		t.Fatalf("expected hello, got %q (%d)", buf, n)
	}
}

func TestRingRespectsCapacity(t *testing.T) {
	r := NewRing(4)
	n := r.Write([]byte("abcdef"))
	if n != 4 {
		t.Fatalf("expected write capped at capacity 4, got %d", n)
	}
	if r.Free() != 0 {
		t.Fatalf("expected ring full, free=%d", r.Free())
	}
}

func TestRingWrapsAroundAfterPartialRead(t *testing.T) {
	r := NewRing(4)
	r.Write([]byte("ab"))
	buf := make([]byte, 1)
	r.Read(buf)
	r.Write([]byte("cde"))
	out := make([]byte, 4)
	n := r.Read(out)
	if n != 4 || string(out) != "bcde" {
		t.Fatalf("expected bcde, got %q (%d)", out[:n], n)
	}
}

func TestRingPeekDoesNotConsume(t *testing.T) {
	r := NewRing(8)
	r.Write([]byte("xyz"))
	peeked := r.Peek(3)
	if string(peeked) != "xyz" {
		t.Fatalf("expected xyz, got %q", peeked)
	}
	if r.Len() != 3 {
		t.Fatalf("peek must not consume, len=%d", r.Len())
	}
}

func TestRingDiscard(t *testing.T) {
	r := NewRing(8)
	r.Write([]byte("abcdef"))
	r.Discard(3)
	buf := make([]byte, 3)
	r.Read(buf)
	if string(buf) != "def" {
		t.Fatalf("expected def after discard, got %q", buf)
	}
}
