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

package autofree

import "testing"

func TestRestoreRunsReleasesLIFO(t *testing.T) {
	l := New()
	var order []int
	l.Add(1, func(r interface{}) { order = append(order, r.(int)) })
	sp := l.Save()
	l.Add(2, func(r interface{}) { order = append(order, r.(int)) })
	l.Add(3, func(r interface{}) { order = append(order, r.(int)) })

	l.Restore(sp, true)

	if len(order) != 2 || order[0] != 3 || order[1] != 2 {
		t.Fatalf("expected LIFO release [3 2], got %v", order)
	}
	if len(l.nodes) != 1 {
		t.Fatalf("expected 1 remaining node, got %d", len(l.nodes))
	}
}

func TestRestoreWithoutReleasesDoesNotCallFree(t *testing.T) {
	l := New()
	called := false
	l.Add(1, func(r interface{}) { called = true })
	l.Restore(0, false)
	if called {
		t.Fatal("free function must not run when runReleases is false")
	}
}

func TestRemoveWithoutRunningFree(t *testing.T) {
	l := New()
	called := false
	l.Add("res", func(r interface{}) { called = true })
	l.Remove("res")
	if called {
		t.Fatal("remove must not invoke the free function")
	}
	if len(l.nodes) != 0 {
		t.Fatal("remove must delete the record")
	}
}

func TestRemoveOfUnknownResourcePanics(t *testing.T) {
	l := New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic removing an unregistered resource")
		}
	}()
	l.Remove("nope")
}

func TestFreeAllRunsLIFO(t *testing.T) {
	l := New()
	var order []int
	for i := 1; i <= 5; i++ {
		v := i
		l.Add(v, func(r interface{}) { order = append(order, r.(int)) })
	}
	l.FreeAll()
	for i, v := range order {
		if v != 5-i {
			t.Fatalf("expected strict LIFO order, got %v", order)
		}
	}
}

func TestDuplicateResourcesRemoveOnlyOne(t *testing.T) {
	l := New()
	l.Add("dup", nil)
	l.Add("dup", nil)
	l.Remove("dup")
	if len(l.nodes) != 1 {
		t.Fatalf("expected exactly one 'dup' entry left, got %d", len(l.nodes))
	}
}
