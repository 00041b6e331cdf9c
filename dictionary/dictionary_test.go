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

package dictionary

import (
	"fmt"
	"testing"
)

func TestPutGet(t *testing.T) {
	d := New()
	d.Put([]byte("a"), []byte("1"))
	d.Put([]byte("b"), []byte("2"))

	v, ok := d.Get([]byte("a"))
	if !ok || string(v) != "1" {
		t.Fatalf("expected 1, got %q ok=%v", v, ok)
	}
	v, ok = d.Get([]byte("b"))
	if !ok || string(v) != "2" {
		t.Fatalf("expected 2, got %q ok=%v", v, ok)
	}
	if _, ok := d.Get([]byte("missing")); ok {
		t.Fatal("expected missing key to be absent")
	}
}

func TestPutReplacesExisting(t *testing.T) {
	d := New()
	d.Put([]byte("k"), []byte("first"))
	d.Put([]byte("k"), []byte("second"))
	v, ok := d.Get([]byte("k"))
	if !ok || string(v) != "second" {
		t.Fatalf("expected replaced value, got %q", v)
	}
	if d.Len() != 1 {
		t.Fatalf("expected 1 entry after replace, got %d", d.Len())
	}
}

func TestRemoveIsLazy(t *testing.T) {
	d := New()
	d.Put([]byte("k"), []byte("v"))
	if !d.Remove([]byte("k")) {
		t.Fatal("remove should report true for present key")
	}
	if _, ok := d.Get([]byte("k")); ok {
		t.Fatal("removed key must not be found")
	}
	if d.Remove([]byte("k")) {
		t.Fatal("removing an already-removed key should report false")
	}
	if d.Len() != 0 {
		t.Fatalf("expected 0 live entries, got %d", d.Len())
	}
}

func TestGrowthAcrossManyEntries(t *testing.T) {
	d := New()
	const n = 5000
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		d.Put(key, []byte(fmt.Sprintf("val-%d", i)))
	}
	if d.Len() != n {
		t.Fatalf("expected %d live entries, got %d", n, d.Len())
	}
	if len(d.tables) < 2 {
		t.Fatalf("expected growth to have added tables, got %d tables", len(d.tables))
	}
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		v, ok := d.Get(key)
		if !ok || string(v) != fmt.Sprintf("val-%d", i) {
			t.Fatalf("lookup failed for %s: got %q ok=%v", key, v, ok)
		}
	}
}

func TestIterateVisitsEachLiveEntryOnce(t *testing.T) {
	d := New()
	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		d.Put([]byte(k), []byte(v))
	}
	d.Remove([]byte("b"))
	delete(want, "b")

	seen := map[string]string{}
	d.Iterate(func(k, v []byte) { seen[string(k)] = string(v) })

	if len(seen) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(seen))
	}
	for k, v := range want {
		if seen[k] != v {
			t.Fatalf("entry %s: expected %s, got %s", k, v, seen[k])
		}
	}
}

func TestCompactReclaimsTombstonesAndPreservesLiveData(t *testing.T) {
	d := New()
	for i := 0; i < 100; i++ {
		d.Put([]byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i)))
	}
	for i := 0; i < 50; i++ {
		d.Remove([]byte(fmt.Sprintf("k%d", i)))
	}
	d.Compact()

	if len(d.tables) != 1 {
		t.Fatalf("expected compaction to coalesce into one table, got %d", len(d.tables))
	}
	if d.Len() != 50 {
		t.Fatalf("expected 50 live entries after compact, got %d", d.Len())
	}
	for i := 50; i < 100; i++ {
		key := fmt.Sprintf("k%d", i)
		v, ok := d.Get([]byte(key))
		if !ok || string(v) != fmt.Sprintf("v%d", i) {
			t.Fatalf("lost surviving entry %s after compact", key)
		}
	}
}

func TestShouldCompactTracksTombstoneDensity(t *testing.T) {
	d := New()
	for i := 0; i < 20; i++ {
		d.Put([]byte(fmt.Sprintf("k%d", i)), []byte("v"))
	}
	if d.ShouldCompact() {
		t.Fatal("freshly populated table should not need compaction")
	}
	for i := 0; i < 15; i++ {
		d.Remove([]byte(fmt.Sprintf("k%d", i)))
	}
	if !d.ShouldCompact() {
		t.Fatal("heavily tombstoned table should report ShouldCompact")
	}
	d.Compact()
	if d.ShouldCompact() {
		t.Fatal("compaction should clear tombstone accounting")
	}
}

func TestContains(t *testing.T) {
	d := New()
	if d.Contains([]byte("x")) {
		t.Fatal("empty dictionary should not contain anything")
	}
	d.Put([]byte("x"), []byte("y"))
	if !d.Contains([]byte("x")) {
		t.Fatal("expected key to be present")
	}
}
