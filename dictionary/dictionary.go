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

// Package dictionary implements the archiver's byte-keyed associative
// store (spec §3/§4.4): a set of open-addressed tables sized from a
// prime table, newest-first lookup, lazy removal, and periodic
// compaction. Grounded on original_source/bar/bar/common/dictionaries.h
// and the open-addressed index pattern in the teacher's
// storage/index.go (which keeps an ordered secondary structure
// alongside a primary store rather than rehashing in place).
package dictionary

import (
	"bytes"
	"hash/fnv"
	"sync"

	"github.com/google/btree"
)

// primes is the hard-coded table-size progression. Each successive
// table is roughly 2x the previous, landing on a prime to spread probe
// sequences.
var primes = []uint64{
	11, 23, 47, 97, 197, 397, 797, 1597, 3203, 6421,
	12853, 25717, 51437, 102877, 205759, 411527, 823117,
	1646237, 3292489, 6584983, 13169977, 26339969, 52679969,
	105359939, 210719881, 421439783, 842879579, 1685759167,
}

const loadFactorThreshold = 0.75

type entry struct {
	hash       uint64
	key, value []byte
	removed    bool
	used       bool
}

type table struct {
	slots []entry
	count int // live (non-removed) + tombstoned entries actually stored
	live  int // live entries only
}

func newTable(sizeIndex int) *table {
	return &table{slots: make([]entry, primes[sizeIndex])}
}

// Dictionary is a hash-backed associative store with byte-opaque keys
// and values. All operations are internally synchronized.
type Dictionary struct {
	mu        sync.Mutex
	tables    []*table // newest last
	sizeIndex int

	// tombstones tracks, per table index, the number of lazily removed
	// slots not yet reclaimed. Ordered by table index so ShouldCompact
	// can cheaply find the table carrying the most dead weight without
	// scanning every table's slots.
	tombstones *btree.BTreeG[tombstoneCount]
}

type tombstoneCount struct {
	tableIdx int
	count    int
}

func lessByTableIdx(a, b tombstoneCount) bool { return a.tableIdx < b.tableIdx }

// New creates an empty dictionary.
func New() *Dictionary {
	d := &Dictionary{}
	d.tables = append(d.tables, newTable(0))
	d.tombstones = btree.NewG[tombstoneCount](8, lessByTableIdx)
	return d
}

func (d *Dictionary) bumpTombstones(tableIdx, delta int) {
	cur, _ := d.tombstones.Get(tombstoneCount{tableIdx: tableIdx})
	cur.tableIdx = tableIdx
	cur.count += delta
	if cur.count <= 0 {
		d.tombstones.Delete(tombstoneCount{tableIdx: tableIdx})
		return
	}
	d.tombstones.ReplaceOrInsert(cur)
}

// ShouldCompact reports whether any table's tombstone count exceeds
// half its live entry count plus one, the point at which probe chains start
// degrading lookup cost.
func (d *Dictionary) ShouldCompact() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	should := false
	d.tombstones.Ascend(func(tc tombstoneCount) bool {
		if tc.tableIdx < len(d.tables) && tc.count > d.tables[tc.tableIdx].live/2+1 {
			should = true
			return false
		}
		return true
	})
	return should
}

func hashOf(key []byte) uint64 {
	h := fnv.New64a()
	h.Write(key)
	return h.Sum64()
}

// Put inserts or replaces the value for key. It always writes to the
// newest table, growing to a new (larger, prime-sized) table first if
// the newest table's load factor exceeds the threshold.
func (d *Dictionary) Put(key, value []byte) {
	h := hashOf(key)
	d.mu.Lock()
	defer d.mu.Unlock()

	// replace in place if key already exists in any table
	for i := len(d.tables) - 1; i >= 0; i-- {
		if idx, ok := find(d.tables[i], h, key); ok {
			d.tables[i].slots[idx].value = append([]byte(nil), value...)
			return
		}
	}

	newest := d.tables[len(d.tables)-1]
	if float64(newest.count+1)/float64(len(newest.slots)) > loadFactorThreshold {
		d.grow()
		newest = d.tables[len(d.tables)-1]
	}
	if insert(newest, h, key, value) {
		d.bumpTombstones(len(d.tables)-1, -1)
	}
}

// grow allocates a new, larger table sized from the next prime-table
// index and appends it as the newest table. Existing tables are not
// rehashed; lookups simply walk newest-to-oldest.
func (d *Dictionary) grow() {
	d.sizeIndex++
	if d.sizeIndex >= len(primes) {
		d.sizeIndex = len(primes) - 1
	}
	d.tables = append(d.tables, newTable(d.sizeIndex))
}

// insert stores key/value in the first free or tombstoned slot of t's
// probe sequence and reports whether it reused a tombstoned slot.
func insert(t *table, h uint64, key, value []byte) bool {
	n := uint64(len(t.slots))
	start := h % n
	for i := uint64(0); i < n; i++ {
		idx := (start + i) % n
		s := &t.slots[idx]
		if !s.used || s.removed {
			wasTombstone := s.used
			*s = entry{
				hash:  h,
				key:   append([]byte(nil), key...),
				value: append([]byte(nil), value...),
				used:  true,
			}
			if !wasTombstone {
				t.count++
			}
			t.live++
			return wasTombstone
		}
	}
	panic("dictionary: table full, grow() sizing invariant violated")
}

// find probes t for key starting at hash mod tableSize, honoring
// removeFlag, stopping at the first empty (never-used) slot.
func find(t *table, h uint64, key []byte) (int, bool) {
	n := uint64(len(t.slots))
	if n == 0 {
		return 0, false
	}
	start := h % n
	for i := uint64(0); i < n; i++ {
		idx := (start + i) % n
		s := &t.slots[idx]
		if !s.used {
			return 0, false // empty slot: probe chain ends here
		}
		if !s.removed && s.hash == h && bytes.Equal(s.key, key) {
			return int(idx), true
		}
	}
	return 0, false
}

// Get returns the value for key and true, or (nil, false) if absent.
// Newest tables are searched first.
func (d *Dictionary) Get(key []byte) ([]byte, bool) {
	h := hashOf(key)
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.tables) - 1; i >= 0; i-- {
		if idx, ok := find(d.tables[i], h, key); ok {
			v := d.tables[i].slots[idx].value
			out := make([]byte, len(v))
			copy(out, v)
			return out, true
		}
	}
	return nil, false
}

// Contains reports whether key is present.
func (d *Dictionary) Contains(key []byte) bool {
	_, ok := d.Get(key)
	return ok
}

// Remove lazily deletes key: the slot is marked removed but not
// reclaimed until Compact runs.
func (d *Dictionary) Remove(key []byte) bool {
	h := hashOf(key)
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.tables) - 1; i >= 0; i-- {
		if idx, ok := find(d.tables[i], h, key); ok {
			d.tables[i].slots[idx].removed = true
			d.tables[i].live--
			d.bumpTombstones(i, 1)
			return true
		}
	}
	return false
}

// Len reports the number of live (non-removed) entries across all
// tables.
func (d *Dictionary) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, t := range d.tables {
		total += t.live
	}
	return total
}

// Iterate calls fn once for every non-removed entry, across all
// tables, in unspecified order. fn must not mutate the dictionary.
func (d *Dictionary) Iterate(fn func(key, value []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tables {
		for i := range t.slots {
			s := &t.slots[i]
			if s.used && !s.removed {
				fn(s.key, s.value)
			}
		}
	}
}

// Compact coalesces the live entries of every table into a single
// fresh table, sized as the smallest prime-table step that holds them
// under the load factor threshold, reclaiming tombstoned slots.
// Concurrent Iterate calls are not safe during Compact; callers must
// provide external coordination per spec §4.4.
func (d *Dictionary) Compact() {
	d.mu.Lock()
	defer d.mu.Unlock()

	totalLive := 0
	for _, t := range d.tables {
		totalLive += t.live
	}

	// A single fresh table must hold every surviving entry under the
	// same load factor threshold a normal Put growth targets; summing
	// several tables' live entries into the newest (largest) table's
	// size alone could overflow it, so recompute the size index from
	// scratch rather than reusing d.sizeIndex.
	sizeIndex := 0
	for sizeIndex < len(primes)-1 && float64(totalLive)/float64(primes[sizeIndex]) > loadFactorThreshold {
		sizeIndex++
	}
	d.sizeIndex = sizeIndex

	fresh := newTable(sizeIndex)
	for _, t := range d.tables {
		for i := range t.slots {
			s := &t.slots[i]
			if s.used && !s.removed {
				insert(fresh, s.hash, s.key, s.value)
			}
		}
	}
	d.tables = []*table{fresh}
	d.tombstones = btree.NewG[tombstoneCount](8, lessByTableIdx)
}
