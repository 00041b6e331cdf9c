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

// Package continuous implements the continuous-change watcher (C9): a
// small embedded database of (jobUUID, scheduleUUID, name) change
// rows, a dynamic watch registry mapping filesystem subtrees to the
// jobs/schedules subscribed to them, and a platform notify backend
// that feeds the registry.
//
// Grounded on original_source/bar/bar/continuous.c (CONTINUOUS_TABLE_DEFINITION,
// the INIT/DONE worker protocol, markNotifies/cleanNotifies/removeNotifies)
// and spec.md §4.8/§6. The relational schema is modeled as bbolt
// buckets (go.etcd.io/bbolt, sourced from moby-moby/daemon's go.mod
// per SPEC_FULL.md §3) with the `UNIQUE(jobUUID,name)` constraint from
// the original's CREATE TABLE enforced via a secondary index bucket,
// and a `(jobUUID,scheduleUUID,id)` index bucket that gives listNext
// its per-job/schedule scan in insertion order.
package continuous

import (
	"encoding/binary"
	"encoding/json"
	"os"

	"go.etcd.io/bbolt"

	"github.com/launix-de/bar/barerr"
)

const schemaVersion = 1

var (
	bucketMeta        = []byte("meta")
	bucketNames       = []byte("names")
	bucketUniqueIndex = []byte("names_unique")   // jobUUID\x00name -> id
	bucketJobSchedule = []byte("names_by_job_sc") // jobUUID\x00scheduleUUID\x00id(be64) -> nil
)

// Row is one change record: original_source's "names" row plus the
// storedFlag supplement from SPEC_FULL.md §5.4 distinguishing
// "observed" from "claimed by an in-progress incremental backup".
type Row struct {
	ID           uint64 `json:"id"`
	JobUUID      string `json:"jobUUID"`
	ScheduleUUID string `json:"scheduleUUID"`
	Name         string `json:"name"`
	Stored       bool   `json:"stored"`
}

// DB is the continuous-watcher's embedded store.
type DB struct {
	bolt *bbolt.DB
	path string
}

// OpenDB opens (creating if necessary) the watcher database at path. A
// schema version mismatch discards and recreates the store per
// spec.md §4.8.
func OpenDB(path string) (*DB, error) {
	bolt, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, barerr.Wrap(barerr.KindIO, "open continuous db", path, err)
	}

	needsRecreate := false
	err = bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil // fresh file, no recreate needed, just create buckets below
		}
		v := b.Get([]byte("version"))
		if v == nil || binary.BigEndian.Uint64(padTo8(v)) != schemaVersion {
			needsRecreate = true
		}
		return nil
	})
	if err != nil {
		bolt.Close()
		return nil, barerr.Wrap(barerr.KindIO, "inspect continuous db", path, err)
	}

	if needsRecreate {
		bolt.Close()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, barerr.Wrap(barerr.KindIO, "discard stale continuous db", path, err)
		}
		bolt, err = bbolt.Open(path, 0600, nil)
		if err != nil {
			return nil, barerr.Wrap(barerr.KindIO, "recreate continuous db", path, err)
		}
	}

	err = bolt.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketNames, bucketUniqueIndex, bucketJobSchedule} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], schemaVersion)
		return meta.Put([]byte("version"), buf[:])
	})
	if err != nil {
		bolt.Close()
		return nil, barerr.Wrap(barerr.KindIO, "initialize continuous db schema", path, err)
	}

	return &DB{bolt: bolt, path: path}, nil
}

// Close closes the underlying store.
func (d *DB) Close() error {
	return d.bolt.Close()
}

func padTo8(b []byte) []byte {
	if len(b) >= 8 {
		return b[:8]
	}
	var out [8]byte
	copy(out[8-len(b):], b)
	return out[:]
}

func uniqueKey(jobUUID, name string) []byte {
	return []byte(jobUUID + "\x00" + name)
}

func jobScheduleKey(jobUUID, scheduleUUID string, id uint64) []byte {
	k := []byte(jobUUID + "\x00" + scheduleUUID + "\x00")
	var idb [8]byte
	binary.BigEndian.PutUint64(idb[:], id)
	return append(k, idb[:]...)
}

func jobSchedulePrefix(jobUUID, scheduleUUID string) []byte {
	return []byte(jobUUID + "\x00" + scheduleUUID + "\x00")
}

func idKey(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

// InsertChange inserts a change row for (jobUUID, scheduleUUID, name),
// following original_source's "INSERT OR IGNORE" on the (jobUUID,name)
// unique key exactly: a second schedule observing the same job+name
// combination is silently deduplicated, matching the original schema's
// literal UNIQUE(jobUUID,name) constraint (spec.md §6). Returns
// whether a row was actually inserted.
func (d *DB) InsertChange(jobUUID, scheduleUUID, name string) (bool, error) {
	inserted := false
	err := d.bolt.Update(func(tx *bbolt.Tx) error {
		uniq := tx.Bucket(bucketUniqueIndex)
		uk := uniqueKey(jobUUID, name)
		if uniq.Get(uk) != nil {
			return nil // already present: IGNORE
		}

		namesBucket := tx.Bucket(bucketNames)
		seq, err := namesBucket.NextSequence()
		if err != nil {
			return err
		}
		row := Row{ID: seq, JobUUID: jobUUID, ScheduleUUID: scheduleUUID, Name: name}
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if err := namesBucket.Put(idKey(seq), data); err != nil {
			return err
		}
		if err := uniq.Put(uk, idKey(seq)); err != nil {
			return err
		}
		js := tx.Bucket(bucketJobSchedule)
		if err := js.Put(jobScheduleKey(jobUUID, scheduleUUID, seq), nil); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, barerr.Wrap(barerr.KindIO, "insert continuous change", name, err)
	}
	return inserted, nil
}

// ListNext atomically reads and deletes the oldest pending change row
// for (jobUUID, scheduleUUID), per spec.md §4.8 Enumeration. Returns
// ok=false when there is none.
func (d *DB) ListNext(jobUUID, scheduleUUID string) (path string, ok bool, err error) {
	txErr := d.bolt.Update(func(tx *bbolt.Tx) error {
		js := tx.Bucket(bucketJobSchedule)
		prefix := jobSchedulePrefix(jobUUID, scheduleUUID)
		c := js.Cursor()
		k, _ := c.Seek(prefix)
		if k == nil || !hasPrefix(k, prefix) {
			return nil
		}
		id := binary.BigEndian.Uint64(k[len(prefix):])

		namesBucket := tx.Bucket(bucketNames)
		data := namesBucket.Get(idKey(id))
		if data == nil {
			// index/row mismatch: drop the stale index entry and report none
			return js.Delete(k)
		}
		var row Row
		if jerr := json.Unmarshal(data, &row); jerr != nil {
			return jerr
		}

		if derr := namesBucket.Delete(idKey(id)); derr != nil {
			return derr
		}
		if derr := tx.Bucket(bucketUniqueIndex).Delete(uniqueKey(row.JobUUID, row.Name)); derr != nil {
			return derr
		}
		if derr := js.Delete(k); derr != nil {
			return derr
		}

		path = row.Name
		ok = true
		return nil
	})
	if txErr != nil {
		return "", false, barerr.Wrap(barerr.KindIO, "list next continuous change", jobUUID, txErr)
	}
	return path, ok, nil
}

// MarkStored sets the storedFlag supplement (SPEC_FULL.md §5.4) on a
// row without deleting it, so a crashed-and-resumed backup can
// distinguish rows it had already claimed.
func (d *DB) MarkStored(id uint64) error {
	err := d.bolt.Update(func(tx *bbolt.Tx) error {
		namesBucket := tx.Bucket(bucketNames)
		data := namesBucket.Get(idKey(id))
		if data == nil {
			return barerr.New(barerr.KindResource, "mark stored", "", "row not found")
		}
		var row Row
		if jerr := json.Unmarshal(data, &row); jerr != nil {
			return jerr
		}
		row.Stored = true
		out, jerr := json.Marshal(row)
		if jerr != nil {
			return jerr
		}
		return namesBucket.Put(idKey(id), out)
	})
	if err != nil {
		return barerr.Wrap(barerr.KindIO, "mark stored", "", err)
	}
	return nil
}

// Pending returns all rows currently queued for (jobUUID,
// scheduleUUID), without consuming them. Used to resume an
// incrementally-interrupted backup: rows with Stored==true were
// already claimed before a crash and should be re-driven first.
func (d *DB) Pending(jobUUID, scheduleUUID string) ([]Row, error) {
	var rows []Row
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		js := tx.Bucket(bucketJobSchedule)
		namesBucket := tx.Bucket(bucketNames)
		prefix := jobSchedulePrefix(jobUUID, scheduleUUID)
		c := js.Cursor()
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			id := binary.BigEndian.Uint64(k[len(prefix):])
			data := namesBucket.Get(idKey(id))
			if data == nil {
				continue
			}
			var row Row
			if err := json.Unmarshal(data, &row); err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, barerr.Wrap(barerr.KindIO, "list pending continuous changes", jobUUID, err)
	}
	return rows, nil
}

// RemoveAll deletes every row matching jobUUID and, if scheduleUUID is
// non-empty, also matching scheduleUUID; an empty scheduleUUID removes
// every schedule's rows for the job, mirroring original_source's
// removeNotifies(jobUUID, scheduleUUID=NULL) wildcard.
func (d *DB) RemoveAll(jobUUID, scheduleUUID string) error {
	err := d.bolt.Update(func(tx *bbolt.Tx) error {
		js := tx.Bucket(bucketJobSchedule)
		namesBucket := tx.Bucket(bucketNames)
		uniq := tx.Bucket(bucketUniqueIndex)

		prefix := []byte(jobUUID + "\x00")
		if scheduleUUID != "" {
			prefix = jobSchedulePrefix(jobUUID, scheduleUUID)
		}

		var toDelete [][]byte
		c := js.Cursor()
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		for _, k := range toDelete {
			rest := k[len(jobUUID)+1:]
			nul := indexByte(rest, 0)
			if nul < 0 {
				continue
			}
			id := binary.BigEndian.Uint64(rest[nul+1:])
			data := namesBucket.Get(idKey(id))
			if data != nil {
				var row Row
				if err := json.Unmarshal(data, &row); err == nil {
					uniq.Delete(uniqueKey(row.JobUUID, row.Name))
				}
				namesBucket.Delete(idKey(id))
			}
			js.Delete(k)
		}
		return nil
	})
	if err != nil {
		return barerr.Wrap(barerr.KindIO, "remove continuous changes", jobUUID, err)
	}
	return nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
