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

package continuous

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/launix-de/bar/barerr"
	"github.com/launix-de/bar/barlog"
	"github.com/launix-de/bar/msgqueue"
)

// Mask bits are a platform-independent projection of the events named
// in spec.md §4.8, regardless of which notify backend supplies them
// (raw inotify on Linux, fsnotify's portable polling elsewhere - see
// notify_linux.go / notify_other.go).
type Mask uint32

const (
	MaskCreate Mask = 1 << iota
	MaskDelete
	MaskDeleteSelf
	MaskModify
	MaskAttrib
	MaskCloseWrite
	MaskMoveSelf
	MaskMovedFrom
	MaskMovedTo
	MaskIsDir
	MaskOverflow
	MaskIgnored
)

// Event is one filesystem notification delivered by a notifier
// backend, resolved to the watch handle that raised it.
type Event struct {
	Wd   int
	Mask Mask
	Name string // base name of the affected entry within the watched directory; empty for self-events
}

// notifier is the platform capability interface spec.md §9 calls for
// ("Specify them via an interface so the watcher can be stubbed out on
// other platforms without changing consumers"). notify_linux.go
// implements it over raw inotify; notify_other.go implements it over
// fsnotify for non-Linux builds.
type notifier interface {
	AddWatch(path string) (int, error)
	RemoveWatch(wd int) error
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

const sentinelNoBackup1 = ".nobackup"
const sentinelNoBackup2 = ".no_backup"

// UUIDPair identifies a (job, schedule) subscription, spec.md §3's
// ContinuousWatch.uuids element.
type UUIDPair struct {
	JobUUID      string
	ScheduleUUID string
}

type uuidEntry struct {
	cleanFlag bool
}

// watchRecord is spec.md §3's ContinuousWatch: one kernel watch plus
// the set of (job, schedule) pairs subscribed to it.
type watchRecord struct {
	wd    int
	path  string
	uuids map[UUIDPair]*uuidEntry
}

type initMsg struct {
	path         string
	jobUUID      string
	scheduleUUID string
	entries      []string // pattern sources, used only to derive non-pattern prefix directories
}

type doneMsg struct {
	jobUUID      string
	scheduleUUID string
}

// Watcher is the continuous-change watcher (C9): a watch registry
// backed by a notify backend, feeding change rows into a DB through a
// two-worker INIT/DONE reconciliation protocol matching
// original_source/bar/bar/continuous.c's message-queue-driven design.
type Watcher struct {
	db       *DB
	notifier notifier

	mu      sync.Mutex
	byWd    map[int]*watchRecord
	byPath  map[string]*watchRecord
	queue   *msgqueue.Queue
	done    chan struct{}
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// Open creates a Watcher backed by the change database at dbPath and
// starts its reconciliation and event-loop workers.
func Open(dbPath string) (*Watcher, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	n, err := newNotifier()
	if err != nil {
		db.Close()
		return nil, barerr.Wrap(barerr.KindResource, "start notify backend", dbPath, err)
	}

	w := &Watcher{
		db:       db,
		notifier: n,
		byWd:     make(map[int]*watchRecord),
		byPath:   make(map[string]*watchRecord),
		queue:    msgqueue.New(0, nil),
		done:     make(chan struct{}),
	}

	w.wg.Add(2)
	go w.reconcileLoop()
	go w.eventLoop()

	return w, nil
}

// InitNotify enqueues an INIT message: the reconciliation worker marks
// prior uuid records for (jobUUID, scheduleUUID) stale, adds watches
// for each entry's pattern-prefix directory and its subtree, and drops
// anything left stale afterward (spec.md §4.8 INIT).
func (w *Watcher) InitNotify(path, jobUUID, scheduleUUID string, patterns []string) {
	w.queue.Put(initMsg{path: path, jobUUID: jobUUID, scheduleUUID: scheduleUUID, entries: patterns})
}

// DoneNotify enqueues a DONE message: every uuid record matching the
// pair is removed and watches whose uuid set becomes empty are
// dropped (spec.md §4.8 DONE).
func (w *Watcher) DoneNotify(jobUUID, scheduleUUID string) {
	w.queue.Put(doneMsg{jobUUID: jobUUID, scheduleUUID: scheduleUUID})
}

// ListNext returns and removes the next pending change for (jobUUID,
// scheduleUUID), or ok=false if there is none (spec.md §4.8
// Enumeration).
func (w *Watcher) ListNext(jobUUID, scheduleUUID string) (path string, ok bool, err error) {
	return w.db.ListNext(jobUUID, scheduleUUID)
}

// Close stops both workers, closes the notify backend, and closes the
// change database.
func (w *Watcher) Close() error {
	w.closeMu.Lock()
	if w.closed {
		w.closeMu.Unlock()
		return nil
	}
	w.closed = true
	w.closeMu.Unlock()

	close(w.done)
	w.queue.SetEndOfMessage()
	_ = w.notifier.Close()
	w.wg.Wait()
	return w.db.Close()
}

func (w *Watcher) reconcileLoop() {
	defer w.wg.Done()
	for {
		msg, ok := w.queue.Get(0)
		if !ok {
			return
		}
		switch m := msg.(type) {
		case initMsg:
			w.handleInit(m)
		case doneMsg:
			w.handleDone(m)
		}
	}
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.notifier.Events():
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.notifier.Errors():
			if !ok {
				continue
			}
			barlog.Warnf("continuous watcher: %v", err)
		}
	}
}

// handleInit implements original_source's markNotifies → addNotifySubDirectories
// → cleanNotifies sequence.
func (w *Watcher) handleInit(m initMsg) {
	pair := UUIDPair{JobUUID: m.jobUUID, ScheduleUUID: m.scheduleUUID}

	w.mu.Lock()
	for _, rec := range w.byPath {
		if e, ok := rec.uuids[pair]; ok {
			e.cleanFlag = true
		}
	}
	w.mu.Unlock()

	for _, pattern := range m.entries {
		dir := patternPrefixDir(pattern)
		if dir == "" {
			dir = m.path
		}
		w.addWatchRecursive(dir, pair)
	}
	if len(m.entries) == 0 {
		w.addWatchRecursive(m.path, pair)
	}

	w.removeStale(pair)
}

func (w *Watcher) handleDone(m doneMsg) {
	pair := UUIDPair{JobUUID: m.jobUUID, ScheduleUUID: m.scheduleUUID}

	w.mu.Lock()
	var emptied []*watchRecord
	for _, rec := range w.byPath {
		if _, ok := rec.uuids[pair]; ok {
			delete(rec.uuids, pair)
			if len(rec.uuids) == 0 {
				emptied = append(emptied, rec)
			}
		}
	}
	w.mu.Unlock()

	for _, rec := range emptied {
		w.dropWatch(rec)
	}

	if err := w.db.RemoveAll(m.jobUUID, m.scheduleUUID); err != nil {
		barlog.Errorf("continuous: remove rows for %s/%s: %v", m.jobUUID, m.scheduleUUID, err)
	}
}

// removeStale drops pair from every watch where it is still marked
// clean-flag-stale (meaning handleInit did not re-confirm it this
// round) and removes watches left with no uuids.
func (w *Watcher) removeStale(pair UUIDPair) {
	w.mu.Lock()
	var emptied []*watchRecord
	for _, rec := range w.byPath {
		if e, ok := rec.uuids[pair]; ok && e.cleanFlag {
			delete(rec.uuids, pair)
			if len(rec.uuids) == 0 {
				emptied = append(emptied, rec)
			}
		}
	}
	w.mu.Unlock()

	for _, rec := range emptied {
		w.dropWatch(rec)
	}
}

// addWatchRecursive adds a watch for dir (creating the record if
// necessary) subscribing pair, clears pair's cleanFlag, and recurses
// into subdirectories, skipping any subtree containing a
// .nobackup/.no_backup sentinel file.
func (w *Watcher) addWatchRecursive(dir string, pair UUIDPair) {
	if hasSentinel(dir) {
		return
	}

	w.mu.Lock()
	rec, ok := w.byPath[dir]
	w.mu.Unlock()

	if !ok {
		wd, err := w.notifier.AddWatch(dir)
		if err != nil {
			// Directory may not exist yet, may have been removed
			// concurrently, or may be unreadable; skip it silently as
			// the original does for ENOENT during subtree walks.
			return
		}
		rec = &watchRecord{wd: wd, path: dir, uuids: make(map[UUIDPair]*uuidEntry)}
		w.mu.Lock()
		w.byWd[wd] = rec
		w.byPath[dir] = rec
		w.mu.Unlock()
	}

	w.mu.Lock()
	e, ok := rec.uuids[pair]
	if !ok {
		e = &uuidEntry{}
		rec.uuids[pair] = e
	}
	e.cleanFlag = false
	w.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, de := range entries {
		if de.IsDir() {
			w.addWatchRecursive(filepath.Join(dir, de.Name()), pair)
		}
	}
}

// removeWatchRecursive drops the watch for dir and every watch whose
// path is dir or a descendant of it, matching an IN_DELETE/IN_MOVED_FROM
// event on a watched directory.
func (w *Watcher) removeWatchRecursive(dir string) {
	w.mu.Lock()
	var toRemove []*watchRecord
	prefix := dir + string(filepath.Separator)
	for p, rec := range w.byPath {
		if p == dir || len(p) > len(prefix) && p[:len(prefix)] == prefix {
			toRemove = append(toRemove, rec)
		}
	}
	w.mu.Unlock()

	for _, rec := range toRemove {
		w.dropWatch(rec)
	}
}

func (w *Watcher) dropWatch(rec *watchRecord) {
	w.mu.Lock()
	delete(w.byWd, rec.wd)
	delete(w.byPath, rec.path)
	w.mu.Unlock()
	_ = w.notifier.RemoveWatch(rec.wd)
}

// handleEvent resolves an inotify-or-equivalent event to its watch
// record and reconciles change rows / dynamic watches per spec.md
// §4.8's event loop rules.
func (w *Watcher) handleEvent(ev Event) {
	w.mu.Lock()
	rec, ok := w.byWd[ev.Wd]
	w.mu.Unlock()
	if !ok {
		return
	}

	path := rec.path
	if ev.Name != "" {
		path = filepath.Join(rec.path, ev.Name)
	}

	w.mu.Lock()
	pairs := make([]UUIDPair, 0, len(rec.uuids))
	for p := range rec.uuids {
		pairs = append(pairs, p)
	}
	w.mu.Unlock()

	if ev.Mask&MaskIsDir != 0 {
		switch {
		case ev.Mask&(MaskCreate|MaskMovedTo) != 0:
			for _, p := range pairs {
				if _, err := w.db.InsertChange(p.JobUUID, p.ScheduleUUID, path); err != nil {
					barlog.Errorf("continuous: insert change for %s: %v", path, err)
				}
				w.addWatchRecursive(path, p)
			}
		case ev.Mask&(MaskDelete|MaskMovedFrom) != 0:
			w.removeWatchRecursive(path)
		default:
			for _, p := range pairs {
				if _, err := w.db.InsertChange(p.JobUUID, p.ScheduleUUID, path); err != nil {
					barlog.Errorf("continuous: insert change for %s: %v", path, err)
				}
			}
		}
		return
	}

	// File events.
	if ev.Mask&(MaskDelete|MaskMovedFrom) != 0 {
		return // no row, per spec.md §4.8
	}
	if ev.Mask&(MaskCreate|MaskModify|MaskCloseWrite|MaskAttrib|MaskMovedTo) != 0 {
		for _, p := range pairs {
			if _, err := w.db.InsertChange(p.JobUUID, p.ScheduleUUID, path); err != nil {
				barlog.Errorf("continuous: insert change for %s: %v", path, err)
			}
		}
	}
}

func hasSentinel(dir string) bool {
	for _, name := range []string{sentinelNoBackup1, sentinelNoBackup2} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// patternPrefixDir extracts the non-pattern (no glob/regex
// metacharacter) leading directory of an include pattern source, per
// spec.md §4.8 INIT: "for each include pattern, extract its
// non-pattern prefix directory".
func patternPrefixDir(pattern string) string {
	metaIdx := -1
	for i, r := range pattern {
		switch r {
		case '*', '?', '[', '(', '^', '$', '+', '{':
			metaIdx = i
		}
		if metaIdx != -1 {
			break
		}
	}
	if metaIdx == -1 {
		return filepath.Dir(pattern)
	}
	prefix := pattern[:metaIdx]
	return filepath.Dir(prefix)
}
