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

//go:build linux

package continuous

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// waitFor polls cond every 20ms for up to 2s, for the kernel-driven
// event propagation this package's workers depend on.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestInitNotifyThenCreateFileYieldsListNext(t *testing.T) {
	dir := t.TempDir()
	watchDir := filepath.Join(dir, "w")
	if err := os.Mkdir(watchDir, 0755); err != nil {
		t.Fatal(err)
	}

	w, err := Open(filepath.Join(dir, "continuous.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.InitNotify(watchDir, "job1", "sched1", []string{filepath.Join(watchDir, "*")})

	if err := os.WriteFile(filepath.Join(watchDir, "f"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	var path string
	var ok bool
	waitFor(t, func() bool {
		path, ok, err = w.ListNext("job1", "sched1")
		return ok
	}, "expected listNext to eventually yield the created file")

	if filepath.Base(path) != "f" {
		t.Fatalf("expected file named f, got %q", path)
	}

	if _, ok, _ := w.ListNext("job1", "sched1"); ok {
		t.Fatal("expected no further pending entries immediately after")
	}
}

func TestDoneNotifyStopsFurtherRows(t *testing.T) {
	dir := t.TempDir()
	watchDir := filepath.Join(dir, "w")
	os.Mkdir(watchDir, 0755)

	w, err := Open(filepath.Join(dir, "continuous.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.InitNotify(watchDir, "job1", "sched1", []string{filepath.Join(watchDir, "*")})
	os.WriteFile(filepath.Join(watchDir, "f1"), []byte("x"), 0644)
	waitFor(t, func() bool {
		_, ok, _ := w.ListNext("job1", "sched1")
		return ok
	}, "expected first file to register before done-notify")

	w.DoneNotify("job1", "sched1")
	time.Sleep(100 * time.Millisecond) // let the DONE message drain

	os.WriteFile(filepath.Join(watchDir, "f2"), []byte("y"), 0644)
	time.Sleep(200 * time.Millisecond)

	if _, ok, _ := w.ListNext("job1", "sched1"); ok {
		t.Fatal("expected no rows after doneNotify")
	}
}

func TestSubdirectoryExtendsAndDeletionDropsWatches(t *testing.T) {
	dir := t.TempDir()
	watchDir := filepath.Join(dir, "w")
	os.Mkdir(watchDir, 0755)

	w, err := Open(filepath.Join(dir, "continuous.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.InitNotify(watchDir, "job1", "sched1", []string{filepath.Join(watchDir, "*")})
	time.Sleep(100 * time.Millisecond)

	subdir := filepath.Join(watchDir, "sub")
	if err := os.Mkdir(subdir, 0755); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		w.mu.Lock()
		_, ok := w.byPath[subdir]
		w.mu.Unlock()
		return ok
	}, "expected subdirectory to be watched after creation")

	if err := os.RemoveAll(subdir); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		w.mu.Lock()
		_, ok := w.byPath[subdir]
		w.mu.Unlock()
		return !ok
	}, "expected subdirectory watch to be dropped after removal")
}
