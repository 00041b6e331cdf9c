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

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newFileBackend(t *testing.T) *FileBackend {
	t.Helper()
	dir := t.TempDir()
	b := &FileBackend{}
	if err := b.Init(&StorageSpecifier{Path: dir}); err != nil {
		t.Fatalf("init: %v", err)
	}
	return b
}

func TestFileBackendCreateWriteRead(t *testing.T) {
	b := newFileBackend(t)

	h, err := b.Create("archive.bar", 0, false, ModeCreate)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.Write([]byte("hello world")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !b.Exists("archive.bar") {
		t.Fatalf("expected file to exist")
	}
	if !b.IsFile("archive.bar") {
		t.Fatalf("expected archive.bar to be a file")
	}

	rh, err := b.Open("archive.bar")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rh.Close()
	data, err := io.ReadAll(rh)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("got %q", data)
	}
}

func TestFileBackendCreateRefusesOverwriteWithoutForce(t *testing.T) {
	b := newFileBackend(t)

	h, _ := b.Create("x", 0, false, ModeCreate)
	h.Write([]byte("a"))
	h.Close()

	if _, err := b.Create("x", 0, false, ModeCreate); err == nil {
		t.Fatalf("expected error on re-create without force")
	}
	if _, err := b.Create("x", 0, true, ModeCreate); err != nil {
		t.Fatalf("expected forced overwrite to succeed: %v", err)
	}
}

func TestFileBackendDeleteAndRename(t *testing.T) {
	b := newFileBackend(t)
	h, _ := b.Create("a", 0, false, ModeCreate)
	h.Close()

	if err := b.Rename("a", "b"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if b.Exists("a") || !b.Exists("b") {
		t.Fatalf("rename did not move file")
	}
	if err := b.Delete("b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if b.Exists("b") {
		t.Fatalf("expected b to be gone after delete")
	}
}

func TestFileBackendMakeDirectoryAndList(t *testing.T) {
	b := newFileBackend(t)
	if err := b.MakeDirectory("sub"); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	h, _ := b.Create(filepath.Join("sub", "one"), 0, false, ModeCreate)
	h.Close()
	h2, _ := b.Create(filepath.Join("sub", "two"), 0, false, ModeCreate)
	h2.Close()

	list, err := b.OpenDirectoryList("sub")
	if err != nil {
		t.Fatalf("openDirectoryList: %v", err)
	}
	defer list.Close()

	names := map[string]bool{}
	for list.Next() {
		name, _ := list.Entry()
		names[name] = true
	}
	if !names["one"] || !names["two"] {
		t.Fatalf("expected one and two, got %v", names)
	}
}

func TestFileBackendGetFileInfo(t *testing.T) {
	b := newFileBackend(t)
	h, _ := b.Create("info", 0, false, ModeCreate)
	h.Write([]byte("12345"))
	h.Close()

	info, err := b.GetFileInfo("info")
	if err != nil {
		t.Fatalf("getFileInfo: %v", err)
	}
	if info.Size != 5 {
		t.Fatalf("expected size 5, got %d", info.Size)
	}
	if info.IsDir {
		t.Fatalf("expected file, not directory")
	}
}

func TestFileBackendAppendMode(t *testing.T) {
	b := newFileBackend(t)
	h, _ := b.Create("log", 0, false, ModeCreate)
	h.Write([]byte("first"))
	h.Close()

	h2, err := b.Create("log", 0, true, ModeAppend)
	if err != nil {
		t.Fatalf("create append: %v", err)
	}
	h2.Write([]byte("second"))
	h2.Close()

	rh, _ := b.Open("log")
	defer rh.Close()
	data, _ := io.ReadAll(rh)
	if string(data) != "firstsecond" {
		t.Fatalf("got %q", data)
	}
}

func TestFileBackendHandleSeek(t *testing.T) {
	b := newFileBackend(t)
	h, _ := b.Create("seek", 0, false, ModeCreate)
	h.Write([]byte("0123456789"))
	h.Close()

	rh, _ := b.Open("seek")
	defer rh.Close()
	if _, err := rh.Seek(5, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	buf := make([]byte, 5)
	if _, err := rh.Read(buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "56789" {
		t.Fatalf("got %q", buf)
	}
}

func TestRunTemplateSubstitutesPlaceholders(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "marker")
	err := runTemplate("touch %file", out, dir, 1)
	if err != nil {
		t.Fatalf("runTemplate: %v", err)
	}
	if _, statErr := os.Stat(out); statErr != nil {
		t.Fatalf("expected marker file to be created: %v", statErr)
	}
}

func TestRunTemplateEmptyIsNoOp(t *testing.T) {
	if err := runTemplate("", "x", "y", 0); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
