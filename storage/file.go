/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

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
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/launix-de/bar/barerr"
)

func init() {
	RegisterBackend("file", func() Backend { return &FileBackend{} })
}

// FileBackend implements Backend directly against the local
// filesystem. Adapted from the teacher's FileStorage; generalized from
// a fixed shard/column naming scheme to arbitrary archive-relative
// names.
type FileBackend struct {
	root string
	lim  *BandwidthLimiter
}

func (f *FileBackend) Init(spec *StorageSpecifier) error {
	f.root = spec.Path
	f.lim = NewBandwidthLimiter(Settings.DefaultBandwidthLimit)
	return nil
}

func (f *FileBackend) Done() error { return nil }

func (f *FileBackend) GetName() string          { return "file://" + f.root }
func (f *FileBackend) GetPrintableName() string { return f.GetName() }

func (f *FileBackend) IsServerAllocationPending() bool { return false }

func (f *FileBackend) resolve(name string) string {
	return filepath.Join(f.root, name)
}

func (f *FileBackend) Exists(name string) bool {
	_, err := os.Stat(f.resolve(name))
	return err == nil
}

func (f *FileBackend) IsFile(name string) bool {
	st, err := os.Stat(f.resolve(name))
	return err == nil && !st.IsDir()
}

func (f *FileBackend) IsDirectory(name string) bool {
	st, err := os.Stat(f.resolve(name))
	return err == nil && st.IsDir()
}

func (f *FileBackend) IsReadable(name string) bool {
	fh, err := os.Open(f.resolve(name))
	if err != nil {
		return false
	}
	fh.Close()
	return true
}

func (f *FileBackend) IsWritable(name string) bool {
	return syscall.Access(f.resolve(name), 2) == nil || !f.Exists(name)
}

func (f *FileBackend) Create(name string, size int64, forceOverwrite bool, mode Mode) (Handle, error) {
	path := f.resolve(name)
	if f.Exists(name) && mode == ModeCreate && !forceOverwrite {
		return nil, barerr.New(barerr.KindResource, "create", name, "file exists")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, barerr.Wrap(barerr.KindIO, "create", name, err)
	}
	flags := os.O_RDWR | os.O_CREATE
	switch mode {
	case ModeAppend:
		flags |= os.O_APPEND
	case ModeOverwrite:
		flags |= os.O_TRUNC
	default:
		if !forceOverwrite {
			flags |= os.O_EXCL
		} else {
			flags |= os.O_TRUNC
		}
	}
	fh, err := os.OpenFile(path, flags, 0640)
	if err != nil {
		return nil, barerr.Wrap(barerr.KindIO, "create", name, err)
	}
	return &fileHandle{f: fh, lim: f.lim}, nil
}

func (f *FileBackend) Open(name string) (Handle, error) {
	fh, err := os.Open(f.resolve(name))
	if err != nil {
		return nil, barerr.Wrap(barerr.KindIO, "open", name, err)
	}
	return &fileHandle{f: fh, lim: f.lim}, nil
}

func (f *FileBackend) Delete(name string) error {
	if err := os.RemoveAll(f.resolve(name)); err != nil {
		return barerr.Wrap(barerr.KindIO, "delete", name, err)
	}
	return nil
}

func (f *FileBackend) Rename(oldName, newName string) error {
	if err := os.Rename(f.resolve(oldName), f.resolve(newName)); err != nil {
		return barerr.Wrap(barerr.KindIO, "rename", oldName, err)
	}
	return nil
}

func (f *FileBackend) MakeDirectory(name string) error {
	if err := os.MkdirAll(f.resolve(name), 0750); err != nil {
		return barerr.Wrap(barerr.KindIO, "makeDirectory", name, err)
	}
	return nil
}

func (f *FileBackend) GetFileInfo(name string) (FileInfo, error) {
	st, err := os.Stat(f.resolve(name))
	if err != nil {
		return FileInfo{}, barerr.Wrap(barerr.KindIO, "getFileInfo", name, err)
	}
	info := FileInfo{
		Name:             filepath.Base(name),
		IsDir:            st.IsDir(),
		Size:             st.Size(),
		ModificationTime: st.ModTime(),
	}
	if sys, ok := st.Sys().(*syscall.Stat_t); ok {
		info.AccessTime = time.Unix(sys.Atim.Sec, sys.Atim.Nsec)
		info.StatusChangeTime = time.Unix(sys.Ctim.Sec, sys.Ctim.Nsec)
		info.OwnerUID = int(sys.Uid)
		info.OwnerGID = int(sys.Gid)
		info.Permissions = uint32(sys.Mode)
		info.DeviceMajor = uint32(sys.Rdev >> 8)
		info.DeviceMinor = uint32(sys.Rdev & 0xff)
	}
	return info, nil
}

func (f *FileBackend) OpenDirectoryList(name string) (DirectoryList, error) {
	entries, err := os.ReadDir(f.resolve(name))
	if err != nil {
		return nil, barerr.Wrap(barerr.KindIO, "openDirectoryList", name, err)
	}
	return &fileDirList{backend: f, base: name, entries: entries, idx: -1}, nil
}

func (f *FileBackend) PreProcess(template, file, directory string, number int) error {
	return runTemplate(template, file, directory, number)
}

func (f *FileBackend) PostProcess(template, file, directory string, number int) error {
	return runTemplate(template, file, directory, number)
}

type fileHandle struct {
	f   *os.File
	lim *BandwidthLimiter
}

func (h *fileHandle) Read(p []byte) (int, error) { return h.f.Read(p) }
func (h *fileHandle) Close() error                { return h.f.Close() }
func (h *fileHandle) Seek(offset int64, whence int) (int64, error) {
	return h.f.Seek(offset, whence)
}
func (h *fileHandle) Tell() (int64, error) { return h.f.Seek(0, 1) }

func (h *fileHandle) GetSize() (int64, error) {
	st, err := h.f.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (h *fileHandle) Write(p []byte) (int, error) {
	n, err := h.f.Write(p)
	if n > 0 && h.lim != nil {
		h.lim.AccountWrite(int64(n))
	}
	return n, err
}

type fileDirList struct {
	backend *FileBackend
	base    string
	entries []os.DirEntry
	idx     int
}

func (d *fileDirList) Next() bool {
	d.idx++
	return d.idx < len(d.entries)
}

func (d *fileDirList) Entry() (string, FileInfo) {
	e := d.entries[d.idx]
	info, _ := d.backend.GetFileInfo(filepath.Join(d.base, e.Name()))
	return e.Name(), info
}

func (d *fileDirList) Close() error { return nil }
