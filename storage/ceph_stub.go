//go:build !ceph

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

// CephBackend is a stub when Ceph support is not compiled in.
// Build with -tags=ceph to enable it.
type CephBackend struct{}

func init() {
	RegisterBackend("ceph", func() Backend { return &CephBackend{} })
}

func (c *CephBackend) Init(spec *StorageSpecifier) error {
	return ErrNotSupported("ceph", "init (build with -tags=ceph)")
}
func (c *CephBackend) Done() error                     { return nil }
func (c *CephBackend) GetName() string                 { return "ceph://" }
func (c *CephBackend) GetPrintableName() string        { return "ceph://" }
func (c *CephBackend) IsServerAllocationPending() bool { return false }
func (c *CephBackend) Exists(name string) bool         { return false }
func (c *CephBackend) IsFile(name string) bool         { return false }
func (c *CephBackend) IsDirectory(name string) bool    { return false }
func (c *CephBackend) IsReadable(name string) bool     { return false }
func (c *CephBackend) IsWritable(name string) bool     { return false }

func (c *CephBackend) Create(name string, size int64, forceOverwrite bool, mode Mode) (Handle, error) {
	return nil, ErrNotSupported("ceph", "create")
}
func (c *CephBackend) Open(name string) (Handle, error) {
	return nil, ErrNotSupported("ceph", "open")
}
func (c *CephBackend) Delete(name string) error             { return ErrNotSupported("ceph", "delete") }
func (c *CephBackend) Rename(oldName, newName string) error  { return ErrNotSupported("ceph", "rename") }
func (c *CephBackend) MakeDirectory(name string) error       { return ErrNotSupported("ceph", "makeDirectory") }
func (c *CephBackend) GetFileInfo(name string) (FileInfo, error) {
	return FileInfo{}, ErrNotSupported("ceph", "getFileInfo")
}
func (c *CephBackend) OpenDirectoryList(name string) (DirectoryList, error) {
	return nil, ErrNotSupported("ceph", "openDirectoryList")
}
func (c *CephBackend) PreProcess(template, file, directory string, number int) error {
	return ErrNotSupported("ceph", "preProcess")
}
func (c *CephBackend) PostProcess(template, file, directory string, number int) error {
	return ErrNotSupported("ceph", "postProcess")
}
