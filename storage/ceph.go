//go:build ceph

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
	"io"
	"strings"
	"sync"

	"github.com/ceph/go-ceph/rados"
	"github.com/launix-de/bar/barerr"
)

func init() {
	RegisterBackend("ceph", func() Backend { return &CephBackend{} })
}

// CephBackend stores archive objects directly in a RADOS pool, one
// object per name under a prefix. Grounded on the teacher's
// CephStorage, generalized from shard/column object naming to
// arbitrary archive-relative names.
type CephBackend struct {
	spec   *StorageSpecifier
	pool   string
	prefix string

	mu    sync.Mutex
	conn  *rados.Conn
	ioctx *rados.IOContext
}

func (c *CephBackend) Init(spec *StorageSpecifier) error {
	c.spec = spec
	c.pool = spec.Host
	c.prefix = strings.TrimPrefix(spec.Path, "/")

	conn, err := rados.NewConnWithUser(spec.User)
	if err != nil {
		return barerr.Wrap(barerr.KindAuthentication, "init", spec.PrintableName(), err)
	}
	if err := conn.ReadDefaultConfigFile(); err != nil {
		return barerr.Wrap(barerr.KindIO, "init", spec.PrintableName(), err)
	}
	if err := conn.Connect(); err != nil {
		return barerr.Wrap(barerr.KindIO, "init", spec.PrintableName(), err)
	}
	ioctx, err := conn.OpenIOContext(c.pool)
	if err != nil {
		conn.Shutdown()
		return barerr.Wrap(barerr.KindIO, "init", spec.PrintableName(), err)
	}
	c.conn = conn
	c.ioctx = ioctx
	return nil
}

func (c *CephBackend) Done() error {
	if c.ioctx != nil {
		c.ioctx.Destroy()
	}
	if c.conn != nil {
		c.conn.Shutdown()
	}
	return nil
}

func (c *CephBackend) GetName() string          { return "ceph://" + c.pool + "/" + c.prefix }
func (c *CephBackend) GetPrintableName() string { return c.spec.PrintableName() }

func (c *CephBackend) IsServerAllocationPending() bool { return false }

func (c *CephBackend) obj(name string) string {
	if c.prefix == "" {
		return name
	}
	return c.prefix + "/" + name
}

func (c *CephBackend) Exists(name string) bool {
	_, err := c.ioctx.Stat(c.obj(name))
	return err == nil
}

func (c *CephBackend) IsFile(name string) bool      { return c.Exists(name) }
func (c *CephBackend) IsDirectory(name string) bool { return false }
func (c *CephBackend) IsReadable(name string) bool  { return c.Exists(name) }
func (c *CephBackend) IsWritable(name string) bool  { return true }

func (c *CephBackend) Create(name string, size int64, forceOverwrite bool, mode Mode) (Handle, error) {
	if c.Exists(name) && mode == ModeCreate && !forceOverwrite {
		return nil, barerr.New(barerr.KindResource, "create", name, "file exists")
	}
	oid := c.obj(name)
	h := &cephHandle{ioctx: c.ioctx, obj: oid}
	if mode != ModeAppend {
		c.ioctx.Truncate(oid, 0)
	} else if size, err := h.GetSize(); err == nil {
		h.pos = size
	}
	return h, nil
}

func (c *CephBackend) Open(name string) (Handle, error) {
	if !c.Exists(name) {
		return nil, barerr.New(barerr.KindResource, "open", name, "not found")
	}
	return &cephHandle{ioctx: c.ioctx, obj: c.obj(name)}, nil
}

func (c *CephBackend) Delete(name string) error {
	if err := c.ioctx.Delete(c.obj(name)); err != nil {
		return barerr.Wrap(barerr.KindIO, "delete", name, err)
	}
	return nil
}

func (c *CephBackend) Rename(oldName, newName string) error {
	return ErrNotSupported("ceph", "rename")
}

func (c *CephBackend) MakeDirectory(name string) error { return nil }

func (c *CephBackend) GetFileInfo(name string) (FileInfo, error) {
	stat, err := c.ioctx.Stat(c.obj(name))
	if err != nil {
		return FileInfo{}, barerr.Wrap(barerr.KindIO, "getFileInfo", name, err)
	}
	return FileInfo{Name: name, Size: int64(stat.Size), ModificationTime: stat.ModTime}, nil
}

func (c *CephBackend) OpenDirectoryList(name string) (DirectoryList, error) {
	return nil, ErrNotSupported("ceph", "openDirectoryList")
}

func (c *CephBackend) PreProcess(template, file, directory string, number int) error {
	return runTemplate(template, file, directory, number)
}

func (c *CephBackend) PostProcess(template, file, directory string, number int) error {
	return runTemplate(template, file, directory, number)
}

type cephHandle struct {
	ioctx *rados.IOContext
	obj   string
	pos   int64
}

func (h *cephHandle) Read(p []byte) (int, error) {
	n, err := h.ioctx.Read(h.obj, p, uint64(h.pos))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	h.pos += int64(n)
	return n, nil
}

func (h *cephHandle) Write(p []byte) (int, error) {
	if err := h.ioctx.Write(h.obj, p, uint64(h.pos)); err != nil {
		return 0, err
	}
	h.pos += int64(len(p))
	return len(p), nil
}

func (h *cephHandle) Close() error { return nil }

func (h *cephHandle) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		h.pos = offset
	case io.SeekCurrent:
		h.pos += offset
	case io.SeekEnd:
		size, err := h.GetSize()
		if err != nil {
			return 0, err
		}
		h.pos = size + offset
	}
	return h.pos, nil
}

func (h *cephHandle) Tell() (int64, error) { return h.pos, nil }

func (h *cephHandle) GetSize() (int64, error) {
	stat, err := h.ioctx.Stat(h.obj)
	if err != nil {
		return 0, err
	}
	return int64(stat.Size), nil
}
