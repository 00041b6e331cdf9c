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

// Package storage implements the back-end dispatch layer (C8):
// StorageSpecifier parsing, the Backend interface every back-end
// implements, a bandwidth limiter, and a server-allocation pool.
// Grounded on the teacher's persistence-*.go files, generalized from a
// column-store persistence engine to a streaming archive back-end.
package storage

import (
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/launix-de/bar/barerr"
)

// Mode selects how create() behaves when the target already exists.
type Mode int

const (
	ModeCreate Mode = iota
	ModeAppend
	ModeOverwrite
)

// StorageSpecifier is the parsed form of a storage URI, e.g.
// "s3://key:secret@bucket/prefix" or "smb://user@host/share/path".
// PrintableName elides the password per spec §6.
type StorageSpecifier struct {
	Scheme   string
	User     string
	Password string
	Host     string
	Port     int
	Path     string
	Raw      string
}

// ParseSpecifier parses a storage URI into a StorageSpecifier.
func ParseSpecifier(raw string) (*StorageSpecifier, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, barerr.Wrap(barerr.KindArgument, "parseSpecifier", raw, err)
	}
	spec := &StorageSpecifier{Scheme: u.Scheme, Host: u.Hostname(), Path: u.Path, Raw: raw}
	if u.User != nil {
		spec.User = u.User.Username()
		spec.Password, _ = u.User.Password()
	}
	if p := u.Port(); p != "" {
		var port int
		for _, c := range p {
			port = port*10 + int(c-'0')
		}
		spec.Port = port
	}
	return spec, nil
}

// Equals reports whether two specifiers address the same target.
func (s *StorageSpecifier) Equals(o *StorageSpecifier) bool {
	return s.Scheme == o.Scheme && s.Host == o.Host && s.Port == o.Port && s.Path == o.Path && s.User == o.User
}

// PrintableName renders the specifier with its password elided.
func (s *StorageSpecifier) PrintableName() string {
	var b strings.Builder
	b.WriteString(s.Scheme)
	b.WriteString("://")
	if s.User != "" {
		b.WriteString(s.User)
		if s.Password != "" {
			b.WriteString(":***")
		}
		b.WriteByte('@')
	}
	b.WriteString(s.Host)
	b.WriteString(s.Path)
	return b.String()
}

// FileInfo mirrors directory-listing metadata per spec §4.7. Fields
// the back-end cannot populate are left zero.
type FileInfo struct {
	Name             string
	IsDir            bool
	Size             int64
	AccessTime       time.Time
	ModificationTime time.Time
	StatusChangeTime time.Time
	OwnerUID         int
	OwnerGID         int
	Permissions      uint32
	DeviceMajor      uint32
	DeviceMinor      uint32
}

// Handle is an open file or directory-list cursor on a back-end.
type Handle interface {
	io.ReadWriteCloser
	Seek(offset int64, whence int) (int64, error)
	Tell() (int64, error)
	GetSize() (int64, error)
}

// DirectoryList iterates entries yielded by openDirectoryList.
type DirectoryList interface {
	// Next advances to the next entry; returns false at end of listing.
	Next() bool
	// Entry returns the current entry's name and FileInfo.
	Entry() (string, FileInfo)
	// Close releases the listing cursor.
	Close() error
}

// Backend is the dispatch table every storage back-end implements
// (spec §4.7). Not every back-end implements every operation;
// unsupported operations return barerr.KindResource with reason
// "not supported".
type Backend interface {
	// Init prepares the back-end for the given specifier (connects,
	// authenticates, etc). Done releases those resources.
	Init(spec *StorageSpecifier) error
	Done() error

	GetName() string
	GetPrintableName() string

	IsServerAllocationPending() bool

	Exists(name string) bool
	IsFile(name string) bool
	IsDirectory(name string) bool
	IsReadable(name string) bool
	IsWritable(name string) bool

	Create(name string, size int64, forceOverwrite bool, mode Mode) (Handle, error)
	Open(name string) (Handle, error)

	Delete(name string) error
	Rename(oldName, newName string) error
	MakeDirectory(name string) error

	GetFileInfo(name string) (FileInfo, error)

	OpenDirectoryList(name string) (DirectoryList, error)

	// PreProcess/PostProcess run a user-supplied shell template with
	// %file/%directory/%number substitutions, at creation, per-chunk
	// completion, and final close.
	PreProcess(template, file, directory string, number int) error
	PostProcess(template, file, directory string, number int) error
}

// ErrNotSupported builds the dedicated "not supported" error every
// back-end returns for operations it cannot perform.
func ErrNotSupported(backend, operation string) error {
	return barerr.New(barerr.KindResource, operation, backend, "not supported by this back-end")
}

// Factory constructs a Backend instance for a scheme ("file", "s3",
// "ceph", "smb", "master").
type Factory func() Backend

var registry = map[string]Factory{}

// RegisterBackend associates a Factory with a URI scheme.
func RegisterBackend(scheme string, f Factory) {
	registry[scheme] = f
}

// NewBackend constructs and initializes the Backend for spec.Scheme.
func NewBackend(spec *StorageSpecifier) (Backend, error) {
	f, ok := registry[spec.Scheme]
	if !ok {
		return nil, barerr.New(barerr.KindArgument, "newBackend", spec.Scheme, "no back-end registered for scheme")
	}
	b := f()
	if err := b.Init(spec); err != nil {
		return nil, err
	}
	return b, nil
}
