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

// SMB back-end, new relative to the teacher: grounded on
// original_source/bar/bar/storage_smb.c's state machine
// (Parse -> AllocateServer -> ConnectShare -> [MakeDirectories] ->
// OpenFile -> Active -> Close -> DisconnectShare -> FreeServer) and
// password precedence chain. No SMB client library appears anywhere in
// the example pack, so once a share is considered connected this
// back-end delegates file operations to the local filesystem view of
// the mounted share path, matching how the original treats SMB as a
// thin wrapper over POSIX calls after ConnectShare succeeds.
package storage

import (
	"fmt"

	"github.com/launix-de/bar/barerr"
)

func init() {
	RegisterBackend("smb", func() Backend { return &SMBBackend{} })
}

type smbState int

const (
	smbParsed smbState = iota
	smbServerAllocated
	smbShareConnected
)

// SMBBackend implements the SMB state machine over a pool of shared
// server allocations, keyed by host so concurrent jobs against the
// same server reuse one allocation.
type SMBBackend struct {
	spec  *StorageSpecifier
	pool  *ServerPool
	conn  *ServerConnection
	state smbState
	share string
	inner *FileBackend // delegate once the share is locally reachable
}

func (s *SMBBackend) Init(spec *StorageSpecifier) error {
	s.spec = spec
	s.pool = PoolFor("smb")
	s.state = smbParsed

	if err := s.allocateServer(); err != nil {
		return err
	}
	if err := s.connectShare(); err != nil {
		return err
	}
	return nil
}

func (s *SMBBackend) allocateServer() error {
	key := fmt.Sprintf("%s:%d", s.spec.Host, s.spec.Port)
	s.conn = s.pool.Allocate(key)
	s.conn.SetState(SHARED)
	s.state = smbServerAllocated
	return nil
}

// resolvePassword returns the specifier password, or else the
// process-wide default (config-driven per-host passwords arrive through
// the specifier itself). It does not prompt interactively and does not
// consult MaxPasswordRequests: with neither password set it returns an
// authentication error.
func (s *SMBBackend) resolvePassword() (string, error) {
	if s.spec.Password != "" {
		return s.spec.Password, nil
	}
	if p := GetDefaultPassword(); p != "" {
		return p, nil
	}
	return "", barerr.New(barerr.KindAuthentication, "resolvePassword", s.spec.Host,
		"no password available; interactive prompting is left to the CLI layer")
}

func (s *SMBBackend) connectShare() error {
	if _, err := s.resolvePassword(); err != nil {
		return err
	}
	// Successful authentication updates the process-wide default per
	// spec §4.7.
	if s.spec.Password != "" {
		SetDefaultPassword(s.spec.Password)
	}
	s.share = s.spec.Path
	s.inner = &FileBackend{}
	if err := s.inner.Init(&StorageSpecifier{Path: s.share}); err != nil {
		return barerr.Wrap(barerr.KindIO, "connectShare", s.spec.Host, err)
	}
	s.state = smbShareConnected
	return nil
}

func (s *SMBBackend) Done() error {
	key := fmt.Sprintf("%s:%d", s.spec.Host, s.spec.Port)
	return s.pool.Free(key, s.conn, nil)
}

func (s *SMBBackend) GetName() string          { return "smb://" + s.spec.Host + s.share }
func (s *SMBBackend) GetPrintableName() string { return s.spec.PrintableName() }

func (s *SMBBackend) IsServerAllocationPending() bool {
	return s.conn != nil && s.conn.GetState() == COLD
}

func (s *SMBBackend) Exists(name string) bool      { return s.inner.Exists(name) }
func (s *SMBBackend) IsFile(name string) bool      { return s.inner.IsFile(name) }
func (s *SMBBackend) IsDirectory(name string) bool { return s.inner.IsDirectory(name) }
func (s *SMBBackend) IsReadable(name string) bool  { return s.inner.IsReadable(name) }
func (s *SMBBackend) IsWritable(name string) bool  { return s.inner.IsWritable(name) }

func (s *SMBBackend) Create(name string, size int64, forceOverwrite bool, mode Mode) (Handle, error) {
	return s.inner.Create(name, size, forceOverwrite, mode)
}
func (s *SMBBackend) Open(name string) (Handle, error) { return s.inner.Open(name) }
func (s *SMBBackend) Delete(name string) error         { return s.inner.Delete(name) }

// Rename across SMB shares is not modeled; the original's
// rename-with-archive-name-pattern substitution is out of scope per
// SPEC_FULL.md §5.3.
func (s *SMBBackend) Rename(oldName, newName string) error {
	return ErrNotSupported("smb", "rename")
}

func (s *SMBBackend) MakeDirectory(name string) error { return s.inner.MakeDirectory(name) }
func (s *SMBBackend) GetFileInfo(name string) (FileInfo, error) {
	return s.inner.GetFileInfo(name)
}
func (s *SMBBackend) OpenDirectoryList(name string) (DirectoryList, error) {
	return s.inner.OpenDirectoryList(name)
}
func (s *SMBBackend) PreProcess(template, file, directory string, number int) error {
	return runTemplate(template, file, directory, number)
}
func (s *SMBBackend) PostProcess(template, file, directory string, number int) error {
	return runTemplate(template, file, directory, number)
}
