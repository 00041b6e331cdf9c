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

// Package barlog is a thin wrapper around the standard logger, kept
// deliberately unadorned in the same style the rest of the core uses
// fmt.Println for progress output.
package barlog

import (
	"fmt"
	"log"
	"os"
	"sync"
)

type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var (
	mu       sync.Mutex
	std      = log.New(os.Stderr, "", log.LstdFlags)
	minLevel = LevelInfo
)

// SetLevel changes the minimum level that gets printed. Safe to call
// concurrently with logging calls.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

func logf(l Level, prefix, format string, args ...interface{}) {
	mu.Lock()
	cur := minLevel
	mu.Unlock()
	if l > cur {
		return
	}
	std.Println(prefix + fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) { logf(LevelError, "ERROR: ", format, args...) }
func Warnf(format string, args ...interface{})  { logf(LevelWarn, "WARN: ", format, args...) }
func Infof(format string, args ...interface{})  { logf(LevelInfo, "", format, args...) }
func Debugf(format string, args ...interface{}) { logf(LevelDebug, "DEBUG: ", format, args...) }
