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

// Package barerr defines the error-kind taxonomy shared by every
// component of the archiver core, so callers can branch on what went
// wrong without parsing message text.
package barerr

import "fmt"

// Kind classifies a recoverable error. Programmer errors never show up
// here; they panic instead (see the autofree and semaphore packages).
type Kind int

const (
	// KindArgument is an unknown option, bad value, or out-of-range value.
	KindArgument Kind = iota
	// KindResource is out of memory, too many connections, file exists, file not found, not a directory.
	KindResource
	// KindAuthentication is a missing or rejected credential.
	KindAuthentication
	// KindIO is a read/write/seek/network/codec failure.
	KindIO
	// KindProtocol is a malformed RPC reply or missing field.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "argument"
	case KindResource:
		return "resource"
	case KindAuthentication:
		return "authentication"
	case KindIO:
		return "i/o"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is the one-line, user-visible error shape required by spec §7:
// operation, affected object, and a short reason. Passwords must never
// be put into Object or Reason.
type Error struct {
	Kind      Kind
	Operation string // e.g. "open", "write", "parse option"
	Object    string // option name, file path, host - never a password
	Reason    string
	Cause     error
}

func New(kind Kind, operation, object, reason string) *Error {
	return &Error{Kind: kind, Operation: operation, Object: object, Reason: reason}
}

func Wrap(kind Kind, operation, object string, cause error) *Error {
	return &Error{Kind: kind, Operation: operation, Object: object, Reason: cause.Error(), Cause: cause}
}

func (e *Error) Error() string {
	if e.Object == "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s: %s %q: %s", e.Kind, e.Operation, e.Object, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err carries the given Kind, looking through wraps.
func Is(err error, kind Kind) bool {
	for err != nil {
		if be, ok := err.(*Error); ok {
			return be.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
