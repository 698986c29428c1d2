// Package fserr provides the structured error taxonomy shared by the
// remote client, the cache engine, and the filesystem adapters.
package fserr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the VFS adapter can map it to the
// platform's errno convention without inspecting error strings.
type Kind int

const (
	// KindNotFound means the remote reported the path absent (HTTP 404).
	KindNotFound Kind = iota

	// KindUnreachable means the remote could not be contacted: connection
	// failure or timeout, after the single retry.
	KindUnreachable

	// KindProtocol means the remote answered with an unexpected status or
	// a payload that could not be decoded.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnreachable:
		return "unreachable"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is a classified failure with operation context.
type Error struct {
	Kind Kind
	Op   string // "list", "stat", "read"
	Path string // remote path, "" for the root
	Err  error  // underlying cause, may be nil

	// Timeout distinguishes deadline expiry from connection refusal for
	// KindUnreachable; the adapters map the former to ETIMEDOUT.
	Timeout bool
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %q: %s", e.Op, e.Path, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two errors by Kind, so sentinel comparisons like
// errors.Is(err, fserr.NotFound("", "")) work across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NotFound reports the remote answered 404 for path.
func NotFound(op, path string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Path: path}
}

// Unreachable reports a connection or timeout failure after retry.
func Unreachable(op, path string, timeout bool, cause error) *Error {
	return &Error{Kind: KindUnreachable, Op: op, Path: path, Timeout: timeout, Err: cause}
}

// Protocol reports a malformed or unexpected remote response.
func Protocol(op, path string, cause error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Path: path, Err: cause}
}

// KindOf returns the Kind of err, or KindProtocol for errors that did not
// originate in this taxonomy (they are still I/O failures to the caller).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProtocol
}

// IsNotFound reports whether err carries KindNotFound.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNotFound
}

// IsUnreachable reports whether err carries KindUnreachable.
func IsUnreachable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindUnreachable
}

// IsTimeout reports whether err is an unreachable failure caused by a
// deadline rather than a refused or dropped connection.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindUnreachable && e.Timeout
}
