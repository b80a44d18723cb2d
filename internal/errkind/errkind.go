// Package errkind classifies the failure modes that cross the child/host
// protocol boundary so callers can branch on errors.As instead of string
// matching.
package errkind

import "fmt"

// Kind enumerates the taxonomy of errors this module's protocol layers can
// produce.
type Kind int

const (
	// KindSerialization means a value could not be marshaled to JSON.
	KindSerialization Kind = iota
	// KindClosed means the underlying stream reached end-of-stream.
	KindClosed
	// KindTimeout means a bounded wait elapsed before completion.
	KindTimeout
	// KindWouldBlock means a non-blocking operation could not proceed.
	KindWouldBlock
	// KindUnknownCommand means no handler (and no default) matched a command.
	KindUnknownCommand
	// KindHandler means user-registered code returned or panicked with an error.
	KindHandler
	// KindOS means an OS-level syscall (semaphore, descriptor) failed.
	KindOS
	// KindLoader means the bundle loader could not resolve or execute a module.
	KindLoader
)

func (k Kind) String() string {
	switch k {
	case KindSerialization:
		return "serialization"
	case KindClosed:
		return "closed"
	case KindTimeout:
		return "timeout"
	case KindWouldBlock:
		return "would_block"
	case KindUnknownCommand:
		return "unknown_command"
	case KindHandler:
		return "handler"
	case KindOS:
		return "os"
	case KindLoader:
		return "loader"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind so callers can use errors.As.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error with the given kind, operation label, and cause.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Kind == kind
}
