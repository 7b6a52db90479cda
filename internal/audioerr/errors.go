// Package audioerr defines the error taxonomy shared by the WAV source,
// mixer, sink, and codec packages. Every recoverable failure in the mixing
// engine carries a Kind so callers can branch on it without parsing
// strings; the wrapped cause (when one exists) is kept for logging.
package audioerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a recoverable engine failure.
type Kind int

const (
	// NotFound means the requested asset path does not exist.
	NotFound Kind = iota
	// IoError means a read/write/seek against storage failed.
	IoError
	// MalformedHeader means the RIFF/WAVE/fmt structure did not parse.
	MalformedHeader
	// UnsupportedFormat means the file parsed but uses an audio format,
	// channel count, or bit depth this engine does not accept.
	UnsupportedFormat
	// QueueFull means a bounded ring (command queue or per-channel FIFO)
	// rejected a write because it had no free slot.
	QueueFull
	// ChannelOutOfRange means a channel index was outside [0, N).
	ChannelOutOfRange
	// SinkFault means the output transport failed; fatal at the mixer.
	SinkFault
	// CodecControlFault means a control-bus write to the codec failed;
	// non-fatal, mixing continues.
	CodecControlFault
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case IoError:
		return "IoError"
	case MalformedHeader:
		return "MalformedHeader"
	case UnsupportedFormat:
		return "UnsupportedFormat"
	case QueueFull:
		return "QueueFull"
	case ChannelOutOfRange:
		return "ChannelOutOfRange"
	case SinkFault:
		return "SinkFault"
	case CodecControlFault:
		return "CodecControlFault"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by this module's recoverable
// failure paths. Op identifies the operation that failed (e.g. "wav.Open").
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.err }

// New builds an Error with no underlying cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, err: errors.New(msg)}
}

// Wrap attaches a Kind and Op to an underlying error, preserving it for
// errors.Cause.
func Wrap(kind Kind, op string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, err: errors.Wrap(cause, op)}
}

// Cause returns the deepest wrapped error, as github.com/pkg/errors.Cause
// would, for diagnostics/logging.
func Cause(err error) error {
	return errors.Cause(err)
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
