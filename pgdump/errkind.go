package pgdump

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrKind classifies a decode failure so callers know how far to unwind.
type ErrKind int

const (
	// AlignmentFailure means fewer bytes remained than the padding an
	// aligned read required.
	AlignmentFailure ErrKind = iota
	// ShortInput means fewer bytes remained than a field's declared length.
	ShortInput
	// FormatInvalid means a header did not match any recognized shape.
	FormatInvalid
	// DecompressionFailed means PGLZ/LZ4/ZSTD rejected its input.
	DecompressionFailed
	// AssemblyFailed means a TOAST value could not be fully reassembled.
	AssemblyFailed
	// MemoryExhausted means an unbounded growth path was asked to exceed
	// its configured workspace limit.
	MemoryExhausted
)

func (k ErrKind) String() string {
	switch k {
	case AlignmentFailure:
		return "AlignmentFailure"
	case ShortInput:
		return "ShortInput"
	case FormatInvalid:
		return "FormatInvalid"
	case DecompressionFailed:
		return "DecompressionFailed"
	case AssemblyFailed:
		return "AssemblyFailed"
	case MemoryExhausted:
		return "MemoryExhausted"
	default:
		return fmt.Sprintf("ErrKind(%d)", int(k))
	}
}

// DecodeError pairs an ErrKind with its cause. It replaces the "NoWayOut"
// sentinel string the original decoder used to signal failure from deep
// in the call tree.
type DecodeError struct {
	Kind  ErrKind
	cause error
}

func newErr(kind ErrKind, msg string) *DecodeError {
	return &DecodeError{Kind: kind, cause: errors.New(msg)}
}

func wrapErr(kind ErrKind, cause error, msg string) *DecodeError {
	return &DecodeError{Kind: kind, cause: errors.Wrap(cause, msg)}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.cause)
}

func (e *DecodeError) Unwrap() error { return e.cause }

// KindOf extracts the ErrKind from err, if err (or something it wraps) is
// a *DecodeError. The second return is false for any other error.
func KindOf(err error) (ErrKind, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}
