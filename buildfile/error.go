// Package buildfile defines the error taxonomy shared by cache, builddirs,
// simpleops, and engine: a closed set of error Kinds, distinct from the Go
// types used to represent them, wrapped with github.com/pkg/errors so a
// Cause() chain still reaches the underlying I/O error when there is one.
package buildfile

import "github.com/pkg/errors"

// Kind is the closed taxonomy of error conditions this module raises. It is
// a classification, not a Go type hierarchy: every Kind is carried by the
// single *Error type below.
type Kind int

// The error kinds named in the specification's error-handling design.
const (
	// KindBadArg indicates an argument has an inadmissible shape or a value
	// that is not JSON-representable.
	KindBadArg Kind = iota
	// KindDuplicateBuild indicates the same file was built twice in one
	// build.
	KindDuplicateBuild
	// KindDuplicateSubbuild indicates the same subbuild function was called
	// with equal arguments twice in one build.
	KindDuplicateSubbuild
	// KindCacheFileConflict indicates an attempt to build the cache file
	// itself, or to use it as a directory component.
	KindCacheFileConflict
	// KindIsADirectory indicates a path used as a regular file is actually a
	// directory.
	KindIsADirectory
	// KindNotADirectory indicates a path used as a directory is actually a
	// regular file.
	KindNotADirectory
	// KindFileNotFound indicates a path does not exist in the virtual view.
	KindFileNotFound
	// KindDidNotCreate indicates a build-file function returned without
	// producing its output file.
	KindDidNotCreate
	// KindCacheFormat indicates the cache file is unreadable, corrupted, or
	// version-mismatched.
	KindCacheFormat
	// KindOSError is a pass-through for lower-level I/O failures.
	KindOSError
	// KindUserRaised wraps an error raised by a user-supplied build-file
	// function. Errors from subbuild and root functions are returned as they
	// are, without this wrapper.
	KindUserRaised
)

func (k Kind) String() string {
	switch k {
	case KindBadArg:
		return "BadArg"
	case KindDuplicateBuild:
		return "DuplicateBuild"
	case KindDuplicateSubbuild:
		return "DuplicateSubbuild"
	case KindCacheFileConflict:
		return "CacheFileConflict"
	case KindIsADirectory:
		return "IsADirectory"
	case KindNotADirectory:
		return "NotADirectory"
	case KindFileNotFound:
		return "FileNotFound"
	case KindDidNotCreate:
		return "DidNotCreate"
	case KindCacheFormat:
		return "CacheFormat"
	case KindOSError:
		return "OSError"
	case KindUserRaised:
		return "UserRaised"
	default:
		return "Unknown"
	}
}

// Error is the single error type this module raises outside of a user
// function's own panics/errors. Kind classifies the condition; Cause, when
// non-nil, is the underlying error (e.g. an *os.PathError).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

// Unwrap allows errors.Is/errors.As and github.com/pkg/errors's Cause walk
// to reach the wrapped error.
func (e *Error) Unwrap() error { return e.Cause }

// New constructs a *Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a *Error of the given kind wrapping cause, attaching
// message as additional context via github.com/pkg/errors.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: errors.Wrap(cause, message)}
}

// Is reports whether err is a *Error of the given kind, looking through any
// wrapping.
func Is(err error, kind Kind) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	return be.Kind == kind
}
