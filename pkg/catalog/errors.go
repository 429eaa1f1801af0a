package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreadable is matched by load failures caused by the filesystem.
	ErrUnreadable = errors.New("catalog unreadable")
	// ErrMalformed is matched by load failures caused by the document content.
	ErrMalformed = errors.New("catalog malformed")
	// ErrUnwritable is matched by every save failure.
	ErrUnwritable = errors.New("catalog unwritable")
)

// LoadErrorKind tells why a catalog could not be loaded.
type LoadErrorKind int

const (
	// Unreadable means the file could not be opened or read.
	Unreadable LoadErrorKind = iota
	// Malformed means the file is not a valid catalog document.
	Malformed
)

func (k LoadErrorKind) String() string {
	switch k {
	case Unreadable:
		return "unreadable"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// LoadError is returned by Load.
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load catalog %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error kind.
func (e *LoadError) Is(target error) bool {
	switch e.Kind {
	case Unreadable:
		return target == ErrUnreadable
	case Malformed:
		return target == ErrMalformed
	}
	return false
}

// SaveError is returned by Save.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save catalog %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// Is matches ErrUnwritable.
func (e *SaveError) Is(target error) bool {
	return target == ErrUnwritable
}

func malformed(path, format string, args ...any) *LoadError {
	return &LoadError{Kind: Malformed, Path: path, Err: fmt.Errorf(format, args...)}
}
