package index

import (
	"errors"
	"fmt"
)

var (
	// ErrNoGeneration is returned by Acquire before the first successful build.
	ErrNoGeneration = errors.New("no index generation has been built")
	// ErrBuildInProgress is returned when another process holds the write lock.
	ErrBuildInProgress = errors.New("index build already in progress")
	// ErrCorruptSegment marks a segment file that fails validation.
	ErrCorruptSegment = errors.New("corrupt segment")

	errBadCurrent = errors.New("invalid generation name in CURRENT")
)

// IndexError is a build-level or open-level failure. The previously active
// generation, if any, is left untouched.
type IndexError struct {
	Op   string
	Path string
	Err  error
}

func (e *IndexError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("index %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("index %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptSegment, fmt.Sprintf(format, args...))
}
