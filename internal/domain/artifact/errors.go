package artifact

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNotFound           = errors.New("artifact not found")
	ErrCorrupt            = errors.New("artifact is corrupt")
	ErrUnsupportedVersion = errors.New("unsupported artifact version")
	ErrKindMismatch       = errors.New("artifact kind mismatch")
)

// KindMismatchError is returned when a file holds a different component.
type KindMismatchError struct {
	Path     string
	Expected string
	Got      string
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("%s: %s holds %q, want %q", ErrKindMismatch, e.Path, e.Got, e.Expected)
}

// Is matches ErrKindMismatch.
func (e *KindMismatchError) Is(target error) bool { return target == ErrKindMismatch }
