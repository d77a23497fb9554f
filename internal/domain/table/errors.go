package table

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrMissingColumn  = errors.New("missing required columns")
	ErrSchemaMismatch = errors.New("feature schema mismatch")
)

// MissingColumnError names the required columns a frame lacks.
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumn, strings.Join(e.Columns, ", "))
}

// Is matches ErrMissingColumn.
func (e *MissingColumnError) Is(target error) bool { return target == ErrMissingColumn }

// SchemaMismatchError reports a column set that differs from the fitted one.
type SchemaMismatchError struct {
	Expected []string
	Got      []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: expected [%s], got [%s]", ErrSchemaMismatch,
		strings.Join(e.Expected, ", "), strings.Join(e.Got, ", "))
}

// Is matches ErrSchemaMismatch.
func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// CheckSchema fails unless got equals expected by name and order.
func CheckSchema(expected, got []string) error {
	if !slices.Equal(expected, got) {
		return &SchemaMismatchError{Expected: slices.Clone(expected), Got: slices.Clone(got)}
	}
	return nil
}

// LengthMismatchError is returned when a column does not match the row count.
type LengthMismatchError struct {
	Column   string
	Expected int
	Got      int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("column %s has %d values, frame has %d rows", e.Column, e.Got, e.Expected)
}
