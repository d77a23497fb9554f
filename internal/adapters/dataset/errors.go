package dataset

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrEmptyMerge        = errors.New("merged dataset is empty; check DATE_TIME and SOURCE_KEY alignment")
	ErrUnsupportedDriver = errors.New("unsupported dataset driver")
	ErrInvalidTable      = errors.New("invalid table name")
	ErrBadTimestamp      = errors.New("unrecognised DATE_TIME value")
	ErrBadValue          = errors.New("non-numeric value")
	ErrNoHeader          = errors.New("csv has no header row")
)
