package preprocess

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrEmptyResult is returned when cleaning removes every row. For a single
	// inference reading this is a declined prediction, not a failure.
	ErrEmptyResult = errors.New("all rows removed during preprocessing")
	ErrNotFitted   = errors.New("scaler has no fitted columns")
	ErrNoRows      = errors.New("cannot fit scaler on zero rows")
	ErrNonFinite   = errors.New("feature value is not finite")
)
