package service

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrInputRejected marks a reading that cleaning filtered out, such as a
	// nighttime reading with zero irradiation. It is an expected outcome, not
	// a pipeline failure.
	ErrInputRejected = errors.New("reading filtered out")
	ErrNoFeatures    = errors.New("feature engineering produced no row")

	// ErrNonFiniteOutput marks a model that produced NaN or Inf.
	ErrNonFiniteOutput = errors.New("model output is not finite")
)
