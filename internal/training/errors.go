package training

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNotEnoughData = errors.New("not enough rows to train")
)
