package stream

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrMalformedMessage = errors.New("malformed reading message")
	ErrNoBrokers        = errors.New("no kafka brokers configured")
)
