package loadtest

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	DefaultInvalidShare  = 0.1
	DefaultRepeats       = 20
	ProgressInterval     = time.Second
	PercentageMultiplier = 100
	directoryPermission  = 0o750
	logFilePermission    = 0o600
)

// Endpoint paths on the predictor.
const (
	pathPredict = "/predict/solar"
	pathHealth  = "/health"
	pathStats   = "/stats"
)
