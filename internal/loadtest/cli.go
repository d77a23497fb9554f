package loadtest

import (
	"fmt"
	"os"
	"time"

	"github.com/okian/solara/pkg/logger"
)

// SetupLogging configures logging to the console and a file. An empty
// logFile selects a timestamped name in the working directory.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		logFile = "loadtest_" + time.Now().Format("20060102_150405") + ".log"
	}
	if err := logger.Init(logger.WithFile(logFile)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the load test tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Solar Predictor Load Test
=========================

Submits generated sensor readings to a running predictor, checks every
answer and reports throughput.

Usage:
  go run ./cmd/loadtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -readings int
        Number of readings to generate and submit (default 5000)
  -invalid float
        Share of readings generated out of bounds (default 0.1)
  -repeats int
        Readings resubmitted to check determinism (default 20)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -seed uint
        Generator seed (default 1)
  -output string
        Write the generated readings to this JSON file
  -log string
        Log file (default: loadtest_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/loadtest -readings 20000 -workers 16
  go run ./cmd/loadtest -url http://predictor:8080 -invalid 0 -output readings.json
`)
}
