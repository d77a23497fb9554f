package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/solara/internal/loadtest"
	"github.com/okian/solara/pkg/logger"
)

// Default configuration constants.
const (
	defaultReadings    = 5000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 10 * time.Second
	defaultTestTimeout = 10 * time.Minute
	defaultSeed        = 1
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "Base URL of the service")
		readings = flag.Int("readings", defaultReadings, "Number of readings to generate and submit")
		invalid  = flag.Float64("invalid", loadtest.DefaultInvalidShare, "Share of readings generated out of bounds")
		repeats  = flag.Int("repeats", loadtest.DefaultRepeats, "Readings resubmitted to check determinism")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed     = flag.Uint64("seed", defaultSeed, "Generator seed")
		output   = flag.String("output", "", "Write the generated readings to this JSON file")
		logFile  = flag.String("log", "", "Log file (default: loadtest_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp()
		return
	}

	if err := loadtest.SetupLogging(*logFile, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	cfg := &loadtest.Config{
		BaseURL:      *baseURL,
		NumReadings:  *readings,
		InvalidShare: *invalid,
		Repeats:      *repeats,
		Workers:      *workers,
		Timeout:      *timeout,
		Seed:         *seed,
		OutputFile:   *output,
		Verbose:      *verbose,
	}
	if err := run(cfg); err != nil {
		os.Exit(1)
	}
}

func run(cfg *loadtest.Config) error {
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	if _, err := loadtest.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load test failed", logger.Error(err))
		return err
	}
	return nil
}
