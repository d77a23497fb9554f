package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/solara/pkg/logger"
)

// Run executes a complete load test against cfg.BaseURL and returns the
// collected statistics. Verification failures are returned as errors after
// the statistics are logged.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("loadtest")

	log.Info(ctx, "starting solar predictor load test",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("readings", cfg.NumReadings),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Any("verbose", cfg.Verbose))

	client := NewHTTPClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: check service health
	if err := client.Get(ctx, pathHealth, nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	before, err := client.Stats(ctx)
	if err != nil {
		return stats, fmt.Errorf("stats retrieval failed: %w", err)
	}

	// Step 2: generate readings
	readings := Generate(ctx, cfg.NumReadings, cfg.InvalidShare, cfg.Seed)
	stats.Generated = len(readings)

	// Step 3: submit concurrently
	responses := submitReadings(ctx, cfg, client, readings)
	for _, r := range responses {
		stats.add(r)
	}

	// Step 4: resubmit a prefix and compare
	repeat := readings[:min(cfg.Repeats, len(readings))]
	again := submitReadings(ctx, cfg, client, repeat)
	mismatches, detErr := verifyDeterminism(responses, again)
	stats.Mismatches = mismatches

	// Step 5: verify outcomes and bodies
	verifyErr := verifyResponses(ctx, responses)

	// Step 6: cross-check the server's counters
	if after, err := client.Stats(ctx); err == nil {
		served := after.Predictions - before.Predictions
		log.Info(ctx, "server counters",
			logger.Int("predictions_delta", int(served)),
			logger.Int("rejections_delta", int(after.Rejections-before.Rejections)),
			logger.Int("failures_delta", int(after.Failures-before.Failures)),
			logger.Bool("models_ready", after.ModelsReady))
	} else {
		log.Warn(ctx, "stats retrieval failed", logger.Error(err))
	}

	if cfg.OutputFile != "" {
		if err := saveReadings(ctx, cfg.OutputFile, readings); err != nil {
			log.Warn(ctx, "failed to save readings to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if err := errors.Join(verifyErr, detErr); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}
	log.Info(ctx, "load test completed successfully")
	return stats, nil
}

// saveReadings writes the generated readings as a JSON array.
func saveReadings(ctx context.Context, filename string, readings []Reading) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(readings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal readings: %w", err)
	}
	if err := os.WriteFile(filename, data, logFilePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "readings saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var scoredRate, perSecond float64
	if stats.Submitted > 0 {
		scoredRate = float64(stats.Scored) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("scored", stats.Scored),
		logger.Int("invalid", stats.Invalid),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("anomalies", stats.Anomalies),
		logger.Any("risk_levels", stats.RiskLevels),
		logger.Int("mismatches", stats.Mismatches),
		logger.Duration("duration", stats.Duration),
		logger.Float64("scored_rate", scoredRate),
		logger.Float64("readings_per_second", perSecond))
}
