// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load layers a YAML file and SOLARA_* environment variables on top.
// - Errors are wrapped with this package's sentinel kinds.
package config

import (
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration for the prediction service.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// LogFile optionally mirrors logs to a rotating file.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ModelsDir is the directory holding the persisted model artifacts.
	ModelsDir string `koanf:"models_dir"`

	// Warmup loads the artifacts at startup instead of on first request.
	Warmup bool `koanf:"warmup"`

	// RequestTimeoutMS bounds a single prediction request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// WorkerCount sets the number of stream scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory reading queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize sets the size of the stream message-id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// StreamEnabled turns on Kafka reading consumption.
	StreamEnabled bool `koanf:"stream_enabled"`

	// StreamBrokers is a comma separated broker list.
	StreamBrokers string `koanf:"stream_brokers"`

	StreamTopic        string `koanf:"stream_topic"`
	StreamGroupID      string `koanf:"stream_group_id"`
	StreamResultsTopic string `koanf:"stream_results_topic"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":8080",
		ModelsDir:          "models",
		Warmup:             true,
		RequestTimeoutMS:   2_000,
		WorkerCount:        runtime.NumCPU() * 2,
		QueueSize:          10_000,
		DedupeSize:         100_000,
		StreamEnabled:      false,
		StreamBrokers:      "localhost:9092",
		StreamTopic:        "solar.readings",
		StreamGroupID:      "solara-predictor",
		StreamResultsTopic: "solar.predictions",
	}
}

// Brokers splits StreamBrokers into trimmed, non-empty addresses.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.StreamBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}
