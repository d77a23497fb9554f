package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names read by Load.
const (
	EnvPrefix     = "SOLARA_"
	EnvConfigPath = "SOLARA_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SOLARA_CONFIG is set
//  3. env (prefix SOLARA_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// SOLARA_MODELS_DIR -> models_dir. Keys are flat so underscores are kept.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields every binary relies on.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ModelsDir == "":
		return fmt.Errorf("%w: models_dir must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.RequestTimeoutMS <= 0:
		return fmt.Errorf("%w: request_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.StreamEnabled {
		switch {
		case len(c.Brokers()) == 0:
			return fmt.Errorf("%w: stream_brokers must not be empty when streaming", ErrInvalidConfig)
		case c.StreamTopic == "" || c.StreamResultsTopic == "":
			return fmt.Errorf("%w: stream topics must not be empty when streaming", ErrInvalidConfig)
		case c.WorkerCount <= 0 || c.QueueSize <= 0:
			return fmt.Errorf("%w: worker_count and queue_size must be positive when streaming", ErrInvalidConfig)
		}
	}
	return nil
}
