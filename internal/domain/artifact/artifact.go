// Package artifact persists fitted pipeline components as versioned JSON
// envelopes.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Version is the current envelope format.
const Version = 1

// Kinds of persisted components.
const (
	KindScaler     = "scaler"
	KindEfficiency = "efficiency_regressor"
	KindAnomaly    = "anomaly_detector"
	KindClassifier = "failure_risk_classifier"
)

// Envelope wraps a component's state with the metadata needed to reject
// incompatible files.
type Envelope struct {
	Kind      string          `json:"kind"`
	Version   int             `json:"version"`
	Columns   []string        `json:"columns"`
	CreatedAt time.Time       `json:"created_at"`
	Model     json.RawMessage `json:"model"`
}

// Save encodes state into an envelope and writes it to path atomically.
func Save(path, kind string, columns []string, state any) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	data, err := json.MarshalIndent(Envelope{
		Kind:      kind,
		Version:   Version,
		Columns:   columns,
		CreatedAt: time.Now().UTC(),
		Model:     raw,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", kind, err)
	}
	return WriteFileAtomic(path, data)
}

// Load reads the envelope at path, checks its kind and version and decodes
// the component state into state. It returns the stored column order.
func Load(path, kind string, state any) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}
	if env.Kind != kind {
		return nil, &KindMismatchError{Path: path, Expected: kind, Got: env.Kind}
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%w: %s has version %d", ErrUnsupportedVersion, path, env.Version)
	}
	if err := json.Unmarshal(env.Model, state); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}
	return env.Columns, nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, so readers never see a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
