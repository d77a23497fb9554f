package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/solara/internal/adapters/repository"
	"github.com/okian/solara/pkg/logger"
	"github.com/okian/solara/pkg/metrics"
)

// ArtifactLoader restores the fitted scaler and models.
type ArtifactLoader interface {
	LoadBundle(ctx context.Context) (*repository.Bundle, error)
}

// ModelRegistry owns the loaded bundle for the lifetime of the process.
//
// It starts uninitialised and becomes ready on the first successful load;
// readiness is terminal. Concurrent first callers share one load. A failed
// load leaves the registry uninitialised, so a later call tries again.
type ModelRegistry struct {
	loader ArtifactLoader
	mu     sync.Mutex
	bundle atomic.Pointer[repository.Bundle]
	loads  atomic.Int64
}

// NewModelRegistry creates an uninitialised registry.
func NewModelRegistry(loader ArtifactLoader) *ModelRegistry {
	metrics.UpdateRegistryReady(false)
	return &ModelRegistry{loader: loader}
}

// Bundle returns the loaded artifacts, loading them on first use.
func (r *ModelRegistry) Bundle(ctx context.Context) (*repository.Bundle, error) {
	if b := r.bundle.Load(); b != nil {
		return b, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b := r.bundle.Load(); b != nil {
		return b, nil
	}

	r.loads.Add(1)
	b, err := r.loader.LoadBundle(ctx)
	if err != nil {
		return nil, err
	}
	r.bundle.Store(b)
	metrics.UpdateRegistryReady(true)
	logger.Get().Info(ctx, "model registry ready")
	return b, nil
}

// Warm loads the bundle eagerly.
func (r *ModelRegistry) Warm(ctx context.Context) error {
	_, err := r.Bundle(ctx)
	return err
}

// Ready reports whether the artifacts are loaded.
func (r *ModelRegistry) Ready() bool { return r.bundle.Load() != nil }

// Loads returns the number of load attempts made so far.
func (r *ModelRegistry) Loads() int64 { return r.loads.Load() }
