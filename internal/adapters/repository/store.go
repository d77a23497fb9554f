// Package repository stores the fitted pipeline artifacts shared by the
// training and serving binaries.
package repository

import (
	"context"

	"github.com/okian/solara/internal/domain/ml"
	"github.com/okian/solara/internal/domain/preprocess"
)

// File names inside the models directory.
const (
	ScalerFile     = "scaler.json"
	EfficiencyFile = "efficiency_model.json"
	AnomalyFile    = "anomaly_model.json"
	ClassifierFile = "classifier_model.json"
)

// Bundle groups the four artifacts the prediction pipeline needs.
type Bundle struct {
	Scaler     *preprocess.Scaler
	Efficiency *ml.EfficiencyRegressor
	Anomaly    *ml.AnomalyDetector
	Classifier *ml.FailureRiskClassifier
}

// Store provides read/write access to a bundle.
type Store interface {
	// LoadBundle restores every artifact. It fails if any one is missing or
	// was fitted on a different feature order.
	LoadBundle(ctx context.Context) (*Bundle, error)
	// SaveBundle persists every artifact, each file replaced atomically.
	SaveBundle(ctx context.Context, b *Bundle) error
}
