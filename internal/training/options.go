package training

import (
	"github.com/okian/solara/internal/domain/ml"
)

// Option configures a Trainer.
type Option func(*Trainer)

// WithTrainFraction sets the chronological share of rows used for fitting.
func WithTrainFraction(f float64) Option {
	return func(t *Trainer) {
		if f > 0 && f < 1 {
			t.trainFraction = f
		}
	}
}

// WithRegressorOptions forwards options to the efficiency regressor.
func WithRegressorOptions(opts ...ml.RegressorOption) Option {
	return func(t *Trainer) { t.regressorOpts = append(t.regressorOpts, opts...) }
}

// WithAnomalyOptions forwards options to the anomaly detector.
func WithAnomalyOptions(opts ...ml.AnomalyOption) Option {
	return func(t *Trainer) { t.anomalyOpts = append(t.anomalyOpts, opts...) }
}

// WithClassifierOptions forwards options to the risk classifier.
func WithClassifierOptions(opts ...ml.ClassifierOption) Option {
	return func(t *Trainer) { t.classifierOpts = append(t.classifierOpts, opts...) }
}
