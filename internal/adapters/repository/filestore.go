package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/okian/solara/internal/domain/features"
	"github.com/okian/solara/internal/domain/ml"
	"github.com/okian/solara/internal/domain/preprocess"
	"github.com/okian/solara/internal/domain/table"
	"github.com/okian/solara/pkg/logger"
	"github.com/okian/solara/pkg/metrics"
)

// FileStore keeps a bundle as four JSON files in one directory. Each file
// can be loaded on its own.
type FileStore struct {
	dir     string
	columns []string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store rooted at dir. By default artifacts must
// match features.FeatureColumns.
func NewFileStore(dir string, opts ...Option) *FileStore {
	s := &FileStore{dir: dir, columns: features.Columns()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the models directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the location of one artifact file.
func (s *FileStore) Path(name string) string { return filepath.Join(s.dir, name) }

// LoadBundle restores the scaler and the three models.
func (s *FileStore) LoadBundle(ctx context.Context) (*Bundle, error) {
	start := time.Now()
	b, err := s.loadBundle(ctx)
	metrics.RecordArtifactLoad(err == nil, float64(time.Since(start).Milliseconds()))
	if err != nil {
		logger.Get().Error(ctx, "failed to load model artifacts",
			logger.String("dir", s.dir), logger.Error(err))
		return nil, err
	}
	logger.Get().Info(ctx, "model artifacts loaded",
		logger.String("dir", s.dir), logger.Duration("took", time.Since(start)))
	return b, nil
}

func (s *FileStore) loadBundle(ctx context.Context) (*Bundle, error) {
	expect := ml.ExpectColumns(s.columns)
	var b Bundle
	var err error

	logger.Get().Debug(ctx, "loading scaler", logger.String("path", s.Path(ScalerFile)))
	if b.Scaler, err = preprocess.LoadScaler(s.Path(ScalerFile)); err != nil {
		return nil, fmt.Errorf("load scaler: %w", err)
	}
	if err := table.CheckSchema(s.columns, b.Scaler.Columns()); err != nil {
		return nil, fmt.Errorf("load scaler: %w", err)
	}
	logger.Get().Debug(ctx, "loading efficiency model", logger.String("path", s.Path(EfficiencyFile)))
	if b.Efficiency, err = ml.LoadEfficiencyRegressor(s.Path(EfficiencyFile), expect); err != nil {
		return nil, fmt.Errorf("load efficiency model: %w", err)
	}
	logger.Get().Debug(ctx, "loading classifier model", logger.String("path", s.Path(ClassifierFile)))
	if b.Classifier, err = ml.LoadFailureRiskClassifier(s.Path(ClassifierFile), expect); err != nil {
		return nil, fmt.Errorf("load classifier model: %w", err)
	}
	logger.Get().Debug(ctx, "loading anomaly model", logger.String("path", s.Path(AnomalyFile)))
	if b.Anomaly, err = ml.LoadAnomalyDetector(s.Path(AnomalyFile), expect); err != nil {
		return nil, fmt.Errorf("load anomaly model: %w", err)
	}
	return &b, nil
}

// SaveBundle writes all four artifacts.
func (s *FileStore) SaveBundle(ctx context.Context, b *Bundle) error {
	if b == nil || b.Scaler == nil || b.Efficiency == nil || b.Anomaly == nil || b.Classifier == nil {
		return ErrIncompleteBundle
	}
	for _, a := range []struct {
		name string
		save func(string) error
	}{
		{ScalerFile, b.Scaler.Save},
		{EfficiencyFile, b.Efficiency.Save},
		{AnomalyFile, b.Anomaly.Save},
		{ClassifierFile, b.Classifier.Save},
	} {
		if err := a.save(s.Path(a.name)); err != nil {
			return fmt.Errorf("save %s: %w", a.name, err)
		}
		logger.Get().Info(ctx, "saved artifact", logger.String("path", s.Path(a.name)))
	}
	return nil
}
