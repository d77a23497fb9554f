// Package training builds the training dataset, fits the scaler and the
// three models, evaluates them and persists the artifacts.
package training

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/solara/internal/adapters/dataset"
	"github.com/okian/solara/internal/adapters/repository"
	"github.com/okian/solara/internal/domain/features"
	"github.com/okian/solara/internal/domain/ml"
	"github.com/okian/solara/internal/domain/preprocess"
	"github.com/okian/solara/internal/domain/table"
	"github.com/okian/solara/pkg/logger"
)

// ColTarget holds the next-step efficiency of the same source.
const ColTarget = "efficiency_target"

// DefaultTrainFraction is the chronological train share.
const DefaultTrainFraction = 0.8

// Report summarises a training run.
type Report struct {
	Rows        int           `json:"rows"`
	TrainRows   int           `json:"train_rows"`
	TestRows    int           `json:"test_rows"`
	RMSE        float64       `json:"rmse"`
	MAE         float64       `json:"mae"`
	F1          float64       `json:"f1_weighted"`
	AnomalyRate float64       `json:"anomaly_rate"`
	Took        time.Duration `json:"took"`
}

// Trainer fits a bundle and writes it to a store.
type Trainer struct {
	store          repository.Store
	trainFraction  float64
	regressorOpts  []ml.RegressorOption
	anomalyOpts    []ml.AnomalyOption
	classifierOpts []ml.ClassifierOption
}

// New creates a Trainer persisting into store.
func New(store repository.Store, opts ...Option) *Trainer {
	t := &Trainer{store: store, trainFraction: DefaultTrainFraction}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run loads src, trains every model and saves the bundle.
func (t *Trainer) Run(ctx context.Context, src dataset.Source) (Report, error) {
	start := time.Now()

	gen, err := src.Generation(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load generation data: %w", err)
	}
	weather, err := src.Weather(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load weather data: %w", err)
	}

	frame, err := BuildDataset(ctx, gen, weather)
	if err != nil {
		return Report{}, err
	}

	bundle, report, err := t.Fit(ctx, frame)
	if err != nil {
		return Report{}, err
	}
	if err := t.store.SaveBundle(ctx, bundle); err != nil {
		return Report{}, fmt.Errorf("save artifacts: %w", err)
	}

	report.Took = time.Since(start)
	logger.Get().Info(ctx, "training complete",
		logger.Int("rows", report.Rows),
		logger.Float64("rmse", report.RMSE),
		logger.Float64("mae", report.MAE),
		logger.Float64("f1", report.F1),
		logger.Duration("took", report.Took))
	return report, nil
}

// BuildDataset merges, cleans and engineers the raw tables.
func BuildDataset(ctx context.Context, gen, weather *table.Frame) (*table.Frame, error) {
	merged, err := dataset.Merge(ctx, gen, weather)
	if err != nil {
		return nil, fmt.Errorf("merge datasets: %w", err)
	}
	clean, err := preprocess.Clean(ctx, merged)
	if err != nil {
		return nil, fmt.Errorf("clean dataset: %w", err)
	}
	engineered, err := features.Engineer(ctx, clean)
	if err != nil {
		return nil, fmt.Errorf("engineer features: %w", err)
	}
	return engineered, nil
}

// Fit trains the bundle on an engineered frame and evaluates it on the
// chronologically last rows.
func (t *Trainer) Fit(ctx context.Context, frame *table.Frame) (*repository.Bundle, Report, error) {
	columns := features.Columns()

	withTarget, err := WithTargets(frame)
	if err != nil {
		return nil, Report{}, err
	}
	ordered := withTarget.SortByTimeSource()
	n := ordered.Len()
	split := int(t.trainFraction * float64(n))
	if split < 2 {
		return nil, Report{}, fmt.Errorf("%w: %d rows after target shift", ErrNotEnoughData, n)
	}
	train, test := ordered.Slice(0, split), ordered.Slice(split, n)
	logger.Get().Info(ctx, "dataset split",
		logger.Int("train_rows", train.Len()), logger.Int("test_rows", test.Len()))

	scaler, err := preprocess.Fit(train, columns)
	if err != nil {
		return nil, Report{}, fmt.Errorf("fit scaler: %w", err)
	}
	xTrain, err := scaledMatrix(scaler, train, columns)
	if err != nil {
		return nil, Report{}, err
	}
	xTest, err := scaledMatrix(scaler, test, columns)
	if err != nil {
		return nil, Report{}, err
	}
	yTrain, _ := train.Column(ColTarget)
	yTest, _ := test.Column(ColTarget)

	report := Report{Rows: n, TrainRows: train.Len(), TestRows: test.Len()}

	reg, err := ml.FitEfficiencyRegressor(columns, xTrain, yTrain, t.regressorOpts...)
	if err != nil {
		return nil, Report{}, fmt.Errorf("fit efficiency regressor: %w", err)
	}

	clf, err := ml.FitFailureRiskClassifier(columns, xTrain, riskLabels(yTrain), t.classifierOpts...)
	if err != nil {
		return nil, Report{}, fmt.Errorf("fit risk classifier: %w", err)
	}

	if len(xTest) > 0 {
		pred, err := reg.Predict(xTest)
		if err != nil {
			return nil, Report{}, err
		}
		report.RMSE, report.MAE = RMSE(yTest, pred), MAE(yTest, pred)
		logger.Get().Info(ctx, "efficiency model evaluated",
			logger.Float64("rmse", report.RMSE), logger.Float64("mae", report.MAE))

		labels, err := clf.PredictLabel(xTest)
		if err != nil {
			return nil, Report{}, err
		}
		report.F1 = WeightedF1(riskLabels(yTest), labels)
		logger.Get().Info(ctx, "failure risk classifier evaluated", logger.Float64("f1", report.F1))
	} else {
		logger.Get().Warn(ctx, "no rows left for evaluation")
	}

	xAll := append(append([][]float64{}, xTrain...), xTest...)
	anomaly, err := ml.FitAnomalyDetector(columns, xAll, t.anomalyOpts...)
	if err != nil {
		return nil, Report{}, fmt.Errorf("fit anomaly detector: %w", err)
	}
	_, flags, _ := anomaly.Predict(xAll)
	report.AnomalyRate = mean(flags)

	return &repository.Bundle{
		Scaler:     scaler,
		Efficiency: reg,
		Anomaly:    anomaly,
		Classifier: clf,
	}, report, nil
}

// WithTargets adds the next-step efficiency of each source as ColTarget
// and drops the last row of every source, which has no successor.
func WithTargets(frame *table.Frame) (*table.Frame, error) {
	sorted := frame.SortBySourceTime()
	eff, err := sorted.Column(features.ColEfficiency)
	if err != nil {
		return nil, err
	}
	target := make([]float64, len(eff))
	for _, g := range sorted.Groups() {
		for i := g[0]; i < g[1]; i++ {
			if i+1 < g[1] {
				target[i] = eff[i+1]
			} else {
				target[i] = math.NaN()
			}
		}
	}
	out, err := sorted.WithColumn(ColTarget, target)
	if err != nil {
		return nil, err
	}
	return out.DropIncomplete(), nil
}

func scaledMatrix(s *preprocess.Scaler, f *table.Frame, columns []string) ([][]float64, error) {
	scaled, err := s.Apply(f, columns)
	if err != nil {
		return nil, fmt.Errorf("apply scaler: %w", err)
	}
	return scaled.Matrix(columns)
}

func riskLabels(efficiency []float64) []int {
	out := make([]int, len(efficiency))
	for i, v := range efficiency {
		out[i] = ml.EfficiencyToRiskLabel(v)
	}
	return out
}

func mean(flags []int) float64 {
	if len(flags) == 0 {
		return 0
	}
	sum := 0
	for _, f := range flags {
		sum += f
	}
	return float64(sum) / float64(len(flags))
}
