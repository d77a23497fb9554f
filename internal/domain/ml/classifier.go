package ml

import (
	"fmt"
	"math"
	"slices"

	"github.com/okian/solara/internal/domain/artifact"
	"github.com/okian/solara/internal/domain/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Classifier defaults.
const (
	DefaultLearningRate = 0.5
	DefaultEpochs       = 500
	DefaultL2           = 1e-4
)

// FailureRiskClassifier is a multinomial logistic regression over the risk
// classes, trained by full-batch gradient descent from zero weights.
type FailureRiskClassifier struct {
	columns []string
	// weights is (features+1) x classes; row 0 holds the biases.
	weights *mat.Dense
}

type classifierState struct {
	Classes int       `json:"classes"`
	Weights []float64 `json:"weights"`
}

// ClassifierOption configures FitFailureRiskClassifier.
type ClassifierOption func(*classifierConfig)

type classifierConfig struct {
	learningRate float64
	epochs       int
	l2           float64
}

// WithLearningRate sets the gradient step.
func WithLearningRate(v float64) ClassifierOption {
	return func(c *classifierConfig) {
		if v > 0 {
			c.learningRate = v
		}
	}
}

// WithEpochs sets the number of full passes.
func WithEpochs(n int) ClassifierOption {
	return func(c *classifierConfig) {
		if n > 0 {
			c.epochs = n
		}
	}
}

// WithL2 sets the weight decay; biases are not decayed.
func WithL2(v float64) ClassifierOption {
	return func(c *classifierConfig) {
		if v >= 0 {
			c.l2 = v
		}
	}
}

// FitFailureRiskClassifier trains on rows labelled with risk classes.
func FitFailureRiskClassifier(columns []string, rows [][]float64, labels []int, opts ...ClassifierOption) (*FailureRiskClassifier, error) {
	cfg := classifierConfig{learningRate: DefaultLearningRate, epochs: DefaultEpochs, l2: DefaultL2}
	for _, opt := range opts {
		opt(&cfg)
	}
	n, p := len(rows), len(columns)
	if p == 0 {
		return nil, ErrNoColumns
	}
	if n == 0 {
		return nil, ErrNotEnoughRows
	}
	if len(labels) != n {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrLengthMismatch, n, len(labels))
	}
	if err := checkRows(columns, rows); err != nil {
		return nil, err
	}

	x := designMatrix(rows, p)
	y := mat.NewDense(n, NumRiskClasses, nil)
	for i, l := range labels {
		if l < 0 || l >= NumRiskClasses {
			return nil, fmt.Errorf("%w: row %d has label %d", ErrInvalidLabel, i, l)
		}
		y.Set(i, l, 1)
	}

	w := mat.NewDense(p+1, NumRiskClasses, nil)
	var logits, grad, decay mat.Dense
	for range cfg.epochs {
		logits.Mul(x, w)
		softmaxRows(&logits)
		logits.Sub(&logits, y)
		grad.Mul(x.T(), &logits)
		grad.Scale(1/float64(n), &grad)

		decay.Scale(cfg.l2, w)
		for k := range NumRiskClasses {
			decay.Set(0, k, 0)
		}
		grad.Add(&grad, &decay)

		grad.Scale(cfg.learningRate, &grad)
		w.Sub(w, &grad)
	}

	return &FailureRiskClassifier{columns: slices.Clone(columns), weights: w}, nil
}

// Columns returns the fitted column order.
func (c *FailureRiskClassifier) Columns() []string { return slices.Clone(c.columns) }

// PredictProba returns the class probabilities of each row.
func (c *FailureRiskClassifier) PredictProba(rows [][]float64) ([][]float64, error) {
	if err := checkRows(c.columns, rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	var logits mat.Dense
	logits.Mul(designMatrix(rows, len(c.columns)), c.weights)
	softmaxRows(&logits)

	out := make([][]float64, len(rows))
	for i := range out {
		out[i] = mat.Row(nil, i, &logits)
	}
	return out, nil
}

// PredictLabel returns the most probable class of each row. Ties resolve to
// the lowest class.
func (c *FailureRiskClassifier) PredictLabel(rows [][]float64) ([]int, error) {
	proba, err := c.PredictProba(rows)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(proba))
	for i, p := range proba {
		labels[i] = floats.MaxIdx(p)
	}
	return labels, nil
}

// PredictRiskLevel returns the named risk level of each row.
func (c *FailureRiskClassifier) PredictRiskLevel(rows [][]float64) ([]model.RiskLevel, error) {
	labels, err := c.PredictLabel(rows)
	if err != nil {
		return nil, err
	}
	levels := make([]model.RiskLevel, len(labels))
	for i, l := range labels {
		levels[i] = RiskLevelFor(l)
	}
	return levels, nil
}

// Save persists the classifier to path.
func (c *FailureRiskClassifier) Save(path string) error {
	return artifact.Save(path, artifact.KindClassifier, c.columns, classifierState{
		Classes: NumRiskClasses,
		Weights: c.weights.RawMatrix().Data,
	})
}

// LoadFailureRiskClassifier restores a classifier written by Save.
func LoadFailureRiskClassifier(path string, opts ...LoadOption) (*FailureRiskClassifier, error) {
	var st classifierState
	columns, err := artifact.Load(path, artifact.KindClassifier, &st)
	if err != nil {
		return nil, err
	}
	if err := checkLoaded(columns, opts); err != nil {
		return nil, err
	}
	if st.Classes != NumRiskClasses || len(columns) == 0 || len(st.Weights) != (len(columns)+1)*NumRiskClasses {
		return nil, fmt.Errorf("%w: %s: weights do not match %d columns", artifact.ErrCorrupt, path, len(columns))
	}
	return &FailureRiskClassifier{
		columns: columns,
		weights: mat.NewDense(len(columns)+1, NumRiskClasses, st.Weights),
	}, nil
}

// softmaxRows replaces each row of m by its softmax.
func softmaxRows(m *mat.Dense) {
	r, _ := m.Dims()
	for i := range r {
		row := m.RawRowView(i)
		lse := floats.LogSumExp(row)
		for k := range row {
			row[k] = math.Exp(row[k] - lse)
		}
	}
}
