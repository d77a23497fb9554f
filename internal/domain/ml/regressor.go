// Package ml holds the three predictors fed by the scaled feature vector: an
// efficiency regressor, an anomaly detector and a failure-risk classifier.
//
// Every model is immutable after fitting or loading and safe for concurrent
// use.
package ml

import (
	"fmt"
	"slices"

	"github.com/okian/solara/internal/domain/artifact"
	"gonum.org/v1/gonum/mat"
)

// DefaultRidge is the L2 penalty applied to the regression coefficients.
const DefaultRidge = 1e-3

// EfficiencyRegressor predicts next-step efficiency with ridge-regularised
// least squares. The intercept is not penalised.
type EfficiencyRegressor struct {
	columns   []string
	intercept float64
	coef      []float64
}

type regressorState struct {
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
}

// RegressorOption configures FitEfficiencyRegressor.
type RegressorOption func(*regressorConfig)

type regressorConfig struct {
	ridge float64
}

// WithRidge sets the L2 penalty. It must be positive.
func WithRidge(lambda float64) RegressorOption {
	return func(c *regressorConfig) {
		if lambda > 0 {
			c.ridge = lambda
		}
	}
}

// FitEfficiencyRegressor solves (XᵀX + λI)β = Xᵀy for the given rows.
func FitEfficiencyRegressor(columns []string, rows [][]float64, target []float64, opts ...RegressorOption) (*EfficiencyRegressor, error) {
	cfg := regressorConfig{ridge: DefaultRidge}
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
	if len(target) != n {
		return nil, fmt.Errorf("%w: %d rows, %d targets", ErrLengthMismatch, n, len(target))
	}
	if err := checkRows(columns, rows); err != nil {
		return nil, err
	}

	x := designMatrix(rows, p)

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	normal := mat.NewSymDense(p+1, nil)
	for i := 0; i <= p; i++ {
		for j := i; j <= p; j++ {
			normal.SetSym(i, j, xtx.At(i, j))
		}
		if i > 0 {
			normal.SetSym(i, i, normal.At(i, i)+cfg.ridge)
		}
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), mat.NewVecDense(n, slices.Clone(target)))

	var chol mat.Cholesky
	if ok := chol.Factorize(normal); !ok {
		return nil, ErrSingular
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", err)
	}

	coef := make([]float64, p)
	for j := range coef {
		coef[j] = beta.AtVec(j + 1)
	}
	return &EfficiencyRegressor{
		columns:   slices.Clone(columns),
		intercept: beta.AtVec(0),
		coef:      coef,
	}, nil
}

// Columns returns the fitted column order.
func (r *EfficiencyRegressor) Columns() []string { return slices.Clone(r.columns) }

// Predict returns one efficiency estimate per row.
func (r *EfficiencyRegressor) Predict(rows [][]float64) ([]float64, error) {
	if err := checkRows(r.columns, rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	var out mat.VecDense
	out.MulVec(denseRows(rows, len(r.columns)), mat.NewVecDense(len(r.coef), slices.Clone(r.coef)))
	preds := make([]float64, len(rows))
	for i := range preds {
		preds[i] = out.AtVec(i) + r.intercept
	}
	return preds, nil
}

// Save persists the regressor to path.
func (r *EfficiencyRegressor) Save(path string) error {
	return artifact.Save(path, artifact.KindEfficiency, r.columns, regressorState{
		Intercept: r.intercept,
		Coef:      r.coef,
	})
}

// LoadEfficiencyRegressor restores a regressor written by Save.
func LoadEfficiencyRegressor(path string, opts ...LoadOption) (*EfficiencyRegressor, error) {
	var st regressorState
	columns, err := artifact.Load(path, artifact.KindEfficiency, &st)
	if err != nil {
		return nil, err
	}
	if err := checkLoaded(columns, opts); err != nil {
		return nil, err
	}
	if len(st.Coef) != len(columns) {
		return nil, fmt.Errorf("%w: %s: %d coefficients for %d columns", artifact.ErrCorrupt, path, len(st.Coef), len(columns))
	}
	return &EfficiencyRegressor{columns: columns, intercept: st.Intercept, coef: st.Coef}, nil
}

// designMatrix prepends an intercept column of ones.
func designMatrix(rows [][]float64, p int) *mat.Dense {
	x := mat.NewDense(len(rows), p+1, nil)
	for i, row := range rows {
		x.Set(i, 0, 1)
		for j, v := range row {
			x.Set(i, j+1, v)
		}
	}
	return x
}

func denseRows(rows [][]float64, p int) *mat.Dense {
	data := make([]float64, 0, len(rows)*p)
	for _, row := range rows {
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), p, data)
}
