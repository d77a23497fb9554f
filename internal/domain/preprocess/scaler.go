package preprocess

import (
	"fmt"
	"math"
	"slices"

	"github.com/okian/solara/internal/domain/artifact"
	"github.com/okian/solara/internal/domain/table"
	"gonum.org/v1/gonum/stat"
)

// Scaler standardises columns to zero mean and unit variance. It is
// immutable once fitted and safe for concurrent use.
type Scaler struct {
	columns []string
	mean    []float64
	std     []float64
}

// scalerState is the persisted form of a Scaler. Columns live in the envelope.
type scalerState struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Fit computes per-column mean and population standard deviation. Columns
// with zero variance are scaled by 1.
func Fit(f *table.Frame, columns []string) (*Scaler, error) {
	if len(columns) == 0 {
		return nil, ErrNotFitted
	}
	if f.Len() == 0 {
		return nil, ErrNoRows
	}
	s := &Scaler{
		columns: slices.Clone(columns),
		mean:    make([]float64, len(columns)),
		std:     make([]float64, len(columns)),
	}
	for j, name := range columns {
		col, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		for i := range col {
			col[i] = toFloat32(col[i])
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.mean[j] = mean
		s.std[j] = std
	}
	return s, nil
}

// Columns returns the fit-time column order.
func (s *Scaler) Columns() []string { return slices.Clone(s.columns) }

// Apply returns a frame holding the scaled columns, in fit-time order. The
// requested columns must equal the fit-time columns by name and order.
func (s *Scaler) Apply(f *table.Frame, columns []string) (*table.Frame, error) {
	if err := table.CheckSchema(s.columns, columns); err != nil {
		return nil, err
	}
	sel, err := f.Select(columns)
	if err != nil {
		return nil, err
	}
	out := table.New(columns)
	for i := range sel.Len() {
		row := sel.Row(i)
		scaled, err := s.TransformRow(row.Values)
		if err != nil {
			return nil, err
		}
		out.Append(row.Source, row.Time, scaled)
	}
	return out, nil
}

// TransformRow scales one vector laid out in fit-time order. A value that is
// not finite after float32 rounding and scaling yields ErrNonFinite.
func (s *Scaler) TransformRow(values []float64) ([]float64, error) {
	if len(values) != len(s.columns) {
		return nil, &table.SchemaMismatchError{Expected: s.Columns(), Got: []string{fmt.Sprintf("%d values", len(values))}}
	}
	out := make([]float64, len(values))
	for j, v := range values {
		scaled := toFloat32((toFloat32(v) - s.mean[j]) / s.std[j])
		if !isFinite(scaled) {
			return nil, fmt.Errorf("%w: %s=%g", ErrNonFinite, s.columns[j], v)
		}
		out[j] = scaled
	}
	return out, nil
}

// Save persists the scaler, replacing path atomically.
func (s *Scaler) Save(path string) error {
	return artifact.Save(path, artifact.KindScaler, s.columns, scalerState{Mean: s.mean, Std: s.std})
}

// LoadScaler restores a scaler written by Save. A missing file yields an
// error matching artifact.ErrNotFound.
func LoadScaler(path string) (*Scaler, error) {
	var st scalerState
	columns, err := artifact.Load(path, artifact.KindScaler, &st)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 || len(st.Mean) != len(columns) || len(st.Std) != len(columns) {
		return nil, fmt.Errorf("%w: %s: %w", artifact.ErrCorrupt, path, ErrNotFitted)
	}
	for j, name := range columns {
		if !isFinite(st.Mean[j]) || !isFinite(st.Std[j]) || st.Std[j] <= 0 {
			return nil, fmt.Errorf("%w: %s: column %s has mean %g and std %g",
				artifact.ErrCorrupt, path, name, st.Mean[j], st.Std[j])
		}
	}
	return &Scaler{columns: columns, mean: st.Mean, std: st.Std}, nil
}

// toFloat32 rounds v to float32 precision so training and inference see the
// same numbers.
func toFloat32(v float64) float64 { return float64(float32(v)) }

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
