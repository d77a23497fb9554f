// Package features derives the engineered feature vector from raw sensor rows.
package features

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/solara/internal/domain/table"
	"github.com/okian/solara/pkg/logger"
)

// Raw input columns.
const (
	ColDCPower            = "DC_POWER"
	ColACPower            = "AC_POWER"
	ColAmbientTemperature = "AMBIENT_TEMPERATURE"
	ColModuleTemperature  = "MODULE_TEMPERATURE"
	ColIrradiation        = "IRRADIATION"
)

// Derived columns.
const (
	ColEfficiency       = "efficiency"
	ColThermalStress    = "thermal_stress"
	ColDCACRatio        = "dc_ac_ratio"
	ColRollingMeanPower = "rolling_mean_power"
	ColRollingStdPower  = "rolling_std_power"
	ColRollingTempMean  = "rolling_temp_mean"
)

const (
	// Epsilon floors denominators of the ratio features.
	Epsilon = 1e-6
	// Window is the trailing number of observations per source.
	Window = 4
	// MinPeriods is the minimum number of observations a window needs.
	MinPeriods = 1
)

// RawColumns are the numeric inputs Engineer expects.
var RawColumns = []string{
	ColDCPower,
	ColACPower,
	ColAmbientTemperature,
	ColModuleTemperature,
	ColIrradiation,
}

// FeatureColumns is the fixed feature order shared by the scaler and every
// model. Changing it invalidates persisted artifacts.
var FeatureColumns = []string{
	ColDCPower,
	ColACPower,
	ColAmbientTemperature,
	ColModuleTemperature,
	ColIrradiation,
	ColEfficiency,
	ColThermalStress,
	ColDCACRatio,
	ColRollingMeanPower,
	ColRollingStdPower,
	ColRollingTempMean,
}

// Columns returns a copy of FeatureColumns.
func Columns() []string {
	out := make([]string, len(FeatureColumns))
	copy(out, FeatureColumns)
	return out
}

// Engineer sorts rows by (source, time), appends the derived and rolling
// features, fills gaps per source and drops rows that remain incomplete.
// The input frame is not modified.
func Engineer(ctx context.Context, in *table.Frame) (*table.Frame, error) {
	required := append([]string{table.ColSourceKey, table.ColDateTime}, RawColumns...)
	if err := in.Require(required...); err != nil {
		logger.Get().Error(ctx, "missing required columns for feature engineering", logger.Error(err))
		return nil, err
	}

	sorted := in.SortBySourceTime()
	n := sorted.Len()

	dc, _ := sorted.Column(ColDCPower)
	ac, _ := sorted.Column(ColACPower)
	ambient, _ := sorted.Column(ColAmbientTemperature)
	module, _ := sorted.Column(ColModuleTemperature)
	irr, _ := sorted.Column(ColIrradiation)

	efficiency := make([]float64, n)
	thermal := make([]float64, n)
	ratio := make([]float64, n)
	for i := range n {
		efficiency[i] = ac[i] / floor(irr[i])
		thermal[i] = module[i] - ambient[i]
		ratio[i] = dc[i] / floor(ac[i])
	}

	logger.Get().Debug(ctx, "computing rolling features",
		logger.Int("window", Window), logger.Int("min_periods", MinPeriods))

	groups := sorted.Groups()
	meanPower := make([]float64, n)
	stdPower := make([]float64, n)
	tempMean := make([]float64, n)
	for _, g := range groups {
		rollingMean(ac[g[0]:g[1]], meanPower[g[0]:g[1]])
		rollingStd(ac[g[0]:g[1]], stdPower[g[0]:g[1]])
		rollingMean(module[g[0]:g[1]], tempMean[g[0]:g[1]])
	}

	out := sorted
	for _, c := range []struct {
		name   string
		values []float64
	}{
		{ColEfficiency, efficiency},
		{ColThermalStress, thermal},
		{ColDCACRatio, ratio},
		{ColRollingMeanPower, meanPower},
		{ColRollingStdPower, stdPower},
		{ColRollingTempMean, tempMean},
	} {
		var err error
		if out, err = out.WithColumn(c.name, c.values); err != nil {
			return nil, fmt.Errorf("add %s: %w", c.name, err)
		}
	}

	complete := out.FillPerSource().DropIncomplete()

	logger.Get().Debug(ctx, "feature engineering completed",
		logger.Int("rows", complete.Len()),
		logger.Int("dropped", out.Len()-complete.Len()),
		logger.Int("columns", len(complete.Columns())))
	return complete, nil
}

// Vector extracts the ordered feature values of row i.
func Vector(f *table.Frame, i int) ([]float64, error) {
	idx := make([]int, len(FeatureColumns))
	for j, name := range FeatureColumns {
		c, ok := f.Index(name)
		if !ok {
			return nil, &table.MissingColumnError{Columns: f.Missing(FeatureColumns...)}
		}
		idx[j] = c
	}
	row := f.Row(i)
	out := make([]float64, len(idx))
	for j, c := range idx {
		out[j] = row.Values[c]
	}
	return out, nil
}

func floor(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Max(v, Epsilon)
}
