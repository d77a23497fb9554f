// Package preprocess cleans raw rows and standardises feature columns.
package preprocess

import (
	"context"
	"fmt"

	"github.com/okian/solara/internal/domain/features"
	"github.com/okian/solara/internal/domain/table"
	"github.com/okian/solara/pkg/logger"
	"github.com/okian/solara/pkg/metrics"
)

// Removal reasons reported in logs and metrics.
const (
	ReasonSensorFault = "sensor_fault"
	ReasonNighttime   = "nighttime"
)

// Clean drops sensor faults (negative or missing power) and nighttime rows
// (irradiation missing or not positive). It returns ErrEmptyResult when no
// row survives. The input frame is not modified.
func Clean(ctx context.Context, in *table.Frame) (*table.Frame, error) {
	if err := in.Require(features.ColDCPower, features.ColACPower, features.ColIrradiation); err != nil {
		logger.Get().Error(ctx, "missing required columns for preprocessing", logger.Error(err))
		return nil, err
	}

	dc, _ := in.Index(features.ColDCPower)
	ac, _ := in.Index(features.ColACPower)
	irr, _ := in.Index(features.ColIrradiation)

	before := in.Len()
	// Comparisons with NaN are false, so missing values are dropped too.
	powered := in.Filter(func(r table.Row) bool {
		return r.Values[dc] >= 0 && r.Values[ac] >= 0
	})
	faults := before - powered.Len()
	logger.Get().Info(ctx, "removed rows with negative or missing power",
		logger.Int("removed", faults), logger.String("reason", ReasonSensorFault))
	metrics.RecordRowsRemoved(ReasonSensorFault, faults)

	before = powered.Len()
	daylight := powered.Filter(func(r table.Row) bool {
		return r.Values[irr] > 0
	})
	night := before - daylight.Len()
	logger.Get().Info(ctx, "removed nighttime rows",
		logger.Int("removed", night), logger.String("reason", ReasonNighttime))
	metrics.RecordRowsRemoved(ReasonNighttime, night)

	if daylight.Len() == 0 {
		return nil, fmt.Errorf("%w: %d input rows", ErrEmptyResult, in.Len())
	}
	return daylight, nil
}
