package dataset

import (
	"context"
	"slices"
	"time"

	"github.com/okian/solara/internal/domain/table"
	"github.com/okian/solara/pkg/logger"
)

// Suffixes applied to columns present in both tables.
const (
	GenerationSuffix = "_gen"
	WeatherSuffix    = "_weather"
)

type joinKey struct {
	source string
	ts     time.Time
}

// Merge inner-joins generation and weather rows on (DATE_TIME, SOURCE_KEY),
// sorts by source then time, fills gaps per source and drops rows still
// incomplete.
func Merge(ctx context.Context, gen, weather *table.Frame) (*table.Frame, error) {
	for _, f := range []*table.Frame{gen, weather} {
		if err := f.Require(table.ColSourceKey, table.ColDateTime); err != nil {
			logger.Get().Error(ctx, "SOURCE_KEY or DATE_TIME missing from a dataset", logger.Error(err))
			return nil, err
		}
	}

	genCols, weatherCols := gen.Columns(), weather.Columns()
	columns := make([]string, 0, len(genCols)+len(weatherCols))
	for _, c := range genCols {
		if slices.Contains(weatherCols, c) {
			c += GenerationSuffix
		}
		columns = append(columns, c)
	}
	for _, c := range weatherCols {
		if slices.Contains(genCols, c) {
			c += WeatherSuffix
		}
		columns = append(columns, c)
	}

	index := make(map[joinKey][]int, weather.Len())
	for i := range weather.Len() {
		r := weather.Row(i)
		k := joinKey{source: r.Source, ts: r.Time.UTC()}
		index[k] = append(index[k], i)
	}

	merged := table.New(columns)
	for i := range gen.Len() {
		g := gen.Row(i)
		for _, j := range index[joinKey{source: g.Source, ts: g.Time.UTC()}] {
			w := weather.Row(j)
			values := make([]float64, 0, len(columns))
			values = append(values, g.Values...)
			values = append(values, w.Values...)
			merged.Append(g.Source, g.Time, values)
		}
	}
	if merged.Len() == 0 {
		logger.Get().Error(ctx, "merged dataset is empty after join on DATE_TIME and SOURCE_KEY")
		return nil, ErrEmptyMerge
	}

	out := merged.SortBySourceTime().FillPerSource().DropIncomplete()
	logger.Get().Info(ctx, "dataset merged",
		logger.Int("rows", out.Len()), logger.Int("columns", len(columns)))
	return out, nil
}
