// Package dataset loads the generation and weather tables used for training,
// from CSV files or a SQL database, and joins them.
package dataset

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/solara/internal/domain/table"
)

// Source provides the two raw tables.
type Source interface {
	Generation(ctx context.Context) (*table.Frame, error)
	Weather(ctx context.Context) (*table.Frame, error)
}

// TimeLayouts are the DATE_TIME formats accepted by the loaders, tried in order.
var TimeLayouts = []string{
	"02-01-2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// ParseTime parses a DATE_TIME value in any of TimeLayouts, as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range TimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

// parseFloat reads a numeric cell. Empty cells and NaN markers are missing.
func parseFloat(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "null":
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q", ErrBadValue, s)
	}
	return v, true, nil
}

// frameBuilder accumulates rows whose numeric columns are discovered from
// a header.
type frameBuilder struct {
	sourceIdx int
	timeIdx   int
	numeric   []int
	frame     *table.Frame
}

func newFrameBuilder(header []string) *frameBuilder {
	b := &frameBuilder{sourceIdx: -1, timeIdx: -1}
	var columns []string
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch strings.ToUpper(h) {
		case table.ColSourceKey:
			b.sourceIdx = i
		case table.ColDateTime:
			b.timeIdx = i
		default:
			b.numeric = append(b.numeric, i)
			columns = append(columns, h)
		}
	}
	var opts []table.Option
	if b.sourceIdx < 0 {
		opts = append(opts, table.WithoutSource())
	}
	if b.timeIdx < 0 {
		opts = append(opts, table.WithoutTime())
	}
	b.frame = table.New(columns, opts...)
	return b
}

// add appends one record given as strings.
func (b *frameBuilder) add(record []string) error {
	var (
		source string
		ts     time.Time
		err    error
	)
	if b.sourceIdx >= 0 && b.sourceIdx < len(record) {
		source = strings.TrimSpace(record[b.sourceIdx])
	}
	if b.timeIdx >= 0 && b.timeIdx < len(record) {
		if ts, err = ParseTime(record[b.timeIdx]); err != nil {
			return err
		}
	}
	values := make([]float64, len(b.numeric))
	for j, i := range b.numeric {
		values[j] = nan
		if i >= len(record) {
			continue
		}
		v, ok, err := parseFloat(record[i])
		if err != nil {
			return fmt.Errorf("column %s: %w", b.frame.Columns()[j], err)
		}
		if ok {
			values[j] = v
		}
	}
	b.frame.Append(source, ts, values)
	return nil
}
