package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/okian/solara/internal/domain/table"
	"github.com/okian/solara/pkg/logger"
)

var nan = math.NaN()

// CSVSource reads the two tables from CSV files with a header row.
type CSVSource struct {
	GenerationPath string
	WeatherPath    string
}

var _ Source = CSVSource{}

// Generation loads the generation CSV.
func (s CSVSource) Generation(ctx context.Context) (*table.Frame, error) {
	return LoadCSV(ctx, s.GenerationPath)
}

// Weather loads the weather CSV.
func (s CSVSource) Weather(ctx context.Context) (*table.Frame, error) {
	return LoadCSV(ctx, s.WeatherPath)
}

// LoadCSV reads a CSV file into a frame.
func LoadCSV(ctx context.Context, path string) (*table.Frame, error) {
	info, err := os.Stat(path)
	if err != nil {
		logger.Get().Error(ctx, "data file not found", logger.String("path", path), logger.Error(err))
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open dataset: %s is a directory", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = file.Close() }()

	logger.Get().Info(ctx, "loading csv", logger.String("path", path))
	f, err := ReadCSV(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ReadCSV parses CSV data. SOURCE_KEY and DATE_TIME become row keys; every
// other column must be numeric.
func ReadCSV(ctx context.Context, r io.Reader) (*table.Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	b := newFrameBuilder(header)

	for line := 2; ; line++ {
		if line%10_000 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := b.add(record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	logger.Get().Debug(ctx, "csv parsed",
		logger.Int("rows", b.frame.Len()), logger.Strings("columns", b.frame.Columns()))
	return b.frame, nil
}
