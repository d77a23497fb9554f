// Command train builds the training dataset, fits the scaler and the three
// models and writes them to the models directory read by the predictor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/okian/solara/internal/adapters/dataset"
	"github.com/okian/solara/internal/adapters/repository"
	"github.com/okian/solara/internal/training"
	"github.com/okian/solara/pkg/logger"
)

// Supported -source values.
const (
	sourceCSV       = "csv"
	sourceSQL       = "sql"
	sourceSynthetic = "synthetic"
)

var errUsage = errors.New("invalid arguments")

type options struct {
	generationCSV   string
	weatherCSV      string
	source          string
	driver          string
	dsn             string
	generationTable string
	weatherTable    string
	modelsDir       string
	logLevel        string
	logFormat       string
	trainFraction   float64
	syntheticDays   int
	syntheticSeed   uint64
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.generationCSV, "generation-csv", "", "plant generation CSV (DATE_TIME, SOURCE_KEY, DC_POWER, AC_POWER)")
	fs.StringVar(&o.weatherCSV, "weather-csv", "", "weather sensor CSV (DATE_TIME, SOURCE_KEY, AMBIENT_TEMPERATURE, MODULE_TEMPERATURE, IRRADIATION)")
	fs.StringVar(&o.source, "source", sourceCSV, "dataset source: csv, sql or synthetic")
	fs.StringVar(&o.driver, "driver", "sqlite", "SQL driver for -source sql: sqlite or postgres")
	fs.StringVar(&o.dsn, "dsn", "", "SQL data source name for -source sql")
	fs.StringVar(&o.generationTable, "generation-table", dataset.DefaultGenerationTable, "generation table for -source sql")
	fs.StringVar(&o.weatherTable, "weather-table", dataset.DefaultWeatherTable, "weather table for -source sql")
	fs.StringVar(&o.modelsDir, "models-dir", envOr("SOLARA_MODELS_DIR", "models"), "directory the artifacts are written to")
	fs.StringVar(&o.logLevel, "log-level", envOr("SOLARA_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	fs.StringVar(&o.logFormat, "log-format", envOr("SOLARA_LOG_FORMAT", "text"), "log format: text or json")
	fs.Float64Var(&o.trainFraction, "train-fraction", training.DefaultTrainFraction, "chronological share of rows used for fitting")
	fs.IntVar(&o.syntheticDays, "synthetic-days", training.DefaultSyntheticDays, "days of data for -source synthetic")
	fs.Uint64Var(&o.syntheticSeed, "synthetic-seed", training.DefaultSyntheticSeed, "seed for -source synthetic")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch o.source {
	case sourceCSV:
		if o.generationCSV == "" || o.weatherCSV == "" {
			return nil, fmt.Errorf("%w: -generation-csv and -weather-csv are required", errUsage)
		}
	case sourceSQL:
		if o.dsn == "" {
			return nil, fmt.Errorf("%w: -dsn is required with -source sql", errUsage)
		}
	case sourceSynthetic:
	default:
		return nil, fmt.Errorf("%w: unknown -source %q", errUsage, o.source)
	}
	return o, nil
}

func main() {
	_ = godotenv.Load()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := logger.Init(logger.WithFormat(opts.logFormat)); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}
	if err := logger.SetLevelString(opts.logLevel); err != nil {
		_ = logger.SetLevelString("info")
	}

	if err := runUntilSignal(opts); err != nil {
		os.Exit(1)
	}
}

func runUntilSignal(opts *options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := run(ctx, opts); err != nil {
		logger.Get().Error(ctx, "training failed", logger.Error(err))
		return err
	}
	return nil
}

func run(ctx context.Context, opts *options) (training.Report, error) {
	src, closeSrc, err := openSource(opts)
	if err != nil {
		return training.Report{}, err
	}
	defer closeSrc()

	if err := os.MkdirAll(opts.modelsDir, 0o750); err != nil {
		return training.Report{}, fmt.Errorf("create models dir: %w", err)
	}
	store := repository.NewFileStore(opts.modelsDir)
	trainer := training.New(store, training.WithTrainFraction(opts.trainFraction))

	logger.Get().Info(ctx, "training started",
		logger.String("source", opts.source), logger.String("models_dir", opts.modelsDir))
	report, err := trainer.Run(ctx, src)
	if err != nil {
		return report, err
	}
	logger.Get().Info(ctx, "training finished",
		logger.Int("rows", report.Rows),
		logger.Float64("rmse", report.RMSE),
		logger.Float64("mae", report.MAE),
		logger.Float64("f1_weighted", report.F1),
		logger.Float64("anomaly_rate", report.AnomalyRate),
		logger.Duration("took", report.Took))
	return report, nil
}

func openSource(opts *options) (dataset.Source, func(), error) {
	noop := func() {}
	switch opts.source {
	case sourceSQL:
		src, err := dataset.OpenSQL(opts.driver, opts.dsn,
			dataset.WithGenerationTable(opts.generationTable),
			dataset.WithWeatherTable(opts.weatherTable))
		if err != nil {
			return nil, noop, fmt.Errorf("open %s dataset: %w", opts.driver, err)
		}
		return src, func() { _ = src.Close() }, nil
	case sourceSynthetic:
		src := training.NewSyntheticSource()
		src.Days = opts.syntheticDays
		src.Seed = opts.syntheticSeed
		return src, noop, nil
	default:
		return dataset.CSVSource{GenerationPath: opts.generationCSV, WeatherPath: opts.weatherCSV}, noop, nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
