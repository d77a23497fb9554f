package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/solara/internal/adapters/http/api"
	"github.com/okian/solara/internal/adapters/http/site"
	"github.com/okian/solara/internal/adapters/http/swagger"
	"github.com/okian/solara/internal/adapters/mq/stream"
	"github.com/okian/solara/internal/adapters/repository"
	app "github.com/okian/solara/internal/app"
	"github.com/okian/solara/internal/config"
	"github.com/okian/solara/pkg/logger"
	"github.com/okian/solara/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	if err := initLogging(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "predictor exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func initLogging(cfg *config.Config) error {
	opts := []logger.Option{logger.WithFormat(cfg.LogFormat)}
	if cfg.LogFile != "" {
		opts = append(opts, logger.WithFile(cfg.LogFile))
	}
	if err := logger.Init(opts...); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(context.Background(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	l := logger.Get()

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, svc, cfg),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("models_dir", cfg.ModelsDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%w: %w", api.ErrServe, err)
		}
	}
	l.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	l.Info(ctx, "server stopped")
	return nil
}

// newService builds the registry over the models directory and, when
// enabled, the Kafka reader and result publisher.
func newService(cfg *config.Config) (*app.Service, error) {
	store := repository.NewFileStore(cfg.ModelsDir)
	opts := []app.Option{
		app.WithWarmup(cfg.Warmup),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
	}
	if cfg.StreamEnabled {
		reader, err := stream.NewKafkaReader(cfg.Brokers(), cfg.StreamTopic, cfg.StreamGroupID)
		if err != nil {
			return nil, fmt.Errorf("kafka reader: %w", err)
		}
		writer, err := stream.NewKafkaWriter(cfg.Brokers(), cfg.StreamResultsTopic)
		if err != nil {
			_ = reader.Close()
			return nil, fmt.Errorf("kafka writer: %w", err)
		}
		opts = append(opts, app.WithStream(reader, stream.NewPublisher(writer)))
	}
	return app.New(app.NewModelRegistry(store), opts...), nil
}

func newHandler(ctx context.Context, svc *app.Service, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.WithRequestTimeout(cfg.RequestTimeout())).Register(ctx, mux)
	return api.Handler(mux)
}

// startSystemMetricsUpdater refreshes the process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		metrics.RecordSystemGCPauseTime(float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond)
	}
}
