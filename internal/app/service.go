// Package service implements the prediction orchestrator: it turns one raw
// sensor reading into an efficiency forecast, an anomaly verdict and a
// failure-risk level, and optionally scores readings from a stream.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/solara/internal/adapters/mq/queue"
	"github.com/okian/solara/internal/adapters/mq/stream"
	"github.com/okian/solara/internal/adapters/mq/worker"
	"github.com/okian/solara/internal/adapters/repository"
	"github.com/okian/solara/internal/domain/dedupe"
	"github.com/okian/solara/internal/domain/features"
	"github.com/okian/solara/internal/domain/ml"
	"github.com/okian/solara/internal/domain/model"
	"github.com/okian/solara/internal/domain/preprocess"
	"github.com/okian/solara/internal/domain/table"
	"github.com/okian/solara/pkg/logger"
	"github.com/okian/solara/pkg/metrics"
)

// OnlineSource is the source id given to readings that do not carry one.
const OnlineSource = "online_inverter"

// RejectReason explains a reading dropped by cleaning.
const RejectReason = "reading filtered out during cleaning (e.g. zero irradiation or negative power)"

// Outcome is the result of evaluating one reading: either a prediction or a
// rejection. Failures are reported as errors instead.
type Outcome struct {
	Result   *model.PredictionResult
	Rejected bool
	Reason   string
}

// Stats is a snapshot of the service state for monitoring.
type Stats struct {
	Started       bool  `json:"started"`
	ModelsReady   bool  `json:"models_ready"`
	ModelLoads    int64 `json:"model_loads"`
	Predictions   int64 `json:"predictions"`
	Rejections    int64 `json:"rejections"`
	Failures      int64 `json:"failures"`
	StreamEnabled bool  `json:"stream_enabled"`
	WorkerCount   int   `json:"worker_count"`
	QueueSize     int   `json:"queue_size"`
	QueueLength   int   `json:"queue_length"`
	StreamScored  int64 `json:"stream_scored"`
	DedupeSize    int   `json:"dedupe_size"`
	DedupeEntries int64 `json:"dedupe_entries"`
}

// Service sequences the pipeline over the registry's artifacts.
type Service struct {
	mu sync.RWMutex

	registry *ModelRegistry
	now      func() time.Time
	warmup   bool

	// Stream scoring
	reader      stream.MessageReader
	sink        worker.Sink
	workerCount int
	queueSize   int
	dedupeSize  int
	deduper     dedupe.Deduper
	readings    *queue.InMemoryQueue
	pool        *worker.Pool
	cancel      context.CancelFunc
	cancelPool  context.CancelFunc
	consumerWG  sync.WaitGroup

	predictions atomic.Int64
	rejections  atomic.Int64
	failures    atomic.Int64

	started bool
	logger  logger.Logger
}

// New constructs a Service reading artifacts through registry.
func New(registry *ModelRegistry, opts ...Option) *Service {
	s := &Service{
		registry:    registry,
		now:         time.Now,
		warmup:      true,
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10000,
		dedupeSize:  100000,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("predictor")
	}
	return s
}

// Registry returns the model registry backing the service.
func (s *Service) Registry() *ModelRegistry { return s.registry }

// Start warms the registry and starts stream scoring when configured. A
// failed warm-up is logged and the first prediction retries the load.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting prediction service...")

	if s.warmup {
		if err := s.registry.Warm(ctx); err != nil {
			s.logger.Warn(ctx, "model warm-up failed, will retry on first request", logger.Error(err))
		}
	}

	if s.reader != nil && s.sink != nil {
		s.startStream(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "prediction service started",
		logger.Bool("models_ready", s.registry.Ready()),
		logger.Bool("stream", s.pool != nil))
	return nil
}

func (s *Service) startStream(ctx context.Context) {
	// Workers outlive the consumer so Stop can drain the queue.
	base := context.WithoutCancel(ctx)
	streamCtx, cancel := context.WithCancel(base)
	poolCtx, cancelPool := context.WithCancel(base)
	s.cancel = cancel
	s.cancelPool = cancelPool
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.readings = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.readings, s, s.sink,
		worker.WithSkip(func(err error) bool { return errors.Is(err, ErrInputRejected) }))
	s.pool.Start(poolCtx)

	consumer := stream.NewConsumer(s.reader, s.readings, s.deduper)
	s.consumerWG.Add(1)
	go func() {
		defer s.consumerWG.Done()
		consumer.Run(streamCtx)
	}()
	s.logger.Info(ctx, "stream scoring started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize))
}

// Stop stops stream scoring, draining queued readings.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping prediction service...")

	if s.cancel != nil {
		// Stop reading first so the queue can be closed safely.
		s.cancel()
		s.consumerWG.Wait()
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
		s.cancelPool()
		if closer, ok := s.sink.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				s.logger.Warn(ctx, "error closing result sink", logger.Error(err))
			}
		}
		s.cancel, s.cancelPool = nil, nil
		s.pool, s.readings, s.deduper = nil, nil, nil
	}

	s.started = false
	s.logger.Info(ctx, "prediction service stopped")
}

// Evaluate runs the pipeline on one reading. A reading removed by cleaning
// yields a rejected Outcome and a nil error.
func (s *Service) Evaluate(ctx context.Context, r model.SensorReading) (Outcome, error) {
	start := time.Now()
	out, err := s.evaluate(ctx, r)
	metrics.RecordPredictionLatency(float64(time.Since(start).Microseconds()) / 1000)

	switch {
	case err != nil:
		s.failures.Add(1)
		metrics.RecordPrediction(metrics.OutcomeError)
		s.logger.Error(ctx, "prediction failed",
			logger.String("source", r.Source),
			logger.Any("reading", r),
			logger.Error(err))
	case out.Rejected:
		s.rejections.Add(1)
		metrics.RecordPrediction(metrics.OutcomeRejected)
		s.logger.Info(ctx, "reading rejected", logger.String("reason", out.Reason))
	default:
		s.predictions.Add(1)
		metrics.RecordPrediction(metrics.OutcomeSuccess)
		metrics.RecordPredictionResult(out.Result.EfficiencyPrediction, out.Result.Anomalous(), string(out.Result.RiskLevel))
	}
	return out, err
}

// Predict is Evaluate with rejection reported as ErrInputRejected.
func (s *Service) Predict(ctx context.Context, r model.SensorReading) (*model.PredictionResult, error) {
	out, err := s.Evaluate(ctx, r)
	if err != nil {
		return nil, err
	}
	if out.Rejected {
		return nil, fmt.Errorf("%w: %w", ErrInputRejected, preprocess.ErrEmptyResult)
	}
	return out.Result, nil
}

func (s *Service) evaluate(ctx context.Context, r model.SensorReading) (Outcome, error) {
	bundle, err := s.registry.Bundle(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("load models: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, fmt.Errorf("load models: %w", err)
	}

	frame := s.frameFor(r)
	cleaned, err := preprocess.Clean(ctx, frame)
	if errors.Is(err, preprocess.ErrEmptyResult) {
		return Outcome{Rejected: true, Reason: RejectReason}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("clean reading: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, fmt.Errorf("clean reading: %w", err)
	}

	engineered, err := features.Engineer(ctx, cleaned)
	if err != nil {
		return Outcome{}, fmt.Errorf("engineer features: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, fmt.Errorf("engineer features: %w", err)
	}
	if engineered.Len() == 0 {
		return Outcome{}, ErrNoFeatures
	}
	vector, err := features.Vector(engineered, 0)
	if err != nil {
		return Outcome{}, fmt.Errorf("select features: %w", err)
	}
	scaled, err := bundle.Scaler.TransformRow(vector)
	if err != nil {
		return Outcome{}, fmt.Errorf("scale features: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, fmt.Errorf("scale features: %w", err)
	}

	result, err := s.infer(bundle, [][]float64{scaled})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Result: result}, nil
}

// frameFor materialises r as a single-row raw frame.
func (s *Service) frameFor(r model.SensorReading) *table.Frame {
	source := r.Source
	if source == "" {
		source = OnlineSource
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = s.now().UTC()
	}
	frame := table.New(features.RawColumns)
	frame.Append(source, ts, []float64{
		r.DCPower,
		r.ACPower,
		r.AmbientTemperature,
		r.ModuleTemperature,
		r.Irradiation,
	})
	return frame
}

// infer runs the three models on the same scaled rows.
func (s *Service) infer(b *repository.Bundle, rows [][]float64) (*model.PredictionResult, error) {
	start := time.Now()
	efficiency, err := b.Efficiency.Predict(rows)
	if err != nil {
		return nil, fmt.Errorf("efficiency model: %w", err)
	}
	metrics.RecordModelLatency("efficiency", sinceMs(start))

	start = time.Now()
	scores, labels, err := b.Anomaly.Predict(rows)
	if err != nil {
		return nil, fmt.Errorf("anomaly model: %w", err)
	}
	metrics.RecordModelLatency("anomaly", sinceMs(start))

	start = time.Now()
	risk, err := b.Classifier.PredictLabel(rows)
	if err != nil {
		return nil, fmt.Errorf("risk classifier: %w", err)
	}
	metrics.RecordModelLatency("risk", sinceMs(start))

	if !isFinite(efficiency[0]) || !isFinite(scores[0]) {
		return nil, fmt.Errorf("%w: efficiency %g, anomaly score %g", ErrNonFiniteOutput, efficiency[0], scores[0])
	}
	return &model.PredictionResult{
		EfficiencyPrediction: efficiency[0],
		AnomalyScore:         scores[0],
		AnomalyLabel:         labels[0],
		RiskLevel:            ml.RiskLevelFor(risk[0]),
	}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Started:       s.started,
		ModelsReady:   s.registry.Ready(),
		ModelLoads:    s.registry.Loads(),
		Predictions:   s.predictions.Load(),
		Rejections:    s.rejections.Load(),
		Failures:      s.failures.Load(),
		StreamEnabled: s.pool != nil,
		WorkerCount:   s.workerCount,
		QueueSize:     s.queueSize,
		DedupeSize:    s.dedupeSize,
	}
	if s.pool != nil {
		stats.QueueLength = s.readings.Len(context.Background())
		stats.StreamScored = s.pool.Processed()
		stats.DedupeEntries = s.deduper.Size()
	}
	return stats
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func sinceMs(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
