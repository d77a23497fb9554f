// Package worker runs the goroutines that score queued stream readings and
// hand the results to a sink.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/solara/internal/domain/model"
	"github.com/okian/solara/pkg/logger"
	"github.com/okian/solara/pkg/metrics"
)

const (
	defaultWorkerCount  = 4
	poolShutdownTimeout = 30 * time.Second
)

// Event abstracts what workers read off the queue.
type Event = model.ReadingEvent

// Predictor scores one reading.
type Predictor interface {
	Predict(ctx context.Context, r model.SensorReading) (*model.PredictionResult, error)
}

// Sink receives scored readings.
type Sink interface {
	Publish(ctx context.Context, e model.ScoredEvent) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// ErrSkip marks a reading the predictor refused; the worker drops it
// without counting a failure.
var ErrSkip = errors.New("reading skipped")

// Worker processes events until its queue closes or it is stopped.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	predictor Predictor
	sink      Sink
	skip      func(error) bool
	name      string

	processed *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

var _ Worker = (*InMemoryWorker)(nil)

// NewInMemoryWorker creates a worker reading from queue.
func NewInMemoryWorker(queue Queue, predictor Predictor, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		predictor: predictor,
		sink:      sink,
		skip:      func(err error) bool { return errors.Is(err, ErrSkip) },
		name:      "worker",
		processed: &atomic.Int64{},
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, event); err != nil {
				w.logger.Error(ctx, "error processing reading", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for the current reading to finish.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Processed returns the number of readings scored and published.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

func (w *InMemoryWorker) process(ctx context.Context, event Event) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	result, err := w.predictor.Predict(ctx, event.Reading)
	if err != nil {
		if w.skip(err) {
			metrics.RecordStreamMessage("skipped")
			w.logger.Debug(ctx, "reading skipped",
				logger.String("id", event.ID), logger.Error(err))
			return nil
		}
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "prediction_error")
		return fmt.Errorf("predict reading %s: %w", event.ID, err)
	}

	scored := model.ScoredEvent{
		ID:         event.ID,
		Source:     event.Reading.Source,
		Timestamp:  event.Reading.Timestamp,
		Prediction: *result,
	}
	if err := w.sink.Publish(ctx, scored); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "publish_error")
		return fmt.Errorf("publish reading %s: %w", event.ID, err)
	}
	metrics.RecordStreamMessage("scored")
	w.processed.Add(1)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers. opts apply to every worker.
func NewPool(workerCount int, queue Queue, predictor Predictor, sink Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range workerCount {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, predictor, sink, workerOpts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the total number of readings scored by the pool.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Shutdown closes the queue, lets workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var errs []error
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, w.Shutdown(shutdownCtx))
		}
	}
	metrics.UpdateWorkerCount(0)
	return errors.Join(errs...)
}
