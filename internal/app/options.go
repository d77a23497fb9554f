package service

import (
	"time"

	"github.com/okian/solara/internal/adapters/mq/stream"
	"github.com/okian/solara/internal/adapters/mq/worker"
	"github.com/okian/solara/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of stream scoring workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the stream reading queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many stream message ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithWarmup controls whether Start loads the artifacts eagerly.
func WithWarmup(enabled bool) Option {
	return func(s *Service) { s.warmup = enabled }
}

// WithStream enables stream scoring: readings come from reader and scored
// results go to sink.
func WithStream(reader stream.MessageReader, sink worker.Sink) Option {
	return func(s *Service) {
		s.reader = reader
		s.sink = sink
	}
}

// WithClock overrides the time source used for readings without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
