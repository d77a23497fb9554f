// Package stream connects the predictor to Kafka: a consumer feeding
// readings into the work queue and a publisher writing scored results.
package stream

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/solara/internal/adapters/mq/queue"
	"github.com/okian/solara/internal/domain/dedupe"
	"github.com/okian/solara/internal/domain/model"
	"github.com/okian/solara/pkg/logger"
	"github.com/okian/solara/pkg/metrics"
)

const readBackoff = 500 * time.Millisecond

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads sensor readings from a topic and enqueues them for scoring.
type Consumer struct {
	reader  MessageReader
	queue   queue.Queue
	deduper dedupe.Deduper
	logger  logger.Logger
}

// NewKafkaReader builds a consumer-group reader for topic.
func NewKafkaReader(brokers []string, topic, groupID string) (*kafka.Reader, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	}), nil
}

// NewConsumer creates a consumer. A nil deduper disables deduplication.
func NewConsumer(reader MessageReader, q queue.Queue, deduper dedupe.Deduper) *Consumer {
	return &Consumer{
		reader:  reader,
		queue:   q,
		deduper: deduper,
		logger:  logger.Get().Named("stream-consumer"),
	}
}

// Run consumes until ctx is cancelled or the reader is closed, then closes
// the reader.
func (c *Consumer) Run(ctx context.Context) {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn(ctx, "error closing kafka reader", logger.Error(err))
		}
	}()
	c.logger.Info(ctx, "stream consumer started")

	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.Info(ctx, "stream consumer stopped")
				return
			}
			metrics.RecordErrorByComponent("stream", "read_error")
			c.logger.Warn(ctx, "kafka read error", logger.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(readBackoff):
			}
			continue
		}
		c.Handle(ctx, m)
	}
}

// Handle decodes one message and enqueues it. It reports whether the
// reading was queued.
func (c *Consumer) Handle(ctx context.Context, m kafka.Message) bool { //nolint:gocritic // hugeParam: kafka.Message is passed by value by the client
	reading, err := DecodeReading(m.Value)
	if err != nil {
		metrics.RecordStreamMessage("invalid")
		c.logger.Warn(ctx, "dropping invalid reading",
			logger.Int("partition", m.Partition),
			logger.Any("offset", m.Offset),
			logger.Error(err))
		return false
	}

	id := MessageID(m)
	if c.deduper != nil && c.deduper.SeenAndRecord(ctx, id) {
		metrics.RecordStreamMessage("duplicate")
		c.logger.Debug(ctx, "duplicate reading skipped", logger.String("id", id))
		return false
	}

	event := model.ReadingEvent{ID: id, Reading: reading, ReceivedAt: time.Now()}
	if !c.queue.Enqueue(ctx, event) {
		if c.deduper != nil {
			c.deduper.Unrecord(ctx, id)
		}
		metrics.RecordStreamMessage("dropped")
		c.logger.Warn(ctx, "queue full, dropping reading", logger.String("id", id))
		return false
	}
	metrics.RecordStreamMessage("accepted")
	return true
}
