package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/okian/solara/internal/domain/model"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes scored readings to the results topic, keyed by source so
// one inverter's results stay ordered.
type Publisher struct {
	writer MessageWriter
}

// NewKafkaWriter builds a writer for topic.
func NewKafkaWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}, nil
}

// NewPublisher wraps writer.
func NewPublisher(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer}
}

// Publish encodes e as JSON and writes it.
func (p *Publisher) Publish(ctx context.Context, e model.ScoredEvent) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode scored reading: %w", err)
	}
	key := e.Source
	if key == "" {
		key = e.ID
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("write scored reading: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error { return p.writer.Close() }
