package stream_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/solara/internal/adapters/mq/queue"
	"github.com/okian/solara/internal/adapters/mq/stream"
	"github.com/okian/solara/internal/domain/dedupe"
	"github.com/okian/solara/internal/domain/model"
	"github.com/okian/solara/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const validReading = `{"dc_power":10.3,"ac_power":9.8,"ambient_temperature":25,` +
	`"module_temperature":41,"irradiation":0.85,"source":"inverter_01","timestamp":"2020-05-15T12:00:00Z"}`

// fakeReader replays messages then reports io.EOF.
type fakeReader struct {
	msgs   []kafka.Message
	closed bool
}

func (r *fakeReader) ReadMessage(context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestDecodeReading(t *testing.T) {
	convey.Convey("Given reading messages", t, func() {
		convey.Convey("When the message is complete", func() {
			r, err := stream.DecodeReading([]byte(validReading))

			convey.Convey("Then every field should be decoded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.DCPower, convey.ShouldEqual, 10.3)
				convey.So(r.Irradiation, convey.ShouldEqual, 0.85)
				convey.So(r.Source, convey.ShouldEqual, "inverter_01")
				convey.So(r.Timestamp, convey.ShouldEqual, time.Date(2020, 5, 15, 12, 0, 0, 0, time.UTC))
			})
		})

		convey.Convey("When a measurement is missing", func() {
			_, err := stream.DecodeReading([]byte(`{"dc_power":10,"ac_power":9,"ambient_temperature":25,"module_temperature":40}`))

			convey.Convey("Then it should fail validation naming the field", func() {
				convey.So(errors.Is(err, model.ErrInvalidReading), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "irradiation is required")
			})
		})

		convey.Convey("When a measurement is out of range", func() {
			_, err := stream.DecodeReading([]byte(`{"dc_power":10,"ac_power":9,"ambient_temperature":200,"module_temperature":40,"irradiation":0.5}`))

			convey.Convey("Then it should fail validation", func() {
				convey.So(errors.Is(err, model.ErrInvalidReading), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the payload is not JSON", func() {
			_, err := stream.DecodeReading([]byte("dc=10"))

			convey.Convey("Then it should be reported as malformed", func() {
				convey.So(errors.Is(err, stream.ErrMalformedMessage), convey.ShouldBeTrue)
			})
		})
	})
}

func TestMessageID(t *testing.T) {
	convey.Convey("Given kafka messages", t, func() {
		convey.So(stream.MessageID(kafka.Message{Key: []byte("k1"), Topic: "t", Offset: 3}), convey.ShouldEqual, "k1")
		convey.So(stream.MessageID(kafka.Message{Topic: "solar.readings", Partition: 2, Offset: 17}), convey.ShouldEqual, "solar.readings/2/17")
	})
}

func TestConsumer(t *testing.T) {
	convey.Convey("Given a consumer over a replayed topic", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		reader := &fakeReader{msgs: []kafka.Message{
			{Key: []byte("m1"), Value: []byte(validReading)},
			{Key: []byte("m1"), Value: []byte(validReading)},
			{Key: []byte("m2"), Value: []byte(`{"dc_power":-1}`)},
			{Key: []byte("m3"), Value: []byte(validReading)},
		}}
		c := stream.NewConsumer(reader, q, dedupe.NewInMemoryDeduper())

		convey.Convey("When it runs to the end of the topic", func() {
			c.Run(context.Background())

			convey.Convey("Then duplicates and invalid readings should be dropped", func() {
				convey.So(q.Len(context.Background()), convey.ShouldEqual, 2)
				convey.So(reader.closed, convey.ShouldBeTrue)

				ctx, cancel := context.WithCancel(context.Background())
				defer cancel()
				ch := q.Dequeue(ctx)
				first, second := <-ch, <-ch
				convey.So(first.ID, convey.ShouldEqual, "m1")
				convey.So(second.ID, convey.ShouldEqual, "m3")
				convey.So(first.Reading.Source, convey.ShouldEqual, "inverter_01")
			})
		})

		convey.Convey("When the queue is full", func() {
			full := queue.NewInMemoryQueue(queue.WithCapacity(1))
			d := dedupe.NewInMemoryDeduper()
			c := stream.NewConsumer(&fakeReader{}, full, d)
			ctx := context.Background()

			convey.So(c.Handle(ctx, kafka.Message{Key: []byte("a"), Value: []byte(validReading)}), convey.ShouldBeTrue)
			convey.So(c.Handle(ctx, kafka.Message{Key: []byte("b"), Value: []byte(validReading)}), convey.ShouldBeFalse)

			convey.Convey("Then the dropped id should be forgotten for redelivery", func() {
				convey.So(d.Size(), convey.ShouldEqual, 1)
				convey.So(d.SeenAndRecord(ctx, "b"), convey.ShouldBeFalse)
			})
		})
	})
}

func TestPublisher(t *testing.T) {
	convey.Convey("Given a publisher", t, func() {
		w := &fakeWriter{}
		p := stream.NewPublisher(w)
		event := model.ScoredEvent{
			ID:     "m1",
			Source: "inverter_01",
			Prediction: model.PredictionResult{
				EfficiencyPrediction: 0.93, AnomalyScore: 0.41, RiskLevel: model.RiskLow,
			},
		}

		convey.Convey("When a scored reading is published", func() {
			err := p.Publish(context.Background(), event)

			convey.Convey("Then it should be written as JSON keyed by source", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.msgs, convey.ShouldHaveLength, 1)
				convey.So(string(w.msgs[0].Key), convey.ShouldEqual, "inverter_01")

				var got model.ScoredEvent
				convey.So(json.Unmarshal(w.msgs[0].Value, &got), convey.ShouldBeNil)
				convey.So(got.Prediction.RiskLevel, convey.ShouldEqual, model.RiskLow)
				convey.So(got.Prediction.EfficiencyPrediction, convey.ShouldEqual, 0.93)
			})
		})

		convey.Convey("When the writer fails", func() {
			w.err = errors.New("leader not available")
			err := p.Publish(context.Background(), event)

			convey.Convey("Then the error should be returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "leader not available")
			})
		})
	})

	convey.Convey("Given no brokers", t, func() {
		_, err := stream.NewKafkaWriter(nil, "solar.predictions")
		convey.So(errors.Is(err, stream.ErrNoBrokers), convey.ShouldBeTrue)
		_, err = stream.NewKafkaReader(nil, "solar.readings", "g")
		convey.So(errors.Is(err, stream.ErrNoBrokers), convey.ShouldBeTrue)
	})
}
