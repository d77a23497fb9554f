package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/solara/internal/app"
	"github.com/okian/solara/internal/adapters/repository"
	"github.com/okian/solara/internal/domain/model"
	"github.com/okian/solara/internal/domain/preprocess"
	"github.com/okian/solara/internal/training"
	"github.com/okian/solara/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var (
	bundleOnce sync.Once
	bundle     *repository.Bundle
	bundleErr  error
)

// trainedBundle fits a small bundle on synthetic data once per test binary.
func trainedBundle(t *testing.T) *repository.Bundle {
	t.Helper()
	bundleOnce.Do(func() {
		ctx := context.Background()
		src := training.NewSyntheticSource()
		src.Days = 1
		gen, _ := src.Generation(ctx)
		weather, _ := src.Weather(ctx)
		frame, err := training.BuildDataset(ctx, gen, weather)
		if err != nil {
			bundleErr = err
			return
		}
		bundle, _, bundleErr = training.New(nil).Fit(ctx, frame)
	})
	if bundleErr != nil {
		t.Fatalf("train bundle: %v", bundleErr)
	}
	return bundle
}

// stubLoader fails the first failures calls, then returns b.
type stubLoader struct {
	b        *repository.Bundle
	failures int64
	delay    time.Duration
	calls    atomic.Int64
}

func (l *stubLoader) LoadBundle(context.Context) (*repository.Bundle, error) {
	n := l.calls.Add(1)
	time.Sleep(l.delay)
	if n <= l.failures {
		return nil, repository.ErrArtifactNotFound
	}
	return l.b, nil
}

func daytimeReading() model.SensorReading {
	return model.SensorReading{
		DCPower:            0.82,
		ACPower:            0.8,
		AmbientTemperature: 28,
		ModuleTemperature:  45,
		Irradiation:        0.85,
	}
}

func TestModelRegistry(t *testing.T) {
	b := trainedBundle(t)

	Convey("Given an uninitialised registry", t, func() {
		Convey("When many goroutines race on the first call", func() {
			loader := &stubLoader{b: b, delay: 20 * time.Millisecond}
			reg := service.NewModelRegistry(loader)
			So(reg.Ready(), ShouldBeFalse)

			var wg sync.WaitGroup
			for range 20 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					got, err := reg.Bundle(context.Background())
					if err != nil || got != b {
						t.Errorf("unexpected bundle %p, err %v", got, err)
					}
				}()
			}
			wg.Wait()

			Convey("Then the artifacts should be loaded exactly once", func() {
				So(loader.calls.Load(), ShouldEqual, 1)
				So(reg.Loads(), ShouldEqual, 1)
				So(reg.Ready(), ShouldBeTrue)
			})
		})

		Convey("When the first load fails", func() {
			loader := &stubLoader{b: b, failures: 1}
			reg := service.NewModelRegistry(loader)
			err := reg.Warm(context.Background())

			Convey("Then the registry should stay uninitialised and retry later", func() {
				So(errors.Is(err, repository.ErrArtifactNotFound), ShouldBeTrue)
				So(reg.Ready(), ShouldBeFalse)

				got, err := reg.Bundle(context.Background())
				So(err, ShouldBeNil)
				So(got, ShouldEqual, b)
				So(reg.Ready(), ShouldBeTrue)
				So(loader.calls.Load(), ShouldEqual, 2)
			})
		})
	})
}

func TestServicePredict(t *testing.T) {
	b := trainedBundle(t)
	ctx := context.Background()

	Convey("Given a service with trained models", t, func() {
		svc := service.New(service.NewModelRegistry(&stubLoader{b: b}))

		Convey("When a valid daytime reading is scored", func() {
			result, err := svc.Predict(ctx, daytimeReading())

			Convey("Then all four fields should be populated", func() {
				So(err, ShouldBeNil)
				So(result, ShouldNotBeNil)
				So(result.EfficiencyPrediction, ShouldNotEqual, 0)
				So(result.AnomalyScore, ShouldBeBetweenOrEqual, 0, 1)
				So(result.AnomalyLabel, ShouldBeIn, []int{0, 1})
				So(result.RiskLevel, ShouldBeIn, []model.RiskLevel{model.RiskLow, model.RiskMedium, model.RiskHigh})
			})

			Convey("Then the same reading should score identically again", func() {
				again, err := svc.Predict(ctx, daytimeReading())
				So(err, ShouldBeNil)
				So(*again, ShouldResemble, *result)
			})
		})

		Convey("When a nighttime reading with zero irradiation is scored", func() {
			r := daytimeReading()
			r.Irradiation = 0

			out, evalErr := svc.Evaluate(ctx, r)
			_, predErr := svc.Predict(ctx, r)

			Convey("Then it should be rejected rather than failed", func() {
				So(evalErr, ShouldBeNil)
				So(out.Rejected, ShouldBeTrue)
				So(out.Result, ShouldBeNil)
				So(out.Reason, ShouldNotBeEmpty)
				So(errors.Is(predErr, service.ErrInputRejected), ShouldBeTrue)
				So(errors.Is(predErr, preprocess.ErrEmptyResult), ShouldBeTrue)
				So(svc.GetStats().Rejections, ShouldEqual, 2)
			})
		})

		Convey("When a reading carries its own source and timestamp", func() {
			r := daytimeReading()
			r.Source = "inverter_07"
			r.Timestamp = time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
			result, err := svc.Predict(ctx, r)

			Convey("Then the prediction should not depend on them", func() {
				So(err, ShouldBeNil)
				plain, _ := svc.Predict(ctx, daytimeReading())
				So(*result, ShouldResemble, *plain)
			})
		})

		Convey("When a reading passes validation but overflows the feature range", func() {
			r := daytimeReading()
			r.DCPower, r.ACPower = 1e39, 1e39
			result, err := svc.Predict(ctx, r)

			Convey("Then it should fail instead of returning non-finite fields", func() {
				So(result, ShouldBeNil)
				So(errors.Is(err, preprocess.ErrNonFinite), ShouldBeTrue)
				So(errors.Is(err, service.ErrInputRejected), ShouldBeFalse)
				So(svc.GetStats().Failures, ShouldEqual, 1)
			})
		})

		Convey("When the caller's context is already cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			result, err := svc.Predict(cancelled, daytimeReading())

			Convey("Then the prediction should be abandoned", func() {
				So(result, ShouldBeNil)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(svc.GetStats().Predictions, ShouldEqual, 0)
			})
		})

		Convey("When the deadline has passed", func() {
			expired, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
			defer cancel()
			_, err := svc.Predict(expired, daytimeReading())

			Convey("Then the error should report the deadline", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service whose artifacts are missing", t, func() {
		svc := service.New(service.NewModelRegistry(&stubLoader{failures: 1 << 30}))

		Convey("When it starts with warm-up enabled", func() {
			err := svc.Start(ctx)
			defer svc.Stop()

			Convey("Then start should still succeed", func() {
				So(err, ShouldBeNil)
				So(svc.GetStats().Started, ShouldBeTrue)
				So(svc.GetStats().ModelsReady, ShouldBeFalse)
			})

			Convey("Then a prediction should fail without a partial result", func() {
				result, err := svc.Predict(ctx, daytimeReading())
				So(result, ShouldBeNil)
				So(errors.Is(err, repository.ErrArtifactNotFound), ShouldBeTrue)
				So(errors.Is(err, service.ErrInputRejected), ShouldBeFalse)
				So(svc.GetStats().Failures, ShouldEqual, 1)
			})
		})
	})
}

// blockingReader replays msgs and then blocks until ctx is done.
type blockingReader struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (r *blockingReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *blockingReader) Close() error { return nil }

type collectingSink struct {
	mu     sync.Mutex
	events []model.ScoredEvent
}

func (s *collectingSink) Publish(_ context.Context, e model.ScoredEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *collectingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestServiceStream(t *testing.T) {
	b := trainedBundle(t)
	day := `{"dc_power":0.82,"ac_power":0.8,"ambient_temperature":28,"module_temperature":45,"irradiation":0.85,"source":"inverter_01"}`
	night := `{"dc_power":0.1,"ac_power":0.1,"ambient_temperature":18,"module_temperature":18,"irradiation":0.0001,"source":"inverter_01"}`

	Convey("Given a service scoring a stream", t, func() {
		reader := &blockingReader{msgs: []kafka.Message{
			{Key: []byte("a"), Value: []byte(day)},
			{Key: []byte("a"), Value: []byte(day)},
			{Key: []byte("b"), Value: []byte(`not json`)},
			{Key: []byte("c"), Value: []byte(night)},
			{Key: []byte("d"), Value: []byte(day)},
		}}
		sink := &collectingSink{}
		svc := service.New(service.NewModelRegistry(&stubLoader{b: b}),
			service.WithStream(reader, sink),
			service.WithWorkerCount(2),
			service.WithQueueSize(16),
		)
		So(svc.Start(context.Background()), ShouldBeNil)

		deadline := time.Now().Add(5 * time.Second)
		for sink.count() < 3 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		stats := svc.GetStats()
		svc.Stop()

		Convey("Then each unique valid reading should be scored and published", func() {
			So(stats.StreamEnabled, ShouldBeTrue)
			So(stats.DedupeEntries, ShouldEqual, 3)
			So(sink.count(), ShouldEqual, 3)
			ids := map[string]bool{}
			for _, e := range sink.events {
				ids[e.ID] = true
				So(e.Source, ShouldEqual, "inverter_01")
			}
			So(ids, ShouldResemble, map[string]bool{"a": true, "c": true, "d": true})
			So(svc.GetStats().Started, ShouldBeFalse)
		})
	})
}
