package loadtest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/solara/internal/adapters/http/api"
	service "github.com/okian/solara/internal/app"
	"github.com/okian/solara/internal/domain/model"
	"github.com/okian/solara/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakePredictor scores a reading from its own fields. When drift is set every
// call shifts the efficiency so repeated requests disagree.
type fakePredictor struct {
	drift bool
	calls atomic.Int64
}

func (f *fakePredictor) Evaluate(_ context.Context, r model.SensorReading) (service.Outcome, error) {
	n := f.calls.Add(1)
	eff := r.ACPower / r.Irradiation
	if f.drift {
		eff += float64(n)
	}
	risk := model.RiskLow
	if eff < 0.8 {
		risk = model.RiskHigh
	}
	return service.Outcome{Result: &model.PredictionResult{
		EfficiencyPrediction: eff,
		AnomalyScore:         -0.1,
		RiskLevel:            risk,
	}}, nil
}

type fakeStats struct{ p *fakePredictor }

func (s fakeStats) GetStats() service.Stats {
	return service.Stats{Started: true, ModelsReady: true, Predictions: s.p.calls.Load()}
}

func newServer(p *fakePredictor) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(p, fakeStats{p}).Register(context.Background(), mux)
	return httptest.NewServer(api.Handler(mux))
}

func testConfig(url string) *Config {
	return &Config{
		BaseURL:      url,
		NumReadings:  200,
		InvalidShare: 0.2,
		Repeats:      10,
		Workers:      4,
		Timeout:      5 * time.Second,
		Seed:         7,
	}
}

func TestGenerate(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		a := Generate(context.Background(), 500, 0.2, 3)
		b := Generate(context.Background(), 500, 0.2, 3)

		Convey("Then the same seed should give the same readings", func() {
			So(a, ShouldResemble, b)
		})

		Convey("Then only readings marked invalid should fail validation", func() {
			var invalid int
			for _, r := range a {
				err := r.Body.Validate()
				So(err != nil, ShouldEqual, r.WantInvalid)
				if r.WantInvalid {
					invalid++
				}
			}
			So(invalid, ShouldBeGreaterThan, 50)
			So(invalid, ShouldBeLessThan, 150)
		})

		Convey("Then request IDs should be unique", func() {
			seen := make(map[string]struct{}, len(a))
			for _, r := range a {
				seen[r.ID] = struct{}{}
			}
			So(len(seen), ShouldEqual, len(a))
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a predictor that answers consistently", t, func() {
		p := &fakePredictor{}
		srv := newServer(p)
		defer srv.Close()

		cfg := testConfig(srv.URL)
		cfg.OutputFile = filepath.Join(t.TempDir(), "out", "readings.json")
		stats, err := Run(context.Background(), cfg)

		Convey("Then every reading should be accounted for", func() {
			So(err, ShouldBeNil)
			So(stats.Generated, ShouldEqual, 200)
			So(stats.Submitted, ShouldEqual, 200)
			So(stats.Scored+stats.Invalid, ShouldEqual, 200)
			So(stats.Invalid, ShouldBeGreaterThan, 0)
			So(stats.Failed, ShouldEqual, 0)
			So(stats.Mismatches, ShouldEqual, 0)
		})

		Convey("Then the readings should be written out", func() {
			_, statErr := os.Stat(cfg.OutputFile)
			So(statErr, ShouldBeNil)
		})
	})

	Convey("Given a predictor whose answers drift", t, func() {
		srv := newServer(&fakePredictor{drift: true})
		defer srv.Close()

		stats, err := Run(context.Background(), testConfig(srv.URL))

		Convey("Then the run should report nondeterminism", func() {
			So(errors.Is(err, ErrNondeterministic), ShouldBeTrue)
			So(stats.Mismatches, ShouldBeGreaterThan, 0)
		})
	})

	Convey("Given no service", t, func() {
		srv := newServer(&fakePredictor{})
		url := srv.URL
		srv.Close()

		_, err := Run(context.Background(), testConfig(url))

		Convey("Then the health check should fail", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestVerifyResponses(t *testing.T) {
	Convey("Given classified responses", t, func() {
		ok := &model.PredictionResult{EfficiencyPrediction: 0.9, RiskLevel: model.RiskLow}

		Convey("When an out-of-bounds reading is scored", func() {
			err := verifyResponses(context.Background(), []Response{
				{Reading: Reading{ID: "x", WantInvalid: true}, Outcome: OutcomeScored, Status: 200, Result: ok},
			})
			So(errors.Is(err, ErrUnexpectedOutcome), ShouldBeTrue)
		})

		Convey("When a result carries an unknown risk level", func() {
			err := verifyResponses(context.Background(), []Response{
				{Reading: Reading{ID: "y"}, Outcome: OutcomeScored, Result: &model.PredictionResult{RiskLevel: "Severe"}},
			})
			So(errors.Is(err, ErrMalformedResult), ShouldBeTrue)
		})

		Convey("When transport failures occur", func() {
			err := verifyResponses(context.Background(), []Response{
				{Reading: Reading{ID: "z", WantInvalid: true}, Outcome: OutcomeFailed},
				{Reading: Reading{ID: "w"}, Outcome: OutcomeRejected, Status: 422},
			})
			So(err, ShouldBeNil)
		})
	})
}
