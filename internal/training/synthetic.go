package training

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/okian/solara/internal/adapters/dataset"
	"github.com/okian/solara/internal/domain/features"
	"github.com/okian/solara/internal/domain/table"
	"github.com/okian/solara/pkg/logger"
)

// Plant condition profiles. Each source is assigned one; the factor is the
// share of irradiation converted to AC output.
const (
	conditionHealthy  = 0
	conditionAging    = 1
	conditionDegraded = 2
	conditionCount    = 3
)

var conditionFactor = [conditionCount]float64{0.96, 0.86, 0.74}

// Synthetic generator defaults.
const (
	DefaultSyntheticSources  = 6
	DefaultSyntheticDays     = 3
	DefaultSyntheticInterval = 15 * time.Minute
	DefaultSyntheticSeed     = 42

	faultEvery = 97 // one negative-power reading per source roughly daily
	spikeEvery = 53 // injected outliers for the anomaly detector
)

// SyntheticSource generates a plant's generation and weather tables with a
// diurnal irradiation cycle. Output is deterministic for a given seed.
type SyntheticSource struct {
	Sources  int
	Days     int
	Interval time.Duration
	Start    time.Time
	Seed     uint64

	gen     *table.Frame
	weather *table.Frame
}

var _ dataset.Source = (*SyntheticSource)(nil)

// NewSyntheticSource returns a generator with default settings.
func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{
		Sources:  DefaultSyntheticSources,
		Days:     DefaultSyntheticDays,
		Interval: DefaultSyntheticInterval,
		Start:    time.Date(2020, 5, 15, 0, 0, 0, 0, time.UTC),
		Seed:     DefaultSyntheticSeed,
	}
}

// Generation returns the generated DC/AC power table.
func (s *SyntheticSource) Generation(ctx context.Context) (*table.Frame, error) {
	s.generate(ctx)
	return s.gen.Clone(), nil
}

// Weather returns the generated temperature and irradiation table.
func (s *SyntheticSource) Weather(ctx context.Context) (*table.Frame, error) {
	s.generate(ctx)
	return s.weather.Clone(), nil
}

func (s *SyntheticSource) generate(ctx context.Context) {
	if s.gen != nil {
		return
	}
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSyntheticInterval
	}
	steps := int(time.Duration(max(s.Days, 1)) * 24 * time.Hour / interval)

	s.gen = table.New([]string{features.ColDCPower, features.ColACPower})
	s.weather = table.New([]string{
		features.ColAmbientTemperature,
		features.ColModuleTemperature,
		features.ColIrradiation,
	})

	for src := range max(s.Sources, 1) {
		source := fmt.Sprintf("inverter_%02d", src+1)
		condition := src % conditionCount
		for step := range steps {
			ts := s.Start.Add(time.Duration(step) * interval)
			hour := float64(ts.Hour()) + float64(ts.Minute())/60

			irradiation := 0.0
			if hour > 6 && hour < 18 {
				irradiation = math.Sin(math.Pi*(hour-6)/12) * (0.9 + 0.2*rng.Float64())
			}
			ambient := 22 + 8*math.Sin(math.Pi*(hour-9)/12) + rng.NormFloat64()
			module := ambient + 28*irradiation + rng.NormFloat64()

			// Output drifts down slowly over the run.
			factor := conditionFactor[condition] - 0.02*float64(step)/float64(steps)
			ac := irradiation * (factor + 0.03*rng.NormFloat64())
			dc := ac * (1.03 + 0.01*rng.Float64())
			if irradiation > 0 && step%spikeEvery == src {
				ac *= 0.3
				module += 20
			}
			if step%faultEvery == src {
				dc = -dc
			}
			s.gen.Append(source, ts, []float64{dc, ac})
			s.weather.Append(source, ts, []float64{ambient, module, irradiation})
		}
	}
	logger.Get().Info(ctx, "synthetic dataset generated",
		logger.Int("sources", max(s.Sources, 1)), logger.Int("rows_per_source", steps))
}
