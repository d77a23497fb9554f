package loadtest

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/solara/internal/domain/model"
	"github.com/okian/solara/pkg/logger"
)

// Ranges for generated daylight readings, in the units of the plant dataset.
const (
	minIrradiation   = 0.05
	irradiationRange = 1.0
	ambientBase      = 18.0
	ambientRange     = 16.0
	moduleHeating    = 28.0
	minConversion    = 0.72
	conversionRange  = 0.26
	dcOverhead       = 1.03
)

// Out-of-bounds mutations applied to readings that must be refused with 400.
const (
	caseNegativeDC = iota
	caseZeroIrradiation
	caseHotAmbient
	caseColdModule
	invalidCases
)

// Generate builds n readings from seed. A share of them is deliberately out
// of bounds. The same seed always yields the same readings.
func Generate(ctx context.Context, n int, invalidShare float64, seed uint64) []Reading {
	logger.Get().Info(ctx, "generating readings",
		logger.Int("readings", n), logger.Float64("invalid_share", invalidShare))

	rng := rand.New(rand.NewPCG(seed, ^seed))
	ids := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]Reading, n)
	for i := range out {
		r := daylight(rng)
		rd := Reading{ID: requestID(ids), Body: r}
		if rng.Float64() < invalidShare {
			rd.Body = breakReading(r, rng.IntN(invalidCases))
			rd.WantInvalid = true
		}
		out[i] = rd
	}
	return out
}

func daylight(rng *rand.Rand) model.SensorReading {
	irr := minIrradiation + irradiationRange*rng.Float64()
	ambient := ambientBase + ambientRange*rng.Float64()
	ac := irr * (minConversion + conversionRange*rng.Float64())
	return model.SensorReading{
		DCPower:            ac * dcOverhead,
		ACPower:            ac,
		AmbientTemperature: round(ambient),
		ModuleTemperature:  round(ambient + moduleHeating*irr),
		Irradiation:        irr,
	}
}

func breakReading(r model.SensorReading, c int) model.SensorReading {
	switch c {
	case caseNegativeDC:
		r.DCPower = -r.DCPower
	case caseZeroIrradiation:
		r.Irradiation = 0
	case caseHotAmbient:
		r.AmbientTemperature = model.MaxAmbientTemperature + 10
	case caseColdModule:
		r.ModuleTemperature = model.MinModuleTemperature - 10
	}
	return r
}

// requestID draws a UUID from rng so generated IDs follow the seed.
func requestID(rng *rand.Rand) string {
	var b [16]byte
	for i := range b {
		b[i] = byte(rng.UintN(256))
	}
	id, _ := uuid.FromBytes(b[:])
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id.String()
}

func round(v float64) float64 { return math.Round(v*100) / 100 }
