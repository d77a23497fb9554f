package loadtest

import (
	"time"

	"github.com/okian/solara/internal/domain/model"
)

// Config holds configuration for a load test run.
type Config struct {
	BaseURL      string        // base URL of the predictor
	NumReadings  int           // readings to generate and submit
	InvalidShare float64       // share of readings generated out of bounds
	Repeats      int           // readings resubmitted to check determinism
	Workers      int           // concurrent submitters
	Timeout      time.Duration // per-request timeout
	Seed         uint64
	OutputFile   string // optional JSON dump of the generated readings
	Verbose      bool
}

// Reading is a generated request together with what the server should do
// with it.
type Reading struct {
	ID          string              `json:"id"`
	Body        model.SensorReading `json:"body"`
	WantInvalid bool                `json:"want_invalid"`
}

// Outcome classifies one response from POST /predict/solar.
type Outcome string

const (
	OutcomeScored   Outcome = "scored"   // 200
	OutcomeInvalid  Outcome = "invalid"  // 400
	OutcomeRejected Outcome = "rejected" // 422
	OutcomeFailed   Outcome = "failed"   // transport error or any other status
)

// Response is the server's answer to one reading.
type Response struct {
	Reading Reading
	Outcome Outcome
	Status  int
	Result  *model.PredictionResult
	Latency time.Duration
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Scored     int
	Invalid    int
	Rejected   int
	Failed     int
	Anomalies  int
	RiskLevels map[model.RiskLevel]int
	Mismatches int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}

func (s *Stats) add(r Response) {
	s.Submitted++
	switch r.Outcome {
	case OutcomeScored:
		s.Scored++
		if r.Result != nil {
			if r.Result.Anomalous() {
				s.Anomalies++
			}
			if s.RiskLevels == nil {
				s.RiskLevels = make(map[model.RiskLevel]int)
			}
			s.RiskLevels[r.Result.RiskLevel]++
		}
	case OutcomeInvalid:
		s.Invalid++
	case OutcomeRejected:
		s.Rejected++
	default:
		s.Failed++
	}
}
