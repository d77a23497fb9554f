package loadtest

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/solara/internal/domain/model"
	"github.com/okian/solara/pkg/logger"
)

var (
	ErrUnexpectedOutcome = errors.New("unexpected outcome")
	ErrMalformedResult   = errors.New("malformed prediction")
	ErrNondeterministic  = errors.New("prediction changed between identical requests")
)

// verifyResponses checks every response against what its reading should get:
// out-of-bounds readings are refused with 400 and nothing else is, and scored
// results are well formed. All violations are joined.
func verifyResponses(ctx context.Context, responses []Response) error {
	var errs []error
	for _, r := range responses {
		if r.Outcome == OutcomeFailed {
			continue
		}
		if r.Reading.WantInvalid != (r.Outcome == OutcomeInvalid) {
			errs = append(errs, fmt.Errorf("%w: reading %s got %s (status %d)",
				ErrUnexpectedOutcome, r.Reading.ID, r.Outcome, r.Status))
			continue
		}
		if r.Outcome == OutcomeScored {
			if err := checkResult(r.Result); err != nil {
				errs = append(errs, fmt.Errorf("reading %s: %w", r.Reading.ID, err))
			}
		}
	}
	if len(errs) == 0 {
		logger.Get().Info(ctx, "responses verified", logger.Int("responses", len(responses)))
	}
	return errors.Join(errs...)
}

func checkResult(p *model.PredictionResult) error {
	switch {
	case p == nil:
		return fmt.Errorf("%w: empty body", ErrMalformedResult)
	case math.IsNaN(p.EfficiencyPrediction) || math.IsInf(p.EfficiencyPrediction, 0):
		return fmt.Errorf("%w: efficiency %v", ErrMalformedResult, p.EfficiencyPrediction)
	case math.IsNaN(p.AnomalyScore) || math.IsInf(p.AnomalyScore, 0):
		return fmt.Errorf("%w: anomaly score %v", ErrMalformedResult, p.AnomalyScore)
	case p.AnomalyLabel != 0 && p.AnomalyLabel != 1:
		return fmt.Errorf("%w: anomaly label %d", ErrMalformedResult, p.AnomalyLabel)
	}
	switch p.RiskLevel {
	case model.RiskLow, model.RiskMedium, model.RiskHigh:
		return nil
	}
	return fmt.Errorf("%w: risk level %q", ErrMalformedResult, p.RiskLevel)
}

// verifyDeterminism compares each first-pass response with a second answer
// for the same reading. It returns the number of mismatches.
func verifyDeterminism(first, second []Response) (int, error) {
	var (
		mismatches int
		errs       []error
	)
	for i := range min(len(first), len(second)) {
		a, b := first[i], second[i]
		if a.Outcome == OutcomeFailed || b.Outcome == OutcomeFailed {
			continue
		}
		if a.Outcome != b.Outcome || !sameResult(a.Result, b.Result) {
			mismatches++
			errs = append(errs, fmt.Errorf("%w: reading %s", ErrNondeterministic, a.Reading.ID))
		}
	}
	return mismatches, errors.Join(errs...)
}

func sameResult(a, b *model.PredictionResult) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
