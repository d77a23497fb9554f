package ml

import "github.com/okian/solara/internal/domain/model"

// Risk classes.
const (
	RiskLabelLow    = 0
	RiskLabelMedium = 1
	RiskLabelHigh   = 2

	NumRiskClasses = 3
)

// Efficiency thresholds separating the risk classes. Intervals are half-open.
const (
	HighRiskBelow   = 0.8
	MediumRiskBelow = 0.9
)

// EfficiencyToRiskLabel maps an efficiency value to a risk class:
// below 0.8 is high, [0.8, 0.9) is medium, 0.9 and above is low.
func EfficiencyToRiskLabel(v float64) int {
	switch {
	case v < HighRiskBelow:
		return RiskLabelHigh
	case v < MediumRiskBelow:
		return RiskLabelMedium
	default:
		return RiskLabelLow
	}
}

// RiskLevelFor names a risk class. Unknown classes map to Low.
func RiskLevelFor(label int) model.RiskLevel {
	switch label {
	case RiskLabelMedium:
		return model.RiskMedium
	case RiskLabelHigh:
		return model.RiskHigh
	default:
		return model.RiskLow
	}
}
