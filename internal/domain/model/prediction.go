package model

// RiskLevel is the failure-risk class reported to clients.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// PredictionResult combines the outputs of the three models for one reading.
type PredictionResult struct {
	EfficiencyPrediction float64   `json:"efficiency_prediction"`
	AnomalyScore         float64   `json:"anomaly_score"`
	AnomalyLabel         int       `json:"anomaly_label"`
	RiskLevel            RiskLevel `json:"risk_level"`
}

// Anomalous reports whether the reading was flagged by the anomaly detector.
func (p PredictionResult) Anomalous() bool { return p.AnomalyLabel == 1 }
