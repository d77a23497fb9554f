package model

import "time"

// ReadingEvent is a reading received from the stream, queued for scoring.
type ReadingEvent struct {
	ID         string        // message key used for idempotency
	Reading    SensorReading // payload
	ReceivedAt time.Time
}

// ScoredEvent is published once a ReadingEvent has been scored.
type ScoredEvent struct {
	ID         string           `json:"id"`
	Source     string           `json:"source"`
	Timestamp  time.Time        `json:"timestamp"`
	Prediction PredictionResult `json:"prediction"`
}
