// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidReading is the sentinel kind behind every ValidationError.
var ErrInvalidReading = errors.New("invalid sensor reading")

// Domain bounds accepted at the serving boundary.
const (
	MinAmbientTemperature = -40.0
	MaxAmbientTemperature = 80.0
	MinModuleTemperature  = -40.0
	MaxModuleTemperature  = 120.0
)

// SensorReading is one raw observation from an inverter.
type SensorReading struct {
	DCPower            float64   `json:"dc_power"`
	ACPower            float64   `json:"ac_power"`
	AmbientTemperature float64   `json:"ambient_temperature"`
	ModuleTemperature  float64   `json:"module_temperature"`
	Irradiation        float64   `json:"irradiation"`
	Source             string    `json:"source,omitempty"`    // inverter id, optional
	Timestamp          time.Time `json:"timestamp,omitzero"` // observation time, optional
}

// FieldError describes a single field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Message
	}
	return fmt.Sprintf("%s: %s", ErrInvalidReading, strings.Join(parts, "; "))
}

// Is matches ErrInvalidReading.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidReading }

// Validate enforces the domain bounds. All failing fields are reported.
func (r SensorReading) Validate() error {
	var fields []FieldError
	check := func(name string, v float64, ok bool, msg string) {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			fields = append(fields, FieldError{Field: name, Message: "must be a finite number"})
		case !ok:
			fields = append(fields, FieldError{Field: name, Message: msg})
		}
	}
	check("dc_power", r.DCPower, r.DCPower > 0, "must be greater than 0")
	check("ac_power", r.ACPower, r.ACPower > 0, "must be greater than 0")
	check("ambient_temperature", r.AmbientTemperature,
		r.AmbientTemperature >= MinAmbientTemperature && r.AmbientTemperature <= MaxAmbientTemperature,
		fmt.Sprintf("must be between %g and %g", MinAmbientTemperature, MaxAmbientTemperature))
	check("module_temperature", r.ModuleTemperature,
		r.ModuleTemperature >= MinModuleTemperature && r.ModuleTemperature <= MaxModuleTemperature,
		fmt.Sprintf("must be between %g and %g", MinModuleTemperature, MaxModuleTemperature))
	check("irradiation", r.Irradiation, r.Irradiation > 0, "must be greater than 0")

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
