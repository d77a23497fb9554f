package stream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/solara/internal/domain/model"
)

// readingMessage is the wire form of a reading on the input topic. Pointer
// fields let a missing measurement be told apart from a zero one.
type readingMessage struct {
	DCPower            *float64  `json:"dc_power"`
	ACPower            *float64  `json:"ac_power"`
	AmbientTemperature *float64  `json:"ambient_temperature"`
	ModuleTemperature  *float64  `json:"module_temperature"`
	Irradiation        *float64  `json:"irradiation"`
	Source             string    `json:"source"`
	Timestamp          time.Time `json:"timestamp"`
}

// DecodeReading parses and validates one message value.
func DecodeReading(value []byte) (model.SensorReading, error) {
	var msg readingMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return model.SensorReading{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	var missing []model.FieldError
	get := func(name string, v *float64) float64 {
		if v == nil {
			missing = append(missing, model.FieldError{Field: name, Message: "is required"})
			return 0
		}
		return *v
	}
	r := model.SensorReading{
		DCPower:            get("dc_power", msg.DCPower),
		ACPower:            get("ac_power", msg.ACPower),
		AmbientTemperature: get("ambient_temperature", msg.AmbientTemperature),
		ModuleTemperature:  get("module_temperature", msg.ModuleTemperature),
		Irradiation:        get("irradiation", msg.Irradiation),
		Source:             msg.Source,
		Timestamp:          msg.Timestamp,
	}
	if len(missing) > 0 {
		return model.SensorReading{}, &model.ValidationError{Fields: missing}
	}
	if err := r.Validate(); err != nil {
		return model.SensorReading{}, err
	}
	return r, nil
}

// MessageID identifies a message for deduplication: its key when set,
// otherwise its log position.
func MessageID(m kafka.Message) string {
	if len(m.Key) > 0 {
		return string(m.Key)
	}
	return m.Topic + "/" + strconv.Itoa(m.Partition) + "/" + strconv.FormatInt(m.Offset, 10)
}
