package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/solara/internal/domain/model"
	"github.com/okian/solara/pkg/logger"
)

const maxBodyBytes = 1 << 20

// internalErrorMessage is the only detail clients see for pipeline failures.
const internalErrorMessage = "Internal model error"

// predictRequest mirrors the OpenAPI schema for POST /predict/solar. Pointer
// fields tell a missing measurement from a zero one.
type predictRequest struct {
	DCPower            *float64 `json:"dc_power"`
	ACPower            *float64 `json:"ac_power"`
	AmbientTemperature *float64 `json:"ambient_temperature"`
	ModuleTemperature  *float64 `json:"module_temperature"`
	Irradiation        *float64 `json:"irradiation"`
}

func (p predictRequest) reading() (model.SensorReading, error) {
	var missing []string
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"dc_power", p.DCPower},
		{"ac_power", p.ACPower},
		{"ambient_temperature", p.AmbientTemperature},
		{"module_temperature", p.ModuleTemperature},
		{"irradiation", p.Irradiation},
	} {
		if f.v == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return model.SensorReading{}, fmt.Errorf("%w: missing %s", ErrBadRequest, strings.Join(missing, ", "))
	}
	r := model.SensorReading{
		DCPower:            *p.DCPower,
		ACPower:            *p.ACPower,
		AmbientTemperature: *p.AmbientTemperature,
		ModuleTemperature:  *p.ModuleTemperature,
		Irradiation:        *p.Irradiation,
	}
	if err := r.Validate(); err != nil {
		return model.SensorReading{}, err
	}
	return r, nil
}

// PredictHandler serves POST /predict/solar.
type PredictHandler struct {
	predictor Predictor
	timeout   time.Duration
	logger    logger.Logger
}

// NewPredictHandler creates a predict handler bounded by timeout.
func NewPredictHandler(predictor Predictor, timeout time.Duration) *PredictHandler {
	return &PredictHandler{
		predictor: predictor,
		timeout:   timeout,
		logger:    logger.Get().Named("api"),
	}
}

// HandlePredict validates the reading and returns the combined prediction.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req predictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: invalid JSON body", ErrBadRequest))
		return
	}
	reading, err := req.reading()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	out, err := h.predictor.Evaluate(ctx, reading)
	switch {
	case err != nil:
		h.logger.Error(ctx, "prediction request failed",
			logger.String("request_id", RequestIDFrom(r.Context())),
			logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "internal_error", Message: internalErrorMessage})
	case out.Rejected:
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Code: "input_rejected", Message: out.Reason})
	default:
		writeJSON(w, http.StatusOK, out.Result)
	}
}
