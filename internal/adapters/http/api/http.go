// Package api exposes the prediction service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	service "github.com/okian/solara/internal/app"
	"github.com/okian/solara/internal/domain/model"
)

const defaultRequestTimeout = 2 * time.Second

// Predictor evaluates one reading.
type Predictor interface {
	Evaluate(ctx context.Context, r model.SensorReading) (service.Outcome, error)
}

// StatsProvider exposes service statistics.
type StatsProvider interface {
	GetStats() service.Stats
}

// Server wires HTTP routes for the prediction API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	predictHandler *PredictHandler
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	requestTimeout time.Duration
}

// WithRequestTimeout bounds the time spent scoring one request.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *serverConfig) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(predictor Predictor, stats StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{requestTimeout: defaultRequestTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(stats),
		predictHandler: NewPredictHandler(predictor, cfg.requestTimeout),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/predict/solar", MetricsMiddleware(s.predictHandler.HandlePredict, "predict"))
	mux.HandleFunc("/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
}

// Handler wraps mux with the request id and CORS middleware.
func Handler(mux http.Handler) http.Handler {
	return RequestID(CORS(mux))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v before committing the status, so a value that cannot
// be encoded becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Code: "internal_error", Message: internalErrorMessage})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
}
