package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/okian/solara/internal/adapters/http/api"
	service "github.com/okian/solara/internal/app"
	"github.com/okian/solara/internal/domain/model"
	"github.com/okian/solara/pkg/logger"
)

// HTTPClient wraps http.Client with a per-request timeout.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a client for the predictor at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

// Get performs a GET request and decodes a 200 JSON body into out.
func (c *HTTPClient) Get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// Predict submits one reading and classifies the answer.
func (c *HTTPClient) Predict(ctx context.Context, rd Reading) Response {
	start := time.Now()
	res := Response{Reading: rd, Outcome: OutcomeFailed}

	data, err := json.Marshal(rd.Body)
	if err != nil {
		return res
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathPredict, bytes.NewReader(data))
	if err != nil {
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.HeaderRequestID, rd.ID)

	resp, err := c.client.Do(req)
	if err != nil {
		return res
	}
	body, err := readResponseBody(resp)
	res.Latency = time.Since(start)
	res.Status = resp.StatusCode
	if err != nil {
		return res
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var p model.PredictionResult
		if err := json.Unmarshal(body, &p); err == nil {
			res.Outcome = OutcomeScored
			res.Result = &p
		}
	case http.StatusBadRequest:
		res.Outcome = OutcomeInvalid
	case http.StatusUnprocessableEntity:
		res.Outcome = OutcomeRejected
	}
	return res
}

// Stats fetches the predictor's counters.
func (c *HTTPClient) Stats(ctx context.Context) (service.Stats, error) {
	var s service.Stats
	err := c.Get(ctx, pathStats, &s)
	return s, err
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return b, nil
}

// submitReadings fans readings out over cfg.Workers submitters. Responses are
// returned in input order.
func submitReadings(ctx context.Context, cfg *Config, client *HTTPClient, readings []Reading) []Response {
	log := logger.Get().Named("loadtest")
	log.Info(ctx, "submitting readings",
		logger.Int("readings", len(readings)), logger.Int("workers", cfg.Workers))

	out := make([]Response, len(readings))
	jobs := make(chan int, max(cfg.Workers, 1)*WorkerChannelMultiplier)

	var (
		mu         sync.Mutex
		done       int
		lastReport = time.Now()
		wg         sync.WaitGroup
	)
	for range max(cfg.Workers, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = client.Predict(ctx, readings[i])

				mu.Lock()
				done++
				if cfg.Verbose && time.Since(lastReport) >= ProgressInterval {
					lastReport = time.Now()
					log.Info(ctx, "progress", logger.Int("submitted", done), logger.Int("total", len(readings)))
				}
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range readings {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	// Readings never handed to a worker stay failed.
	for i := range out {
		if out[i].Outcome == "" {
			out[i] = Response{Reading: readings[i], Outcome: OutcomeFailed}
		}
	}
	return out
}
