// Package generator produces synthetic surrogate text from an upstream
// completion service. Failures here never fail a run; callers fall back to
// deterministic masking.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rfranks/ehr-anonymizer/internal/logger"
)

// Config controls the HTTP generator client.
type Config struct {
	Endpoint          string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// HTTPGenerator calls an Ollama-compatible completion endpoint. Requests
// are rate limited so surrogate synthesis cannot saturate the upstream.
type HTTPGenerator struct {
	endpoint string
	model    string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *logger.Logger
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// New creates an HTTP generator.
func New(cfg Config, log *logger.Logger) *HTTPGenerator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPGenerator{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		logger:   log.WithComponent("generator"),
	}
}

// Generate requests a completion for prompt and returns its text.
func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(generateRequest{Model: g.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("encoding generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		g.logger.Warn("generator returned non-OK status", zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding generator response: %w", err)
	}
	return parsed.Response, nil
}
