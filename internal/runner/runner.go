// Package runner adapts a remote backtest service to the walk-forward Runner contract.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/strategy-validator/internal/backtest"
	"github.com/yourusername/strategy-validator/internal/logger"
	"github.com/yourusername/strategy-validator/internal/params"
)

const (
	backtestsPath   = "/v1/backtests"
	maxResponseSize = 32 << 20
)

// StatusError is returned when the backtest service answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backtest service returned status %d: %s", e.StatusCode, e.Body)
}

type backtestRequest struct {
	Strategy   string             `json:"strategy"`
	Version    string             `json:"version,omitempty"`
	Settings   map[string]any     `json:"settings,omitempty"`
	Parameters params.Combination `json:"parameters"`
	Start      time.Time          `json:"start"`
	End        time.Time          `json:"end"`
}

// HTTPRunner runs backtests through the remote backtest service
type HTTPRunner struct {
	client  *RateLimitedHTTPClient
	baseURL string
	apiKey  string
	logger  *logger.OptimizerLogger
}

// NewHTTPRunner creates a runner posting to baseURL
func NewHTTPRunner(client *RateLimitedHTTPClient, baseURL, apiKey string, log *logrus.Logger) *HTTPRunner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HTTPRunner{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger.NewOptimizerLogger(log),
	}
}

// Run posts one backtest request and decodes the trades and portfolio timeline
func (r *HTTPRunner) Run(ctx context.Context, template backtest.StrategyTemplate, combination params.Combination, period backtest.Period) (backtest.RunResult, error) {
	payload, err := json.Marshal(backtestRequest{
		Strategy:   template.Name,
		Version:    template.Version,
		Settings:   template.Settings,
		Parameters: combination,
		Start:      period.Start,
		End:        period.End,
	})
	if err != nil {
		return backtest.RunResult{}, fmt.Errorf("failed to encode backtest request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+backtestsPath, bytes.NewReader(payload))
	if err != nil {
		return backtest.RunResult{}, fmt.Errorf("failed to build backtest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		r.logger.LogRunnerError(template.Key(), combination.String(), err)
		return backtest.RunResult{}, fmt.Errorf("backtest request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return backtest.RunResult{}, fmt.Errorf("failed to read backtest response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		r.logger.LogRunnerError(template.Key(), combination.String(), statusErr)
		return backtest.RunResult{}, statusErr
	}

	var result backtest.RunResult
	if err := json.Unmarshal(body, &result); err != nil {
		return backtest.RunResult{}, fmt.Errorf("failed to decode backtest response: %w", err)
	}
	if result.Trades == nil {
		result.Trades = []backtest.Trade{}
	}
	return result, nil
}
