package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/strategy-validator/internal/config"
	"github.com/yourusername/strategy-validator/internal/logger"
	"github.com/yourusername/strategy-validator/internal/metrics"
)

// ErrCircuitOpen is returned while the circuit breaker rejects requests
var ErrCircuitOpen = errors.New("circuit breaker open")

// HTTPClientConfig holds configuration for the runner HTTP client
type HTTPClientConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RateLimit         float64 // requests per second
	Burst             int
	CircuitBreakerMax int // max consecutive failures before circuit break
	// CircuitBreakerReset is how long the breaker stays open before letting a trial request through
	CircuitBreakerReset time.Duration
}

// DefaultHTTPClientConfig returns recommended defaults
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:             60 * time.Second,
		MaxRetries:          3,
		RetryWaitMin:        100 * time.Millisecond,
		RetryWaitMax:        10 * time.Second,
		RateLimit:           10.0,
		Burst:               1,
		CircuitBreakerMax:   5,
		CircuitBreakerReset: 30 * time.Second,
	}
}

// ClientConfigFromRunner maps runner settings onto client settings
func ClientConfigFromRunner(cfg config.RunnerConfig) HTTPClientConfig {
	out := DefaultHTTPClientConfig()
	if cfg.TimeoutSeconds > 0 {
		out.Timeout = cfg.RequestTimeout()
	}
	out.MaxRetries = cfg.RetryAttempts
	if cfg.RequestsPerSecond > 0 {
		out.RateLimit = cfg.RequestsPerSecond
	}
	if cfg.Burst > 0 {
		out.Burst = cfg.Burst
	}
	if cfg.CircuitBreakerThreshold > 0 {
		out.CircuitBreakerMax = cfg.CircuitBreakerThreshold
	}
	if cfg.CircuitBreakerResetSeconds > 0 {
		out.CircuitBreakerReset = time.Duration(cfg.CircuitBreakerResetSeconds) * time.Second
	}
	return out
}

// RateLimitedHTTPClient wraps retryablehttp.Client with rate limiting and a circuit breaker
type RateLimitedHTTPClient struct {
	client  *retryablehttp.Client
	limiter *rate.Limiter
	cfg     HTTPClientConfig
	log     *logrus.Entry
	audit   *logger.AuditLogger

	mu                sync.Mutex
	consecutiveErrors int
	openedAt          time.Time
	isOpen            bool
	trialInFlight     bool
	lastError         error
}

// NewRateLimitedHTTPClient creates a new rate-limited HTTP client
func NewRateLimitedHTTPClient(cfg HTTPClientConfig, log *logrus.Logger) *RateLimitedHTTPClient {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.CircuitBreakerMax <= 0 {
		cfg.CircuitBreakerMax = DefaultHTTPClientConfig().CircuitBreakerMax
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = customRetryPolicy()
	retryClient.Logger = nil

	return &RateLimitedHTTPClient{
		client:  retryClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		cfg:     cfg,
		log:     log.WithField("component", "runner_client"),
		audit:   logger.NewAuditLogger(log),
	}
}

// Do executes an HTTP request with rate limiting and circuit breaker
func (c *RateLimitedHTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	trial, err := c.allow()
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.releaseTrial(trial)
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	retryReq, err := retryablehttp.FromRequest(req.WithContext(ctx))
	if err != nil {
		c.releaseTrial(trial)
		return nil, fmt.Errorf("failed to prepare request: %w", err)
	}

	started := time.Now()
	resp, err := c.client.Do(retryReq)
	metrics.RecordRunnerLatency(time.Since(started).Seconds())

	if err != nil {
		metrics.RecordRunnerRequest("error")
		if ctx.Err() == nil {
			c.recordFailure(err, trial)
		} else {
			c.releaseTrial(trial)
		}
		return nil, err
	}
	metrics.RecordRunnerRequest(statusLabel(resp.StatusCode))

	if resp.StatusCode >= 500 {
		c.recordFailure(fmt.Errorf("backtest service returned status %d", resp.StatusCode), trial)
	} else {
		c.recordSuccess()
	}
	return resp, nil
}

// IsOpen reports whether the circuit breaker is currently rejecting requests
func (c *RateLimitedHTTPClient) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOpen
}

// Close closes any resources held by the client
func (c *RateLimitedHTTPClient) Close() error {
	c.client.HTTPClient.CloseIdleConnections()
	return nil
}

// allow rejects requests while the breaker is open. Once the reset period
// has passed exactly one trial request is let through; everyone else is
// rejected until its outcome closes or re-opens the breaker.
func (c *RateLimitedHTTPClient) allow() (trial bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOpen {
		return false, nil
	}
	if !c.trialInFlight && c.cfg.CircuitBreakerReset > 0 && time.Since(c.openedAt) >= c.cfg.CircuitBreakerReset {
		c.trialInFlight = true
		c.audit.LogCircuitBreakerEvent("half_open", "reset period elapsed", c.consecutiveErrors)
		return true, nil
	}
	return false, fmt.Errorf("%w: %v", ErrCircuitOpen, c.lastError)
}

// releaseTrial frees a trial slot whose request never got an answer
func (c *RateLimitedHTTPClient) releaseTrial(trial bool) {
	if !trial {
		return
	}
	c.mu.Lock()
	c.trialInFlight = false
	c.mu.Unlock()
}

func (c *RateLimitedHTTPClient) recordFailure(err error, trial bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveErrors++
	c.lastError = err
	if trial {
		c.trialInFlight = false
	}
	if trial && c.isOpen {
		c.openedAt = time.Now()
		c.audit.LogCircuitBreakerEvent("reopened", err.Error(), c.consecutiveErrors)
		return
	}
	if c.consecutiveErrors >= c.cfg.CircuitBreakerMax && !c.isOpen {
		c.isOpen = true
		c.openedAt = time.Now()
		metrics.RecordCircuitBreakerTrip()
		c.audit.LogCircuitBreakerEvent("opened", err.Error(), c.consecutiveErrors)
		c.log.WithError(err).Warnf("Circuit breaker opened after %d consecutive errors", c.consecutiveErrors)
	}
}

func (c *RateLimitedHTTPClient) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isOpen {
		c.audit.LogCircuitBreakerEvent("closed", "trial request succeeded", c.consecutiveErrors)
	}
	c.consecutiveErrors = 0
	c.isOpen = false
	c.trialInFlight = false
	c.lastError = nil
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

// customRetryPolicy defines which HTTP responses should trigger a retry
func customRetryPolicy() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			// Retry on network errors
			return true, err
		}

		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true, nil
		}
		return false, nil
	}
}
