package runner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/strategy-validator/internal/backtest"
	"github.com/yourusername/strategy-validator/internal/config"
	"github.com/yourusername/strategy-validator/internal/params"
)

var (
	testTemplate = backtest.StrategyTemplate{Name: "ma_cross", Version: "2", Settings: map[string]any{"symbol": "ETHUSDT"}}
	testPeriod   = backtest.Period{
		Start: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	testCombo = params.NewCombination(map[string]params.Value{"fast": params.Int(5), "stop": params.Float(0.02)})
)

const sampleResponse = `{
  "trades": [
    {"id": "t1", "symbol": "ETHUSDT", "side": "long", "entry_time": "2023-03-02T00:00:00Z", "exit_time": "2023-03-03T00:00:00Z", "pnl": 12.5},
    {"id": "t2", "symbol": "ETHUSDT", "side": "short", "entry_time": "2023-03-05T00:00:00Z", "exit_time": "2023-03-06T00:00:00Z", "pnl": -4}
  ],
  "portfolio": [
    {"time": "2023-03-01T00:00:00Z", "value": 1000},
    {"time": "2023-03-06T00:00:00Z", "value": 1008.5}
  ]
}`

func fastConfig() HTTPClientConfig {
	cfg := DefaultHTTPClientConfig()
	cfg.Timeout = 5 * time.Second
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 2 * time.Millisecond
	cfg.RateLimit = 1000
	cfg.Burst = 100
	return cfg
}

func TestHTTPRunnerRun(t *testing.T) {
	var received backtestRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/backtests", r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	runner := NewHTTPRunner(NewRateLimitedHTTPClient(fastConfig(), nil), server.URL+"/", "secret-key", nil)
	result, err := runner.Run(context.Background(), testTemplate, testCombo, testPeriod)
	require.NoError(t, err)

	assert.Equal(t, "ma_cross", received.Strategy)
	assert.Equal(t, "2", received.Version)
	assert.Equal(t, "ETHUSDT", received.Settings["symbol"])
	assert.Equal(t, testCombo.Hash(), received.Parameters.Hash())
	assert.True(t, testPeriod.Start.Equal(received.Start))
	assert.True(t, testPeriod.End.Equal(received.End))

	require.Len(t, result.Trades, 2)
	assert.Equal(t, backtest.SideShort, result.Trades[1].Side)
	assert.Equal(t, 12.5, result.Trades[0].PnL)
	require.Len(t, result.Timeline, 2)
	assert.Equal(t, 1008.5, result.Timeline[1].Value)

	m := backtest.CalculateMetrics(result.Trades, result.Timeline, testPeriod, backtest.MetricsOptions{})
	assert.Equal(t, 2, m.TotalTrades)
	assert.InDelta(t, 0.0085, m.TotalReturn, 1e-12)
}

func TestHTTPRunnerOmitsAuthWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"trades": null, "portfolio": []}`))
	}))
	defer server.Close()

	result, err := NewHTTPRunner(NewRateLimitedHTTPClient(fastConfig(), nil), server.URL, "", nil).
		Run(context.Background(), testTemplate, testCombo, testPeriod)
	require.NoError(t, err)
	assert.NotNil(t, result.Trades)
	assert.Empty(t, result.Trades)
}

func TestHTTPRunnerClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unknown strategy", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewRateLimitedHTTPClient(fastConfig(), nil)
	_, err := NewHTTPRunner(client, server.URL, "", nil).Run(context.Background(), testTemplate, testCombo, testPeriod)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "unknown strategy", statusErr.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.False(t, client.IsOpen())
}

func TestHTTPRunnerRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	result, err := NewHTTPRunner(NewRateLimitedHTTPClient(fastConfig(), nil), server.URL, "", nil).
		Run(context.Background(), testTemplate, testCombo, testPeriod)
	require.NoError(t, err)
	assert.Len(t, result.Trades, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPRunnerMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"trades": "nope"}`))
	}))
	defer server.Close()

	_, err := NewHTTPRunner(NewRateLimitedHTTPClient(fastConfig(), nil), server.URL, "", nil).
		Run(context.Background(), testTemplate, testCombo, testPeriod)
	assert.Error(t, err)
}

func TestCircuitBreaker(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := fastConfig()
	cfg.MaxRetries = 0
	cfg.CircuitBreakerMax = 2
	cfg.CircuitBreakerReset = 50 * time.Millisecond
	client := NewRateLimitedHTTPClient(cfg, nil)
	runner := NewHTTPRunner(client, server.URL, "", nil)

	for i := 0; i < 2; i++ {
		_, err := runner.Run(context.Background(), testTemplate, testCombo, testPeriod)
		require.Error(t, err)
	}
	assert.True(t, client.IsOpen())

	_, err := runner.Run(context.Background(), testTemplate, testCombo, testPeriod)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	time.Sleep(60 * time.Millisecond)
	_, err = runner.Run(context.Background(), testTemplate, testCombo, testPeriod)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.True(t, client.IsOpen())

	// The failed trial restarts the reset period.
	_, err = runner.Run(context.Background(), testTemplate, testCombo, testPeriod)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCircuitBreakerAdmitsSingleTrialRequest(t *testing.T) {
	var calls int32
	var failing atomic.Bool
	failing.Store(true)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		<-release
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	cfg := fastConfig()
	cfg.MaxRetries = 0
	cfg.CircuitBreakerMax = 2
	cfg.CircuitBreakerReset = 50 * time.Millisecond
	client := NewRateLimitedHTTPClient(cfg, nil)
	runner := NewHTTPRunner(client, server.URL, "", nil)

	for i := 0; i < 2; i++ {
		_, err := runner.Run(context.Background(), testTemplate, testCombo, testPeriod)
		require.Error(t, err)
	}
	require.True(t, client.IsOpen())

	failing.Store(false)
	time.Sleep(60 * time.Millisecond)

	const callers = 5
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := runner.Run(context.Background(), testTemplate, testCombo, testPeriod)
			results <- err
		}()
	}

	for i := 0; i < callers-1; i++ {
		select {
		case err := <-results:
			assert.ErrorIs(t, err, ErrCircuitOpen)
		case <-time.After(2 * time.Second):
			close(release)
			t.Fatal("timed out waiting for rejected callers")
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	close(release)
	select {
	case err := <-results:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the trial request")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.False(t, client.IsOpen())

	_, err := runner.Run(context.Background(), testTemplate, testCombo, testPeriod)
	require.NoError(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestRunCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewRateLimitedHTTPClient(fastConfig(), nil)
	_, err := NewHTTPRunner(client, server.URL, "", nil).Run(ctx, testTemplate, testCombo, testPeriod)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, client.IsOpen())
}

func TestClientConfigFromRunner(t *testing.T) {
	cfg := ClientConfigFromRunner(config.RunnerConfig{
		TimeoutSeconds:             15,
		RetryAttempts:              2,
		RequestsPerSecond:          4,
		Burst:                      3,
		CircuitBreakerThreshold:    7,
		CircuitBreakerResetSeconds: 45,
	})

	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 4.0, cfg.RateLimit)
	assert.Equal(t, 3, cfg.Burst)
	assert.Equal(t, 7, cfg.CircuitBreakerMax)
	assert.Equal(t, 45*time.Second, cfg.CircuitBreakerReset)
}
