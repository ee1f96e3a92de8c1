// Package optimizer provides the grid-search optimizer and its result cache.
package optimizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/strategy-validator/internal/backtest"
	"github.com/yourusername/strategy-validator/internal/metrics"
	"github.com/yourusername/strategy-validator/internal/params"
)

// CacheKey identifies one backtest: strategy, fixed settings, period and
// parameter combination
type CacheKey struct {
	Strategy      string
	SettingsHash  string
	Start         time.Time
	End           time.Time
	ParameterHash string
}

// NewCacheKey builds the key for running combination over period
func NewCacheKey(template backtest.StrategyTemplate, period backtest.Period, combination params.Combination) CacheKey {
	return CacheKey{
		Strategy:      template.Key(),
		SettingsHash:  settingsHash(template.Settings),
		Start:         period.Start,
		End:           period.End,
		ParameterHash: combination.Hash(),
	}
}

// String returns string representation of cache key
func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%s|%d|%d|%s", k.Strategy, k.SettingsHash, k.Start.UnixNano(), k.End.UnixNano(), k.ParameterHash)
}

// settingsHash digests template settings; map keys are encoded in sorted order
func settingsHash(settings map[string]any) string {
	if len(settings) == 0 {
		return ""
	}
	data, err := json.Marshal(settings)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", settings))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ResultCache provides in-memory caching of backtest runs
type ResultCache struct {
	cache     *cache.Cache
	ttl       time.Duration
	mu        sync.Mutex
	hitCount  int64
	missCount int64
}

// NewResultCache creates a result cache. A zero ttl keeps entries until Clear.
func NewResultCache(ttl, cleanupInterval time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &ResultCache{
		cache: cache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

// Get retrieves a cached run
func (rc *ResultCache) Get(key CacheKey) (backtest.RunResult, bool) {
	value, found := rc.cache.Get(key.String())
	result, ok := value.(backtest.RunResult)
	hit := found && ok

	rc.mu.Lock()
	if hit {
		rc.hitCount++
	} else {
		rc.missCount++
	}
	ratio := rc.ratioLocked()
	rc.mu.Unlock()

	metrics.RecordCacheLookup(hit)
	metrics.UpdateCacheHitRatio(ratio)
	return result, hit
}

// Set stores a run in cache
func (rc *ResultCache) Set(key CacheKey, result backtest.RunResult) {
	rc.cache.Set(key.String(), result, rc.ttl)
}

// InvalidateStrategy removes all entries for a strategy key
func (rc *ResultCache) InvalidateStrategy(strategy string) int {
	prefix := strategy + "|"
	removed := 0
	for k := range rc.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			rc.cache.Delete(k)
			removed++
		}
	}
	return removed
}

// Clear flushes the entire cache
func (rc *ResultCache) Clear() {
	rc.cache.Flush()
	rc.mu.Lock()
	rc.hitCount = 0
	rc.missCount = 0
	rc.mu.Unlock()
}

// Stats returns cache statistics
func (rc *ResultCache) Stats() (hits, misses int64, ratio float64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.hitCount, rc.missCount, rc.ratioLocked()
}

func (rc *ResultCache) ratioLocked() float64 {
	total := rc.hitCount + rc.missCount
	if total == 0 {
		return 0
	}
	return float64(rc.hitCount) / float64(total)
}

// ItemCount returns the number of items in cache
func (rc *ResultCache) ItemCount() int {
	return rc.cache.ItemCount()
}

// CachedRunner wraps a Runner with a ResultCache
type CachedRunner struct {
	runner backtest.Runner
	cache  *ResultCache
	logger *logrus.Entry
}

// NewCachedRunner creates a caching runner
func NewCachedRunner(runner backtest.Runner, resultCache *ResultCache, log *logrus.Logger) *CachedRunner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CachedRunner{runner: runner, cache: resultCache, logger: log.WithField("component", "result_cache")}
}

// Run returns a cached result when one exists, otherwise delegates and stores the result
func (c *CachedRunner) Run(ctx context.Context, template backtest.StrategyTemplate, combination params.Combination, period backtest.Period) (backtest.RunResult, error) {
	key := NewCacheKey(template, period, combination)
	if cached, ok := c.cache.Get(key); ok {
		c.logger.WithField("cache_key", key.String()).Debug("Cache hit for backtest")
		return cached, nil
	}

	result, err := c.runner.Run(ctx, template, combination, period)
	if err != nil {
		return backtest.RunResult{}, err
	}
	c.cache.Set(key, result)
	return result, nil
}
