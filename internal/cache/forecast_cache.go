package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
	"github.com/AhmedAl-shari/GoldVision/internal/telemetry"
)

const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Recorder receives cache lookup outcomes. A nil recorder is a no-op.
type Recorder interface {
	RecordCacheRequest(result string)
}

// OperationLogger receives one structured event per cache read or write.
type OperationLogger interface {
	LogCacheOperation(operation string, key string, hit bool, duration int64)
}

// ForecastCacheEntry is the stored value with its metadata
type ForecastCacheEntry struct {
	Forecast *models.EnsembleForecast `json:"forecast"`
	CachedAt time.Time                `json:"cached_at"`
}

// ForecastCacheStats tracks cache performance metrics
type ForecastCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

// RedisForecastCache stores finished forecasts keyed by a request fingerprint.
type RedisForecastCache struct {
	redis    *redis.Client
	ttl      time.Duration
	prefix   string
	mu       sync.RWMutex
	stats    ForecastCacheStats
	logger   *logrus.Logger
	events   OperationLogger
	recorder Recorder
}

// NewRedisForecastCache creates a new Redis-based forecast cache
func NewRedisForecastCache(redisClient *redis.Client, ttl time.Duration, prefix string, logger *logrus.Logger, recorder Recorder) *RedisForecastCache {
	if prefix == "" {
		prefix = "forecast:"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisForecastCache{
		redis:    redisClient,
		ttl:      ttl,
		prefix:   prefix,
		logger:   logger,
		recorder: recorder,
	}
}

// SetEventLogger routes per-operation cache events to l.
func (c *RedisForecastCache) SetEventLogger(l OperationLogger) {
	c.events = l
}

func (c *RedisForecastCache) logOperation(operation, key string, hit bool, start time.Time) {
	if c.events != nil {
		c.events.LogCacheOperation(operation, key, hit, time.Since(start).Milliseconds())
	}
}

// fingerprint is the canonical form of a request. Optional flags are
// resolved so that an omitted flag and its default hash the same.
type fingerprint struct {
	Rows                     []models.PriceRow           `json:"rows"`
	ExternalFeatures         []models.ExternalFeatureRow `json:"external_features"`
	HorizonDays              int                         `json:"horizon_days"`
	UseEnsemble              bool                        `json:"use_ensemble"`
	ModelWeights             map[string]float64          `json:"model_weights"`
	IncludeFeatureImportance bool                        `json:"include_feature_importance"`
}

// Key returns the cache key for req.
func (c *RedisForecastCache) Key(req *models.ForecastRequest) (string, error) {
	data, err := json.Marshal(fingerprint{
		Rows:                     req.Rows,
		ExternalFeatures:         req.ExternalFeatures,
		HorizonDays:              req.HorizonDays,
		UseEnsemble:              req.UseEnsemble.Resolve(true),
		ModelWeights:             req.ModelWeights,
		IncludeFeatureImportance: req.IncludeFeatureImportance.Resolve(false),
	})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint request: %w", err)
	}
	sum := sha256.Sum256(data)
	return c.prefix + hex.EncodeToString(sum[:]), nil
}

// Get returns the cached forecast for req, if any. Redis failures count as misses.
func (c *RedisForecastCache) Get(ctx context.Context, req *models.ForecastRequest) (*models.EnsembleForecast, bool) {
	start := time.Now()
	ctx, span := telemetry.GetCacheTracer().Start(ctx, "cache.get")
	defer span.End()

	key, err := c.Key(req)
	if err != nil {
		c.miss(ResultError)
		return nil, false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		c.miss(ResultMiss)
		c.logOperation("get", key, false, start)
		return nil, false
	}
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.WithError(err).WithField("key", key).Warn("Redis error reading cached forecast")
		c.miss(ResultError)
		return nil, false
	}

	var entry ForecastCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Forecast == nil {
		c.logger.WithField("key", key).Warn("Discarding undecodable cached forecast")
		c.miss(ResultError)
		return nil, false
	}

	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
	c.record(ResultHit)
	span.SetAttributes(attribute.Bool("cache.hit", true))
	c.logOperation("get", key, true, start)

	return entry.Forecast, true
}

// Set stores forecast under req's key with the configured TTL.
func (c *RedisForecastCache) Set(ctx context.Context, req *models.ForecastRequest, forecast *models.EnsembleForecast) error {
	start := time.Now()
	ctx, span := telemetry.GetCacheTracer().Start(ctx, "cache.set")
	defer span.End()

	key, err := c.Key(req)
	if err != nil {
		return err
	}

	data, err := json.Marshal(ForecastCacheEntry{Forecast: forecast, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to serialize forecast: %w", err)
	}

	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to cache forecast: %w", err)
	}

	c.mu.Lock()
	c.stats.Sets++
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"key": key,
		"ttl": c.ttl,
	}).Debug("Cached forecast")
	c.logOperation("set", key, false, start)
	return nil
}

// GetStats returns current cache statistics
func (c *RedisForecastCache) GetStats() ForecastCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Clear removes every cached forecast under the prefix.
func (c *RedisForecastCache) Clear(ctx context.Context) error {
	var keys []string
	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing cache: %w", err)
	}

	c.logger.WithField("entries", len(keys)).Info("Cleared forecast cache")
	return nil
}

func (c *RedisForecastCache) miss(result string) {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
	c.record(result)
}

func (c *RedisForecastCache) record(result string) {
	if c.recorder != nil {
		c.recorder.RecordCacheRequest(result)
	}
}
