package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"windfleet-triage/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RecommendationCache keeps the latest recommendation per turbine in Redis
// so dashboards can read triage results without hitting PostgreSQL. The
// database stays the source of truth; a cache miss is not an error.
type RecommendationCache struct {
	client    *redis.Client
	keyPrefix string
	keySuffix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRecommendationCache creates a cache with the given key layout and TTL.
func NewRecommendationCache(client *redis.Client, keyPrefix, keySuffix string, ttl time.Duration, logger *zap.Logger) *RecommendationCache {
	return &RecommendationCache{
		client:    client,
		keyPrefix: keyPrefix,
		keySuffix: keySuffix,
		ttl:       ttl,
		logger:    logger,
	}
}

func (c *RecommendationCache) key(turbineID string) string {
	return c.keyPrefix + turbineID + c.keySuffix
}

// SetLatest stores the recommendation as the turbine's current one.
func (c *RecommendationCache) SetLatest(ctx context.Context, turbineID string, rec *models.Recommendation) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendation: %w", err)
	}

	if err := c.client.Set(ctx, c.key(turbineID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache recommendation: %w", err)
	}

	return nil
}

// GetLatest returns the cached recommendation, or nil on a miss.
func (c *RecommendationCache) GetLatest(ctx context.Context, turbineID string) (*models.Recommendation, error) {
	data, err := c.client.Get(ctx, c.key(turbineID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached recommendation: %w", err)
	}

	var rec models.Recommendation
	if err := json.Unmarshal(data, &rec); err != nil {
		// Stale or corrupt entry, drop it and report a miss.
		c.logger.Warn("discarding unreadable cache entry",
			zap.String("turbine_id", turbineID),
			zap.Error(err))
		c.client.Del(ctx, c.key(turbineID))
		return nil, nil
	}

	return &rec, nil
}

// Invalidate removes the cached recommendation for a turbine.
func (c *RecommendationCache) Invalidate(ctx context.Context, turbineID string) error {
	if err := c.client.Del(ctx, c.key(turbineID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached recommendation: %w", err)
	}
	return nil
}
