package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/config"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

const overviewKey = "dashboard:overview"

// SnapshotCache keeps hot read models in Redis so dashboard polling does
// not hammer PostgreSQL. A nil *SnapshotCache is valid and behaves as a
// cache that always misses, which is how the service runs when Redis is
// disabled.
type SnapshotCache struct {
	client      *redis.Client
	logger      *zap.Logger
	burnTTL     time.Duration
	overviewTTL time.Duration
}

// NewSnapshotCache connects to Redis. Burn snapshots live twice the
// computation interval so one missed tick does not serve stale data
// forever; the overview lives one interval.
func NewSnapshotCache(ctx context.Context, cfg config.RedisConfig, interval time.Duration, logger *zap.Logger) (*SnapshotCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &SnapshotCache{
		client:      client,
		logger:      logger,
		burnTTL:     2 * interval,
		overviewTTL: interval,
	}, nil
}

// NewSnapshotCacheWithClient wraps an existing client, primarily for tests.
func NewSnapshotCacheWithClient(client *redis.Client, interval time.Duration, logger *zap.Logger) *SnapshotCache {
	return &SnapshotCache{
		client:      client,
		logger:      logger,
		burnTTL:     2 * interval,
		overviewTTL: interval,
	}
}

func burnKey(serviceID int64) string {
	return fmt.Sprintf("burn:latest:%d", serviceID)
}

// SetLatestBurn stores the freshest weighted burn snapshot for a service.
func (c *SnapshotCache) SetLatestBurn(ctx context.Context, serviceID int64, w *models.WeightedBurnRate) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(w)
	if err != nil {
		c.logger.Warn("Failed to encode burn snapshot", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, burnKey(serviceID), payload, c.burnTTL).Err(); err != nil {
		c.logger.Warn("Failed to cache burn snapshot",
			zap.Int64("service_id", serviceID), zap.Error(err))
	}
}

// LatestBurn returns the cached burn snapshot, or nil on a miss. Cache
// failures degrade to misses.
func (c *SnapshotCache) LatestBurn(ctx context.Context, serviceID int64) *models.WeightedBurnRate {
	if c == nil {
		return nil
	}
	payload, err := c.client.Get(ctx, burnKey(serviceID)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.logger.Warn("Failed to read burn snapshot",
			zap.Int64("service_id", serviceID), zap.Error(err))
		return nil
	}
	var w models.WeightedBurnRate
	if err := json.Unmarshal(payload, &w); err != nil {
		c.logger.Warn("Failed to decode burn snapshot", zap.Error(err))
		return nil
	}
	return &w
}

// SetOverview stores the assembled dashboard overview.
func (c *SnapshotCache) SetOverview(ctx context.Context, o *models.DashboardOverview) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(o)
	if err != nil {
		c.logger.Warn("Failed to encode overview", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, overviewKey, payload, c.overviewTTL).Err(); err != nil {
		c.logger.Warn("Failed to cache overview", zap.Error(err))
	}
}

// Overview returns the cached dashboard overview, or nil on a miss.
func (c *SnapshotCache) Overview(ctx context.Context) *models.DashboardOverview {
	if c == nil {
		return nil
	}
	payload, err := c.client.Get(ctx, overviewKey).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.logger.Warn("Failed to read overview", zap.Error(err))
		return nil
	}
	var o models.DashboardOverview
	if err := json.Unmarshal(payload, &o); err != nil {
		c.logger.Warn("Failed to decode overview", zap.Error(err))
		return nil
	}
	return &o
}

// InvalidateOverview drops the cached overview, for when a write makes it
// stale before the TTL runs out.
func (c *SnapshotCache) InvalidateOverview(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, overviewKey).Err(); err != nil {
		c.logger.Warn("Failed to invalidate overview", zap.Error(err))
	}
}

// Ping verifies Redis connectivity for readiness checks.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *SnapshotCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
