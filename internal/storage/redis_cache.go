package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radiusdt/adsight/internal/metrics"
	"github.com/radiusdt/adsight/internal/models"
)

// RedisPeriodCache shares period records between service instances. Records
// are stored as a JSON array under prefix+period.
type RedisPeriodCache struct {
	client  redis.Cmdable
	prefix  string
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewRedisPeriodCache creates a Redis-backed cache. m may be nil.
func NewRedisPeriodCache(client redis.Cmdable, prefix string, ttl time.Duration, m *metrics.Metrics) *RedisPeriodCache {
	return &RedisPeriodCache{client: client, prefix: prefix, ttl: ttl, metrics: m}
}

func (c *RedisPeriodCache) key(period string) string {
	return c.prefix + period
}

func (c *RedisPeriodCache) Get(ctx context.Context, period string) ([]models.Record, bool, error) {
	start := time.Now()
	data, err := c.client.Get(ctx, c.key(period)).Bytes()
	c.observe("get", start)
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("decode cached period: %w", err)
	}
	return records, true, nil
}

func (c *RedisPeriodCache) Set(ctx context.Context, period string, records []models.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode period: %w", err)
	}

	start := time.Now()
	err = c.client.Set(ctx, c.key(period), data, c.ttl).Err()
	c.observe("set", start)
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisPeriodCache) Name() string { return "redis" }

func (c *RedisPeriodCache) observe(op string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordRedisLatency(op, time.Since(start))
	}
}
