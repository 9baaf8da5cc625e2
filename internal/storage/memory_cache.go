package storage

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/radiusdt/adsight/internal/models"
)

// MemoryPeriodCache is a process-local PeriodCache with per-entry TTL.
type MemoryPeriodCache struct {
	cache *ttlcache.Cache[string, []models.Record]
}

// NewMemoryPeriodCache creates a cache whose entries expire after ttl.
// Call Start to run expired-entry cleanup and Stop to end it.
func NewMemoryPeriodCache(ttl time.Duration) *MemoryPeriodCache {
	return &MemoryPeriodCache{
		cache: ttlcache.New(
			ttlcache.WithTTL[string, []models.Record](ttl),
			ttlcache.WithDisableTouchOnHit[string, []models.Record](),
		),
	}
}

// Start runs the cleanup loop. It blocks until Stop is called.
func (c *MemoryPeriodCache) Start() { c.cache.Start() }

// Stop ends the cleanup loop.
func (c *MemoryPeriodCache) Stop() { c.cache.Stop() }

func (c *MemoryPeriodCache) Get(_ context.Context, period string) ([]models.Record, bool, error) {
	item := c.cache.Get(period)
	if item == nil {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (c *MemoryPeriodCache) Set(_ context.Context, period string, records []models.Record) error {
	c.cache.Set(period, records, ttlcache.DefaultTTL)
	return nil
}

func (c *MemoryPeriodCache) Name() string { return "memory" }
