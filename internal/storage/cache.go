package storage

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/radiusdt/adsight/internal/metrics"
	"github.com/radiusdt/adsight/internal/models"
)

// RecordSource returns every record of a reporting period.
type RecordSource interface {
	FetchPeriod(ctx context.Context, period string) ([]models.Record, error)
}

// PeriodCache stores the records of a period. Cached slices are shared and
// must be treated as read only.
type PeriodCache interface {
	Get(ctx context.Context, period string) ([]models.Record, bool, error)
	Set(ctx context.Context, period string, records []models.Record) error
	Name() string
}

// DefaultFetchTimeout bounds a shared fetch once it is detached from the
// caller that started it.
const DefaultFetchTimeout = time.Minute

// CachedSource puts a PeriodCache in front of a RecordSource. Concurrent
// misses for the same period share one fetch. Cache errors are logged and
// treated as misses.
type CachedSource struct {
	source       RecordSource
	cache        PeriodCache
	logger       *zap.Logger
	metrics      *metrics.Metrics
	group        singleflight.Group
	fetchTimeout time.Duration
}

// NewCachedSource wraps source with cache. m may be nil.
func NewCachedSource(source RecordSource, cache PeriodCache, logger *zap.Logger, m *metrics.Metrics) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{source: source, cache: cache, logger: logger, metrics: m, fetchTimeout: DefaultFetchTimeout}
}

// FetchPeriod returns the cached records for period, fetching and caching
// them on a miss. Fetch errors are never cached. The shared fetch does not
// inherit the caller's cancellation; each caller stops waiting when its own
// context is done.
func (c *CachedSource) FetchPeriod(ctx context.Context, period string) ([]models.Record, error) {
	if records, ok := c.lookup(ctx, period); ok {
		return records, nil
	}

	ch := c.group.DoChan(period, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		// Another caller may have filled the cache since the lookup.
		if records, ok, err := c.cache.Get(ctx, period); err == nil && ok {
			return records, nil
		}

		start := time.Now()
		records, err := c.source.FetchPeriod(ctx, period)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, period, records); err != nil {
			c.logger.Warn("failed to cache period",
				zap.String("cache", c.cache.Name()),
				zap.String("period", period),
				zap.Error(err),
			)
		}
		c.logger.Debug("period fetched from source",
			zap.String("period", period),
			zap.Int("records", len(records)),
			zap.Duration("duration", time.Since(start)),
		)
		return records, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.Record), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *CachedSource) lookup(ctx context.Context, period string) ([]models.Record, bool) {
	records, ok, err := c.cache.Get(ctx, period)
	if err != nil {
		c.logger.Warn("period cache lookup failed",
			zap.String("cache", c.cache.Name()),
			zap.String("period", period),
			zap.Error(err),
		)
		ok = false
	}
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(c.cache.Name(), ok)
	}
	return records, ok
}
