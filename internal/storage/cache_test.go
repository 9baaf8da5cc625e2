package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radiusdt/adsight/internal/metrics"
	"github.com/radiusdt/adsight/internal/models"
)

type countingSource struct {
	calls   atomic.Int32
	records []models.Record
	err     error
	delay   time.Duration
}

func (s *countingSource) FetchPeriod(ctx context.Context, _ string) ([]models.Record, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.records, s.err
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]models.Record, bool, error) {
	return nil, false, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, []models.Record) error {
	return errors.New("cache down")
}

func (failingCache) Name() string { return "failing" }

func TestMemoryPeriodCache(t *testing.T) {
	c := NewMemoryPeriodCache(time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "2025-10-01")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "2025-10-01", []models.Record{{Platform: "Meta"}}))

	records, ok, err := c.Get(ctx, "2025-10-01")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, records, 1)
	assert.Equal(t, "memory", c.Name())
}

func TestMemoryPeriodCache_Expires(t *testing.T) {
	c := NewMemoryPeriodCache(20 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "2025-10-01", []models.Record{{Platform: "Meta"}}))

	time.Sleep(50 * time.Millisecond)

	_, ok, err := c.Get(ctx, "2025-10-01")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedSource_HitAfterMiss(t *testing.T) {
	src := &countingSource{records: []models.Record{{Platform: "Meta"}, {Platform: "TikTok"}}}
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	cs := NewCachedSource(src, NewMemoryPeriodCache(time.Minute), zap.NewNop(), m)
	ctx := context.Background()

	first, err := cs.FetchPeriod(ctx, "2025-10-01")
	require.NoError(t, err)
	second, err := cs.FetchPeriod(ctx, "2025-10-01")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("memory", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("memory", "hit")))
}

func TestCachedSource_ErrorsAreNotCached(t *testing.T) {
	src := &countingSource{err: errors.New("connection refused")}
	cs := NewCachedSource(src, NewMemoryPeriodCache(time.Minute), nil, nil)
	ctx := context.Background()

	_, err := cs.FetchPeriod(ctx, "2025-10-01")
	require.Error(t, err)

	src.err = nil
	src.records = []models.Record{{Platform: "Meta"}}
	records, err := cs.FetchPeriod(ctx, "2025-10-01")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCachedSource_CacheFailureFallsThrough(t *testing.T) {
	src := &countingSource{records: []models.Record{{Platform: "Meta"}}}
	cs := NewCachedSource(src, failingCache{}, zap.NewNop(), nil)

	records, err := cs.FetchPeriod(context.Background(), "2025-10-01")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCachedSource_ConcurrentMissesShareFetch(t *testing.T) {
	src := &countingSource{records: []models.Record{{Platform: "Meta"}}, delay: 50 * time.Millisecond}
	cs := NewCachedSource(src, NewMemoryPeriodCache(time.Minute), zap.NewNop(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records, err := cs.FetchPeriod(context.Background(), "2025-10-01")
			assert.NoError(t, err)
			assert.Len(t, records, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCachedSource_CancelledCallerDoesNotFailOthers(t *testing.T) {
	src := &countingSource{records: []models.Record{{Platform: "Meta"}}, delay: 100 * time.Millisecond}
	cs := NewCachedSource(src, NewMemoryPeriodCache(time.Minute), zap.NewNop(), nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cs.FetchPeriod(firstCtx, "2025-10-01")
		firstErr <- err
	}()

	// Let the first caller start the shared fetch before the second joins.
	time.Sleep(20 * time.Millisecond)
	secondDone := make(chan struct{})
	var (
		records   []models.Record
		secondErr error
	)
	go func() {
		defer close(secondDone)
		records, secondErr = cs.FetchPeriod(context.Background(), "2025-10-01")
	}()

	time.Sleep(20 * time.Millisecond)
	cancelFirst()

	assert.ErrorIs(t, <-firstErr, context.Canceled)
	<-secondDone
	require.NoError(t, secondErr)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCachedSource_SharedFetchIsBounded(t *testing.T) {
	src := &countingSource{records: []models.Record{{Platform: "Meta"}}, delay: time.Second}
	cs := NewCachedSource(src, NewMemoryPeriodCache(time.Minute), zap.NewNop(), nil)
	cs.fetchTimeout = 20 * time.Millisecond

	_, err := cs.FetchPeriod(context.Background(), "2025-10-01")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
