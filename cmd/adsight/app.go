package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radiusdt/adsight/internal/config"
	"github.com/radiusdt/adsight/internal/database"
	"github.com/radiusdt/adsight/internal/httpserver"
	"github.com/radiusdt/adsight/internal/insight"
	"github.com/radiusdt/adsight/internal/llm"
	"github.com/radiusdt/adsight/internal/metrics"
	"github.com/radiusdt/adsight/internal/storage"
)

// app holds everything a command needs, plus the cleanup for it.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	pipeline *insight.Pipeline
	db       *database.PostgresDB
	checks   map[string]httpserver.HealthChecker
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewMetrics(cfg.Metrics.Namespace, nil),
		checks:  make(map[string]httpserver.HealthChecker),
	}

	source, err := a.recordSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	cache, err := a.periodCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cache != nil {
		source = storage.NewCachedSource(source, cache, logger, a.metrics)
	}

	prompts, err := llm.LoadPrompts()
	if err != nil {
		a.Close()
		return nil, err
	}
	client := llm.NewAnthropicClient(cfg.LLM, logger)
	generator, err := llm.NewQueryGenerator(client, prompts, cfg.Source.Period, cfg.LLM.GenerateTokens)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.pipeline, err = insight.New(insight.Config{
		Logger:    logger,
		Generator: generator,
		Source:    source,
		Renderer:  llm.NewAnswerRenderer(client, prompts, cfg.LLM.RenderTokens),
		Metrics:   a.metrics,
		Period:    cfg.Source.Period,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) recordSource(ctx context.Context) (storage.RecordSource, error) {
	cfg := a.cfg
	connectCtx, cancel := context.WithTimeout(ctx, connectBudget(cfg))
	defer cancel()

	switch cfg.Source.Backend {
	case config.BackendPostgres:
		db, err := database.NewPostgresDB(connectCtx, cfg.Database, cfg.Source.ConnectRetries, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.db = db
		a.checks["postgres"] = db
		return storage.NewPostgresRecordSource(db.Pool), nil

	case config.BackendClickHouse:
		ch, err := database.NewClickHouseDB(connectCtx, cfg.ClickHouse, cfg.Source.ConnectRetries, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = ch.Close() })
		a.checks["clickhouse"] = ch
		a.logger.Info("connected to ClickHouse", zap.String("addr", cfg.ClickHouse.Addr))
		return storage.NewClickHouseRecordSource(ch.Conn), nil

	case config.BackendMemory:
		records, err := storage.LoadRecordsFile(cfg.Source.DataFile)
		if err != nil {
			return nil, err
		}
		a.logger.Info("loaded records", zap.String("file", cfg.Source.DataFile), zap.Int("count", len(records)))
		return storage.NewInMemoryRecordSource(records), nil
	}
	return nil, fmt.Errorf("unknown source backend %q", cfg.Source.Backend)
}

func (a *app) periodCache(ctx context.Context) (storage.PeriodCache, error) {
	cfg := a.cfg
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	if cfg.Cache.Backend == "redis" {
		connectCtx, cancel := context.WithTimeout(ctx, connectBudget(cfg))
		defer cancel()

		rdb, err := database.NewRedisDB(connectCtx, cfg.Redis, cfg.Source.ConnectRetries, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		a.checks["redis"] = rdb
		a.logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
		return storage.NewRedisPeriodCache(rdb.Client, cfg.Cache.KeyPrefix, cfg.Cache.TTL, a.metrics), nil
	}

	cache := storage.NewMemoryPeriodCache(cfg.Cache.TTL)
	go cache.Start()
	a.closers = append(a.closers, cache.Stop)
	return cache, nil
}

// connectBudget bounds startup connection attempts, retries included.
func connectBudget(cfg *config.Config) time.Duration {
	tries := max(cfg.Source.ConnectRetries, 1)
	return cfg.Source.ConnectTimeout * time.Duration(tries)
}
