package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/radiusdt/adsight/internal/config"
)

const (
	clickHouseDialTimeout      = 10 * time.Second
	clickHouseMaxExecutionTime = 60
)

// ClickHouseDB wraps a ClickHouse native connection.
type ClickHouseDB struct {
	Conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseDB opens and pings a ClickHouse connection, retrying up to
// maxTries times.
func NewClickHouseDB(ctx context.Context, cfg config.ClickHouseConfig, maxTries int, logger *zap.Logger) (*ClickHouseDB, error) {
	opts := &clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": clickHouseMaxExecutionTime,
		},
		DialTimeout: clickHouseDialTimeout,
	}
	if cfg.Secure {
		opts.TLS = &tls.Config{}
	}

	conn, err := connectWithBackoff(ctx, logger, "clickhouse", maxTries, func(ctx context.Context) (driver.Conn, error) {
		conn, err := clickhouse.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
		}
		if err := conn.Ping(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
		}
		return conn, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("connected to ClickHouse",
		zap.String("addr", cfg.Addr),
		zap.String("database", cfg.Database),
		zap.Bool("secure", cfg.Secure),
	)

	return &ClickHouseDB{Conn: conn, logger: logger}, nil
}

// Close closes the connection.
func (db *ClickHouseDB) Close() error {
	if db.Conn != nil {
		db.logger.Info("ClickHouse connection closed")
		return db.Conn.Close()
	}
	return nil
}

// Health checks if ClickHouse is reachable.
func (db *ClickHouseDB) Health(ctx context.Context) error {
	return db.Conn.Ping(ctx)
}
