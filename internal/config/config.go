package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Record source backends.
const (
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
	BackendMemory     = "memory"
)

// Config holds all configuration for the adsight application.
type Config struct {
	Server     ServerConfig
	Source     SourceConfig
	Database   DatabaseConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	LLM        LLMConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// SourceConfig selects where performance records come from.
type SourceConfig struct {
	Backend string
	// Period is the report_month every question is answered against.
	Period string
	// DataFile is a JSON array of records for the memory backend.
	DataFile       string
	ConnectRetries int
	ConnectTimeout time.Duration
}

type DatabaseConfig struct {
	// URL takes precedence over the individual fields when set.
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// ClickHouseConfig configures the warehouse backend.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Secure   bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig configures the period cache in front of the record source.
type CacheConfig struct {
	Enabled bool
	// Backend is "redis" or "memory".
	Backend   string
	TTL       time.Duration
	KeyPrefix string
}

// LLMConfig configures the query generator and answer renderer.
type LLMConfig struct {
	APIKey         string
	Model          string
	GenerateTokens int
	RenderTokens   int
	Timeout        time.Duration
	MaxRetries     int
}

type AuthConfig struct {
	Enabled   bool
	APIKeys   []string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
	// TrustProxy keys clients on X-Forwarded-For / X-Real-IP instead of the
	// connection address. Only enable behind a proxy that overwrites them.
	TrustProxy bool
	// ClientTTL is how long an idle client's limiter is kept.
	ClientTTL  time.Duration
	MaxClients int
}

type LogConfig struct {
	Level string
	// Format is "json" or "console"; empty picks by environment.
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool
	Path      string
	Namespace string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("ADSIGHT_HTTP_ADDR", ":8080"),
			Env:             getEnv("ADSIGHT_ENV", "development"),
			ShutdownTimeout: getDurationEnv("ADSIGHT_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:  getDurationEnv("ADSIGHT_REQUEST_TIMEOUT", 90*time.Second),
		},
		Source: SourceConfig{
			Backend:        strings.ToLower(getEnv("ADSIGHT_SOURCE_BACKEND", BackendPostgres)),
			Period:         getEnv("ADSIGHT_SOURCE_PERIOD", "2025-10-01"),
			DataFile:       getEnv("ADSIGHT_SOURCE_DATA_FILE", ""),
			ConnectRetries: getIntEnv("ADSIGHT_SOURCE_CONNECT_RETRIES", 5),
			ConnectTimeout: getDurationEnv("ADSIGHT_SOURCE_CONNECT_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:      getEnv("ADSIGHT_DB_URL", ""),
			Host:     getEnv("ADSIGHT_DB_HOST", "localhost"),
			Port:     getIntEnv("ADSIGHT_DB_PORT", 5432),
			User:     getEnv("ADSIGHT_DB_USER", "postgres"),
			Password: getEnv("ADSIGHT_DB_PASSWORD", ""),
			DBName:   getEnv("ADSIGHT_DB_NAME", "postgres"),
			SSLMode:  getEnv("ADSIGHT_DB_SSLMODE", "require"),
			MaxConns: getIntEnv("ADSIGHT_DB_MAX_CONNS", 10),
			MinConns: getIntEnv("ADSIGHT_DB_MIN_CONNS", 1),
		},
		ClickHouse: ClickHouseConfig{
			Addr:     getEnv("ADSIGHT_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("ADSIGHT_CLICKHOUSE_DATABASE", "default"),
			Username: getEnv("ADSIGHT_CLICKHOUSE_USERNAME", "default"),
			Password: getEnv("ADSIGHT_CLICKHOUSE_PASSWORD", ""),
			Secure:   getBoolEnv("ADSIGHT_CLICKHOUSE_SECURE", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("ADSIGHT_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("ADSIGHT_REDIS_PASSWORD", ""),
			DB:       getIntEnv("ADSIGHT_REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled:   getBoolEnv("ADSIGHT_CACHE_ENABLED", true),
			Backend:   strings.ToLower(getEnv("ADSIGHT_CACHE_BACKEND", "memory")),
			TTL:       getDurationEnv("ADSIGHT_CACHE_TTL", 15*time.Minute),
			KeyPrefix: getEnv("ADSIGHT_CACHE_KEY_PREFIX", "adsight:period:"),
		},
		LLM: LLMConfig{
			APIKey:         getEnv("ADSIGHT_LLM_API_KEY", os.Getenv("ANTHROPIC_API_KEY")),
			Model:          getEnv("ADSIGHT_LLM_MODEL", "claude-sonnet-4-5"),
			GenerateTokens: getIntEnv("ADSIGHT_LLM_GENERATE_MAX_TOKENS", 1024),
			RenderTokens:   getIntEnv("ADSIGHT_LLM_RENDER_MAX_TOKENS", 2048),
			Timeout:        getDurationEnv("ADSIGHT_LLM_TIMEOUT", 60*time.Second),
			MaxRetries:     getIntEnv("ADSIGHT_LLM_MAX_RETRIES", 0),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("ADSIGHT_AUTH_ENABLED", false),
			APIKeys:   getSliceEnv("ADSIGHT_API_KEYS", nil),
			SkipPaths: getSliceEnv("ADSIGHT_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getBoolEnv("ADSIGHT_RATE_LIMIT_ENABLED", true),
			RPS:        getFloatEnv("ADSIGHT_RATE_LIMIT_RPS", 2),
			Burst:      getIntEnv("ADSIGHT_RATE_LIMIT_BURST", 5),
			TrustProxy: getBoolEnv("ADSIGHT_RATE_LIMIT_TRUST_PROXY", false),
			ClientTTL:  getDurationEnv("ADSIGHT_RATE_LIMIT_CLIENT_TTL", 10*time.Minute),
			MaxClients: getIntEnv("ADSIGHT_RATE_LIMIT_MAX_CLIENTS", 10000),
		},
		Log: LogConfig{
			Level:  getEnv("ADSIGHT_LOG_LEVEL", "info"),
			Format: getEnv("ADSIGHT_LOG_FORMAT", ""),
		},
		Metrics: MetricsConfig{
			Enabled:   getBoolEnv("ADSIGHT_METRICS_ENABLED", true),
			Path:      getEnv("ADSIGHT_METRICS_PATH", "/metrics"),
			Namespace: getEnv("ADSIGHT_METRICS_NAMESPACE", "adsight"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Source.Backend {
	case BackendPostgres, BackendClickHouse:
	case BackendMemory:
		if c.Source.DataFile == "" {
			return fmt.Errorf("ADSIGHT_SOURCE_DATA_FILE is required for the memory backend")
		}
	default:
		return fmt.Errorf("unknown source backend %q", c.Source.Backend)
	}
	if _, err := time.Parse("2006-01-02", c.Source.Period); err != nil {
		return fmt.Errorf("ADSIGHT_SOURCE_PERIOD must be a YYYY-MM-DD date: %w", err)
	}
	if c.Cache.Enabled && c.Cache.Backend != "redis" && c.Cache.Backend != "memory" {
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("ADSIGHT_LLM_API_KEY (or ANTHROPIC_API_KEY) is required")
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("ADSIGHT_API_KEYS is required when auth is enabled")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
