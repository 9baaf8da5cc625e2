package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radiusdt/adsight/internal/config"
	"github.com/radiusdt/adsight/internal/metrics"
)

const (
	defaultClientTTL  = 10 * time.Minute
	defaultMaxClients = 10000
)

// RateLimitMiddleware implements token bucket rate limiting per client IP.
// Every question costs two model calls, so limits apply per caller rather than
// globally. A limiter idle for ClientTTL is replaced by a fresh one, and at
// most MaxClients are held; the least recently seen client is evicted first.
type RateLimitMiddleware struct {
	cfg      config.RateLimitConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
	limiters *ttlcache.Cache[string, *rate.Limiter]
}

// NewRateLimitMiddleware creates a new rate limiting middleware. m may be nil.
func NewRateLimitMiddleware(cfg config.RateLimitConfig, logger *zap.Logger, m *metrics.Metrics) *RateLimitMiddleware {
	ttl := cfg.ClientTTL
	if ttl <= 0 {
		ttl = defaultClientTTL
	}
	capacity := cfg.MaxClients
	if capacity <= 0 {
		capacity = defaultMaxClients
	}

	return &RateLimitMiddleware{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		limiters: ttlcache.New(
			ttlcache.WithTTL[string, *rate.Limiter](ttl),
			ttlcache.WithCapacity[string, *rate.Limiter](uint64(capacity)),
		),
	}
}

// Handler wraps an http.Handler with rate limiting.
func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		ip := rl.getClientIP(r)
		if !rl.getIPLimiter(ip).Allow() {
			rl.logger.Warn("rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", r.URL.Path),
			)
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitHit(r.URL.Path)
			}
			rl.tooManyRequests(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getIPLimiter returns or creates a rate limiter for the given IP.
func (rl *RateLimitMiddleware) getIPLimiter(ip string) *rate.Limiter {
	item, _ := rl.limiters.GetOrSetFunc(ip, func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst)
	})
	return item.Value()
}

// getClientIP extracts the client IP from the request. Forwarding headers are
// only honoured when the proxy in front is trusted.
func (rl *RateLimitMiddleware) getClientIP(r *http.Request) string {
	if rl.cfg.TrustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimitMiddleware) tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate limit exceeded"}`))
}
