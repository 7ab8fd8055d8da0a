package fetch

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter admits or rejects outbound requests per key. Implementations must
// be safe for concurrent use from multiple workers.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// LimitConfig caps requests per fixed window.
type LimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultLimit is applied when a source declares no rate limit of its own.
var DefaultLimit = LimitConfig{MaxRequests: 10, Window: time.Minute}

func (c LimitConfig) withDefaults() LimitConfig {
	if c.MaxRequests <= 0 {
		c.MaxRequests = DefaultLimit.MaxRequests
	}
	if c.Window <= 0 {
		c.Window = DefaultLimit.Window
	}
	return c
}

type window struct {
	start time.Time
	count int
}

// WindowLimiter is an in-process fixed-window counter keyed by source
// identity. The clock is injectable so tests control window rollover.
type WindowLimiter struct {
	mu      sync.Mutex
	cfg     LimitConfig
	windows map[string]*window
	now     func() time.Time
}

// NewWindowLimiter builds an in-memory limiter with the given config.
func NewWindowLimiter(cfg LimitConfig) *WindowLimiter {
	return &WindowLimiter{cfg: cfg.withDefaults(), windows: make(map[string]*window), now: time.Now}
}

// WithClock overrides the limiter's clock. Test hook.
func (l *WindowLimiter) WithClock(now func() time.Time) *WindowLimiter {
	l.now = now
	return l
}

// Allow admits a request when the key's current window has capacity.
func (l *WindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		l.windows[key] = &window{start: now, count: 1}
		return true, nil
	}
	if w.count >= l.cfg.MaxRequests {
		return false, nil
	}
	w.count++
	return true, nil
}

// AllowN reports admission against an overriding per-key limit, falling back
// to the limiter default when max is zero.
func (l *WindowLimiter) AllowN(ctx context.Context, key string, max int) (bool, error) {
	if max <= 0 {
		return l.Allow(ctx, key)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		l.windows[key] = &window{start: now, count: 1}
		return true, nil
	}
	if w.count >= max {
		return false, nil
	}
	w.count++
	return true, nil
}

// RedisLimiter is the distributed fixed-window variant for multi-process
// deployments: one INCR+EXPIRE counter per key and window.
type RedisLimiter struct {
	client *redis.Client
	cfg    LimitConfig
	prefix string
}

// NewRedisLimiter builds a limiter backed by a shared Redis counter.
func NewRedisLimiter(client *redis.Client, cfg LimitConfig) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg.withDefaults(), prefix: "ratelimit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := time.Now().Unix() / int64(l.cfg.Window.Seconds())
	redisKey := l.prefix + key + ":" + strconv.FormatInt(bucket, 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("ratelimit incr: %w", err)
	}
	return incr.Val() <= int64(l.cfg.MaxRequests), nil
}
