// Package ratelimit implements a per-host token bucket limiter.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/yokurang/logo-crawler/internal/crawler"
	"github.com/yokurang/logo-crawler/internal/metrics"
)

// DefaultMaxHosts bounds how many per-host buckets are kept at once.
const DefaultMaxHosts = 10000

// Limiter manages per-host rate limits. Buckets of hosts not seen recently are
// evicted once MaxHosts is reached; an evicted host starts over with a full burst.
type Limiter struct {
	mu           sync.Mutex
	limiters     *lru.Cache[string, *rate.Limiter]
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration. A non-positive RPS disables limiting.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	MaxHosts     int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	maxHosts := cfg.MaxHosts
	if maxHosts <= 0 {
		maxHosts = DefaultMaxHosts
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, *rate.Limiter](maxHosts)
	return &Limiter{
		limiters:     cache,
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a token is available for the URL's host, respecting the context.
func (l *Limiter) Wait(ctx context.Context, url string) error {
	limiter := l.forHost(crawler.Hostname(url))

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Immediate grants are not delays worth recording.
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(waited)
	}
	return nil
}

func (l *Limiter) forHost(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, exists := l.limiters.Get(host)
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters.Add(host, limiter)
	}
	return limiter
}

// Hosts reports how many per-host buckets are currently tracked.
func (l *Limiter) Hosts() int {
	return l.limiters.Len()
}
