package crawler

import (
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"time"
)

// RetryConfig tunes ExponentialRetryPolicy. Zero values fall back to defaults.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// ExponentialRetryPolicy implements RetryPolicy with optionally jittered backoff.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	jitter      bool
}

// NewExponentialRetryPolicy builds a policy, defaulting to 3 attempts with a
// 1s base delay capped at 30s.
func NewExponentialRetryPolicy(cfg RetryConfig) *ExponentialRetryPolicy {
	p := &ExponentialRetryPolicy{
		maxAttempts: 3,
		baseDelay:   time.Second,
		maxDelay:    30 * time.Second,
		jitter:      cfg.Jitter,
	}
	if cfg.MaxAttempts > 0 {
		p.maxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay > 0 {
		p.baseDelay = cfg.BaseDelay
	}
	if cfg.MaxDelay > 0 {
		p.maxDelay = cfg.MaxDelay
	}
	return p
}

// MaxAttempts returns the total number of attempts allowed per task.
func (p *ExponentialRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry decides whether the error is retryable after the given number
// of completed attempts.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if IsCanceled(err) {
		return false
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Retryable()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Backoff returns the wait before the next attempt, where attempt is the
// zero-based index of the attempt that just failed: base * 2^attempt.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	if !p.jitter {
		return time.Duration(delay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *ExponentialRetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
