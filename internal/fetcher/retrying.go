// Package fetcher turns a single-attempt crawler.Fetcher into a page fetcher
// that throttles per host and retries transient failures.
package fetcher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yokurang/logo-crawler/internal/crawler"
	"github.com/yokurang/logo-crawler/internal/metrics"
)

// Retrying implements crawler.PageFetcher on top of a crawler.Fetcher.
type Retrying struct {
	fetcher crawler.Fetcher
	policy  crawler.RetryPolicy
	clock   crawler.Clock
	limiter crawler.Limiter
	scheme  string
	logger  *zap.Logger
}

// Option customizes a Retrying fetcher.
type Option func(*Retrying)

// WithLimiter throttles every attempt through l.
func WithLimiter(l crawler.Limiter) Option {
	return func(r *Retrying) {
		r.limiter = l
	}
}

// WithScheme sets the scheme used for tasks that carry no BaseURL.
func WithScheme(scheme string) Option {
	return func(r *Retrying) {
		if scheme != "" {
			r.scheme = scheme
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retrying) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRetrying wires a page fetcher.
func NewRetrying(f crawler.Fetcher, policy crawler.RetryPolicy, clock crawler.Clock, opts ...Option) *Retrying {
	r := &Retrying{
		fetcher: f,
		policy:  policy,
		clock:   clock,
		scheme:  crawler.DefaultScheme,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchPage GETs the task's landing page, retrying retryable failures with
// backoff until the policy gives up. The outcome always lists every attempt.
func (r *Retrying) FetchPage(ctx context.Context, task crawler.CrawlTask) crawler.FetchOutcome {
	url := task.BaseURL
	if url == "" {
		url = crawler.BaseURL(r.scheme, task.Domain)
	}
	outcome := crawler.FetchOutcome{FinalURL: url}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			outcome.Err = crawler.TransportError(ctx, url, err)
			return outcome
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx, url); err != nil {
				outcome.Err = crawler.TransportError(ctx, url, err)
				return outcome
			}
		}

		resp, err := r.fetcher.Fetch(ctx, url)
		outcome.Attempts = append(outcome.Attempts, crawler.Attempt{
			Number:     attempt,
			Duration:   resp.Duration,
			StatusCode: resp.StatusCode,
			Err:        err,
		})
		outcome.StatusCode = resp.StatusCode
		outcome.Duration = outcome.RoundTrip()

		if err == nil {
			metrics.ObserveAttempt("success")
			outcome.Body = resp.Body
			if resp.FinalURL != "" {
				outcome.FinalURL = resp.FinalURL
			}
			outcome.Err = nil
			return outcome
		}
		metrics.ObserveAttempt(attemptOutcome(err))

		if !r.policy.ShouldRetry(err, attempt) {
			outcome.Err = finalError(err, attempt)
			return outcome
		}

		delay := r.policy.Backoff(attempt - 1)
		r.logger.Debug("retrying fetch",
			zap.String("domain", task.Domain),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		metrics.ObserveRetry()
		if sleepErr := r.clock.Sleep(ctx, delay); sleepErr != nil {
			outcome.Err = crawler.TransportError(ctx, url, sleepErr)
			return outcome
		}
	}
}

func attemptOutcome(err error) string {
	var fe *crawler.FetchError
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	return "error"
}

func finalError(err error, attempts int) error {
	if attempts <= 1 || crawler.IsCanceled(err) {
		return err
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}
