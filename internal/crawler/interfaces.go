package crawler

import (
	"context"
	"time"
)

// Fetcher performs a single HTTP GET and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// PageFetcher fetches a task's landing page, retrying as configured.
type PageFetcher interface {
	FetchPage(ctx context.Context, task CrawlTask) FetchOutcome
}

// Extractor selects the best logo candidate from a page.
type Extractor interface {
	Extract(page Page) (Candidate, bool)
}

// Queue provides enqueue/dequeue semantics for crawl tasks.
type Queue interface {
	Enqueue(ctx context.Context, task CrawlTask) error
	Dequeue(ctx context.Context) (CrawlTask, error)
	Close()
}

// Emitter receives terminal task results.
type Emitter interface {
	Emit(result Result)
}

// RetryPolicy decides whether and when a failed attempt is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
	MaxAttempts() int
}

// Limiter throttles requests per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Clock returns the current time and sleeps cooperatively (useful for testing).
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
