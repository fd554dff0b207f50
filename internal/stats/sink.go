package stats

import (
	"context"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

// Sink consumes batches of results. Consume is only ever called from the
// collector goroutine, so implementations need no locking of their own.
type Sink interface {
	Consume(ctx context.Context, batch []crawler.Result) error
	Close(ctx context.Context) error
}
