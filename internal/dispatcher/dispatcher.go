// Package dispatcher manages worker fan-out over the crawl task queue.
package dispatcher

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yokurang/logo-crawler/internal/crawler"
	"github.com/yokurang/logo-crawler/internal/worker"
)

// DefaultDomainsPerWorker is the divisor of the worker count heuristic.
const DefaultDomainsPerWorker = 50

// WorkerCount sizes the pool for m domains: override when positive, otherwise
// max(1, m/perWorker) using integer division.
func WorkerCount(m, override, perWorker int) int {
	if override > 0 {
		return override
	}
	if perWorker <= 0 {
		perWorker = DefaultDomainsPerWorker
	}
	return max(1, m/perWorker)
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   crawler.Queue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue crawler.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts all workers and blocks until every one has exited, which happens
// once the queue is closed and drained. A failing worker does not stop the
// others; the first failure is returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	var g errgroup.Group
	for _, w := range d.workers {
		g.Go(func() error {
			return w.Run(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	return nil
}

// Submit enqueues every task and then closes the queue. Closing happens even
// when enqueueing fails so workers never wait on a queue that cannot fill.
func (d *Dispatcher) Submit(ctx context.Context, tasks []crawler.CrawlTask) error {
	defer d.queue.Close()
	for _, task := range tasks {
		if err := d.queue.Enqueue(ctx, task); err != nil {
			return fmt.Errorf("queue enqueue: %w", err)
		}
	}
	return nil
}
