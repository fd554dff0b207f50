// Package worker implements the crawl pipeline execution loop.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yokurang/logo-crawler/internal/crawler"
	"github.com/yokurang/logo-crawler/internal/metrics"
)

// Worker consumes crawl tasks and turns each one into exactly one Result.
type Worker struct {
	id        int
	queue     crawler.Queue
	fetcher   crawler.PageFetcher
	extractor crawler.Extractor
	emitter   crawler.Emitter
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	id int,
	queue crawler.Queue,
	fetcher crawler.PageFetcher,
	extractor crawler.Extractor,
	emitter crawler.Emitter,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:        id,
		queue:     queue,
		fetcher:   fetcher,
		extractor: extractor,
		emitter:   emitter,
		logger:    logger.With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming tasks until the queue is closed and drained. A
// canceled context does not stop the loop early: remaining tasks are still
// dequeued and recorded as canceled so the job yields one record per domain.
func (w *Worker) Run(ctx context.Context) error {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, crawler.ErrQueueClosed) {
				return nil
			}
			if ctx.Err() != nil {
				// Canceled with nothing buffered and the queue still open.
				w.logger.Debug("worker stopping", zap.Error(err))
				return nil
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			return fmt.Errorf("worker %d dequeue: %w", w.id, err)
		}
		w.logger.Debug("dequeued task", zap.String("domain", task.Domain), zap.Int("index", task.Index))
		w.emitter.Emit(w.processTask(ctx, task))
	}
}

func (w *Worker) processTask(ctx context.Context, task crawler.CrawlTask) (result crawler.Result) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	result = crawler.Result{Index: task.Index, Source: crawler.SourceNone}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("task panicked", zap.String("domain", task.Domain), zap.Any("panic", r))
			result.Record = crawler.NewErrorRecord(task.Domain, fmt.Errorf("internal error: %v", r))
			result.Source = crawler.SourceNone
		}
	}()

	if err := ctx.Err(); err != nil {
		result.Record = crawler.NewErrorRecord(task.Domain, crawler.TransportError(ctx, task.BaseURL, err))
		return result
	}

	outcome := w.fetcher.FetchPage(ctx, task)
	result.Attempts = outcome.Attempts
	if !outcome.Succeeded() {
		w.logger.Warn("fetch failed",
			zap.String("domain", task.Domain),
			zap.Int("attempts", len(outcome.Attempts)),
			zap.Int("status_code", outcome.StatusCode),
			zap.Error(outcome.Err),
		)
		result.Record = crawler.NewErrorRecord(task.Domain, outcome.Err)
		return result
	}

	candidate, ok := w.extractor.Extract(crawler.Page{
		Domain:  task.Domain,
		BaseURL: outcome.FinalURL,
		Body:    outcome.Body,
	})
	if !ok {
		result.Record = crawler.NewNoneRecord(task.Domain)
		w.logger.Debug("no logo found", zap.String("domain", task.Domain))
		return result
	}
	result.Source = candidate.Source
	result.Record = crawler.NewLogoRecord(task.Domain, candidate)
	w.logger.Debug("logo found",
		zap.String("domain", task.Domain),
		zap.String("source", string(candidate.Source)),
		zap.String("logo", candidate.URL),
	)
	return result
}
