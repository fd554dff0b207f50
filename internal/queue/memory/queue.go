// Package memory provides an in-process crawl task queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

// ErrClosed is returned when enqueueing onto a closed queue.
var ErrClosed = errors.New("enqueue on closed queue")

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan crawler.CrawlTask
	closeMu sync.RWMutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan crawler.CrawlTask, capacity),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, task crawler.CrawlTask) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task. Buffered tasks are handed out even after the
// context ends so every task still reaches a terminal state; once the queue is
// closed and drained it returns crawler.ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (crawler.CrawlTask, error) {
	select {
	case task, ok := <-q.ch:
		return dequeued(task, ok)
	default:
	}
	select {
	case <-ctx.Done():
		return crawler.CrawlTask{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		return dequeued(task, ok)
	}
}

func dequeued(task crawler.CrawlTask, ok bool) (crawler.CrawlTask, error) {
	if !ok {
		return crawler.CrawlTask{}, crawler.ErrQueueClosed
	}
	return task, nil
}

// Len reports the number of buffered tasks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel; it is safe to call more than once.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
