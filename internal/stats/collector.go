// Package stats aggregates worker results into the final record list and
// job summary. A single goroutine owns all aggregation state; workers reach
// it only through Emit.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yokurang/logo-crawler/internal/clock/system"
	"github.com/yokurang/logo-crawler/internal/crawler"
)

// Config controls buffering and batching for the Collector.
//   - BufferSize: size of the internal channel (default 1024).
//   - MaxBatch: flush to sinks once this many results queue (default 100).
//   - MaxBatchWait: flush after this duration even if the batch is small (default 500ms).
//   - SinkTimeout: per-sink timeout while flushing (default 10s).
//   - BaseContext: parent context passed to sink calls (defaults to context.Background()).
type Config struct {
	BufferSize   int
	MaxBatch     int
	MaxBatchWait time.Duration
	SinkTimeout  time.Duration
	BaseContext  context.Context
	Clock        crawler.Clock
	Logger       *zap.Logger
}

const (
	defaultBufferSize   = 1024
	defaultMaxBatch     = 100
	defaultMaxBatchWait = 500 * time.Millisecond
	defaultSinkTimeout  = 10 * time.Second
)

// ErrClosed is returned by Close when the collector was already closed.
var ErrClosed = errors.New("stats collector closed")

// Collector is the single writer of job statistics. Emit blocks under
// backpressure instead of dropping, since every result must be counted.
type Collector struct {
	cfg     Config
	sinks   []Sink
	results chan crawler.Result
	stopCh  chan struct{}
	doneCh  chan struct{}
	logger  *zap.Logger
	started time.Time
	closed  atomic.Bool

	closeOnce sync.Once
	closeCtx  context.Context

	// Owned by the run goroutine until doneCh closes.
	collected []crawler.Result
	counts    tally
	report    Report
}

// NewCollector starts the aggregation goroutine. The returned Collector is
// immediately ready to accept results.
func NewCollector(cfg Config, sinks ...Sink) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaultMaxBatch
	}
	if cfg.MaxBatchWait <= 0 {
		cfg.MaxBatchWait = defaultMaxBatchWait
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		cfg:     cfg,
		sinks:   append([]Sink(nil), sinks...),
		results: make(chan crawler.Result, cfg.BufferSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		logger:  logger,
		started: cfg.Clock.Now(),
	}
	go c.run()
	return c
}

// Emit hands a terminal result to the collector, blocking while the buffer
// is full. Results emitted after Close are discarded with a warning.
func (c *Collector) Emit(result crawler.Result) {
	if c == nil {
		return
	}
	if c.closed.Load() {
		c.logger.Warn("result emitted after close", zap.String("domain", result.Record.Domain))
		return
	}
	if err := result.Record.Validate(); err != nil {
		// Still counted: a malformed record becomes an error record.
		c.logger.Error("invalid record", zap.String("domain", result.Record.Domain), zap.Error(err))
		result.Record = crawler.NewErrorRecord(result.Record.Domain, fmt.Errorf("invalid record: %w", err))
	}
	select {
	case c.results <- result:
	case <-c.stopCh:
		c.logger.Warn("result emitted after close", zap.String("domain", result.Record.Domain))
	}
}

// Close drains buffered results, flushes and closes the sinks, and returns
// the finalized report. Callers must stop emitting before calling Close.
func (c *Collector) Close(ctx context.Context) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	first := false
	c.closeOnce.Do(func() {
		first = true
		c.closed.Store(true)
		c.closeCtx = ctx
		close(c.stopCh)
	})
	select {
	case <-c.doneCh:
	case <-ctx.Done():
		return Report{}, fmt.Errorf("stats collector close wait: %w", ctx.Err())
	}
	if !first {
		return c.report, ErrClosed
	}
	return c.report, nil
}

func (c *Collector) run() {
	defer close(c.doneCh)
	batch := make([]crawler.Result, 0, c.cfg.MaxBatch)
	timer := time.NewTimer(c.cfg.MaxBatchWait)
	timer.Stop()
	timerActive := false
	for {
		select {
		case r := <-c.results:
			batch = c.add(batch, r, timer, &timerActive)
		case <-timer.C:
			timerActive = false
			batch = c.flush(batch)
		case <-c.stopCh:
			c.handleStop(batch, timer, &timerActive)
			return
		}
	}
}

func (c *Collector) add(batch []crawler.Result, r crawler.Result, timer *time.Timer, timerActive *bool) []crawler.Result {
	batch = c.record(batch, r)
	if len(batch) >= c.cfg.MaxBatch {
		stopTimer(timer, timerActive)
		return c.flush(batch)
	}
	if !*timerActive {
		timer.Reset(c.cfg.MaxBatchWait)
		*timerActive = true
	}
	return batch
}

func (c *Collector) handleStop(batch []crawler.Result, timer *time.Timer, timerActive *bool) {
	stopTimer(timer, timerActive)
	for {
		select {
		case r := <-c.results:
			batch = c.record(batch, r)
			if len(batch) >= c.cfg.MaxBatch {
				batch = c.flush(batch)
			}
		default:
			c.flush(batch)
			c.finalize()
			c.closeSinks()
			return
		}
	}
}

// record stores r, updates the running counts and queues r for the sinks.
func (c *Collector) record(batch []crawler.Result, r crawler.Result) []crawler.Result {
	c.collected = append(c.collected, r)
	c.counts.observe(r)
	return append(batch, r)
}

func (c *Collector) finalize() {
	sort.SliceStable(c.collected, func(i, j int) bool {
		return c.collected[i].Index < c.collected[j].Index
	})
	summary := c.counts.summary()
	summary.WallClock = c.cfg.Clock.Now().Sub(c.started)
	records := make([]crawler.Record, len(c.collected))
	for i, r := range c.collected {
		records[i] = r.Record
	}
	c.report = Report{Records: records, Summary: summary}
}

func stopTimer(timer *time.Timer, timerActive *bool) {
	if !*timerActive {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	*timerActive = false
}

func (c *Collector) flush(batch []crawler.Result) []crawler.Result {
	if len(batch) == 0 {
		return batch
	}
	copyBatch := append([]crawler.Result(nil), batch...)
	for _, sink := range c.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(c.cfg.BaseContext, c.cfg.SinkTimeout)
		if err := sink.Consume(ctx, copyBatch); err != nil {
			c.logger.Warn("stats sink consume failed", zap.Error(err))
		}
		cancel()
	}
	return batch[:0]
}

func (c *Collector) closeSinks() {
	ctx := c.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range c.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			c.logger.Warn("stats sink close failed", zap.Error(err))
		}
	}
}
