// Package app wires the crawl services together and runs one crawl job end to end.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yokurang/logo-crawler/internal/clock/system"
	"github.com/yokurang/logo-crawler/internal/config"
	"github.com/yokurang/logo-crawler/internal/crawler"
	"github.com/yokurang/logo-crawler/internal/dispatcher"
	"github.com/yokurang/logo-crawler/internal/extract"
	"github.com/yokurang/logo-crawler/internal/fetcher"
	collyfetcher "github.com/yokurang/logo-crawler/internal/fetcher/colly"
	"github.com/yokurang/logo-crawler/internal/id/uuid"
	"github.com/yokurang/logo-crawler/internal/metrics"
	"github.com/yokurang/logo-crawler/internal/policy/ratelimit"
	"github.com/yokurang/logo-crawler/internal/queue/memory"
	"github.com/yokurang/logo-crawler/internal/stats"
	"github.com/yokurang/logo-crawler/internal/stats/sinks"
	"github.com/yokurang/logo-crawler/internal/storage/postgres"
	"github.com/yokurang/logo-crawler/internal/worker"
)

const closeTimeout = 30 * time.Second

// App holds the long-lived services shared by every crawl job.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	fetcher    crawler.PageFetcher
	extractor  crawler.Extractor
	clock      crawler.Clock
	ids        crawler.IDGenerator
	registerer prometheus.Registerer
	store      *postgres.RecordStore
	promSink   *sinks.PrometheusSink
}

// Option customizes App construction.
type Option func(*App)

// WithClock replaces the system clock used for backoff sleeps and wall time.
func WithClock(c crawler.Clock) Option {
	return func(a *App) {
		a.clock = c
	}
}

// WithRegisterer registers the per-record collectors on reg instead of the
// default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) {
		a.registerer = reg
	}
}

// WithPageFetcher replaces the HTTP page fetcher.
func WithPageFetcher(f crawler.PageFetcher) Option {
	return func(a *App) {
		a.fetcher = f
	}
}

// New initializes the services described by cfg. A Postgres record store is
// connected only when postgres.dsn is set.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		ids:    uuid.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.clock == nil {
		a.clock = system.New()
	}
	if a.registerer == nil {
		if err := metrics.Init(); err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		a.registerer = prometheus.DefaultRegisterer
	}

	promSink, err := sinks.NewPrometheusSink(a.registerer)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	a.promSink = promSink

	if a.fetcher == nil {
		a.fetcher = a.buildFetcher()
	}
	a.extractor = extract.New(extract.Config{
		MaxJSONDepth:    cfg.Extract.MaxJSONDepth,
		MaxJSONNodes:    cfg.Extract.MaxJSONNodes,
		FallbackFavicon: cfg.Extract.FaviconFallback,
	}, logger.Named("extract"))

	if cfg.Postgres.DSN != "" {
		store, err := postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
			DSN:       cfg.Postgres.DSN,
			Table:     cfg.Postgres.Table,
			RunsTable: cfg.Postgres.RunsTable,
			MaxConns:  cfg.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init record store: %w", err)
		}
		a.store = store
		logger.Info("record store enabled", zap.String("table", cfg.Postgres.Table))
	}
	return a, nil
}

func (a *App) buildFetcher() crawler.PageFetcher {
	single := collyfetcher.New(collyfetcher.Config{
		UserAgent:          a.cfg.Crawler.UserAgent,
		Timeout:            a.cfg.HTTP.Timeout,
		MaxBodyBytes:       a.cfg.HTTP.MaxBodyBytes,
		InsecureSkipVerify: a.cfg.HTTP.InsecureSkipVerify,
	})
	policy := crawler.NewExponentialRetryPolicy(crawler.RetryConfig{
		MaxAttempts: a.cfg.HTTP.MaxAttempts,
		BaseDelay:   a.cfg.HTTP.BackoffBase,
		MaxDelay:    a.cfg.HTTP.BackoffMax,
		Jitter:      a.cfg.HTTP.Jitter,
	})
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   a.cfg.Crawler.RateLimitRPS,
		DefaultBurst: a.cfg.Crawler.RateLimitBurst,
		MaxHosts:     a.cfg.Crawler.RateLimitMaxHosts,
	})
	return fetcher.NewRetrying(single, policy, a.clock,
		fetcher.WithLimiter(limiter),
		fetcher.WithScheme(a.cfg.HTTP.Scheme),
		fetcher.WithLogger(a.logger.Named("fetcher")),
	)
}

// Crawl processes every domain and returns one record per domain, in input
// order, together with the job summary. Cancellation of ctx does not make
// Crawl fail: unfinished domains are recorded as canceled errors.
func (a *App) Crawl(ctx context.Context, domains []string) (stats.Report, error) {
	runID, err := a.ids.NewID()
	if err != nil {
		return stats.Report{}, fmt.Errorf("new run id: %w", err)
	}
	logger := a.logger.With(zap.String("run_id", runID))

	if timeout := a.cfg.Crawler.JobTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	// Bookkeeping and sink writes must outlive a canceled crawl.
	detached := context.WithoutCancel(ctx)

	workerCount := dispatcher.WorkerCount(len(domains), a.cfg.Crawler.Workers, a.cfg.Crawler.DomainsPerWorker)
	logger.Info("crawl started", zap.Int("domains", len(domains)), zap.Int("workers", workerCount))

	a.startRun(detached, logger, runID, len(domains))

	collector := stats.NewCollector(stats.Config{
		BaseContext: detached,
		Clock:       a.clock,
		Logger:      logger.Named("stats"),
	}, a.buildSinks(logger, runID, len(domains))...)

	queue := memory.NewQueue(len(domains))
	workers := make([]*worker.Worker, workerCount)
	for i := range workers {
		workers[i] = worker.New(i, queue, a.fetcher, a.extractor, collector, logger.Named("worker"))
	}
	dispatch := dispatcher.New(queue, workers)

	tasks := make([]crawler.CrawlTask, len(domains))
	for i, d := range domains {
		tasks[i] = crawler.CrawlTask{Index: i, Domain: d, BaseURL: crawler.BaseURL(a.cfg.HTTP.Scheme, d)}
	}

	// The queue is sized for every task, so Submit never waits on workers.
	// Filling it before the pool starts keeps a canceled context from
	// stopping workers ahead of tasks they still owe a record for.
	runErr := dispatch.Submit(detached, tasks)
	if runErr == nil {
		runErr = dispatch.Run(ctx)
	}

	closeCtx, cancel := context.WithTimeout(detached, closeTimeout)
	defer cancel()
	report, closeErr := collector.Close(closeCtx)

	logger.Info("crawl summary", report.Summary.Fields()...)
	if ctx.Err() != nil {
		logger.Warn("crawl canceled before completion", zap.Error(ctx.Err()))
	}
	a.completeRun(detached, logger, runID, ctx.Err() != nil, report.Summary)

	if err := errors.Join(runErr, closeErr); err != nil {
		return report, fmt.Errorf("crawl: %w", err)
	}
	return report, nil
}

func (a *App) buildSinks(logger *zap.Logger, runID string, total int) []stats.Sink {
	out := []stats.Sink{
		sinks.NewLogSink(logger.Named("progress"), total),
		a.promSink,
	}
	if a.store != nil {
		out = append(out, sinks.NewStoreSink(a.store, runID, logger.Named("store")))
	}
	return out
}

func (a *App) startRun(ctx context.Context, logger *zap.Logger, runID string, domains int) {
	if a.store == nil {
		return
	}
	if err := a.store.StartRun(ctx, runID, a.clock.Now(), domains); err != nil {
		logger.Warn("record run start failed", zap.Error(err))
	}
}

func (a *App) completeRun(ctx context.Context, logger *zap.Logger, runID string, canceled bool, s stats.Summary) {
	if a.store == nil {
		return
	}
	status := postgres.RunSuccess
	if canceled {
		status = postgres.RunCanceled
	}
	if err := a.store.CompleteRun(ctx, runID, a.clock.Now(), status, s.Success, s.Failure); err != nil {
		logger.Warn("record run completion failed", zap.Error(err))
	}
}

// Close releases the services held by the App.
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
}
