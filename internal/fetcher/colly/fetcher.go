// Package collyfetcher implements a single-attempt crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 5 << 20
)

// DefaultUserAgent mimics a desktop browser; many sites serve bots a stripped page.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"

// DefaultHeaders returns the browser-like headers sent with every request.
func DefaultHeaders() http.Header {
	return http.Header{
		"Accept":                    {"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
		"Accept-Language":           {"en-US,en;q=0.9"},
		"Upgrade-Insecure-Requests": {"1"},
		"Sec-Fetch-Dest":            {"document"},
		"Sec-Fetch-Mode":            {"navigate"},
		"Sec-Fetch-Site":            {"none"},
		"Sec-Fetch-User":            {"?1"},
	}
}

// Config controls collector behavior.
type Config struct {
	UserAgent          string
	Headers            http.Header
	Timeout            time.Duration
	MaxBodyBytes       int
	InsecureSkipVerify bool
}

// Fetcher implements crawler.Fetcher using the Colly collector. The HTTP
// client and its connection pool are shared by every fetch.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Headers == nil {
		cfg.Headers = DefaultHeaders()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newMeteredTransport(newHTTPTransport(cfg.InsecureSkipVerify)))
	c.SetRequestTimeout(cfg.Timeout)
	applyCollectorSettings(c, cfg)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

func applyCollectorSettings(c *colly.Collector, cfg Config) {
	c.UserAgent = cfg.UserAgent
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	c.DetectCharset = true
	c.MaxBodySize = cfg.MaxBodyBytes
}

// Fetch executes a single HTTP GET, following redirects. Non-2xx/3xx
// statuses and transport failures come back as *crawler.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (crawler.FetchResponse, error) {
	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(&result, &fetchErr)
	// Requests carry ctx, so cancellation aborts the in-flight GET.
	collector.Context = ctx

	err := f.runCollector(ctx, collector, url, &fetchErr)
	result.URL = url
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	if err != nil {
		return result, crawler.TransportError(ctx, url, err)
	}
	if statusErr := crawler.StatusError(url, result.StatusCode); statusErr != nil {
		return result, statusErr
	}
	return result, nil
}

func (f *Fetcher) buildCollector(result *crawler.FetchResponse, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	applyCollectorSettings(collector, f.cfg)
	f.configureCollectorHooks(collector, time.Now(), result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResponse{
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("colly fetch canceled: %w", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func (f *Fetcher) copyHeaders(r *colly.Request) {
	for key, values := range f.cfg.Headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport(insecure bool) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: insecure, //nolint:gosec // opt-in for sites with broken chains
			MinVersion:         tls.VersionTLS12,
		},
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}
}
