package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Minute)
	return t
}

func (c *stepClock) Sleep(context.Context, time.Duration) error {
	return nil
}

func result(i int, domain string, label crawler.Label, source crawler.SourceKind, durations ...time.Duration) crawler.Result {
	r := crawler.Result{Index: i, Source: source}
	switch label {
	case crawler.LabelLogo, crawler.LabelFavicon:
		r.Record = crawler.Record{Domain: domain, Logo: "https://" + domain + "/logo.png", Label: label}
	case crawler.LabelNone:
		r.Record = crawler.NewNoneRecord(domain)
	default:
		r.Record = crawler.NewErrorRecord(domain, errors.New("connection refused"))
	}
	for n, d := range durations {
		r.Attempts = append(r.Attempts, crawler.Attempt{Number: n + 1, Duration: d})
	}
	return r
}

// TestCollectorOrdersRecordsByIndex emits concurrently and expects input order back.
func TestCollectorOrdersRecordsByIndex(t *testing.T) {
	t.Parallel()

	const m = 500
	c := NewCollector(Config{BufferSize: 4, MaxBatch: 7, MaxBatchWait: time.Millisecond})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < m; i += 8 {
				c.Emit(result(i, fmt.Sprintf("d%03d.com", i), crawler.LabelNone, crawler.SourceNone, time.Millisecond))
			}
		}(w)
	}
	wg.Wait()

	report, err := c.Close(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Records, m)
	for i, rec := range report.Records {
		require.Equal(t, fmt.Sprintf("d%03d.com", i), rec.Domain)
	}
	require.Equal(t, m, report.Summary.Total)
}

// TestCollectorFlushesToSinks ensures every result reaches the sinks before Close returns.
func TestCollectorFlushesToSinks(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	c := NewCollector(Config{MaxBatch: 2, MaxBatchWait: time.Minute}, sink, nil)
	for i := 0; i < 5; i++ {
		c.Emit(result(i, fmt.Sprintf("d%d.com", i), crawler.LabelNone, crawler.SourceNone))
	}
	_, err := c.Close(context.Background())
	require.NoError(t, err)

	total := 0
	for _, b := range sink.Batches() {
		require.LessOrEqual(t, len(b), 2)
		total += len(b)
	}
	require.Equal(t, 5, total)
	require.True(t, sink.closed)
}

// TestCollectorBatchByTimer verifies the timer-based flush kicks in when the batch is small.
func TestCollectorBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	c := NewCollector(Config{MaxBatch: 10, MaxBatchWait: 20 * time.Millisecond}, sink)
	defer func() {
		_, _ = c.Close(context.Background())
	}()

	c.Emit(result(0, "a.com", crawler.LabelNone, crawler.SourceNone))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestCollectorEmitBlocksUnderBackpressure asserts results are never dropped.
func TestCollectorEmitBlocksUnderBackpressure(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	sink := &blockingSink{release: release}
	c := NewCollector(Config{BufferSize: 1, MaxBatch: 1}, sink)

	emitted := make(chan struct{})
	go func() {
		for i := 0; i < 4; i++ {
			c.Emit(result(i, fmt.Sprintf("d%d.com", i), crawler.LabelNone, crawler.SourceNone))
		}
		close(emitted)
	}()

	select {
	case <-emitted:
		t.Fatal("emit should block while the sink is stuck")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-emitted

	report, err := c.Close(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Records, 4)
}

func TestCollectorCloseTwice(t *testing.T) {
	t.Parallel()

	c := NewCollector(Config{})
	c.Emit(result(0, "a.com", crawler.LabelNone, crawler.SourceNone))
	first, err := c.Close(context.Background())
	require.NoError(t, err)

	second, err := c.Close(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	require.Equal(t, first, second)

	// Late results are ignored rather than panicking.
	c.Emit(result(1, "b.com", crawler.LabelNone, crawler.SourceNone))
}

func TestCollectorCloseHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	c := NewCollector(Config{MaxBatch: 1}, &blockingSink{release: release})
	c.Emit(result(0, "a.com", crawler.LabelNone, crawler.SourceNone))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Close(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCollectorRepairsInvalidRecords(t *testing.T) {
	t.Parallel()

	c := NewCollector(Config{})
	c.Emit(crawler.Result{Index: 0, Record: crawler.Record{Domain: "a.com", Label: crawler.LabelLogo}})
	report, err := c.Close(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Records, 1)
	require.Equal(t, crawler.LabelError, report.Records[0].Label)
	require.Contains(t, report.Records[0].Error, "invalid record")
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	results := []crawler.Result{
		result(0, "a.com", crawler.LabelLogo, crawler.SourceJSONLD, 2*time.Second),
		result(1, "b.com", crawler.LabelFavicon, crawler.SourceImageLink, time.Second),
		result(2, "c.com", crawler.LabelFavicon, crawler.SourceFaviconFallback, time.Second, 3*time.Second),
		result(3, "d.com", crawler.LabelNone, crawler.SourceNone, 4*time.Second),
		result(4, "e.com", crawler.LabelError, crawler.SourceNone, time.Second, time.Second, time.Second),
		result(5, "f.com", crawler.LabelError, crawler.SourceNone),
	}

	s := Summarize(results)
	require.Equal(t, Summary{
		Total:           6,
		Success:         3,
		Failure:         3,
		JSONLD:          1,
		ImageLink:       1,
		FaviconFallback: 1,
		NotFound:        1,
		Errored:         2,
		TotalRoundTrip:  14 * time.Second,
		AvgRoundTrip:    14 * time.Second / 5,
		MaxRoundTrip:    4 * time.Second,
		MaxDomain:       "c.com",
	}, s)
	require.Len(t, s.Fields(), 13)
}

func TestCollectorCountsAsResultsArrive(t *testing.T) {
	t.Parallel()

	results := []crawler.Result{
		result(0, "a.com", crawler.LabelLogo, crawler.SourceJSONLD, time.Second),
		result(1, "b.com", crawler.LabelNone, crawler.SourceNone, 3*time.Second),
		result(2, "c.com", crawler.LabelError, crawler.SourceNone, 2*time.Second, time.Second),
	}
	c := NewCollector(Config{MaxBatch: 1})
	// Out of input order: the later domain reaches the slowest time first.
	for i := len(results) - 1; i >= 0; i-- {
		c.Emit(results[i])
	}
	report, err := c.Close(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, report.Summary.Total)
	require.Equal(t, 1, report.Summary.Success)
	require.Equal(t, 2, report.Summary.Failure)
	require.Equal(t, 1, report.Summary.NotFound)
	require.Equal(t, 1, report.Summary.Errored)
	require.Equal(t, 3*time.Second, report.Summary.MaxRoundTrip)
	require.Equal(t, "b.com", report.Summary.MaxDomain)
	require.Equal(t, Summarize(results).MaxDomain, report.Summary.MaxDomain)
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	require.Equal(t, Summary{}, Summarize(nil))
}

func TestCollectorWallClock(t *testing.T) {
	t.Parallel()

	c := NewCollector(Config{Clock: &stepClock{now: time.Unix(0, 0)}})
	report, err := c.Close(context.Background())
	require.NoError(t, err)
	require.Equal(t, time.Minute, report.Summary.WallClock)
	require.Empty(t, report.Records)
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]crawler.Result
	closed  bool
}

func newStubSink() *stubSink {
	return &stubSink{batches: [][]crawler.Result{}}
}

func (s *stubSink) Consume(_ context.Context, batch []crawler.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]crawler.Result(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Batches() [][]crawler.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]crawler.Result, len(s.batches))
	copy(out, s.batches)
	return out
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Consume(context.Context, []crawler.Result) error {
	<-s.release
	return nil
}

func (s *blockingSink) Close(context.Context) error {
	return nil
}
