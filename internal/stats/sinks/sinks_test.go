package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

func sampleBatch() []crawler.Result {
	return []crawler.Result{
		{
			Index:    0,
			Record:   crawler.Record{Domain: "a.com", Logo: "https://a.com/logo.png", Label: crawler.LabelLogo},
			Source:   crawler.SourceJSONLD,
			Attempts: []crawler.Attempt{{Number: 1, Duration: 200 * time.Millisecond}},
		},
		{
			Index:    1,
			Record:   crawler.NewErrorRecord("b.com", errors.New("connection refused")),
			Source:   crawler.SourceNone,
			Attempts: []crawler.Attempt{{Number: 1}, {Number: 2}, {Number: 3}},
		},
		{
			Index:  2,
			Record: crawler.NewNoneRecord("c.com"),
		},
	}
}

// TestPrometheusSinkRecordsMetrics ensures counters and histograms follow the batch.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	require.NoError(t, sink.Consume(context.Background(), sampleBatch()))

	require.InDelta(t, 1.0, testutil.ToFloat64(sink.records.WithLabelValues("logo", "json_ld")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.records.WithLabelValues("error", "none")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.records.WithLabelValues("none", "none")), 1e-9)
	require.Equal(t, 2, testutil.CollectAndCount(sink.roundTrip, "logocrawler_domain_round_trip_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(sink.attempts, "logocrawler_domain_attempts"))

	_, err = NewPrometheusSink(reg)
	require.ErrorContains(t, err, "register stats collector")
}

// TestLogSinkWritesProgressLines checks the running counters in each line.
func TestLogSinkWritesProgressLines(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core), 3)

	require.NoError(t, sink.Consume(context.Background(), sampleBatch()))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.FilterMessage("domain completed").All()
	require.Len(t, entries, 3)

	last := entries[2].ContextMap()
	require.Equal(t, int64(3), last["completed"])
	require.Equal(t, int64(3), last["total"])
	require.Equal(t, int64(1), last["success"])
	require.Equal(t, int64(2), last["failure"])
	require.Equal(t, "c.com", last["domain"])

	require.Equal(t, "connection refused", entries[1].ContextMap()["error"])
	require.Equal(t, "https://a.com/logo.png", entries[0].ContextMap()["logo"])
}

// TestStoreSinkPersistsResults ensures every result reaches the repository under the run ID.
func TestStoreSinkPersistsResults(t *testing.T) {
	t.Parallel()

	repo := &fakeRecordRepo{}
	sink := NewStoreSink(repo, "run-1", nil)

	require.NoError(t, sink.Consume(context.Background(), sampleBatch()))
	require.Equal(t, []string{"a.com", "b.com", "c.com"}, repo.domains)
	require.Equal(t, []string{"run-1"}, repo.uniqueRuns())
}

// TestStoreSinkHandlesErrors surfaces repository failures back to the caller.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	repo := &fakeRecordRepo{failOn: "b.com"}
	sink := NewStoreSink(repo, "run-1", zap.NewNop())

	err := sink.Consume(context.Background(), sampleBatch())
	require.EqualError(t, err, "store b.com: db down")
	require.Equal(t, []string{"a.com", "c.com"}, repo.domains)

	var nilSink *StoreSink
	require.NoError(t, nilSink.Consume(context.Background(), sampleBatch()))
}

type fakeRecordRepo struct {
	domains []string
	runs    []string
	failOn  string
}

func (r *fakeRecordRepo) StoreRecord(_ context.Context, runID string, result crawler.Result) error {
	if result.Record.Domain == r.failOn {
		return errors.New("db down")
	}
	r.domains = append(r.domains, result.Record.Domain)
	r.runs = append(r.runs, runID)
	return nil
}

func (r *fakeRecordRepo) uniqueRuns() []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range r.runs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
