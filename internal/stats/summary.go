package stats

import (
	"time"

	"go.uber.org/zap"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

// Summary is the finalized statistics of one crawl job.
type Summary struct {
	Total   int
	Success int
	// Failure counts every domain without a logo, including "none".
	Failure int

	JSONLD          int
	ImageLink       int
	FaviconFallback int
	NotFound        int
	Errored         int

	TotalRoundTrip time.Duration
	AvgRoundTrip   time.Duration
	MaxRoundTrip   time.Duration
	MaxDomain      string
	WallClock      time.Duration
}

// Report is the collector's final output.
type Report struct {
	// Records holds one record per input domain, in input order.
	Records []crawler.Record
	Summary Summary
}

// Summarize computes the statistics for results in any order. Round-trip
// figures only cover domains that made at least one attempt; on a tie for the
// slowest domain the one earliest in the input wins.
func Summarize(results []crawler.Result) Summary {
	var t tally
	for _, r := range results {
		t.observe(r)
	}
	return t.summary()
}

// tally keeps running counts as results arrive.
type tally struct {
	s        Summary
	timed    int
	maxIndex int
}

func (t *tally) observe(r crawler.Result) {
	s := &t.s
	s.Total++
	if r.Record.Label.Success() {
		s.Success++
	} else {
		s.Failure++
	}
	switch {
	case r.Record.Label == crawler.LabelError:
		s.Errored++
	case r.Record.Label == crawler.LabelNone:
		s.NotFound++
	case r.Source == crawler.SourceJSONLD:
		s.JSONLD++
	case r.Source == crawler.SourceImageLink:
		s.ImageLink++
	case r.Source == crawler.SourceFaviconFallback:
		s.FaviconFallback++
	}
	if len(r.Attempts) == 0 {
		return
	}
	rt := r.RoundTrip()
	t.timed++
	s.TotalRoundTrip += rt
	if t.timed == 1 || rt > s.MaxRoundTrip || (rt == s.MaxRoundTrip && r.Index < t.maxIndex) {
		s.MaxRoundTrip = rt
		s.MaxDomain = r.Record.Domain
		t.maxIndex = r.Index
	}
}

func (t *tally) summary() Summary {
	s := t.s
	if t.timed > 0 {
		s.AvgRoundTrip = s.TotalRoundTrip / time.Duration(t.timed)
	}
	return s
}

// Fields renders the summary as structured log fields.
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("total", s.Total),
		zap.Int("success", s.Success),
		zap.Int("failure", s.Failure),
		zap.Int("json_ld_logos", s.JSONLD),
		zap.Int("favicon_links", s.ImageLink),
		zap.Int("fallback_favicons", s.FaviconFallback),
		zap.Int("nothing_found", s.NotFound),
		zap.Int("failed_fetches", s.Errored),
		zap.Duration("total_round_trip", s.TotalRoundTrip),
		zap.Duration("avg_round_trip", s.AvgRoundTrip),
		zap.Duration("max_round_trip", s.MaxRoundTrip),
		zap.String("max_domain", s.MaxDomain),
		zap.Duration("wall_clock", s.WallClock),
	}
}
