package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

// PrometheusSink exports per-domain outcomes via Prometheus.
type PrometheusSink struct {
	records   *prometheus.CounterVec
	roundTrip *prometheus.HistogramVec
	attempts  prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logocrawler_records_total",
			Help: "Completed domains partitioned by label and extraction source.",
		}, []string{"label", "source"}),
		roundTrip: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "logocrawler_domain_round_trip_seconds",
			Help:    "Summed attempt duration per domain.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"label"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logocrawler_domain_attempts",
			Help:    "Fetch attempts made per domain.",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.records,
		s.roundTrip,
		s.attempts,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register stats collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []crawler.Result) error {
	for _, r := range batch {
		label := string(r.Record.Label)
		source := string(r.Source)
		if source == "" {
			source = string(crawler.SourceNone)
		}
		s.records.WithLabelValues(label, source).Inc()
		s.attempts.Observe(float64(len(r.Attempts)))
		if len(r.Attempts) > 0 {
			s.roundTrip.WithLabelValues(label).Observe(r.RoundTrip().Seconds())
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
