package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

// LogSink emits one progress line per completed domain.
type LogSink struct {
	logger    *zap.Logger
	total     int
	completed int
	success   int
	failure   int
}

// NewLogSink wires a Zap logger to the sink interface. total is the number of
// domains in the job and is only used for the progress counter.
func NewLogSink(logger *zap.Logger, total int) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger, total: total}
}

// Consume logs each result in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []crawler.Result) error {
	for _, r := range batch {
		s.completed++
		if r.Record.Label.Success() {
			s.success++
		} else {
			s.failure++
		}
		fields := []zap.Field{
			zap.Int("completed", s.completed),
			zap.Int("total", s.total),
			zap.Int("success", s.success),
			zap.Int("failure", s.failure),
			zap.String("domain", r.Record.Domain),
			zap.String("label", string(r.Record.Label)),
			zap.String("source", string(r.Source)),
			zap.Int("attempts", len(r.Attempts)),
			zap.Duration("round_trip", r.RoundTrip()),
		}
		if r.Record.Logo != "" {
			fields = append(fields, zap.String("logo", r.Record.Logo))
		}
		if r.Record.Error != "" {
			fields = append(fields, zap.String("error", r.Record.Error))
		}
		s.logger.Info("domain completed", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
