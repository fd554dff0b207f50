package sinks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

// RecordRepository persists individual crawl results.
type RecordRepository interface {
	StoreRecord(ctx context.Context, runID string, result crawler.Result) error
}

// StoreSink persists every result of one run via a RecordRepository.
type StoreSink struct {
	repo   RecordRepository
	runID  string
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository and run.
func NewStoreSink(repo RecordRepository, runID string, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, runID: runID, logger: logger}
}

// Consume writes each result. One failing row does not stop the rest of the
// batch; all failures are returned joined.
func (s *StoreSink) Consume(ctx context.Context, batch []crawler.Result) error {
	if s == nil || s.repo == nil {
		return nil
	}
	var errs []error
	for _, r := range batch {
		if err := s.repo.StoreRecord(ctx, s.runID, r); err != nil {
			s.logger.Debug("store record failed", zap.String("domain", r.Record.Domain), zap.Error(err))
			errs = append(errs, fmt.Errorf("store %s: %w", r.Record.Domain, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
