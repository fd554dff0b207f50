// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

const (
	defaultTable     = "logo_records"
	defaultRunsTable = "crawl_runs"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Run statuses written to the runs table.
const (
	RunRunning  = "RUNNING"
	RunSuccess  = "SUCCESS"
	RunCanceled = "CANCELED"
)

// RecordStoreConfig controls the Postgres connection pool used for record rows.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	RunsTable       string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore writes crawl records and run bookkeeping into Postgres.
type RecordStore struct {
	pool      execCloser
	table     string
	runsTable string
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres.dsn is required")
	}
	table, runsTable, err := tableNames(cfg.Table, cfg.RunsTable)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: pool, table: table, runsTable: runsTable}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool execCloser, table, runsTable string) (*RecordStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	table, runsTable, err := tableNames(table, runsTable)
	if err != nil {
		return nil, err
	}
	return &RecordStore{pool: pool, table: table, runsTable: runsTable}, nil
}

func tableNames(table, runsTable string) (string, string, error) {
	if table == "" {
		table = defaultTable
	}
	if runsTable == "" {
		runsTable = defaultRunsTable
	}
	for _, name := range []string{table, runsTable} {
		if !validTableName.MatchString(name) {
			return "", "", fmt.Errorf("invalid table name %q", name)
		}
	}
	return table, runsTable, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StartRun inserts the bookkeeping row for a crawl run.
func (s *RecordStore) StartRun(ctx context.Context, runID string, startedAt time.Time, domains int) error {
	if err := s.ready(runID); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (run_id, started_at, status, domains)
VALUES ($1, $2, $3, $4)
ON CONFLICT (run_id) DO NOTHING`, s.runsTable)
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, RunRunning, domains); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// CompleteRun marks a run finished with the given status and success/failure totals.
func (s *RecordStore) CompleteRun(
	ctx context.Context,
	runID string,
	finishedAt time.Time,
	status string,
	success, failure int,
) error {
	if err := s.ready(runID); err != nil {
		return err
	}
	query := fmt.Sprintf(`
UPDATE %s
SET finished_at = $1, status = $2, success = $3, failure = $4
WHERE run_id = $5`, s.runsTable)
	tag, err := s.pool.Exec(ctx, query, finishedAt, status, success, failure, runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete run: run %s not found", runID)
	}
	return nil
}

// StoreRecord inserts one crawl record row, including its attempt history.
func (s *RecordStore) StoreRecord(ctx context.Context, runID string, result crawler.Result) error {
	if err := s.ready(runID); err != nil {
		return err
	}
	if err := result.Record.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	attemptsJSON, err := json.Marshal(attemptLog(result.Attempts))
	if err != nil {
		return fmt.Errorf("marshal attempts: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	input_index,
	domain,
	logo,
	label,
	error,
	source,
	attempts,
	round_trip_ms,
	attempt_log
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, s.table)

	args := []any{
		runID,
		result.Index,
		result.Record.Domain,
		result.Record.Logo,
		string(result.Record.Label),
		result.Record.Error,
		string(result.Source),
		len(result.Attempts),
		result.RoundTrip().Milliseconds(),
		attemptsJSON,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *RecordStore) ready(runID string) error {
	if s == nil || s.pool == nil {
		return errors.New("record store is not configured")
	}
	if runID == "" {
		return errors.New("run id is required")
	}
	return nil
}

type attemptRow struct {
	Number     int    `json:"number"`
	DurationMS int64  `json:"duration_ms"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

func attemptLog(attempts []crawler.Attempt) []attemptRow {
	rows := make([]attemptRow, 0, len(attempts))
	for _, a := range attempts {
		row := attemptRow{
			Number:     a.Number,
			DurationMS: a.Duration.Milliseconds(),
			StatusCode: a.StatusCode,
		}
		if a.Err != nil {
			row.Error = a.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}
