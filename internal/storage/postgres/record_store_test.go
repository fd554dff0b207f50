package postgres

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

func TestStoreRecordInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "logo_records", "")
	require.NoError(t, err)

	result := crawler.Result{
		Index:  4,
		Record: crawler.Record{Domain: "example.com", Logo: "https://example.com/logo.png", Label: crawler.LabelLogo},
		Source: crawler.SourceJSONLD,
		Attempts: []crawler.Attempt{
			{Number: 1, Duration: 300 * time.Millisecond, StatusCode: http.StatusBadGateway, Err: errors.New("server error")},
			{Number: 2, Duration: 200 * time.Millisecond, StatusCode: http.StatusOK},
		},
	}

	mock.ExpectExec("INSERT INTO logo_records").
		WithArgs(
			"run-1",
			4,
			"example.com",
			"https://example.com/logo.png",
			"logo",
			"",
			"json_ld",
			2,
			int64(500),
			[]byte(`[{"number":1,"duration_ms":300,"status_code":502,"error":"server error"},`+
				`{"number":2,"duration_ms":200,"status_code":200}]`),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.StoreRecord(context.Background(), "run-1", result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRecordWrapsExecErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "", "")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO logo_records").
		WillReturnError(errors.New("connection reset"))

	err = store.StoreRecord(context.Background(), "run-1", crawler.Result{
		Record: crawler.NewNoneRecord("example.com"),
		Source: crawler.SourceNone,
	})
	require.EqualError(t, err, "insert record: connection reset")
}

func TestStoreRecordRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "", "")
	require.NoError(t, err)

	require.EqualError(t, store.StoreRecord(context.Background(), "", crawler.Result{}), "run id is required")
	err = store.StoreRecord(context.Background(), "run-1", crawler.Result{
		Record: crawler.Record{Domain: "example.com", Label: crawler.LabelLogo},
	})
	require.ErrorContains(t, err, "invalid record")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunBookkeeping(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "", "crawl_runs")
	require.NoError(t, err)

	started := time.Unix(1700000000, 0).UTC()
	finished := started.Add(time.Minute)

	mock.ExpectExec("INSERT INTO crawl_runs").
		WithArgs("run-1", started, RunRunning, 10).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE crawl_runs").
		WithArgs(finished, RunSuccess, 7, 3, "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE crawl_runs").
		WithArgs(finished, RunSuccess, 0, 0, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, store.StartRun(context.Background(), "run-1", started, 10))
	require.NoError(t, store.CompleteRun(context.Background(), "run-1", finished, RunSuccess, 7, 3))
	require.EqualError(t,
		store.CompleteRun(context.Background(), "missing", finished, RunSuccess, 0, 0),
		"complete run: run missing not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRecordStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRecordStore(context.Background(), RecordStoreConfig{})
	require.EqualError(t, err, "postgres.dsn is required")

	_, err = NewRecordStoreWithPool(nil, "", "")
	require.EqualError(t, err, "pool is required")

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewRecordStoreWithPool(mock, "logo records; drop", "")
	require.EqualError(t, err, `invalid table name "logo records; drop"`)

	var nilStore *RecordStore
	nilStore.Close()
	require.EqualError(t, nilStore.StoreRecord(context.Background(), "run", crawler.Result{}), "record store is not configured")
}
