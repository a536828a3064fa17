package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

func TestStoreRecordsInsertsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "harvested_records")
	require.NoError(t, err)

	published := time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC)
	records := []harvest.HarvestedRecord{
		{
			Keyword:     "nikel papua",
			Source:      "Kompas",
			PublishedAt: published,
			Title:       "Tambang nikel",
			Authors:     []string{"A", "B"},
			URL:         "https://news.example/1",
			Body:        "body",
			Fingerprint: "fp1",
		},
		{
			Keyword:     "izin tambang",
			Source:      "Tempo",
			Title:       "Izin",
			URL:         "https://news.example/2",
			Body:        "body 2",
			Fingerprint: "fp2",
		},
	}

	mock.ExpectExec("INSERT INTO harvested_records").
		WithArgs("https://news.example/1", "run-1", "nikel papua", "Kompas", published, "Tambang nikel", "A, B", "body", "fp1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO harvested_records").
		WithArgs("https://news.example/2", "run-1", "izin tambang", "Tempo", nil, "Izin", "", "body 2", "fp2").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	require.NoError(t, store.StoreRecords(context.Background(), "run-1", records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRecordsPropagatesErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO harvested_records").
		WillReturnError(errors.New("connection reset"))

	err = store.StoreRecords(context.Background(), "run-2", []harvest.HarvestedRecord{{URL: "https://news.example/x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://news.example/x")

	assert.Error(t, store.StoreRecords(context.Background(), "", nil))
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "records_2025")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS records_2025").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableNameValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRecordStoreWithPool(nil, "x")
	assert.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewRecordStoreWithPool(mock, "records; DROP TABLE x")
	assert.Error(t, err)

	_, err = NewRecordStore(context.Background(), RecordStoreConfig{})
	assert.Error(t, err)
}
