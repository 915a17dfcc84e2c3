package schedule

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	from := at(0, 0)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs("doc-1").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow(string(StatusPending), int64(3)).
			AddRow(string(StatusConfirmed), int64(2)).
			AddRow(string(StatusCompleted), int64(7)).
			AddRow(string(StatusCancelled), int64(1)))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("doc-1", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4)))

	repo := NewStatsRepositoryWithDB(mock)
	stats, err := repo.GetStats(context.Background(), "doc-1", from, to)
	require.NoError(t, err)

	assert.Equal(t, int64(13), stats.Total)
	assert.Equal(t, int64(3), stats.Pending)
	assert.Equal(t, int64(2), stats.Confirmed)
	assert.Equal(t, int64(7), stats.Completed)
	assert.Equal(t, int64(1), stats.Cancelled)
	assert.Zero(t, stats.InProgress)
	assert.Zero(t, stats.NoShow)
	assert.Equal(t, int64(4), stats.Today)
	assert.NoError(t, mock.ExpectationsWereMet())
}
