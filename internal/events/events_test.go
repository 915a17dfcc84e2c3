package events

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherRoundtripThroughMemoryQueue(t *testing.T) {
	queue := NewMemoryQueue(4)
	pub := NewPublisher(queue, nil)
	ctx := context.Background()

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	err := pub.PublishBooked(ctx, AppointmentBookedV1{
		AppointmentID:   "appt-1",
		DoctorID:        "doc-1",
		PatientID:       "patient-1",
		Start:           start,
		DurationMinutes: 30,
		Type:            "in_person",
		Reason:          "checkup",
		OccurredAt:      start,
	})
	require.NoError(t, err)

	msgs, err := queue.Receive(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	env, err := DecodeEnvelope(msgs[0].Body)
	require.NoError(t, err)
	assert.Equal(t, KindBooked, env.Kind)
	assert.NotEmpty(t, env.ID)
	require.NotNil(t, env.Booked)
	assert.Equal(t, "appt-1", env.Booked.AppointmentID)
	assert.True(t, env.Booked.Start.Equal(start))
	assert.Nil(t, env.Rescheduled)
	assert.Nil(t, env.StatusChanged)
}

func TestPublisherPreservesEventID(t *testing.T) {
	queue := NewMemoryQueue(4)
	pub := NewPublisher(queue, nil)
	ctx := context.Background()

	err := pub.PublishStatusChanged(ctx, AppointmentStatusChangedV1{
		EventID:       "evt-42",
		AppointmentID: "appt-1",
		From:          "pending",
		To:            "confirmed",
	})
	require.NoError(t, err)

	msgs, err := queue.Receive(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	env, err := DecodeEnvelope(msgs[0].Body)
	require.NoError(t, err)
	assert.Equal(t, "evt-42", env.ID)
	assert.Equal(t, KindStatusChanged, env.Kind)
	require.NotNil(t, env.StatusChanged)
	assert.Equal(t, "confirmed", env.StatusChanged.To)
}

func TestDecodeEnvelopeRejectsMalformedBody(t *testing.T) {
	_, err := DecodeEnvelope("{not json")
	require.Error(t, err)
}

func TestMemoryQueueReceiveBatches(t *testing.T) {
	queue := NewMemoryQueue(8)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, queue.Send(ctx, "payload"))
	}

	msgs, err := queue.Receive(ctx, 2, 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	msgs, err = queue.Receive(ctx, 2, 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestMemoryQueueReceiveTimesOutEmpty(t *testing.T) {
	queue := NewMemoryQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	msgs, err := queue.Receive(ctx, 1, 30)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, msgs)
}

func TestProcessedStoreAlreadyProcessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)
	ctx := context.Background()

	mock.ExpectQuery("SELECT 1 FROM processed_events").
		WithArgs("notifications", "evt-1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}))

	seen, err := store.AlreadyProcessed(ctx, "notifications", "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	mock.ExpectQuery("SELECT 1 FROM processed_events").
		WithArgs("notifications", "evt-1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	seen, err = store.AlreadyProcessed(ctx, "notifications", "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessedStoreMarkProcessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("notifications", "evt-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := store.MarkProcessed(ctx, "notifications", "evt-1")
	require.NoError(t, err)
	assert.True(t, inserted)

	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("notifications", "evt-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err = store.MarkProcessed(ctx, "notifications", "evt-1")
	require.NoError(t, err)
	assert.False(t, inserted)

	require.NoError(t, mock.ExpectationsWereMet())
}
