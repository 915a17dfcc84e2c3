package clinic

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestGetReturnsDefaultsWhenUnset(t *testing.T) {
	store := newTestStore(t)

	settings, err := store.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", settings.DoctorID)
	assert.Equal(t, "UTC", settings.Timezone)
	assert.NotNil(t, settings.BusinessHours.Monday)
	assert.Nil(t, settings.BusinessHours.Saturday)
	assert.False(t, settings.Notifications.EmailEnabled)
	assert.True(t, settings.Notifications.NotifyOnBooking)
}

func TestSetGetRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := DefaultSettings("doc-1")
	in.Timezone = "America/New_York"
	in.BusinessHours.Saturday = &DayHours{Open: "10:00", Close: "14:00"}
	in.Notifications.EmailEnabled = true
	in.Notifications.EmailRecipients = []string{"front-desk@clinic.example"}
	require.NoError(t, store.Set(ctx, in))

	out, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", out.Timezone)
	require.NotNil(t, out.BusinessHours.Saturday)
	assert.Equal(t, "10:00", out.BusinessHours.Saturday.Open)
	assert.True(t, out.Notifications.EmailEnabled)
	assert.Equal(t, []string{"front-desk@clinic.example"}, out.Notifications.EmailRecipients)
}

func TestDayBoundsUsesDoctorTimezone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	settings := DefaultSettings("doc-1")
	settings.Timezone = "America/New_York"
	require.NoError(t, store.Set(ctx, settings))

	// 2026-09-01 02:00 UTC is still 2026-08-31 22:00 in New York.
	now := time.Date(2026, 9, 1, 2, 0, 0, 0, time.UTC)
	from, to, err := store.DayBounds(ctx, "doc-1", now)
	require.NoError(t, err)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, ny).UTC(), from)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, ny).UTC(), to)
	assert.Equal(t, 24*time.Hour, to.Sub(from))
}

func TestDayBoundsDefaultsToUTC(t *testing.T) {
	store := newTestStore(t)

	now := time.Date(2026, 9, 1, 15, 30, 0, 0, time.UTC)
	from, to, err := store.DayBounds(context.Background(), "doc-unknown", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), to)
}

func TestGetEmailRecipientsDedupes(t *testing.T) {
	prefs := NotificationPrefs{
		EmailRecipients: []string{"a@clinic.example", "", "b@clinic.example", "a@clinic.example"},
	}
	assert.Equal(t, []string{"a@clinic.example", "b@clinic.example"}, prefs.GetEmailRecipients())
}

func TestIsWorkingAt(t *testing.T) {
	settings := DefaultSettings("doc-1")

	// 2026-09-01 is a Tuesday.
	assert.True(t, settings.IsWorkingAt(time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)))
	assert.True(t, settings.IsWorkingAt(time.Date(2026, 9, 1, 16, 59, 0, 0, time.UTC)))
	assert.False(t, settings.IsWorkingAt(time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC)))
	assert.False(t, settings.IsWorkingAt(time.Date(2026, 9, 1, 8, 59, 0, 0, time.UTC)))

	// Saturday has no hours configured.
	assert.False(t, settings.IsWorkingAt(time.Date(2026, 9, 5, 11, 0, 0, 0, time.UTC)))
}

func TestIsWorkingAtNoHoursConfigured(t *testing.T) {
	settings := &Settings{DoctorID: "doc-1", Timezone: "UTC"}
	assert.True(t, settings.IsWorkingAt(time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC)))
}
