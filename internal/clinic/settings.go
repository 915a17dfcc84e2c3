// Package clinic holds per-doctor practice settings: timezone, working
// hours and notification preferences.
package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DayHours represents the working hours for a single day.
// Nil means the doctor does not see patients that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "17:00" in 24-hour format
}

// BusinessHours maps day names to their hours.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// GetHoursForDay returns the hours for a given weekday.
func (b *BusinessHours) GetHoursForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return b.Sunday
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	case time.Saturday:
		return b.Saturday
	default:
		return nil
	}
}

// NotificationPrefs holds a doctor's notification preferences.
type NotificationPrefs struct {
	EmailEnabled    bool     `json:"email_enabled"`
	EmailRecipients []string `json:"email_recipients,omitempty"`

	NotifyOnBooking      bool `json:"notify_on_booking"`
	NotifyOnReschedule   bool `json:"notify_on_reschedule"`
	NotifyOnStatusChange bool `json:"notify_on_status_change"`
}

// GetEmailRecipients returns the configured recipients with duplicates and
// empty entries removed.
func (n *NotificationPrefs) GetEmailRecipients() []string {
	seen := make(map[string]struct{})
	var recipients []string
	for _, r := range n.EmailRecipients {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		recipients = append(recipients, r)
	}
	return recipients
}

// Settings holds per-doctor scheduling settings.
type Settings struct {
	DoctorID      string            `json:"doctor_id"`
	Timezone      string            `json:"timezone"` // e.g. "America/New_York"
	BusinessHours BusinessHours     `json:"business_hours"`
	Notifications NotificationPrefs `json:"notifications"`
}

// DefaultSettings returns the settings used for doctors who have never
// configured anything. UTC keeps day boundaries predictable until a real
// timezone is set.
func DefaultSettings(doctorID string) *Settings {
	return &Settings{
		DoctorID: doctorID,
		Timezone: "UTC",
		BusinessHours: BusinessHours{
			Monday:    &DayHours{Open: "09:00", Close: "17:00"},
			Tuesday:   &DayHours{Open: "09:00", Close: "17:00"},
			Wednesday: &DayHours{Open: "09:00", Close: "17:00"},
			Thursday:  &DayHours{Open: "09:00", Close: "17:00"},
			Friday:    &DayHours{Open: "09:00", Close: "17:00"},
			Saturday:  nil,
			Sunday:    nil,
		},
		Notifications: NotificationPrefs{
			EmailEnabled:         false,
			NotifyOnBooking:      true,
			NotifyOnReschedule:   true,
			NotifyOnStatusChange: false,
		},
	}
}

// Location resolves the doctor's timezone, falling back to UTC when the
// configured name is unknown.
func (s *Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsWorkingAt checks whether the given instant falls within the doctor's
// working hours. Doctors with no hours configured at all are treated as
// always available.
func (s *Settings) IsWorkingAt(t time.Time) bool {
	local := t.In(s.Location())

	hours := s.BusinessHours.GetHoursForDay(local.Weekday())
	if hours == nil {
		return !s.hasAnyHours()
	}

	openTime, err := time.Parse("15:04", hours.Open)
	if err != nil {
		return false
	}
	closeTime, err := time.Parse("15:04", hours.Close)
	if err != nil {
		return false
	}

	current := local.Hour()*60 + local.Minute()
	open := openTime.Hour()*60 + openTime.Minute()
	close := closeTime.Hour()*60 + closeTime.Minute()
	return current >= open && current < close
}

func (s *Settings) hasAnyHours() bool {
	b := s.BusinessHours
	return b.Sunday != nil || b.Monday != nil || b.Tuesday != nil ||
		b.Wednesday != nil || b.Thursday != nil || b.Friday != nil || b.Saturday != nil
}

// Store provides redis persistence for doctor settings.
type Store struct {
	redis *redis.Client
}

// NewStore creates a settings store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) key(doctorID string) string {
	return fmt.Sprintf("doctor:settings:%s", doctorID)
}

// Get retrieves a doctor's settings, returning defaults when none are stored.
func (s *Store) Get(ctx context.Context, doctorID string) (*Settings, error) {
	data, err := s.redis.Get(ctx, s.key(doctorID)).Bytes()
	if err == redis.Nil {
		return DefaultSettings(doctorID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: get settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("clinic: unmarshal settings: %w", err)
	}
	return &settings, nil
}

// Set saves a doctor's settings.
func (s *Store) Set(ctx context.Context, settings *Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("clinic: marshal settings: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(settings.DoctorID), data, 0).Err(); err != nil {
		return fmt.Errorf("clinic: set settings: %w", err)
	}
	return nil
}

// DayBounds returns the half-open [from, to) window covering the doctor's
// calendar day containing now, in the doctor's local timezone.
func (s *Store) DayBounds(ctx context.Context, doctorID string, now time.Time) (time.Time, time.Time, error) {
	settings, err := s.Get(ctx, doctorID)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	loc := settings.Location()
	local := now.In(loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return from.UTC(), from.AddDate(0, 0, 1).UTC(), nil
}
