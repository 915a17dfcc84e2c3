package schedule

import "time"

// Interval is a half-open time range [Start, Start+Duration) held in UTC.
type Interval struct {
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"durationMinutes"`
}

// NewInterval builds an interval normalized to UTC.
func NewInterval(start time.Time, durationMinutes int) Interval {
	return Interval{Start: start.UTC(), DurationMinutes: durationMinutes}
}

// End returns the exclusive end instant of the interval.
func (i Interval) End() time.Time {
	return i.Start.Add(time.Duration(i.DurationMinutes) * time.Minute)
}

// Overlaps reports whether two half-open intervals intersect. Intervals that
// only share a boundary instant (back-to-back appointments) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End()) && b.Start.Before(a.End())
}

// Contains reports whether instant falls within the half-open interval.
func Contains(i Interval, instant time.Time) bool {
	return !instant.Before(i.Start) && instant.Before(i.End())
}

// Validate checks the interval is usable for scheduling.
func (i Interval) Validate() error {
	if i.Start.IsZero() {
		return &ValidationError{Field: "start", Message: "start is required"}
	}
	if i.DurationMinutes <= 0 {
		return &ValidationError{Field: "durationMinutes", Message: "duration must be positive"}
	}
	return nil
}
