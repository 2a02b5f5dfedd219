package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a day-granularity calendar date. The embedded time is always
// normalized to midnight UTC so that two Dates for the same calendar day
// compare equal regardless of how they were constructed.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// Today returns the current calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysSince returns the number of whole days from other to d.
// Negative when d is before other.
func (d Date) DaysSince(other Date) int {
	return int(d.Time.Sub(other.Time).Hours() / 24)
}

// MonthsSince returns the number of calendar months from other to d,
// ignoring the day of month.
func (d Date) MonthsSince(other Date) int {
	return (d.Year()-other.Year())*12 + int(d.Time.Month()) - int(other.Time.Month())
}

// WeekdayNumber returns the weekday as 1..7 with Sunday = 1.
func (d Date) WeekdayNumber() int {
	return int(d.Time.Weekday()) + 1
}

// DayOfMonth returns the day of the month (1..31).
func (d Date) DayOfMonth() int {
	return d.Time.Day()
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// Equal reports whether d and other are the same calendar day.
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

// SameMonth reports whether d and other fall in the same year and month.
func (d Date) SameMonth(other Date) bool {
	return d.Year() == other.Year() && d.Time.Month() == other.Time.Month()
}

func (d Date) String() string {
	return d.Time.Format(dateLayout)
}

// Validate checks that the date is usable as a calendar day.
func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(d.Time.Format(dateLayout))
}

// UnmarshalJSON accepts both the date-only layout and full RFC3339
// timestamps; legacy snapshots stored dates as timestamps.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		*d = DateOf(t)
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("decode date %q: %w", s, err)
	}
	*d = DateOf(t)
	return nil
}
