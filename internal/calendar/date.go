// Package calendar provides civil (wall-clock) dates and the duration
// arithmetic that the recurrence and coverage packages build on.
//
// A Date is a Gregorian (year, month, day) with a time of day and a time
// zone. Arithmetic is done on the wall clock: adding one day always lands on
// the same clock time of the next calendar day, whatever the zone's DST rules
// say about elapsed hours.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// Clock is a time of day with second precision.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// Midnight is the zero Clock.
var Midnight = Clock{}

// Validate reports whether the clock is within 00:00:00..23:59:59.
func (c Clock) Validate() error {
	switch {
	case c.Hour < 0 || c.Hour > 23:
		return &ValidationError{Type: "Clock", Field: "Hour", Reason: "must be between 0 and 23", Value: c.Hour}
	case c.Minute < 0 || c.Minute > 59:
		return &ValidationError{Type: "Clock", Field: "Minute", Reason: "must be between 0 and 59", Value: c.Minute}
	case c.Second < 0 || c.Second > 59:
		return &ValidationError{Type: "Clock", Field: "Second", Reason: "must be between 0 and 59", Value: c.Second}
	}
	return nil
}

// String formats the clock as "15:04" or "15:04:05" when seconds are set.
func (c Clock) String() string {
	if c.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock parses "15:04" or "15:04:05".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return Clock{}, &ValidationError{Type: "Clock", Reason: "expected HH:MM or HH:MM:SS", Value: s}
}

// Date is an immutable civil date with a time of day and a location.
//
// The zero Date is 0001-01-01 00:00:00 UTC and is reported by IsZero.
type Date struct {
	// wall holds the civil fields in UTC so that adding days or seconds is
	// pure wall-clock arithmetic.
	wall time.Time
	loc  *time.Location
}

// IsLeapYear reports whether year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in the given month of year.
// month must be in 1..12.
func DaysIn(year int, month time.Month) int {
	switch month {
	case time.February:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// New builds a midnight UTC date, failing on an impossible (year, month, day).
func New(year int, month time.Month, day int) (Date, error) {
	return NewAt(year, month, day, Midnight, time.UTC)
}

// NewAt builds a date with an explicit time of day and location.
// A nil loc means UTC. Out-of-range components are rejected, never coerced.
func NewAt(year int, month time.Month, day int, clock Clock, loc *time.Location) (Date, error) {
	if month < time.January || month > time.December {
		return Date{}, &ValidationError{Type: "Date", Field: "Month", Reason: "must be between 1 and 12", Value: int(month)}
	}
	if last := DaysIn(year, month); day < 1 || day > last {
		return Date{}, &ValidationError{
			Type:   "Date",
			Field:  "Day",
			Reason: fmt.Sprintf("must be between 1 and %d for %04d-%02d", last, year, int(month)),
			Value:  day,
		}
	}
	if err := clock.Validate(); err != nil {
		return Date{}, err
	}
	return build(year, month, day, clock, loc), nil
}

// MustNew is like New but panics on invalid input. Intended for constants
// and tests.
func MustNew(year int, month time.Month, day int) Date {
	d, err := New(year, month, day)
	if err != nil {
		panic(err)
	}
	return d
}

// Clamped builds a date whose day is resolved into the target month: days
// past the end of the month become the month's last day and days below 1
// become the 1st. Months outside 1..12 roll into neighbouring years.
func Clamped(year int, month time.Month, day int, clock Clock, loc *time.Location) Date {
	year, month = normalizeMonth(year, month)
	if last := DaysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return build(year, month, day, clock, loc)
}

// LastDayOf returns the last day of the month at the given clock.
func LastDayOf(year int, month time.Month, clock Clock, loc *time.Location) Date {
	year, month = normalizeMonth(year, month)
	return build(year, month, DaysIn(year, month), clock, loc)
}

// FromTime converts an instant into the civil date observed in t's location.
// Sub-second precision is dropped.
func FromTime(t time.Time) Date {
	return Date{
		wall: time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC),
		loc:  t.Location(),
	}
}

func build(year int, month time.Month, day int, clock Clock, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return Date{
		wall: time.Date(year, month, day, clock.Hour, clock.Minute, clock.Second, 0, time.UTC),
		loc:  loc,
	}
}

// ShiftMonth moves (year, month) by n months, rolling the year as needed.
func ShiftMonth(year int, month time.Month, n int) (int, time.Month) {
	return normalizeMonth(year, month+time.Month(n))
}

func normalizeMonth(year int, month time.Month) (int, time.Month) {
	m := int(month) - 1
	year += m / 12
	m %= 12
	if m < 0 {
		m += 12
		year--
	}
	return year, time.Month(m + 1)
}

// Year returns the civil year.
func (d Date) Year() int { return d.wall.Year() }

// Month returns the civil month.
func (d Date) Month() time.Month { return d.wall.Month() }

// Day returns the day of the month.
func (d Date) Day() int { return d.wall.Day() }

// Weekday returns the day of the week of the civil day.
func (d Date) Weekday() time.Weekday { return d.wall.Weekday() }

// Clock returns the time of day.
func (d Date) Clock() Clock {
	return Clock{Hour: d.wall.Hour(), Minute: d.wall.Minute(), Second: d.wall.Second()}
}

// Location returns the date's time zone (UTC for the zero Date).
func (d Date) Location() *time.Location {
	if d.loc == nil {
		return time.UTC
	}
	return d.loc
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.wall.IsZero()
}

// Time returns the instant this civil date denotes in its location. Wall
// clocks skipped by a DST transition resolve the way time.Date does.
func (d Date) Time() time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), d.wall.Hour(), d.wall.Minute(), d.wall.Second(), 0, d.Location())
}

// In returns the civil date observed at the same instant in loc.
func (d Date) In(loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	if sameZone(d.Location(), loc) {
		return Date{wall: d.wall, loc: loc}
	}
	return FromTime(d.Time().In(loc))
}

// AddDays moves the date by n civil days, keeping the time of day.
func (d Date) AddDays(n int) Date {
	return Date{wall: d.wall.AddDate(0, 0, n), loc: d.loc}
}

// AddSeconds moves the wall clock by n seconds. A day is always 86400
// seconds here.
func (d Date) AddSeconds(n int64) Date {
	days := n / secondsPerDay
	rem := n % secondsPerDay
	return Date{wall: d.wall.AddDate(0, 0, int(days)).Add(time.Duration(rem) * time.Second), loc: d.loc}
}

// AddCivil moves the date by a civil Duration.
func (d Date) AddCivil(dur Duration) Date {
	return d.AddSeconds(dur.Seconds())
}

// WithClock returns the same civil day at another time of day.
// The clock must be valid.
func (d Date) WithClock(c Clock) Date {
	return build(d.Year(), d.Month(), d.Day(), c, d.loc)
}

// StartOfDay returns the same civil day at 00:00:00.
func (d Date) StartOfDay() Date { return d.WithClock(Midnight) }

// EndOfDay returns the same civil day at 23:59:59.
func (d Date) EndOfDay() Date { return d.WithClock(Clock{Hour: 23, Minute: 59, Second: 59}) }

// Compare orders dates by the instant they denote: -1, 0 or +1.
func (d Date) Compare(o Date) int {
	if sameZone(d.Location(), o.Location()) {
		return d.wall.Compare(o.wall)
	}
	return d.Time().Compare(o.Time())
}

// Before reports whether d denotes an earlier instant than o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// After reports whether d denotes a later instant than o.
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

// Equal reports whether d and o denote the same instant.
func (d Date) Equal(o Date) bool { return d.Compare(o) == 0 }

// SameDay reports whether both dates fall on the same civil day in d's zone.
func (d Date) SameDay(o Date) bool {
	o = o.In(d.Location())
	return d.Year() == o.Year() && d.Month() == o.Month() && d.Day() == o.Day()
}

// civilSeconds is the wall clock as seconds since 1970-01-01T00:00:00.
func (d Date) civilSeconds() int64 {
	return d.wall.Unix()
}

// DateString formats the civil day as 2006-01-02.
func (d Date) DateString() string {
	return d.wall.Format(time.DateOnly)
}

// String formats the date as RFC 3339 in its own location.
func (d Date) String() string {
	return d.Time().Format(time.RFC3339)
}

// MarshalText implements encoding.TextMarshaler (RFC 3339).
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using Parse.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var naiveLayouts = []string{
	time.DateOnly,
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.DateTime,
}

// Parse reads a date in UTC. See ParseIn.
func Parse(s string) (Date, error) {
	return ParseIn(s, time.UTC)
}

// ParseIn reads 2006-01-02, 2006-01-02T15:04[:05] or "2006-01-02 15:04:05"
// as a wall clock in loc, or an RFC 3339 timestamp in its own offset.
// Calendar-invalid dates such as 2023-02-29 are rejected.
func ParseIn(s string, loc *time.Location) (Date, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return FromTime(t), nil
	}
	for _, layout := range naiveLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return build(t.Year(), t.Month(), t.Day(), Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, loc), nil
	}
	return Date{}, &ValidationError{Type: "Date", Reason: "unrecognized format", Value: s}
}

// sameZone reports whether wall clocks in a and b can be compared directly.
// Unnamed fixed zones, such as the ones time.Parse builds for numeric
// offsets, only match themselves.
func sameZone(a, b *time.Location) bool {
	if a == b {
		return true
	}
	name := a.String()
	return name != "" && name == b.String()
}
