package calendar

import (
	"fmt"
	"math"
)

// Duration is a signed civil span: whole calendar days plus the remaining
// hours. Both parts carry the same sign.
type Duration struct {
	Days  int     `json:"days"`
	Hours float64 `json:"hours"`
}

// Days returns a Duration of n whole days.
func Days(n int) Duration { return Duration{Days: n} }

// DurationOf splits a number of wall-clock seconds into days and hours.
func DurationOf(seconds int64) Duration {
	return Duration{
		Days:  int(seconds / secondsPerDay),
		Hours: float64(seconds%secondsPerDay) / 3600,
	}
}

// Between returns the civil distance from one date to another.
//
// Days counts calendar days on the wall clock, not elapsed 24-hour blocks:
// to is viewed in from's location and DST shifts are ignored. Hours is the
// signed remainder once whole days are removed. to before from yields a
// negative Duration.
func Between(from, to Date) Duration {
	to = to.In(from.Location())
	return DurationOf(to.civilSeconds() - from.civilSeconds())
}

// Seconds returns the total length in wall-clock seconds.
func (d Duration) Seconds() int64 {
	return int64(d.Days)*secondsPerDay + int64(math.Round(d.Hours*3600))
}

// IsZero reports whether the duration is empty.
func (d Duration) IsZero() bool { return d.Seconds() == 0 }

// Negative reports whether the duration points backwards in time.
func (d Duration) Negative() bool { return d.Seconds() < 0 }

// Neg returns the duration with its sign flipped.
func (d Duration) Neg() Duration { return DurationOf(-d.Seconds()) }

func (d Duration) String() string {
	if d.Hours == 0 {
		return fmt.Sprintf("%dd", d.Days)
	}
	return fmt.Sprintf("%dd%+gh", d.Days, d.Hours)
}
