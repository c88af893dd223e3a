package recurrence

import (
	"invcal/internal/calendar"
)

// maxWindowOccurrences caps OccurrencesBetween for very long windows.
const maxWindowOccurrences = 5000

// NextOccurrence returns the date one step of rule after the given date.
// Time of day and location are preserved.
func NextOccurrence(after calendar.Date, rule Rule) calendar.Date {
	return advance(after, rule.withDefaults(), 1)
}

// GenerateSchedule returns exactly count dates: the anchor itself followed by
// successive occurrences. Every element is computed from the anchor, so a
// clamped month does not pull later months off the anchor's day
// (Jan 31, Feb 29, Mar 31; never Mar 29).
func GenerateSchedule(from calendar.Date, rule Rule, count int) []calendar.Date {
	if count <= 0 {
		return []calendar.Date{}
	}
	r := rule.withDefaults()
	out := make([]calendar.Date, count)
	out[0] = from
	for k := 1; k < count; k++ {
		out[k] = advance(from, r, k)
	}
	return out
}

// OccurrencesBetween lists the anchored occurrences that fall inside
// [from, to], inclusive. At most 5000 dates are returned.
func OccurrencesBetween(anchor calendar.Date, rule Rule, from, to calendar.Date) []calendar.Date {
	out := make([]calendar.Date, 0)
	if to.Before(from) {
		return out
	}
	r := rule.withDefaults()
	for k := 0; ; k++ {
		d := anchor
		if k > 0 {
			d = advance(anchor, r, k)
		}
		if d.After(to) {
			break
		}
		if !d.Before(from) {
			out = append(out, d)
			if len(out) >= maxWindowOccurrences {
				break
			}
		}
	}
	return out
}

// FirstOnOrAfter returns the first anchored occurrence that is not before t.
func FirstOnOrAfter(anchor calendar.Date, rule Rule, t calendar.Date) calendar.Date {
	r := rule.withDefaults()
	d := anchor
	for k := 1; d.Before(t); k++ {
		d = advance(anchor, r, k)
	}
	return d
}

// advance applies k steps of r to anchor. r must carry defaults.
func advance(anchor calendar.Date, r Rule, k int) calendar.Date {
	switch r.Unit {
	case Weekly:
		return anchor.AddDays(7 * r.Every * k)
	case Custom:
		return anchor.AddDays(r.Days * r.Every * k)
	case Monthly:
		return shiftMonths(anchor, r.Every*k, r.Normalization)
	case Yearly:
		return shiftMonths(anchor, 12*r.Every*k, r.Normalization)
	default:
		return anchor.AddDays(r.Every * k)
	}
}

// shiftMonths moves anchor by n months and resolves the day-of-month.
func shiftMonths(anchor calendar.Date, n int, norm Normalization) calendar.Date {
	year, month := calendar.ShiftMonth(anchor.Year(), anchor.Month(), n)
	clock, loc := anchor.Clock(), anchor.Location()

	switch norm {
	case EndOfMonth:
		return calendar.LastDayOf(year, month, clock, loc)

	case ClosestValid:
		day := min(anchor.Day(), calendar.DaysIn(year, month))
		return calendar.Clamped(year, month, day, clock, loc)

	default:
		if d, err := calendar.NewAt(year, month, anchor.Day(), clock, loc); err == nil {
			return d
		}
		return calendar.LastDayOf(year, month, clock, loc)
	}
}
