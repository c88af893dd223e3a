// Package daterange selects dated records inside an inclusive date range and
// groups them into calendar-aligned buckets for trend reporting.
package daterange

import (
	"invcal/internal/calendar"
)

// Query is an inclusive [Start, End] range. An End before Start is an empty
// range, not an error.
type Query struct {
	Start calendar.Date `json:"start"`
	End   calendar.Date `json:"end"`
}

// Empty reports whether the range is inverted.
func (q Query) Empty() bool {
	return q.End.Before(q.Start)
}

// Contains reports whether d lies in [Start, End].
func (q Query) Contains(d calendar.Date) bool {
	return !d.Before(q.Start) && !d.After(q.End)
}

// WholeDays widens the query to the start of its first day and the end of
// its last day.
func (q Query) WholeDays() Query {
	return Query{Start: q.Start.StartOfDay(), End: q.End.EndOfDay()}
}

// Days is the number of calendar days the range touches, or 0 when empty.
func (q Query) Days() int {
	if q.Empty() {
		return 0
	}
	return calendar.Between(q.Start.StartOfDay(), q.End.StartOfDay()).Days + 1
}

// ItemsInRange keeps the items whose date falls inside q, in input order.
// Items for which dateOf reports no date are skipped.
func ItemsInRange[T any](items []T, dateOf func(T) (calendar.Date, bool), q Query) []T {
	out := make([]T, 0)
	if q.Empty() {
		return out
	}
	for _, it := range items {
		d, ok := dateOf(it)
		if !ok {
			continue
		}
		if q.Contains(d) {
			out = append(out, it)
		}
	}
	return out
}
