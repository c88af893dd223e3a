package daterange

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"invcal/internal/calendar"
)

// MaxBuckets bounds the number of buckets a trend may have.
const MaxBuckets = 10000

// Period is the bucket size of a trend.
type Period string

const (
	Day     Period = "day"
	Week    Period = "week"
	Month   Period = "month"
	Quarter Period = "quarter"
	Year    Period = "year"
)

// ParsePeriod is case-insensitive; empty means Month.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return Month, nil
	case Day, Week, Month, Quarter, Year:
		return p, nil
	}
	return "", &calendar.ValidationError{Type: "Period", Reason: "expected day, week, month, quarter or year", Value: s}
}

// Bucket is a half-open [Start, End) slice of a trend.
type Bucket struct {
	Start calendar.Date `json:"start"`
	End   calendar.Date `json:"end"`
	Label string        `json:"label"`
}

// Buckets covers q with consecutive buckets aligned to calendar boundaries in
// q.Start's location: the first contains q.Start and the last contains q.End.
// Weeks begin on weekStart. A range needing more than MaxBuckets buckets is
// rejected.
func Buckets(q Query, period Period, weekStart time.Weekday) ([]Bucket, error) {
	out := make([]Bucket, 0)
	if q.Empty() {
		return out, nil
	}
	loc := q.Start.Location()
	end := q.End.In(loc)
	for b := floor(q.Start, period, weekStart); !b.After(end); {
		if len(out) == MaxBuckets {
			return nil, &calendar.ValidationError{
				Type:   "Query",
				Reason: fmt.Sprintf("range needs more than %d %s buckets", MaxBuckets, period),
				Value:  q.Start.DateString() + ".." + q.End.DateString(),
			}
		}
		next := step(b, period)
		out = append(out, Bucket{Start: b, End: next, Label: label(b, period)})
		b = next
	}
	return out, nil
}

func floor(d calendar.Date, period Period, weekStart time.Weekday) calendar.Date {
	loc := d.Location()
	switch period {
	case Day:
		return d.StartOfDay()
	case Week:
		back := (int(d.Weekday()) - int(weekStart) + 7) % 7
		return d.StartOfDay().AddDays(-back)
	case Quarter:
		m := time.Month((int(d.Month())-1)/3*3 + 1)
		return calendar.Clamped(d.Year(), m, 1, calendar.Midnight, loc)
	case Year:
		return calendar.Clamped(d.Year(), time.January, 1, calendar.Midnight, loc)
	default:
		return calendar.Clamped(d.Year(), d.Month(), 1, calendar.Midnight, loc)
	}
}

func step(d calendar.Date, period Period) calendar.Date {
	months := 1
	switch period {
	case Day:
		return d.AddDays(1)
	case Week:
		return d.AddDays(7)
	case Quarter:
		months = 3
	case Year:
		months = 12
	}
	y, m := calendar.ShiftMonth(d.Year(), d.Month(), months)
	return calendar.Clamped(y, m, 1, calendar.Midnight, d.Location())
}

func label(d calendar.Date, period Period) string {
	mon := d.Month().String()[:3]
	switch period {
	case Day, Week:
		return fmt.Sprintf("%s %d", mon, d.Day())
	case Quarter:
		return fmt.Sprintf("Q%d %d", (int(d.Month())-1)/3+1, d.Year())
	case Year:
		return fmt.Sprintf("%d", d.Year())
	default:
		return fmt.Sprintf("%s %d", mon, d.Year())
	}
}

// Point is one bucket of a trend with the number of items and the sum of
// their values.
type Point struct {
	Bucket
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Trend groups the items inside q by bucket. Every bucket is reported, empty
// ones with a zero count and total. It fails when Buckets does.
func Trend[T any](items []T, dateOf func(T) (calendar.Date, bool), valueOf func(T) decimal.Decimal, q Query, period Period, weekStart time.Weekday) ([]Point, error) {
	buckets, err := Buckets(q, period, weekStart)
	if err != nil {
		return nil, err
	}
	points := make([]Point, len(buckets))
	for i, b := range buckets {
		points[i] = Point{Bucket: b, Total: decimal.Zero}
	}
	if len(points) == 0 {
		return points, nil
	}
	for _, it := range ItemsInRange(items, dateOf, q) {
		d, _ := dateOf(it)
		i := bucketIndex(buckets, d)
		if i < 0 {
			continue
		}
		points[i].Count++
		points[i].Total = points[i].Total.Add(valueOf(it))
	}
	return points, nil
}

// bucketIndex finds the bucket containing d by binary search.
func bucketIndex(buckets []Bucket, d calendar.Date) int {
	lo, hi := 0, len(buckets)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		switch b := buckets[mid]; {
		case d.Before(b.Start):
			hi = mid - 1
		case !d.Before(b.End):
			lo = mid + 1
		default:
			return mid
		}
	}
	return -1
}
