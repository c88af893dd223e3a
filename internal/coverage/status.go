package coverage

import (
	"fmt"

	"invcal/internal/calendar"
)

// DefaultExpiringSoonDays is the window in which an active warranty is
// reported as expiring soon.
const DefaultExpiringSoonDays = 30

// State is the lifecycle state of a warranty at a point in time.
type State string

const (
	Active       State = "active"
	ExpiringSoon State = "expiring_soon"
	Expired      State = "expired"
)

// Status is a State plus the whole days left when expiring soon.
type Status struct {
	State         State `json:"state"`
	DaysRemaining int   `json:"days_remaining"`
}

func (s Status) String() string {
	switch s.State {
	case ExpiringSoon:
		return fmt.Sprintf("Expiring in %d days", s.DaysRemaining)
	case Expired:
		return "Expired"
	default:
		return "Active"
	}
}

// StatusAt classifies p at now. A period whose end is before now is expired;
// one with soonDays or fewer whole days left is expiring soon. soonDays <= 0
// uses DefaultExpiringSoonDays.
func StatusAt(p Period, now calendar.Date, soonDays int) Status {
	if soonDays <= 0 {
		soonDays = DefaultExpiringSoonDays
	}
	if p.End.Before(now) {
		return Status{State: Expired}
	}
	days := calendar.Between(now, p.End).Days
	if days <= soonDays {
		return Status{State: ExpiringSoon, DaysRemaining: days}
	}
	return Status{State: Active, DaysRemaining: days}
}

// DaysRemaining is the number of whole days from now to the end, never
// negative.
func DaysRemaining(p Period, now calendar.Date) int {
	return max(0, calendar.Between(now, p.End).Days)
}

// Progress is the elapsed share of the period at now, in [0, 1]. An empty
// period counts as fully elapsed.
func Progress(p Period, now calendar.Date) float64 {
	total := calendar.Between(p.Start, p.End).Seconds()
	if total <= 0 {
		return 1
	}
	at := now
	if at.After(p.End) {
		at = p.End
	}
	elapsed := calendar.Between(p.Start, at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(elapsed) / float64(total)
}
