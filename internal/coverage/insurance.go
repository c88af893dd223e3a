package coverage

import (
	"github.com/shopspring/decimal"

	"invcal/internal/calendar"
	"invcal/internal/recurrence"
)

// DefaultRenewalWindowDays is how close a premium due date must be for a
// policy to count as due for renewal.
const DefaultRenewalWindowDays = 30

// PolicyState is the lifecycle state of an insurance policy.
type PolicyState string

const (
	PolicyPending    PolicyState = "pending"
	PolicyActive     PolicyState = "active"
	PolicyRenewalDue PolicyState = "renewal_due"
	PolicyExpired    PolicyState = "expired"
	PolicyInactive   PolicyState = "inactive"
)

// Premium is the payment plan of a policy. A zero NextDue means no payment
// is scheduled.
type Premium struct {
	Amount      decimal.Decimal      `json:"amount"`
	Frequency   recurrence.Frequency `json:"frequency"`
	NextDue     calendar.Date        `json:"next_due"`
	AutoRenewal bool                 `json:"auto_renewal"`
}

// AnnualAmount is the premium paid over a year. Frequencies without a whole
// number of payments per year are scaled by their nominal length.
func (p Premium) AnnualAmount() decimal.Decimal {
	switch p.Frequency {
	case recurrence.FreqMonthly:
		return p.Amount.Mul(decimal.NewFromInt(12))
	case recurrence.FreqQuarterly:
		return p.Amount.Mul(decimal.NewFromInt(4))
	case recurrence.FreqSemiannual:
		return p.Amount.Mul(decimal.NewFromInt(2))
	case recurrence.FreqAnnual:
		return p.Amount
	}
	days := p.Frequency.NominalDays()
	if days <= 0 {
		return p.Amount
	}
	return p.Amount.Mul(decimal.NewFromInt(365)).Div(decimal.NewFromInt(int64(days))).Round(2)
}

// DueDates lists the next count premium due dates starting at NextDue.
func (p Premium) DueDates(count int) []calendar.Date {
	if p.NextDue.IsZero() {
		return []calendar.Date{}
	}
	return recurrence.GenerateSchedule(p.NextDue, p.Frequency.Rule(recurrence.ClosestValid), count)
}

// InsurancePolicy is a policy covering one or more items for a term.
type InsurancePolicy struct {
	Number   string  `json:"number"`
	Provider string  `json:"provider"`
	Term     Period  `json:"term"`
	Active   bool    `json:"active"`
	Premium  Premium `json:"premium"`
}

// PolicyStatus is a PolicyState plus the whole days left in the term.
type PolicyStatus struct {
	State         PolicyState `json:"state"`
	DaysRemaining int         `json:"days_remaining"`
}

// StatusAt classifies the policy at now. A premium due within windowDays
// marks an otherwise active policy as due for renewal; windowDays <= 0 uses
// DefaultRenewalWindowDays.
func (p InsurancePolicy) StatusAt(now calendar.Date, windowDays int) PolicyStatus {
	if windowDays <= 0 {
		windowDays = DefaultRenewalWindowDays
	}
	st := PolicyStatus{DaysRemaining: DaysRemaining(p.Term, now)}
	switch {
	case !p.Active:
		st.State = PolicyInactive
	case now.Before(p.Term.Start):
		st.State = PolicyPending
	case now.After(p.Term.End):
		st.State = PolicyExpired
	case !p.Premium.NextDue.IsZero() && p.Premium.NextDue.Before(now.AddDays(windowDays)):
		st.State = PolicyRenewalDue
	default:
		st.State = PolicyActive
	}
	return st
}

// NextTerm is the one-year term that follows the current one. A term ending
// on Feb 29 renews to Feb 28.
func (p InsurancePolicy) NextTerm() Period {
	dates := recurrence.GenerateSchedule(p.Term.End, recurrence.FreqAnnual.Rule(recurrence.ClosestValid), 2)
	return Period{Start: dates[0], End: dates[1]}
}
