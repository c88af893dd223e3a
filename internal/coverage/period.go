// Package coverage derives warranty coverage periods: status and progress at a
// point in time, and the shortened period left after a change of ownership.
package coverage

import (
	"encoding/json"
	"strconv"

	"invcal/internal/calendar"
)

// Period is the active date range of a warranty. End is never before Start.
type Period struct {
	Start calendar.Date `json:"start"`
	End   calendar.Date `json:"end"`
}

// NewPeriod rejects an End earlier than Start.
func NewPeriod(start, end calendar.Date) (Period, error) {
	if end.Before(start) {
		return Period{}, &calendar.ValidationError{
			Type:   "Period",
			Field:  "End",
			Reason: "must not be before start " + start.String(),
			Value:  end.String(),
		}
	}
	return Period{Start: start, End: end}, nil
}

// Length is the civil duration from Start to End.
func (p Period) Length() calendar.Duration {
	return calendar.Between(p.Start, p.End)
}

// Contains reports whether d falls inside the period, inclusive.
func (p Period) Contains(d calendar.Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// IsEmpty reports a zero-length period.
func (p Period) IsEmpty() bool {
	return p.Start.Equal(p.End)
}

type policyKind int

const (
	kindNone policyKind = iota
	kindPercent
	kindFixed
)

// Policy is how a transfer shortens the remaining coverage.
// The zero Policy is NoReduction.
type Policy struct {
	kind    policyKind
	percent int
	shorten calendar.Duration
}

// PercentReduction removes p percent of the remaining coverage. p is clamped
// into 0..100.
func PercentReduction(p int) Policy {
	return Policy{kind: kindPercent, percent: min(max(p, 0), 100)}
}

// FixedShorten moves the original end back by d.
func FixedShorten(d calendar.Duration) Policy {
	return Policy{kind: kindFixed, shorten: d}
}

// NoReduction keeps the original end.
func NoReduction() Policy {
	return Policy{}
}

func (p Policy) String() string {
	switch p.kind {
	case kindPercent:
		return "percent:" + strconv.Itoa(p.percent)
	case kindFixed:
		return "fixed:" + p.shorten.String()
	default:
		return "none"
	}
}

type policyJSON struct {
	Kind    string             `json:"kind"`
	Percent int                `json:"percent,omitempty"`
	Shorten *calendar.Duration `json:"shorten,omitempty"`
}

// MarshalJSON writes {"kind":"percent","percent":50}, {"kind":"fixed",
// "shorten":{"days":30,"hours":0}} or {"kind":"none"}.
func (p Policy) MarshalJSON() ([]byte, error) {
	out := policyJSON{Kind: "none"}
	switch p.kind {
	case kindPercent:
		out.Kind, out.Percent = "percent", p.percent
	case kindFixed:
		d := p.shorten
		out.Kind, out.Shorten = "fixed", &d
	}
	return json.Marshal(out)
}

func (p *Policy) UnmarshalJSON(b []byte) error {
	var in policyJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	switch in.Kind {
	case "", "none":
		*p = NoReduction()
	case "percent":
		*p = PercentReduction(in.Percent)
	case "fixed":
		if in.Shorten == nil {
			return &calendar.ValidationError{Type: "Policy", Field: "Shorten", Reason: "required for fixed policy"}
		}
		*p = FixedShorten(*in.Shorten)
	default:
		return &calendar.ValidationError{Type: "Policy", Field: "Kind", Reason: "expected none, percent or fixed", Value: in.Kind}
	}
	return nil
}

// AdjustedCoverage returns the coverage left to a new owner.
//
// The policy is applied to the remaining duration from the transfer date to
// the original end. The new period starts at the later of the transfer date
// and the original start, and its end is clamped into [start, original end]. A transfer after the original end yields the zero-length period
// {transfer, transfer}.
func AdjustedCoverage(original Period, transfer calendar.Date, policy Policy) Period {
	if transfer.After(original.End) {
		return Period{Start: transfer, End: transfer}
	}
	start := transfer
	if original.Start.After(start) {
		start = original.Start
	}

	var end calendar.Date
	switch policy.kind {
	case kindPercent:
		remaining := calendar.Between(transfer, original.End).Seconds()
		end = transfer.AddSeconds(remaining * int64(100-policy.percent) / 100)
	case kindFixed:
		end = original.End.AddCivil(policy.shorten.Neg())
	default:
		end = original.End
	}

	if end.Before(start) {
		end = start
	}
	if end.After(original.End) {
		end = original.End
	}
	return Period{Start: start, End: end}
}
