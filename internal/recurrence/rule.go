// Package recurrence computes next-occurrence dates and finite schedules for
// recurring maintenance, including how a day-of-month that does not exist in
// the target month is resolved.
package recurrence

import (
	"strings"

	"invcal/internal/calendar"
)

// Unit is the step of a recurrence rule.
type Unit string

const (
	Daily   Unit = "daily"
	Weekly  Unit = "weekly"
	Monthly Unit = "monthly"
	Yearly  Unit = "yearly"
	// Custom steps by Rule.Days calendar days.
	Custom Unit = "custom"
)

// Normalization decides which day a monthly or yearly step lands on when the
// anchor's day-of-month does not exist in the target month.
type Normalization string

const (
	// SameDay keeps the anchor's day and falls back to the month's last day
	// when that day does not exist.
	SameDay Normalization = "same_day"
	// EndOfMonth always lands on the last day of the target month.
	EndOfMonth Normalization = "end_of_month"
	// ClosestValid clamps the anchor's day to the month length. It yields
	// the same dates as SameDay.
	ClosestValid Normalization = "closest_valid"
)

// ParseNormalization accepts same_day, sameDay, same-day (and the same
// spellings of the other strategies), case-insensitively. Empty means SameDay.
func ParseNormalization(s string) (Normalization, error) {
	key := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "", "sameday":
		return SameDay, nil
	case "endofmonth":
		return EndOfMonth, nil
	case "closestvalid":
		return ClosestValid, nil
	}
	return "", &calendar.ValidationError{Type: "Normalization", Reason: "unknown strategy", Value: s}
}

// Rule is an immutable recurrence configuration.
//
// Zero values take defaults when the rule is applied: Unit daily, Every 1,
// Days 1 and Normalization SameDay. Validate rejects values that cannot be
// defaulted meaningfully.
type Rule struct {
	Unit          Unit          `json:"unit" yaml:"unit"`
	Every         int           `json:"every,omitempty" yaml:"every,omitempty"`
	Days          int           `json:"days,omitempty" yaml:"days,omitempty"`
	Normalization Normalization `json:"normalization,omitempty" yaml:"normalization,omitempty"`
}

// Validate reports boundary input that the arithmetic would otherwise
// silently default.
func (r Rule) Validate() error {
	switch r.Unit {
	case Daily, Weekly, Monthly, Yearly:
	case Custom:
		if r.Days < 1 {
			return &calendar.ValidationError{Type: "Rule", Field: "Days", Reason: "custom rules need at least 1 day", Value: r.Days}
		}
	default:
		return &calendar.ValidationError{Type: "Rule", Field: "Unit", Reason: "unknown unit", Value: string(r.Unit)}
	}
	if r.Every < 0 {
		return &calendar.ValidationError{Type: "Rule", Field: "Every", Reason: "must not be negative", Value: r.Every}
	}
	switch r.Normalization {
	case "", SameDay, EndOfMonth, ClosestValid:
	default:
		return &calendar.ValidationError{Type: "Rule", Field: "Normalization", Reason: "unknown strategy", Value: string(r.Normalization)}
	}
	return nil
}

func (r Rule) withDefaults() Rule {
	if r.Unit == "" {
		r.Unit = Daily
	}
	if r.Every < 1 {
		r.Every = 1
	}
	if r.Days < 1 {
		r.Days = 1
	}
	if r.Normalization == "" {
		r.Normalization = SameDay
	}
	return r
}
