package recurrence

import (
	"fmt"
	"strconv"
	"strings"

	"invcal/internal/calendar"
)

// Frequency is a named maintenance preset. Custom presets are written
// "custom:<days>".
type Frequency string

const (
	FreqDaily      Frequency = "daily"
	FreqWeekly     Frequency = "weekly"
	FreqBiweekly   Frequency = "biweekly"
	FreqMonthly    Frequency = "monthly"
	FreqQuarterly  Frequency = "quarterly"
	FreqSemiannual Frequency = "semiannual"
	FreqAnnual     Frequency = "annual"
	FreqBiannual   Frequency = "biannual"
)

const customPrefix = "custom:"

var presets = map[Frequency]struct {
	rule    Rule
	nominal int
	label   string
}{
	FreqDaily:      {Rule{Unit: Daily}, 1, "Daily"},
	FreqWeekly:     {Rule{Unit: Weekly}, 7, "Weekly"},
	FreqBiweekly:   {Rule{Unit: Weekly, Every: 2}, 14, "Every 2 weeks"},
	FreqMonthly:    {Rule{Unit: Monthly}, 30, "Monthly"},
	FreqQuarterly:  {Rule{Unit: Monthly, Every: 3}, 90, "Quarterly"},
	FreqSemiannual: {Rule{Unit: Monthly, Every: 6}, 180, "Every 6 months"},
	FreqAnnual:     {Rule{Unit: Yearly}, 365, "Annually"},
	FreqBiannual:   {Rule{Unit: Yearly, Every: 2}, 730, "Every 2 years"},
}

// CustomFrequency returns the preset for a fixed number of days.
func CustomFrequency(days int) Frequency {
	return Frequency(customPrefix + strconv.Itoa(days))
}

// ParseFrequency accepts a preset name or "custom:<days>" with days >= 1.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := presets[f]; ok {
		return f, nil
	}
	if _, err := f.customDays(); err != nil {
		return "", err
	}
	return f, nil
}

func (f Frequency) customDays() (int, error) {
	raw, ok := strings.CutPrefix(string(f), customPrefix)
	if !ok {
		return 0, &calendar.ValidationError{Type: "Frequency", Reason: "unknown preset", Value: string(f)}
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, &calendar.ValidationError{Type: "Frequency", Field: "Days", Reason: "custom frequency needs a positive day count", Value: raw}
	}
	return n, nil
}

// Rule converts the preset to a recurrence rule using norm for month-based
// presets. Unknown presets yield a daily rule.
func (f Frequency) Rule(norm Normalization) Rule {
	if p, ok := presets[f]; ok {
		r := p.rule
		if r.Unit == Monthly || r.Unit == Yearly {
			r.Normalization = norm
		}
		return r
	}
	if n, err := f.customDays(); err == nil {
		return Rule{Unit: Custom, Days: n}
	}
	return Rule{Unit: Daily}
}

// NominalDays is the approximate period length, for display and sorting.
func (f Frequency) NominalDays() int {
	if p, ok := presets[f]; ok {
		return p.nominal
	}
	if n, err := f.customDays(); err == nil {
		return n
	}
	return 0
}

// Label is a human readable name such as "Quarterly" or "Every 45 days".
func (f Frequency) Label() string {
	if p, ok := presets[f]; ok {
		return p.label
	}
	if n, err := f.customDays(); err == nil {
		return fmt.Sprintf("Every %d days", n)
	}
	return string(f)
}

// FrequencyOf finds the preset that produces r, ignoring normalization.
// Daily and weekly steps without a preset map to custom day counts; other
// month-based steps have no preset.
func FrequencyOf(r Rule) (Frequency, bool) {
	r = r.withDefaults()
	for f, p := range presets {
		pr := p.rule.withDefaults()
		if pr.Unit == r.Unit && pr.Every == r.Every {
			return f, true
		}
	}
	switch r.Unit {
	case Daily:
		return CustomFrequency(r.Every), true
	case Weekly:
		return CustomFrequency(7 * r.Every), true
	case Custom:
		return CustomFrequency(r.Days * r.Every), true
	}
	return "", false
}
