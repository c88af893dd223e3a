package recurrence

import (
	"slices"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"invcal/internal/calendar"
)

// ROption expresses the rule as an RFC 5545 recurrence anchored at anchor.
//
// Days 29..31 that a month may lack are written as a BYMONTHDAY range with
// BYSETPOS=-1, which picks the anchor's day when it exists and the month's
// last day otherwise. An RRULE only emits DTSTART when DTSTART itself matches
// the rule, whereas GenerateSchedule always starts with the anchor.
func (r Rule) ROption(anchor calendar.Date) rrule.ROption {
	r = r.withDefaults()
	opt := rrule.ROption{
		Dtstart:  anchor.Time(),
		Interval: r.Every,
	}
	switch r.Unit {
	case Weekly:
		opt.Freq = rrule.WEEKLY
	case Custom:
		opt.Freq = rrule.DAILY
		opt.Interval = r.Every * r.Days
	case Monthly:
		opt.Freq = rrule.MONTHLY
		setMonthDays(&opt, anchor.Day(), r.Normalization)
	case Yearly:
		opt.Freq = rrule.YEARLY
		opt.Bymonth = []int{int(anchor.Month())}
		setMonthDays(&opt, anchor.Day(), r.Normalization)
	default:
		opt.Freq = rrule.DAILY
	}
	return opt
}

func setMonthDays(opt *rrule.ROption, day int, norm Normalization) {
	if norm == EndOfMonth {
		opt.Bymonthday = []int{-1}
		return
	}
	if day <= 28 {
		opt.Bymonthday = []int{day}
		return
	}
	opt.Bymonthday = lastDaysUpTo(day)
	opt.Bysetpos = []int{-1}
}

// RRule formats the rule as an RRULE value without DTSTART, e.g.
// "FREQ=MONTHLY;INTERVAL=1;BYSETPOS=-1;BYMONTHDAY=28,29,30,31".
func (r Rule) RRule(anchor calendar.Date) string {
	opt := r.ROption(anchor)
	opt.Dtstart = time.Time{}
	return opt.String()
}

// FromRRule maps an RRULE value (with or without the "RRULE:" prefix) of an
// event starting at anchor back to a Rule. Only DAILY, WEEKLY, MONTHLY and
// YEARLY frequencies are supported; BYMONTHDAY=-1 selects EndOfMonth.
//
// Rules whose BY* parts pick days other than the anchor's (BYDAY=1SA, a list
// of weekdays, several month days) or that stop after COUNT or UNTIL have no
// Rule equivalent and are rejected.
func FromRRule(s string, anchor calendar.Date) (Rule, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "RRULE:")
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return Rule{}, &calendar.ValidationError{Type: "Rule", Field: "RRULE", Reason: err.Error(), Value: s}
	}
	r := Rule{Every: max(opt.Interval, 1), Normalization: SameDay}
	switch opt.Freq {
	case rrule.DAILY:
		r.Unit = Daily
	case rrule.WEEKLY:
		r.Unit = Weekly
	case rrule.MONTHLY:
		r.Unit = Monthly
	case rrule.YEARLY:
		r.Unit = Yearly
	default:
		return Rule{}, &calendar.ValidationError{Type: "Rule", Field: "RRULE", Reason: "unsupported frequency", Value: opt.Freq.String()}
	}

	unsupported := func(reason string) (Rule, error) {
		return Rule{}, &calendar.ValidationError{Type: "Rule", Field: "RRULE", Reason: reason, Value: s}
	}
	switch {
	case opt.Count != 0 || !opt.Until.IsZero():
		return unsupported("COUNT and UNTIL are not supported")
	case len(opt.Byweekday) > 0, len(opt.Byweekno) > 0, len(opt.Byyearday) > 0, len(opt.Byeaster) > 0,
		len(opt.Byhour) > 0, len(opt.Byminute) > 0, len(opt.Bysecond) > 0:
		return unsupported("only BYMONTH and BYMONTHDAY are supported")
	}
	if len(opt.Bymonth) > 0 && (r.Unit != Yearly || !slices.Equal(opt.Bymonth, []int{int(anchor.Month())})) {
		return unsupported("BYMONTH must be the start month of a yearly rule")
	}
	if len(opt.Bymonthday) == 0 {
		if len(opt.Bysetpos) > 0 {
			return unsupported("BYSETPOS needs BYMONTHDAY")
		}
		return r, nil
	}
	if r.Unit != Monthly && r.Unit != Yearly {
		return unsupported("BYMONTHDAY needs a monthly or yearly rule")
	}
	switch {
	case slices.Equal(opt.Bymonthday, []int{-1}) && len(opt.Bysetpos) == 0:
		r.Normalization = EndOfMonth
	case slices.Equal(opt.Bymonthday, []int{anchor.Day()}) && len(opt.Bysetpos) == 0:
	case slices.Equal(opt.Bysetpos, []int{-1}) && slices.Equal(opt.Bymonthday, lastDaysUpTo(anchor.Day())):
	default:
		return unsupported("BYMONTHDAY must match the start day")
	}
	return r, nil
}

// lastDaysUpTo lists 28..day, the BYMONTHDAY set ROption writes for day.
func lastDaysUpTo(day int) []int {
	var out []int
	for d := 28; d <= day; d++ {
		out = append(out, d)
	}
	return out
}

// Expand lists the RRULE's own occurrences inside [from, to]. It is the
// iCalendar-side counterpart of OccurrencesBetween.
func (r Rule) Expand(anchor, from, to calendar.Date) ([]calendar.Date, error) {
	rr, err := rrule.NewRRule(r.ROption(anchor))
	if err != nil {
		return nil, err
	}
	out := make([]calendar.Date, 0)
	for _, t := range rr.Between(from.Time(), to.Time(), true) {
		out = append(out, calendar.FromTime(t))
	}
	return out, nil
}
