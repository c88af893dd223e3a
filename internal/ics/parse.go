// Package ics reads and writes iCalendar data: it exports reminders and
// warranty expiries as a subscribable calendar and imports service visits
// from subscribed provider calendars.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"invcal/internal/calendar"
	appLog "invcal/internal/log"
)

// ParsedEvent is the normalized representation of a VEVENT. Recurrence
// expansion operates on this type.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string
	Categories  []string

	Start  time.Time
	End    time.Time
	AllDay bool
	// StartTZ is the TZID of DTSTART, when one was given.
	StartTZ string

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, in the event's own timezone
	IsOverride bool       // the VEVENT replaces one instance of a recurring event

	// AlarmDaysBefore holds the whole-day lead times of the event's VALARMs.
	AlarmDaysBefore []int
}

// StartDate is the event start as a civil date in loc. All-day events keep
// their calendar day whatever loc is.
func (ev ParsedEvent) StartDate(loc *time.Location) calendar.Date {
	if loc == nil {
		loc = time.UTC
	}
	if ev.AllDay {
		return calendar.Clamped(ev.Start.Year(), ev.Start.Month(), ev.Start.Day(), calendar.Midnight, loc)
	}
	return calendar.FromTime(ev.Start.In(loc))
}

// Parse parses one ICS payload. Malformed VEVENTs are logged and skipped;
// RRULE, EXDATE and RECURRENCE-ID are recorded but not expanded.
func Parse(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent
	out.Source = src

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, c := range strings.Split(p.Value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out.Categories = append(out.Categories, c)
			}
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("uid %s: missing DTSTART", out.UID)
	}
	out.AllDay = isDateValue(dtStart)
	out.StartTZ = paramValue(dtStart, "TZID")

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("uid %s: DTSTART: %w", out.UID, err)
	}
	out.Start = start

	// DTEND is optional: all-day events default to one day, timed events
	// to zero length.
	if end, err := ve.GetEndAt(); err == nil {
		out.End = end
	} else if out.AllDay {
		out.End = start.AddDate(0, 0, 1)
	} else {
		out.End = start
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can repeat and carry comma-separated values.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := propLocation(p, start.Location())
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty(ical.ComponentPropertyRecurrenceId); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value, propLocation(ridProp, start.Location())); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	for _, a := range ve.Alarms() {
		if p := a.GetProperty(ical.ComponentPropertyTrigger); p != nil {
			if d, ok := daysBeforeTrigger(p.Value); ok {
				out.AlarmDaysBefore = append(out.AlarmDaysBefore, d)
			}
		}
	}

	return out, nil
}

// isDateValue reports VALUE=DATE or a bare YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	if strings.EqualFold(paramValue(p, "VALUE"), "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func paramValue(p *ical.IANAProperty, name string) string {
	if p == nil || p.ICalParameters == nil {
		return ""
	}
	if vs, ok := p.ICalParameters[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// propLocation resolves the property's TZID, falling back to def.
func propLocation(p *ical.IANAProperty, def *time.Location) *time.Location {
	if tz := paramValue(p, "TZID"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return def
}

// parseICSTime parses a DATE or DATE-TIME value. Floating values are read in
// loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.UTC
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
