package ics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"invcal/internal/calendar"
	"invcal/internal/model"
)

const uidDomain = "@invcal"

// ExportOptions tunes Export.
type ExportOptions struct {
	// Name is the calendar display name (X-WR-CALNAME).
	Name string
	// Stamp is written as DTSTAMP on every event. Zero means time.Now.
	Stamp time.Time
	// ItemNames maps item IDs to names for warranty summaries.
	ItemNames map[string]string
}

// Export renders enabled reminders as recurring events and warranty expiries
// as all-day events.
//
// Reminders anchored at midnight are all-day events; others keep their time
// of day with a TZID. Each days-before entry becomes a DISPLAY alarm.
func Export(reminders []model.Reminder, warranties []model.Warranty, opts ExportOptions) string {
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendarFor("invcal")
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetName(opts.Name)
		cal.SetXWRCalName(opts.Name)
	}

	for _, r := range reminders {
		if !r.Enabled {
			continue
		}
		ev := cal.AddEvent(r.ID.String() + uidDomain)
		ev.SetDtStampTime(stamp)
		ev.SetSummary(r.Title)
		desc := r.Frequency.Label()
		if r.Notes != "" {
			desc = r.Notes + "\n\n" + desc
		}
		ev.SetDescription(desc)
		ev.AddCategory("maintenance")
		setStart(ev, r.Anchor)
		ev.AddRrule(r.Rule().RRule(r.Anchor))

		for _, d := range r.DaysBefore {
			a := ev.AddAlarm()
			a.SetAction(ical.ActionDisplay)
			a.SetTrigger(trigger(d))
			a.SetProperty(ical.ComponentPropertyDescription, r.Title)
		}
	}

	for _, w := range warranties {
		ev := cal.AddEvent("warranty-" + w.ID.String() + uidDomain)
		ev.SetDtStampTime(stamp)
		ev.SetSummary(warrantySummary(w, opts.ItemNames[w.ItemID.String()]))
		ev.SetDescription(fmt.Sprintf("%s coverage %s to %s", w.Type.Label(), w.Start.DateString(), w.End.DateString()))
		ev.AddCategory("warranty")
		end := w.End.Time()
		ev.SetAllDayStartAt(end)
		ev.SetAllDayEndAt(end.AddDate(0, 0, 1))
	}

	return cal.Serialize()
}

func warrantySummary(w model.Warranty, item string) string {
	switch {
	case item != "" && w.Provider != "":
		return fmt.Sprintf("Warranty ends: %s (%s)", item, w.Provider)
	case item != "":
		return "Warranty ends: " + item
	case w.Provider != "":
		return "Warranty ends: " + w.Provider
	}
	return "Warranty ends"
}

// setStart writes DTSTART/DTEND for a one-day or zero-length event at d.
func setStart(ev *ical.VEvent, d calendar.Date) {
	if d.Clock() == calendar.Midnight {
		t := d.Time()
		ev.SetAllDayStartAt(t)
		ev.SetAllDayEndAt(t.AddDate(0, 0, 1))
		return
	}

	t := d.Time()
	name := d.Location().String()
	if _, err := time.LoadLocation(name); err != nil || name == "UTC" || name == "Local" {
		ev.SetStartAt(t)
		ev.SetEndAt(t)
		return
	}
	const layout = "20060102T150405"
	ev.SetProperty(ical.ComponentPropertyDtStart, t.Format(layout), ical.WithTZID(name))
	ev.SetProperty(ical.ComponentPropertyDtEnd, t.Format(layout), ical.WithTZID(name))
}

// trigger renders a relative alarm trigger: 7 -> "-P7D", 0 -> "PT0S".
func trigger(daysBefore int) string {
	if daysBefore <= 0 {
		return "PT0S"
	}
	return "-P" + strconv.Itoa(daysBefore) + "D"
}

var triggerPattern = regexp.MustCompile(`^-P(\d+)([DW])$`)

// daysBeforeTrigger parses what trigger writes, plus week forms.
func daysBeforeTrigger(s string) (int, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "PT0S", "-PT0S", "P0D", "-P0D":
		return 0, true
	}
	m := triggerPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	if m[2] == "W" {
		n *= 7
	}
	return n, true
}
