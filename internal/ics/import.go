package ics

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"invcal/internal/model"
	"invcal/internal/recurrence"
)

// ToReminders converts recurring events into reminders anchored at the event
// start in loc. Overrides and one-off events are skipped; when a UID repeats
// the highest SEQUENCE wins. Rules that pick other days than the start day
// or have no matching frequency preset are reported in the combined error and
// skipped.
//
// Reminders carry Source and ExternalUID so re-importing updates them in
// place. Lead times come from the event's alarms, or defaultDaysBefore.
func ToReminders(events []ParsedEvent, loc *time.Location, defaultDaysBefore []int) ([]model.Reminder, error) {
	latest := make(map[string]ParsedEvent)
	order := make([]string, 0)
	for _, ev := range events {
		if ev.IsOverride || ev.RawRRule == "" {
			continue
		}
		key := ev.Source.ID + "\x00" + ev.UID
		prev, seen := latest[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || ev.Seq >= prev.Seq {
			latest[key] = ev
		}
	}

	var err error
	out := make([]model.Reminder, 0, len(order))
	for _, key := range order {
		ev := latest[key]
		anchor := ev.StartDate(loc)
		rule, rerr := recurrence.FromRRule(ev.RawRRule, anchor)
		if rerr != nil {
			err = multierr.Append(err, fmt.Errorf("uid %s: %w", ev.UID, rerr))
			continue
		}
		freq, ok := recurrence.FrequencyOf(rule)
		if !ok {
			err = multierr.Append(err, fmt.Errorf("uid %s: no frequency for %q", ev.UID, ev.RawRRule))
			continue
		}

		days := ev.AlarmDaysBefore
		if len(days) == 0 {
			days = append([]int(nil), defaultDaysBefore...)
		}

		title := ev.Summary
		if title == "" {
			title = ev.Source.Name
		}

		out = append(out, model.Reminder{
			Title:         title,
			Notes:         ev.Description,
			Anchor:        anchor,
			Frequency:     freq,
			Normalization: rule.Normalization,
			DaysBefore:    days,
			Enabled:       true,
			Source:        ev.Source.ID,
			ExternalUID:   ev.UID,
		})
	}
	return out, err
}
