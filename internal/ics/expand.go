package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "invcal/internal/log"
	"invcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the timezone occurrences are converted to. If nil,
	// UTC is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the inclusive window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules. Zero means 5000.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded occurrences, ordered by start.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit MaxOccurrencesPerEvent.
	TruncatedEvents []string
}

// Expand turns parsed events into concrete occurrences inside the window.
// It handles single events, RRULE recurrence, EXDATE removal and
// RECURRENCE-ID overrides. All-day occurrences keep their calendar day in
// the display timezone.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	all := make([]model.Occurrence, 0)
	for uid, baseEvents := range baseByUID {
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range baseEvents {
			occ, hitCap := expandEvent(ev, ov, cfg)
			if hitCap {
				truncated = true
			}
			all = append(all, occ...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Start.Equal(all[j].Start) {
			return all[i].UID < all[j].UID
		}
		return all[i].Start.Before(all[j].Start)
	})
	sort.Strings(result.TruncatedEvents)
	result.Occurrences = all
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Occurrence {
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		ev = o
	}
	if !timeRangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []model.Occurrence{makeOccurrence(ev, ev.Start, ev.End, cfg.DisplayLocation)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	out := make([]model.Occurrence, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so occurrences that started
	// before the window but are still running are included.
	dur := ev.End.Sub(ev.Start)
	rangeStart := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	// Between has no limit of its own, so iterate to honor the cap.
	next := set.Iterator()
	hitCap := false
	for {
		occStart, ok := next()
		if !ok || occStart.After(rangeEnd) {
			break
		}
		if occStart.Before(rangeStart) {
			continue
		}
		if len(out) >= cfg.MaxOccurrencesPerEvent {
			hitCap = true
			break
		}

		occEnd := occStart.Add(dur)
		baseEv := ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			occStart, occEnd, baseEv = o.Start, o.End, o
		}
		out = append(out, makeOccurrence(baseEv, occStart, occEnd, cfg.DisplayLocation))
	}

	return out, hitCap
}

// findOverrideForStart finds the override whose RECURRENCE-ID is the same
// instant as baseStart.
func findOverrideForStart(overrides []ParsedEvent, baseStart time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(baseStart) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeOccurrence normalizes one instance into displayLoc.
func makeOccurrence(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	if ev.AllDay {
		days := max(int(end.Sub(start).Hours()/24+0.5), 1)
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, displayLoc)
		end = start.AddDate(0, 0, days)
	} else {
		start = start.In(displayLoc)
		end = end.In(displayLoc)
	}

	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: start.Format(time.RFC3339Nano),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
