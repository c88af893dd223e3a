package notify

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/multierr"

	"invcal/internal/calendar"
	"invcal/internal/config"
	"invcal/internal/model"
	"invcal/internal/recurrence"
)

// QuietHours is a daily window in which nothing fires. Start after End means
// the window wraps midnight (22:00-07:00).
type QuietHours struct {
	Start calendar.Clock
	End   calendar.Clock
}

// Settings are the planning defaults shared by every reminder.
type Settings struct {
	DaysBefore         []int
	WarrantyDaysBefore []int
	TimeOfDay          calendar.Clock
	// Quiet is nil when quiet hours are off.
	Quiet       *QuietHours
	HorizonDays int
	Location    *time.Location
}

// SettingsFromConfig resolves the reminder and warranty sections of cfg.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	tod, err := calendar.ParseClock(cfg.Reminders.TimeOfDay)
	if err != nil {
		return Settings{}, fmt.Errorf("time_of_day: %w", err)
	}
	s := Settings{
		DaysBefore:         cfg.Reminders.DaysBefore,
		WarrantyDaysBefore: cfg.Warranty.NotifyDaysBefore,
		TimeOfDay:          tod,
		HorizonDays:        cfg.Reminders.HorizonDays,
		Location:           cfg.Location(),
	}
	if qh := cfg.Reminders.QuietHours; qh.Enabled {
		start, err := calendar.ParseClock(qh.Start)
		if err != nil {
			return Settings{}, fmt.Errorf("quiet_hours.start: %w", err)
		}
		end, err := calendar.ParseClock(qh.End)
		if err != nil {
			return Settings{}, fmt.Errorf("quiet_hours.end: %w", err)
		}
		s.Quiet = &QuietHours{Start: start, End: end}
	}
	return s, nil
}

// Planner turns reminders and warranties into notifications.
type Planner struct {
	s Settings
}

func NewPlanner(s Settings) *Planner {
	if s.Location == nil {
		s.Location = time.UTC
	}
	if s.HorizonDays <= 0 {
		s.HorizonDays = 30
	}
	return &Planner{s: s}
}

// ForReminder plans a reminder's notifications that fire after now and no
// later than the horizon. Disabled reminders yield nothing.
func (p *Planner) ForReminder(r model.Reminder, now time.Time) []Notification {
	if !r.Enabled {
		return nil
	}
	leads := r.DaysBefore
	if len(leads) == 0 {
		leads = p.s.DaysBefore
	}
	if len(leads) == 0 {
		return nil
	}

	today := calendar.FromTime(now.In(p.s.Location))
	loc := r.Anchor.Location()
	from := calendar.Clamped(today.Year(), today.Month(), today.Day(), calendar.Midnight, loc)
	to := from.AddDays(p.s.HorizonDays + slices.Max(leads)).EndOfDay()

	var out []Notification
	for _, due := range recurrence.OccurrencesBetween(r.Anchor, r.Rule(), from, to) {
		for _, lead := range leads {
			fireAt, ok := p.fireTime(due, lead, now)
			if !ok {
				continue
			}
			out = append(out, Notification{
				ID:         notificationID(KindMaintenance, r.ID, due, lead),
				Kind:       KindMaintenance,
				RefID:      r.ID,
				Title:      r.Title,
				Body:       dueText(due, lead),
				Due:        due,
				DaysBefore: lead,
				FireAt:     fireAt,
			})
		}
	}
	sortByFireAt(out)
	return out
}

// ForWarranty plans expiry notifications for one warranty. itemName may be
// empty.
func (p *Planner) ForWarranty(w model.Warranty, itemName string, now time.Time) []Notification {
	title := "Warranty expiring"
	switch {
	case w.Provider != "" && itemName != "":
		title = fmt.Sprintf("Warranty expiring: %s (%s)", itemName, w.Provider)
	case itemName != "":
		title = "Warranty expiring: " + itemName
	case w.Provider != "":
		title = "Warranty expiring: " + w.Provider
	}

	var out []Notification
	for _, lead := range p.s.WarrantyDaysBefore {
		fireAt, ok := p.fireTime(w.End, lead, now)
		if !ok {
			continue
		}
		out = append(out, Notification{
			ID:         notificationID(KindWarrantyExpiry, w.ID, w.End, lead),
			Kind:       KindWarrantyExpiry,
			RefID:      w.ID,
			Title:      title,
			Body:       fmt.Sprintf("Coverage ends %s", w.End.DateString()),
			Due:        w.End,
			DaysBefore: lead,
			FireAt:     fireAt,
		})
	}
	sortByFireAt(out)
	return out
}

// Plan computes notifications for all reminders and warranties and hands them
// to s. Scheduling failures are combined.
func (p *Planner) Plan(ctx context.Context, s Scheduler, reminders []model.Reminder, warranties []model.Warranty, itemNames map[string]string, now time.Time) (int, error) {
	var all []Notification
	for _, r := range reminders {
		all = append(all, p.ForReminder(r, now)...)
	}
	for _, w := range warranties {
		all = append(all, p.ForWarranty(w, itemNames[w.ItemID.String()], now)...)
	}

	var err error
	n := 0
	for _, note := range all {
		if serr := s.Schedule(ctx, note); serr != nil {
			err = multierr.Append(err, fmt.Errorf("schedule %s: %w", note.ID, serr))
			continue
		}
		n++
	}
	return n, err
}

// fireTime places a notification lead days before due at the configured time
// of day, moves it out of quiet hours and rejects it if it is in the past or
// beyond the horizon.
func (p *Planner) fireTime(due calendar.Date, lead int, now time.Time) (time.Time, bool) {
	if lead < 0 {
		return time.Time{}, false
	}
	day := due.AddDays(-lead)
	at := calendar.Clamped(day.Year(), day.Month(), day.Day(), p.s.TimeOfDay, p.s.Location)
	if p.s.Quiet != nil {
		at = p.s.Quiet.shift(at)
	}
	t := at.Time()
	if !t.After(now) || t.After(now.AddDate(0, 0, p.s.HorizonDays)) {
		return time.Time{}, false
	}
	return t, true
}

// shift moves d to the end of the quiet window when d falls inside it.
func (q QuietHours) shift(d calendar.Date) calendar.Date {
	start, end, c := seconds(q.Start), seconds(q.End), seconds(d.Clock())
	switch {
	case start == end:
		return d
	case start < end:
		if c >= start && c < end {
			return d.WithClock(q.End)
		}
	default:
		if c >= start {
			return d.AddDays(1).WithClock(q.End)
		}
		if c < end {
			return d.WithClock(q.End)
		}
	}
	return d
}

// Contains reports whether c falls inside the window.
func (q QuietHours) Contains(c calendar.Clock) bool {
	start, end, s := seconds(q.Start), seconds(q.End), seconds(c)
	if start <= end {
		return s >= start && s < end
	}
	return s >= start || s < end
}

func seconds(c calendar.Clock) int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

func dueText(due calendar.Date, lead int) string {
	switch lead {
	case 0:
		return "Due today"
	case 1:
		return fmt.Sprintf("Due tomorrow (%s)", due.Time().Format("Mon Jan 2"))
	default:
		return fmt.Sprintf("Due in %d days (%s)", lead, due.Time().Format("Mon Jan 2"))
	}
}
