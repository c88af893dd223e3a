package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"invcal/internal/calendar"
	"invcal/internal/coverage"
	"invcal/internal/daterange"
	"invcal/internal/ics"
	appLog "invcal/internal/log"
	"invcal/internal/model"
	"invcal/internal/notify"
	"invcal/internal/recurrence"
	"invcal/internal/report"
)

const (
	defaultScheduleCount = 12
	maxScheduleCount     = 500
	defaultFeedDays      = 7
	maxFeedDays          = 366
)

// today is the start of the current day in the configured zone.
func (s *Server) today() calendar.Date {
	return calendar.FromTime(s.now().In(s.cfg.Location())).StartOfDay()
}

// requestError is a client error with a message safe to return.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

// writeFailure maps client errors and validation errors to 400 and anything
// else to 500.
func writeFailure(w http.ResponseWriter, what string, err error) {
	var re *requestError
	var ve *calendar.ValidationError
	switch {
	case errors.As(err, &re):
		writeError(w, http.StatusBadRequest, re.msg)
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	default:
		appLog.Error(what+" failed", err)
		writeError(w, http.StatusInternalServerError, what+" failed")
	}
}

func (s *Server) dateParam(r *http.Request, name string) (calendar.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return calendar.Date{}, badRequest("missing " + name)
	}
	return calendar.ParseIn(v, s.cfg.Location())
}

func (s *Server) rangeParams(r *http.Request) (daterange.Query, error) {
	from, err := s.dateParam(r, "from")
	if err != nil {
		return daterange.Query{}, err
	}
	to, err := s.dateParam(r, "to")
	if err != nil {
		return daterange.Query{}, err
	}
	return daterange.Query{Start: from, End: to}.WholeDays(), nil
}

func (s *Server) itemNames(ctx context.Context) (map[string]string, error) {
	items, err := s.deps.Store.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(items))
	for _, it := range items {
		names[it.ID.String()] = it.Name
	}
	return names, nil
}

type durationResponse struct {
	From     calendar.Date     `json:"from"`
	To       calendar.Date     `json:"to"`
	Duration calendar.Duration `json:"duration"`
	Text     string            `json:"text"`
}

// handleDuration returns the civil distance between two dates.
//
// GET /api/duration?from=2024-01-31&to=2024-03-01T12:00
func (s *Server) handleDuration(w http.ResponseWriter, r *http.Request) {
	from, err := s.dateParam(r, "from")
	if err != nil {
		writeFailure(w, "duration", err)
		return
	}
	to, err := s.dateParam(r, "to")
	if err != nil {
		writeFailure(w, "duration", err)
		return
	}
	d := calendar.Between(from, to)
	writeJSON(w, http.StatusOK, durationResponse{From: from, To: to, Duration: d, Text: d.String()})
}

type scheduleResponse struct {
	Frequency     recurrence.Frequency     `json:"frequency"`
	Label         string                   `json:"label"`
	Normalization recurrence.Normalization `json:"normalization"`
	RRule         string                   `json:"rrule"`
	Dates         []calendar.Date          `json:"dates"`
}

// handleSchedule lists the next occurrences of a frequency from an anchor.
//
// GET /api/schedule?anchor=2024-01-31&frequency=monthly&normalization=end_of_month&count=12
//   - normalization defaults to warranty.normalization from the config
//   - count defaults to 12, at most 500
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	anchor, err := s.dateParam(r, "anchor")
	if err != nil {
		writeFailure(w, "schedule", err)
		return
	}
	freq, err := recurrence.ParseFrequency(q.Get("frequency"))
	if err != nil {
		writeFailure(w, "schedule", err)
		return
	}
	normName := q.Get("normalization")
	if normName == "" {
		normName = s.cfg.Warranty.Normalization
	}
	norm, err := recurrence.ParseNormalization(normName)
	if err != nil {
		writeFailure(w, "schedule", err)
		return
	}
	count := parseIntDefault(q.Get("count"), defaultScheduleCount)
	if count <= 0 {
		count = defaultScheduleCount
	}
	count = min(count, maxScheduleCount)

	rule := freq.Rule(norm)
	writeJSON(w, http.StatusOK, scheduleResponse{
		Frequency:     freq,
		Label:         freq.Label(),
		Normalization: norm,
		RRule:         rule.RRule(anchor),
		Dates:         recurrence.GenerateSchedule(anchor, rule, count),
	})
}

type adjustRequest struct {
	Start        calendar.Date `json:"start"`
	End          calendar.Date `json:"end"`
	TransferDate calendar.Date `json:"transfer_date"`

	// Policy is used when Type is empty; with a Type the warranty's
	// transfer conditions decide the reduction.
	Policy coverage.Policy `json:"policy"`

	Type     string              `json:"type,omitempty"`
	Provider string              `json:"provider,omitempty"`
	Extended bool                `json:"extended,omitempty"`
	Fee      decimal.NullDecimal `json:"fee"`
}

type adjustResponse struct {
	Original   coverage.Period      `json:"original"`
	Adjusted   coverage.Period      `json:"adjusted"`
	Remaining  calendar.Duration    `json:"remaining"`
	Validation *coverage.Validation `json:"validation,omitempty"`
}

// handleCoverageAdjust computes the coverage left after a transfer.
//
// POST /api/coverage/adjust
func (s *Server) handleCoverageAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Start.IsZero() || req.End.IsZero() || req.TransferDate.IsZero() {
		writeError(w, http.StatusBadRequest, "start, end and transfer_date are required")
		return
	}
	period, err := coverage.NewPeriod(req.Start, req.End)
	if err != nil {
		writeFailure(w, "coverage adjust", err)
		return
	}

	resp := adjustResponse{Original: period}
	if req.Type != "" {
		wt, err := coverage.ParseWarrantyType(req.Type)
		if err != nil {
			writeFailure(w, "coverage adjust", err)
			return
		}
		v := coverage.ValidateTransfer(period, coverage.Assess(wt, req.Extended, req.Provider),
			coverage.TransferRequest{Date: req.TransferDate, Fee: req.Fee}, s.today())
		resp.Adjusted = v.Adjusted
		resp.Validation = &v
	} else {
		resp.Adjusted = coverage.AdjustedCoverage(period, req.TransferDate, req.Policy)
	}
	resp.Remaining = resp.Adjusted.Length()
	writeJSON(w, http.StatusOK, resp)
}

type itemsResponse struct {
	Range daterange.Query `json:"range"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
	Items []model.Item    `json:"items"`
}

// handleItems lists items purchased in [from, to], whole days.
//
// GET /api/items?from=2024-01-01&to=2024-03-31
func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	q, err := s.rangeParams(r)
	if err != nil {
		writeFailure(w, "items", err)
		return
	}
	items, err := s.deps.Store.ItemsPurchasedBetween(r.Context(), q)
	if err != nil {
		writeFailure(w, "items", err)
		return
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Value())
	}
	writeJSON(w, http.StatusOK, itemsResponse{Range: q, Count: len(items), Total: total, Items: items})
}

func (s *Server) buildWarrantyReport(ctx context.Context, soonDays int) (report.Warranties, error) {
	warranties, err := s.deps.Store.ListWarranties(ctx)
	if err != nil {
		return report.Warranties{}, err
	}
	names, err := s.itemNames(ctx)
	if err != nil {
		return report.Warranties{}, err
	}
	return report.BuildWarranties(warranties, names, s.today(), soonDays), nil
}

// handleWarrantyStatus classifies every warranty as of today.
//
// GET /api/warranties/status?soon_days=30
func (s *Server) handleWarrantyStatus(w http.ResponseWriter, r *http.Request) {
	soon := parseIntDefault(r.URL.Query().Get("soon_days"), s.cfg.Warranty.ExpiringSoonDays)
	rep, err := s.buildWarrantyReport(r.Context(), soon)
	if err != nil {
		writeFailure(w, "warranty status", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type trendResponse struct {
	Range     daterange.Query   `json:"range"`
	Period    daterange.Period  `json:"period"`
	WeekStart string            `json:"week_start"`
	Points    []daterange.Point `json:"points"`
}

// handleTrend buckets item purchases by day, week, month or year.
//
// GET /api/trend?from=2024-01-01&to=2024-12-31&period=month
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	q, err := s.rangeParams(r)
	if err != nil {
		writeFailure(w, "trend", err)
		return
	}
	period, err := daterange.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeFailure(w, "trend", err)
		return
	}
	items, err := s.deps.Store.ListItems(r.Context())
	if err != nil {
		writeFailure(w, "trend", err)
		return
	}
	weekStart := s.cfg.FirstWeekday()
	points, err := daterange.Trend(items, model.Item.Purchased, model.Item.Value, q, period, weekStart)
	if err != nil {
		writeFailure(w, "trend", err)
		return
	}
	writeJSON(w, http.StatusOK, trendResponse{
		Range:     q,
		Period:    period,
		WeekStart: weekStart.String(),
		Points:    points,
	})
}

// feedEventsResponse is the JSON response shape for /api/feeds/events.
type feedEventsResponse struct {
	Occurrences     []model.Occurrence `json:"occurrences"`
	TruncatedUIDs   []string           `json:"truncated_uids,omitempty"`
	RangeStart      time.Time          `json:"range_start"`
	RangeEnd        time.Time          `json:"range_end"`
	DisplayTimeZone string             `json:"display_timezone"`
	LastRefresh     time.Time          `json:"last_refresh"`
}

// handleFeedEvents returns the upcoming visits of subscribed service
// calendars from their last refresh.
//
// GET /api/feeds/events?days=7
func (s *Server) handleFeedEvents(w http.ResponseWriter, r *http.Request) {
	days := parseIntDefault(r.URL.Query().Get("days"), defaultFeedDays)
	if days <= 0 {
		days = defaultFeedDays
	}
	days = min(days, maxFeedDays)

	loc := s.cfg.Location()
	from := s.now().In(loc)
	resp := feedEventsResponse{
		Occurrences:     []model.Occurrence{},
		RangeStart:      from,
		RangeEnd:        from.AddDate(0, 0, days),
		DisplayTimeZone: loc.String(),
	}
	if s.deps.Feeds == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	res, err := s.deps.Feeds.Upcoming(from, days, loc)
	if err != nil {
		writeFailure(w, "feed events", err)
		return
	}
	resp.Occurrences = res.Occurrences
	resp.TruncatedUIDs = res.TruncatedEvents
	resp.LastRefresh = s.deps.Feeds.LastRefresh()
	writeJSON(w, http.StatusOK, resp)
}

// handleNotifications lists the queued notifications by fire time.
func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	pending := []notify.Notification{}
	if s.deps.Queue != nil {
		pending = s.deps.Queue.Pending()
	}
	writeJSON(w, http.StatusOK, pending)
}

// handleCalendar exports enabled reminders and warranty expiries as ICS for
// calendar apps to subscribe to.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reminders, err := s.deps.Store.ListReminders(ctx, true)
	if err != nil {
		writeFailure(w, "calendar export", err)
		return
	}
	warranties, err := s.deps.Store.ListWarranties(ctx)
	if err != nil {
		writeFailure(w, "calendar export", err)
		return
	}
	names, err := s.itemNames(ctx)
	if err != nil {
		writeFailure(w, "calendar export", err)
		return
	}

	body := ics.Export(reminders, warranties, ics.ExportOptions{Name: "Home inventory", ItemNames: names})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="invcal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handleWarrantyReport renders the printable warranty page.
func (s *Server) handleWarrantyReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.buildWarrantyReport(r.Context(), s.cfg.Warranty.ExpiringSoonDays)
	if err != nil {
		writeFailure(w, "warranty report", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := rep.Render(w); err != nil {
		appLog.Error("warranty report render failed", err)
	}
}
