package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invcal/internal/calendar"
	"invcal/internal/config"
	"invcal/internal/coverage"
	"invcal/internal/daterange"
	"invcal/internal/metrics"
	"invcal/internal/model"
	"invcal/internal/notify"
	"invcal/internal/recurrence"
)

type fakeStore struct {
	items      []model.Item
	warranties []model.Warranty
	reminders  []model.Reminder
}

func (f *fakeStore) ListItems(context.Context) ([]model.Item, error) { return f.items, nil }

func (f *fakeStore) ItemsPurchasedBetween(_ context.Context, q daterange.Query) ([]model.Item, error) {
	return daterange.ItemsInRange(f.items, model.Item.Purchased, q), nil
}

func (f *fakeStore) ListWarranties(context.Context) ([]model.Warranty, error) {
	return f.warranties, nil
}

func (f *fakeStore) ListReminders(_ context.Context, enabledOnly bool) ([]model.Reminder, error) {
	out := make([]model.Reminder, 0, len(f.reminders))
	for _, r := range f.reminders {
		if enabledOnly && !r.Enabled {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func day(y int, m time.Month, d int) calendar.Date { return calendar.MustNew(y, m, d) }

func dayPtr(y int, m time.Month, d int) *calendar.Date {
	v := day(y, m, d)
	return &v
}

func money(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func fixtureStore() *fakeStore {
	tv, fridge := uuid.New(), uuid.New()
	return &fakeStore{
		items: []model.Item{
			{ID: tv, Name: "TV", PurchaseDate: dayPtr(2024, time.January, 15), Price: money("100.00")},
			{ID: fridge, Name: "Fridge", PurchaseDate: dayPtr(2024, time.March, 2), Price: money("50.50")},
			{ID: uuid.New(), Name: "Gift lamp"},
		},
		warranties: []model.Warranty{
			{ID: uuid.New(), ItemID: tv, Type: coverage.Manufacturer, Provider: "Acme",
				Start: day(2024, time.January, 15), End: day(2025, time.January, 15)},
			{ID: uuid.New(), ItemID: fridge, Type: coverage.Retailer, Provider: "BigBox",
				Start: day(2023, time.March, 2), End: day(2024, time.June, 1)},
			{ID: uuid.New(), ItemID: fridge, Type: coverage.Protection, Provider: "CarePlus",
				Start: day(2024, time.March, 2), End: day(2024, time.July, 20)},
		},
		reminders: []model.Reminder{
			{ID: uuid.New(), Title: "Replace HVAC filter", Anchor: day(2024, time.March, 1),
				Frequency: recurrence.FreqMonthly, Normalization: recurrence.SameDay,
				DaysBefore: []int{7}, Enabled: true},
			{ID: uuid.New(), Title: "Disabled task", Anchor: day(2024, time.March, 1),
				Frequency: recurrence.FreqAnnual, Enabled: false},
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, deps Deps) *Server {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if deps.Store == nil {
		deps.Store = fixtureStore()
	}
	s := NewServer(cfg, deps)
	s.now = func() time.Time { return time.Date(2024, time.July, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func do(t *testing.T, s *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, Deps{})
	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	s := newTestServer(t, cfg, Deps{})

	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/duration?from=2024-01-01&to=2024-01-02", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `realm="invcal"`)

	req := httptest.NewRequest(http.MethodGet, "/api/duration?from=2024-01-01&to=2024-01-02", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/duration?from=2024-01-01&to=2024-01-02", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBasicAuthDisabledWithEmptyPassword(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin"}
	s := newTestServer(t, cfg, Deps{})
	rec := do(t, s, http.MethodGet, "/api/duration?from=2024-01-01&to=2024-01-02", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDuration(t *testing.T) {
	s := newTestServer(t, nil, Deps{})

	rec := do(t, s, http.MethodGet, "/api/duration?from=2024-01-31&to=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[durationResponse](t, rec)
	assert.Equal(t, calendar.Days(30), resp.Duration)
	assert.Equal(t, "30d", resp.Text)

	rec = do(t, s, http.MethodGet, "/api/duration?from=2024-01-01T00:00&to=2024-01-01T06:00", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[durationResponse](t, rec)
	assert.Equal(t, 0, resp.Duration.Days)
	assert.InDelta(t, 6.0, resp.Duration.Hours, 1e-9)

	rec = do(t, s, http.MethodGet, "/api/duration?from=2024-01-31", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing to")

	rec = do(t, s, http.MethodGet, "/api/duration?from=2023-02-29&to=2023-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchedule(t *testing.T) {
	s := newTestServer(t, nil, Deps{})

	rec := do(t, s, http.MethodGet, "/api/schedule?anchor=2024-01-31&frequency=monthly&count=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Label         string   `json:"label"`
		Normalization string   `json:"normalization"`
		RRule         string   `json:"rrule"`
		Dates         []string `json:"dates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Monthly", resp.Label)
	assert.Equal(t, string(recurrence.SameDay), resp.Normalization)
	assert.Contains(t, resp.RRule, "FREQ=MONTHLY")
	require.Len(t, resp.Dates, 3)
	assert.True(t, strings.HasPrefix(resp.Dates[0], "2024-01-31"))
	assert.True(t, strings.HasPrefix(resp.Dates[1], "2024-02-29"))
	assert.True(t, strings.HasPrefix(resp.Dates[2], "2024-03-31"))

	rec = do(t, s, http.MethodGet, "/api/schedule?anchor=2024-01-31&frequency=fortnightly", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/schedule?anchor=2024-01-31&frequency=monthly&normalization=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/schedule?anchor=2024-01-31&frequency=daily&count=100000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Dates, maxScheduleCount)
}

func TestCoverageAdjust(t *testing.T) {
	s := newTestServer(t, nil, Deps{})

	body := `{"start":"2024-01-01","end":"2024-12-31","transfer_date":"2024-02-01","policy":{"kind":"percent","percent":50}}`
	rec := do(t, s, http.MethodPost, "/api/coverage/adjust", strings.NewReader(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[adjustResponse](t, rec)
	assert.Equal(t, "2024-02-01", resp.Adjusted.Start.DateString())
	assert.Equal(t, "2024-07-17", resp.Adjusted.End.DateString())
	assert.Equal(t, calendar.Days(167), resp.Remaining)
	assert.Nil(t, resp.Validation)

	// insurance is never transferable
	body = `{"start":"2024-01-01","end":"2024-12-31","transfer_date":"2024-08-01","type":"insurance","provider":"Someone"}`
	rec = do(t, s, http.MethodPost, "/api/coverage/adjust", strings.NewReader(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = decode[adjustResponse](t, rec)
	require.NotNil(t, resp.Validation)
	assert.False(t, resp.Validation.Valid)
	codes := make([]coverage.IssueCode, 0)
	for _, is := range resp.Validation.Issues {
		codes = append(codes, is.Code)
	}
	assert.Contains(t, codes, coverage.IssueNonTransferable)

	body = `{"start":"2024-12-31","end":"2024-01-01","transfer_date":"2024-02-01"}`
	rec = do(t, s, http.MethodPost, "/api/coverage/adjust", strings.NewReader(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/coverage/adjust", strings.NewReader(`{"start":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/coverage/adjust", strings.NewReader(`{"start":"2024-01-01"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestItems(t *testing.T) {
	s := newTestServer(t, nil, Deps{})

	rec := do(t, s, http.MethodGet, "/api/items?from=2024-01-15&to=2024-03-02", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[itemsResponse](t, rec)
	assert.Equal(t, 2, resp.Count)
	assert.True(t, decimal.RequireFromString("150.50").Equal(resp.Total), resp.Total.String())

	rec = do(t, s, http.MethodGet, "/api/items?from=2024-01-16&to=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[itemsResponse](t, rec)
	assert.Equal(t, 0, resp.Count)

	rec = do(t, s, http.MethodGet, "/api/items?to=2024-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWarrantyStatus(t *testing.T) {
	s := newTestServer(t, nil, Deps{})

	rec := do(t, s, http.MethodGet, "/api/warranties/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Active       int `json:"active"`
		ExpiringSoon int `json:"expiring_soon"`
		Expired      int `json:"expired"`
		Rows         []struct {
			Item     string          `json:"item"`
			Provider string          `json:"provider"`
			Status   coverage.Status `json:"status"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Active)
	assert.Equal(t, 1, resp.ExpiringSoon)
	assert.Equal(t, 1, resp.Expired)
	require.Len(t, resp.Rows, 3)
	assert.Equal(t, "BigBox", resp.Rows[0].Provider)
	assert.Equal(t, "Fridge", resp.Rows[1].Item)
	assert.Equal(t, 19, resp.Rows[1].Status.DaysRemaining)

	// a wider window moves the active warranty into expiring soon
	rec = do(t, s, http.MethodGet, "/api/warranties/status?soon_days=365", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Active)
	assert.Equal(t, 2, resp.ExpiringSoon)
}

func TestTrend(t *testing.T) {
	s := newTestServer(t, nil, Deps{})

	rec := do(t, s, http.MethodGet, "/api/trend?from=2024-01-01&to=2024-03-31&period=month", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Period    string `json:"period"`
		WeekStart string `json:"week_start"`
		Points    []struct {
			Count int             `json:"count"`
			Total decimal.Decimal `json:"total"`
		} `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "month", resp.Period)
	assert.Equal(t, "Monday", resp.WeekStart)
	require.Len(t, resp.Points, 3)
	assert.Equal(t, []int{1, 0, 1}, []int{resp.Points[0].Count, resp.Points[1].Count, resp.Points[2].Count})
	assert.True(t, decimal.RequireFromString("100").Equal(resp.Points[0].Total))

	rec = do(t, s, http.MethodGet, "/api/trend?from=2024-01-01&to=2024-03-31&period=decade", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/trend?from=1990-01-01&to=2024-12-31&period=day", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedEventsWithoutFeeds(t *testing.T) {
	s := newTestServer(t, nil, Deps{})

	rec := do(t, s, http.MethodGet, "/api/feeds/events?days=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[feedEventsResponse](t, rec)
	assert.Empty(t, resp.Occurrences)
	assert.Equal(t, "UTC", resp.DisplayTimeZone)
	assert.Equal(t, 72*time.Hour, resp.RangeEnd.Sub(resp.RangeStart))
}

func TestNotifications(t *testing.T) {
	q := notify.NewQueue()
	s := newTestServer(t, nil, Deps{Queue: q})

	rec := do(t, s, http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	require.NoError(t, q.Schedule(context.Background(), notify.Notification{
		ID: "maintenance:x:2024-07-08:7", Kind: notify.KindMaintenance, Title: "Replace HVAC filter",
		FireAt: time.Date(2024, time.July, 1, 9, 0, 0, 0, time.UTC),
	}))
	rec = do(t, s, http.MethodGet, "/api/notifications", nil)
	pending := decode[[]notify.Notification](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, "Replace HVAC filter", pending[0].Title)
}

func TestCalendarExport(t *testing.T) {
	s := newTestServer(t, nil, Deps{})

	rec := do(t, s, http.MethodGet, "/calendar.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:Replace HVAC filter")
	assert.Contains(t, body, "FREQ=MONTHLY")
	assert.NotContains(t, body, "Disabled task")
	assert.Equal(t, 3, strings.Count(body, "SUMMARY:Warranty ends:"))
}

func TestWarrantyReportPage(t *testing.T) {
	s := newTestServer(t, nil, Deps{})

	rec := do(t, s, http.MethodGet, "/report/warranties", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `data-ready="true"`)
	assert.Contains(t, rec.Body.String(), "CarePlus")
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()
	s := newTestServer(t, nil, Deps{Metrics: m})

	do(t, s, http.MethodGet, "/api/duration?from=2024-01-01&to=2024-01-02", nil)
	do(t, s, http.MethodGet, "/api/duration?from=2024-01-01&to=2024-01-05", nil)
	do(t, s, http.MethodGet, "/api/duration?from=bad&to=2024-01-05", nil)
	do(t, s, http.MethodGet, "/nope", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/duration", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/duration", "GET", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("unmatched", "GET", "404")))

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invcal_http_requests_total")
}
