package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("/health", http.MethodGet, 200, 0.01)
		m.SetPending(3)
		m.Delivered("maintenance", "ok")
		m.FeedFetched("lawn", "ok")
		m.SetFeedEvents("lawn", 4)
	})
}

func TestCollectors(t *testing.T) {
	m := New()
	// A second instance must not collide with the first.
	_ = New()

	m.Delivered("maintenance", "ok")
	m.Delivered("maintenance", "ok")
	m.Delivered("warranty_expiry", "error")
	m.SetPending(5)
	m.FeedFetched("lawn", "cached")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotificationsDelivered.WithLabelValues("maintenance", "ok")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.NotificationsPending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedFetches.WithLabelValues("lawn", "cached")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/schedule", http.MethodGet, 200, 0.002)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `invcal_http_requests_total{code="200",method="GET",route="/api/schedule"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
