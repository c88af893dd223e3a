// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the application collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestLatency *prometheus.HistogramVec
	Requests       *prometheus.CounterVec

	NotificationsPending   prometheus.Gauge
	NotificationsDelivered *prometheus.CounterVec

	FeedFetches *prometheus.CounterVec
	FeedEvents  *prometheus.GaugeVec
}

// New creates the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invcal_http_request_duration_seconds",
			Help:    "Latency of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "invcal_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "code"}),
		NotificationsPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "invcal_notifications_pending",
			Help: "Notifications waiting to fire",
		}),
		NotificationsDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "invcal_notifications_delivered_total",
			Help: "Notifications handed to a deliverer, by kind and result",
		}, []string{"kind", "result"}),
		FeedFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "invcal_feed_fetches_total",
			Help: "Service calendar fetches, by feed and result",
		}, []string{"feed", "result"}),
		FeedEvents: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "invcal_feed_events",
			Help: "Events parsed from the last fetch of each feed",
		}, []string{"feed"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) ObserveRequest(route, method string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(route).Observe(seconds)
	m.Requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.NotificationsPending.Set(float64(n))
}

func (m *Metrics) Delivered(kind, result string) {
	if m == nil {
		return
	}
	m.NotificationsDelivered.WithLabelValues(kind, result).Inc()
}

// FeedFetched records one fetch; result is ok, cached or error.
func (m *Metrics) FeedFetched(feed, result string) {
	if m == nil {
		return
	}
	m.FeedFetches.WithLabelValues(feed, result).Inc()
}

func (m *Metrics) SetFeedEvents(feed string, n int) {
	if m == nil {
		return
	}
	m.FeedEvents.WithLabelValues(feed).Set(float64(n))
}
