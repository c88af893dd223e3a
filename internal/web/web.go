// Package web serves the calculator and inventory HTTP API, the exported
// calendar, the warranty report page and Prometheus metrics.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"invcal/internal/config"
	"invcal/internal/daterange"
	"invcal/internal/ics"
	appLog "invcal/internal/log"
	"invcal/internal/metrics"
	"invcal/internal/model"
	"invcal/internal/notify"
)

// Store is the part of the inventory store the API reads.
type Store interface {
	ListItems(ctx context.Context) ([]model.Item, error)
	ItemsPurchasedBetween(ctx context.Context, q daterange.Query) ([]model.Item, error)
	ListWarranties(ctx context.Context) ([]model.Warranty, error)
	ListReminders(ctx context.Context, enabledOnly bool) ([]model.Reminder, error)
}

// Deps are the collaborators of a Server. Feeds, Queue and Metrics may be nil.
type Deps struct {
	Store   Store
	Feeds   *ics.Subscriptions
	Queue   *notify.Queue
	Metrics *metrics.Metrics
}

// Server provides the HTTP API.
type Server struct {
	cfg    *config.Config
	deps   Deps
	router chi.Router
	now    func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		now:  time.Now,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.metricsMiddleware)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		r.Use(s.basicAuthMiddleware)
	}

	r.Get("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/duration", s.handleDuration)
		r.Get("/schedule", s.handleSchedule)
		r.Post("/coverage/adjust", s.handleCoverageAdjust)
		r.Get("/items", s.handleItems)
		r.Get("/warranties/status", s.handleWarrantyStatus)
		r.Get("/trend", s.handleTrend)
		r.Get("/feeds/events", s.handleFeedEvents)
		r.Get("/notifications", s.handleNotifications)
	})

	r.Get("/calendar.ics", s.handleCalendar)
	r.Get("/report/warranties", s.handleWarrantyReport)
	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password leaves auth disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="invcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records latency labelled by the chi route pattern.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.deps.Metrics.ObserveRequest(route, r.Method, status, time.Since(start).Seconds())
		appLog.Debug("http request", "method", r.Method, "route", route, "status", status)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
