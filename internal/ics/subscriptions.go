package ics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	appLog "invcal/internal/log"
	"invcal/internal/metrics"
)

// Subscriptions keeps the last parsed events of every subscribed feed.
// A feed that fails to refresh keeps its previous events.
type Subscriptions struct {
	fetcher *Fetcher
	sources []Source
	metrics *metrics.Metrics

	mu        sync.RWMutex
	bySource  map[string][]ParsedEvent
	refreshed time.Time
}

func NewSubscriptions(f *Fetcher, sources []Source, m *metrics.Metrics) *Subscriptions {
	return &Subscriptions{
		fetcher:  f,
		sources:  sources,
		metrics:  m,
		bySource: make(map[string][]ParsedEvent),
	}
}

func (s *Subscriptions) Sources() []Source {
	return s.sources
}

// Refresh fetches and parses all feeds.
func (s *Subscriptions) Refresh(ctx context.Context) error {
	if len(s.sources) == 0 {
		return nil
	}
	results, err := s.fetcher.FetchAll(ctx, s.sources)

	parsed := make(map[string][]ParsedEvent, len(results))
	for _, res := range results {
		events, perr := Parse(res.Source, res.Body)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("feed %s: %w", res.Source.ID, perr))
			continue
		}
		parsed[res.Source.ID] = events
		s.metrics.SetFeedEvents(res.Source.ID, len(events))
	}

	s.mu.Lock()
	for id, events := range parsed {
		s.bySource[id] = events
	}
	s.refreshed = time.Now()
	s.mu.Unlock()

	appLog.Info("feeds refreshed", "feeds", len(s.sources), "updated", len(parsed), "failed", len(multierr.Errors(err)))
	return err
}

// Events returns the parsed events of all feeds in source order.
func (s *Subscriptions) Events() []ParsedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ParsedEvent, 0)
	for _, src := range s.sources {
		out = append(out, s.bySource[src.ID]...)
	}
	return out
}

// LastRefresh is zero until the first Refresh.
func (s *Subscriptions) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshed
}

// Upcoming expands all feeds over [from, from+days].
func (s *Subscriptions) Upcoming(from time.Time, days int, loc *time.Location) (ExpandResult, error) {
	return Expand(s.Events(), ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      from,
		RangeEnd:        from.AddDate(0, 0, days),
	})
}
