// Package notify plans reminder and warranty-expiry notifications and
// delivers them when they fall due.
package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"invcal/internal/calendar"
)

type Kind string

const (
	KindMaintenance    Kind = "maintenance"
	KindWarrantyExpiry Kind = "warranty_expiry"
)

// Notification is one message to fire at FireAt about something due on Due.
type Notification struct {
	// ID is stable across re-planning: the same reminder, due date and lead
	// time always yield the same ID.
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	RefID      uuid.UUID     `json:"ref_id"`
	Title      string        `json:"title"`
	Body       string        `json:"body"`
	Due        calendar.Date `json:"due"`
	DaysBefore int           `json:"days_before"`
	FireAt     time.Time     `json:"fire_at"`
	Attempts   int           `json:"attempts,omitempty"`
}

func notificationID(kind Kind, ref uuid.UUID, due calendar.Date, daysBefore int) string {
	return fmt.Sprintf("%s:%s:%s:%d", kind, ref, due.DateString(), daysBefore)
}

// Scheduler accepts planned notifications. Scheduling an ID that is already
// pending replaces it.
type Scheduler interface {
	Schedule(ctx context.Context, n Notification) error
	Cancel(ctx context.Context, id string) error
}

// Queue is an in-memory Scheduler ordered by fire time.
type Queue struct {
	mu      sync.Mutex
	pending map[string]Notification
	// sent holds IDs that were delivered or given up on, so re-planning does
	// not queue them again.
	sent map[string]struct{}
}

func NewQueue() *Queue {
	return &Queue{
		pending: make(map[string]Notification),
		sent:    make(map[string]struct{}),
	}
}

func (q *Queue) Schedule(_ context.Context, n Notification) error {
	if n.ID == "" {
		return fmt.Errorf("schedule: notification has no id")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[n.ID] = n
	return nil
}

// Cancel drops a pending notification. Unknown IDs are ignored.
func (q *Queue) Cancel(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, id)
	return nil
}

// CancelRef drops every pending notification about ref and returns how many
// were removed.
func (q *Queue) CancelRef(ref uuid.UUID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for id, p := range q.pending {
		if p.RefID == ref {
			delete(q.pending, id)
			n++
		}
	}
	return n
}

// Sync replaces the pending set with planned. Entries already retried after
// a failed delivery and entries due at now are kept, and planned IDs that
// were already sent are skipped.
func (q *Queue) Sync(planned []Notification, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	next := make(map[string]Notification, len(planned))
	for id, n := range q.pending {
		if n.Attempts > 0 || !n.FireAt.After(now) {
			next[id] = n
		}
	}
	sent := make(map[string]struct{})
	for _, n := range planned {
		if _, done := q.sent[n.ID]; done {
			sent[n.ID] = struct{}{}
			continue
		}
		if _, kept := next[n.ID]; !kept {
			next[n.ID] = n
		}
	}
	q.pending = next
	q.sent = sent
}

// markSent records that id left the queue for good.
func (q *Queue) markSent(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent[id] = struct{}{}
}

// Due removes and returns the notifications whose fire time is not after
// now, earliest first.
func (q *Queue) Due(now time.Time) []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Notification
	for id, n := range q.pending {
		if !n.FireAt.After(now) {
			out = append(out, n)
			delete(q.pending, id)
		}
	}
	sortByFireAt(out)
	return out
}

// Pending returns a snapshot of all queued notifications, earliest first.
func (q *Queue) Pending() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, 0, len(q.pending))
	for _, n := range q.pending {
		out = append(out, n)
	}
	sortByFireAt(out)
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func sortByFireAt(ns []Notification) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].FireAt.Equal(ns[j].FireAt) {
			return ns[i].ID < ns[j].ID
		}
		return ns[i].FireAt.Before(ns[j].FireAt)
	})
}
