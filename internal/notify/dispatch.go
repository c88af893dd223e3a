package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "invcal/internal/log"
	"invcal/internal/metrics"
)

const defaultMaxAttempts = 3

// DispatcherConfig controls the dispatch loop.
type DispatcherConfig struct {
	// Spec is a standard 5-field cron expression.
	Spec     string
	Location *time.Location

	// Refresh, if set, runs at the start of every tick with the tick's clock,
	// typically to re-plan the queue from storage. Its error is logged and the
	// tick continues.
	Refresh func(ctx context.Context, now time.Time) error

	// MaxAttempts bounds redelivery of a failing notification. Zero means 3.
	MaxAttempts int

	Metrics *metrics.Metrics

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Dispatcher periodically pops due notifications from a Queue and hands them
// to a Deliverer.
type Dispatcher struct {
	queue   *Queue
	deliver Deliverer
	cfg     DispatcherConfig

	mu   sync.Mutex // serializes ticks
	cron *cron.Cron
}

func NewDispatcher(q *Queue, d Deliverer, cfg DispatcherConfig) *Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{queue: q, deliver: d, cfg: cfg}
}

// Tick runs one refresh and delivery pass and returns how many
// notifications were delivered.
func (d *Dispatcher) Tick(ctx context.Context) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.cfg.Now()
	if d.cfg.Refresh != nil {
		if err := d.cfg.Refresh(ctx, now); err != nil {
			appLog.Error("dispatch: refresh failed", err)
		}
	}

	delivered := 0
	for _, n := range d.queue.Due(now) {
		if err := d.deliver.Deliver(ctx, n); err != nil {
			d.cfg.Metrics.Delivered(string(n.Kind), "error")
			n.Attempts++
			if n.Attempts < d.cfg.MaxAttempts {
				_ = d.queue.Schedule(ctx, n)
				appLog.Error("dispatch: delivery failed, will retry", err, "id", n.ID, "attempts", n.Attempts)
			} else {
				d.queue.markSent(n.ID)
				appLog.Error("dispatch: delivery failed, giving up", err, "id", n.ID, "attempts", n.Attempts)
			}
			continue
		}
		d.queue.markSent(n.ID)
		d.cfg.Metrics.Delivered(string(n.Kind), "ok")
		delivered++
	}
	d.cfg.Metrics.SetPending(d.queue.Len())

	if delivered > 0 {
		appLog.Info("dispatch: delivered", "count", delivered, "pending", d.queue.Len())
	}
	return delivered
}

// Start schedules Tick on the cron spec until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.cron != nil {
		return errors.New("dispatcher already started")
	}
	c := cron.New(cron.WithLocation(d.cfg.Location))
	if _, err := c.AddFunc(d.cfg.Spec, func() { d.Tick(ctx) }); err != nil {
		return fmt.Errorf("dispatch spec %q: %w", d.cfg.Spec, err)
	}
	d.cron = c
	c.Start()
	appLog.Info("dispatch: started", "spec", d.cfg.Spec, "location", d.cfg.Location.String())

	go func() {
		<-ctx.Done()
		d.Stop()
	}()
	return nil
}

// Stop halts the cron loop and waits for a running tick to finish.
func (d *Dispatcher) Stop() {
	if d.cron == nil {
		return
	}
	<-d.cron.Stop().Done()
}
