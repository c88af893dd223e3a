package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"invcal/internal/config"
	"invcal/internal/ics"
	appLog "invcal/internal/log"
	"invcal/internal/metrics"
	"invcal/internal/notify"
	"invcal/internal/store"
	"invcal/internal/web"
)

var listenOverride string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the notification dispatcher",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenOverride, "listen", "", "HTTP listen address (overrides config if set)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenOverride != "" {
		cfg.Listen = listenOverride
	}
	loc := cfg.Location()

	appLog.Info("invcal starting",
		"version", version,
		"listen", cfg.Listen,
		"timezone", loc.String(),
		"data_dir", cfg.DataDir,
		"dispatch", cfg.DispatchCron,
		"feeds", len(cfg.Feeds),
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetLocation(loc)

	m := metrics.New()
	fetcher := ics.NewFetcher(filepath.Join(cfg.DataDir, "ics-cache"), m)
	feeds := ics.NewSubscriptions(fetcher, ics.SourcesFromConfig(cfg.Feeds), m)

	settings, err := notify.SettingsFromConfig(cfg)
	if err != nil {
		return err
	}
	planner := notify.NewPlanner(settings)
	queue := notify.NewQueue()

	dispatcher := notify.NewDispatcher(queue, newDeliverer(cfg), notify.DispatcherConfig{
		Spec:     cfg.DispatchCron,
		Location: loc,
		Refresh: func(ctx context.Context, now time.Time) error {
			return refresh(ctx, db, feeds, planner, queue, now)
		},
		Metrics: m,
	})

	// First pass before the cron fires, so the API has data right away.
	dispatcher.Tick(ctx)
	if err := dispatcher.Start(ctx); err != nil {
		return err
	}
	defer dispatcher.Stop()

	srv := &http.Server{
		Addr: cfg.Listen,
		Handler: web.NewServer(cfg, web.Deps{
			Store:   db,
			Feeds:   feeds,
			Queue:   queue,
			Metrics: m,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	appLog.Info("invcal exiting")
	return err
}

func newDeliverer(cfg *config.Config) notify.Deliverer {
	if cfg.Notify.WebhookURL == "" {
		return notify.LogDeliverer{}
	}
	return notify.NewWebhookDeliverer(cfg.Notify.WebhookURL, time.Duration(cfg.Notify.TimeoutSeconds)*time.Second)
}

// refresh pulls the subscribed feeds and re-plans every notification from
// the store. Feed failures do not stop planning.
func refresh(ctx context.Context, db *store.DB, feeds *ics.Subscriptions, planner *notify.Planner, queue *notify.Queue, now time.Time) error {
	feedErr := feeds.Refresh(ctx)

	reminders, err := db.ListReminders(ctx, true)
	if err != nil {
		return err
	}
	warranties, err := db.ListWarranties(ctx)
	if err != nil {
		return err
	}
	names, err := itemNames(ctx, db)
	if err != nil {
		return err
	}

	staged := notify.NewQueue()
	n, err := planner.Plan(ctx, staged, reminders, warranties, names, now)
	if err != nil {
		return err
	}
	queue.Sync(staged.Pending(), now)
	appLog.Debug("notifications planned", "planned", n, "pending", queue.Len())
	return feedErr
}

func itemNames(ctx context.Context, db *store.DB) (map[string]string, error) {
	items, err := db.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(items))
	for _, it := range items {
		names[it.ID.String()] = it.Name
	}
	return names, nil
}
