package main

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"invcal/internal/ics"
	appLog "invcal/internal/log"
	"invcal/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import [FEED_ID...]",
	Short: "Import recurring events of subscribed feeds as maintenance reminders",
	Long: `Fetch the configured service calendars (all of them, or only the given
feed IDs) and store their recurring events as reminders. Re-importing a feed
updates the reminders it created before.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sources := ics.SourcesFromConfig(cfg.Feeds)
	if len(args) > 0 {
		sources = slices.DeleteFunc(sources, func(s ics.Source) bool {
			return !slices.Contains(args, s.ID)
		})
	}
	if len(sources) == 0 {
		return fmt.Errorf("no matching feeds configured")
	}

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()
	loc := cfg.Location()
	db.SetLocation(loc)

	ctx := cmd.Context()
	fetcher := ics.NewFetcher(filepath.Join(cfg.DataDir, "ics-cache"), nil)
	results, fetchErr := fetcher.FetchAll(ctx, sources)

	var events []ics.ParsedEvent
	for _, res := range results {
		evs, err := ics.Parse(res.Source, res.Body)
		if err != nil {
			fetchErr = multierr.Append(fetchErr, fmt.Errorf("feed %s: %w", res.Source.ID, err))
			continue
		}
		events = append(events, evs...)
	}

	reminders, convErr := ics.ToReminders(events, loc, cfg.Reminders.DaysBefore)
	saved := 0
	for i := range reminders {
		if err := db.SaveReminder(ctx, &reminders[i]); err != nil {
			return err
		}
		saved++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d reminders from %d feeds\n", saved, len(results))
	for _, e := range multierr.Errors(convErr) {
		appLog.Info("skipped event", "reason", e.Error())
	}
	return fetchErr
}
