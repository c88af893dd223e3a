package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"invcal/internal/calendar"
	"invcal/internal/config"
	"invcal/internal/coverage"
	"invcal/internal/recurrence"
)

var scheduleOpts struct {
	anchor        string
	frequency     string
	normalization string
	count         int
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Print the next occurrences of a maintenance frequency",
	Example: `  invcal schedule --anchor 2024-01-31 --frequency monthly --normalization end_of_month
  invcal schedule --anchor 2024-03-01T09:00 --frequency custom:45 --count 5`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

var durationCmd = &cobra.Command{
	Use:   "duration FROM TO",
	Short: "Print the civil days and hours between two dates",
	Args:  cobra.ExactArgs(2),
	RunE:  runDuration,
}

var coverageOpts struct {
	start, end, transfer string
	percent              int
	shortenDays          int
	warrantyType         string
	provider             string
	extended             bool
	fee                  string
}

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Compute the coverage left after transferring a warranty",
	Long: `Compute the coverage a new owner keeps after a transfer.

With --type the warranty's transfer conditions decide the reduction and the
transfer is validated; otherwise --percent or --shorten-days apply.`,
	Args: cobra.NoArgs,
	RunE: runCoverage,
}

func init() {
	rootCmd.AddCommand(scheduleCmd, durationCmd, coverageCmd)

	f := scheduleCmd.Flags()
	f.StringVar(&scheduleOpts.anchor, "anchor", "", "First occurrence (2006-01-02 or 2006-01-02T15:04)")
	f.StringVar(&scheduleOpts.frequency, "frequency", "monthly", "Preset (daily, weekly, biweekly, monthly, quarterly, semiannual, annual, biannual) or custom:<days>")
	f.StringVar(&scheduleOpts.normalization, "normalization", "", "same_day, end_of_month or closest_valid (default from config)")
	f.IntVarP(&scheduleOpts.count, "count", "n", 12, "Number of dates to print")
	_ = scheduleCmd.MarkFlagRequired("anchor")

	f = coverageCmd.Flags()
	f.StringVar(&coverageOpts.start, "start", "", "Coverage start date")
	f.StringVar(&coverageOpts.end, "end", "", "Coverage end date")
	f.StringVar(&coverageOpts.transfer, "transfer", "", "Transfer date")
	f.IntVar(&coverageOpts.percent, "percent", 0, "Remove this percentage of the remaining coverage")
	f.IntVar(&coverageOpts.shortenDays, "shorten-days", 0, "Move the end back by this many days")
	f.StringVar(&coverageOpts.warrantyType, "type", "", "Warranty type (manufacturer, retailer, extended, protection, service, insurance)")
	f.StringVar(&coverageOpts.provider, "provider", "", "Warranty provider")
	f.BoolVar(&coverageOpts.extended, "extended", false, "Warranty was extended")
	f.StringVar(&coverageOpts.fee, "fee", "", "Transfer fee paid")
	_ = coverageCmd.MarkFlagRequired("start")
	_ = coverageCmd.MarkFlagRequired("end")
	_ = coverageCmd.MarkFlagRequired("transfer")
	coverageCmd.MarkFlagsMutuallyExclusive("percent", "shorten-days", "type")
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	anchor, err := calendar.ParseIn(scheduleOpts.anchor, cfg.Location())
	if err != nil {
		return err
	}
	freq, err := recurrence.ParseFrequency(scheduleOpts.frequency)
	if err != nil {
		return err
	}
	normName := scheduleOpts.normalization
	if normName == "" {
		normName = cfg.Warranty.Normalization
	}
	norm, err := recurrence.ParseNormalization(normName)
	if err != nil {
		return err
	}

	rule := freq.Rule(norm)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# %s, %s (%s)\n", freq.Label(), norm, rule.RRule(anchor))
	for _, d := range recurrence.GenerateSchedule(anchor, rule, scheduleOpts.count) {
		fmt.Fprintf(out, "%s %s\n", d.DateString(), d.Weekday().String()[:3])
	}
	return nil
}

func runDuration(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	from, to, err := parsePair(cfg, args[0], args[1])
	if err != nil {
		return err
	}
	d := calendar.Between(from, to)
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d days, %g hours)\n", d, d.Days, d.Hours)
	return nil
}

func runCoverage(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	start, end, err := parsePair(cfg, coverageOpts.start, coverageOpts.end)
	if err != nil {
		return err
	}
	transfer, err := calendar.ParseIn(coverageOpts.transfer, cfg.Location())
	if err != nil {
		return err
	}
	period, err := coverage.NewPeriod(start, end)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var adjusted coverage.Period
	if coverageOpts.warrantyType != "" {
		wt, err := coverage.ParseWarrantyType(coverageOpts.warrantyType)
		if err != nil {
			return err
		}
		req := coverage.TransferRequest{Date: transfer}
		if coverageOpts.fee != "" {
			fee, err := decimal.NewFromString(coverageOpts.fee)
			if err != nil {
				return fmt.Errorf("fee: %w", err)
			}
			req.Fee = decimal.NewNullDecimal(fee)
		}
		today := calendar.FromTime(time.Now().In(cfg.Location())).StartOfDay()
		v := coverage.ValidateTransfer(period, coverage.Assess(wt, coverageOpts.extended, coverageOpts.provider), req, today)
		adjusted = v.Adjusted

		if len(v.Issues) > 0 {
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, is := range v.Issues {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", is.Severity, is.Code, is.Message)
			}
			tw.Flush()
		}
		fmt.Fprintf(out, "valid: %t\n", v.Valid)
	} else {
		policy := coverage.NoReduction()
		switch {
		case coverageOpts.percent > 0:
			policy = coverage.PercentReduction(coverageOpts.percent)
		case coverageOpts.shortenDays > 0:
			policy = coverage.FixedShorten(calendar.Days(coverageOpts.shortenDays))
		}
		adjusted = coverage.AdjustedCoverage(period, transfer, policy)
		fmt.Fprintf(out, "policy: %s\n", policy)
	}

	fmt.Fprintf(out, "original: %s .. %s\n", period.Start.DateString(), period.End.DateString())
	fmt.Fprintf(out, "adjusted: %s .. %s (%s left)\n", adjusted.Start.DateString(), adjusted.End.DateString(), adjusted.Length())
	return nil
}

func parsePair(cfg *config.Config, a, b string) (calendar.Date, calendar.Date, error) {
	loc := cfg.Location()
	from, err := calendar.ParseIn(a, loc)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	to, err := calendar.ParseIn(b, loc)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	return from, to, nil
}
