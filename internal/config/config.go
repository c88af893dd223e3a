package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"invcal/internal/calendar"
	appLog "invcal/internal/log"
	"invcal/internal/recurrence"
)

// FeedConfig describes a subscribed service calendar (e.g. a lawn-care or
// HVAC provider publishing its visits as ICS).
type FeedConfig struct {
	// ID is an internal identifier used for de-dup and as the Source of
	// imported reminders.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// QuietHours is a daily window, possibly wrapping midnight, in which no
// notification fires.
type QuietHours struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Start   string `yaml:"start" json:"start"`
	End     string `yaml:"end" json:"end"`
}

// ReminderConfig holds the notification defaults for maintenance reminders.
type ReminderConfig struct {
	// DaysBefore lists how many days ahead of a due date to notify.
	DaysBefore []int `yaml:"days_before" json:"days_before"`
	// TimeOfDay is the HH:MM at which notifications fire.
	TimeOfDay  string     `yaml:"time_of_day" json:"time_of_day"`
	QuietHours QuietHours `yaml:"quiet_hours" json:"quiet_hours"`
	// Horizon is how many days ahead notifications are planned.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
}

// WarrantyConfig tunes warranty status reporting.
type WarrantyConfig struct {
	ExpiringSoonDays int `yaml:"expiring_soon_days" json:"expiring_soon_days"`
	// NotifyDaysBefore lists the expiry reminders sent for each warranty.
	NotifyDaysBefore []int `yaml:"notify_days_before" json:"notify_days_before"`
	// Normalization is the default day-of-month strategy for monthly and
	// yearly reminders: same_day, end_of_month or closest_valid.
	Normalization string `yaml:"normalization" json:"normalization"`
}

// NotifyConfig selects how due notifications are delivered.
type NotifyConfig struct {
	// WebhookURL, when set, receives each notification as a JSON POST.
	// Otherwise notifications are only logged.
	WebhookURL     string `yaml:"webhook_url,omitempty" json:"webhook_url,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone dates are interpreted in (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday"; it aligns weekly trend
	// buckets.
	WeekStart string `yaml:"week_start" json:"week_start"`

	// LogLevel is debug, info or error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// DataDir holds the SQLite database, the feed cache and exported reports.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// DispatchCron is a standard 5-field cron spec for the notification
	// dispatcher and feed refresh.
	DispatchCron string `yaml:"dispatch" json:"dispatch"`

	Reminders ReminderConfig `yaml:"reminders" json:"reminders"`
	Warranty  WarrantyConfig `yaml:"warranty" json:"warranty"`
	Notify    NotifyConfig   `yaml:"notify" json:"notify"`

	// Feeds is the list of subscribed service calendars.
	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// ChromiumPath optionally points at the browser used for PDF reports.
	ChromiumPath string `yaml:"chromium_path,omitempty" json:"chromium_path,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "UTC"
	defaultDataDir      = "./var/invcal"
	defaultDispatchCron = "*/5 * * * *"
	defaultTimeOfDay    = "09:00"
	defaultQuietStart   = "22:00"
	defaultQuietEnd     = "07:00"
	defaultHorizonDays  = 30
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		WeekStart:    "monday",
		LogLevel:     "info",
		DataDir:      defaultDataDir,
		DispatchCron: defaultDispatchCron,
		Reminders: ReminderConfig{
			DaysBefore: []int{7, 1},
			TimeOfDay:  defaultTimeOfDay,
			QuietHours: QuietHours{
				Enabled: false,
				Start:   defaultQuietStart,
				End:     defaultQuietEnd,
			},
			HorizonDays: defaultHorizonDays,
		},
		Warranty: WarrantyConfig{
			ExpiringSoonDays: 30,
			NotifyDaysBefore: []int{30, 7},
			Normalization:    string(recurrence.SameDay),
		},
		Notify: NotifyConfig{TimeoutSeconds: 10},
		Feeds:  []FeedConfig{},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = "monday"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.DispatchCron == "" {
		c.DispatchCron = defaultDispatchCron
	}
	if c.Reminders.DaysBefore == nil {
		c.Reminders.DaysBefore = []int{7, 1}
	}
	if c.Reminders.TimeOfDay == "" {
		c.Reminders.TimeOfDay = defaultTimeOfDay
	}
	if c.Reminders.QuietHours.Start == "" {
		c.Reminders.QuietHours.Start = defaultQuietStart
	}
	if c.Reminders.QuietHours.End == "" {
		c.Reminders.QuietHours.End = defaultQuietEnd
	}
	if c.Reminders.HorizonDays <= 0 {
		c.Reminders.HorizonDays = defaultHorizonDays
	}
	if c.Warranty.ExpiringSoonDays <= 0 {
		c.Warranty.ExpiringSoonDays = 30
	}
	if c.Warranty.NotifyDaysBefore == nil {
		c.Warranty.NotifyDaysBefore = []int{30, 7}
	}
	if c.Warranty.Normalization == "" {
		c.Warranty.Normalization = string(recurrence.SameDay)
	}
	if c.Notify.TimeoutSeconds <= 0 {
		c.Notify.TimeoutSeconds = 10
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
}

// Validate reports every value that cannot be used, combined into one error.
func (c *Config) Validate() error {
	var err error
	if _, lerr := time.LoadLocation(c.Timezone); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("timezone: %w", lerr))
	}
	if _, lerr := appLog.ParseLevel(c.LogLevel); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("log_level: %w", lerr))
	}
	if _, cerr := cron.ParseStandard(c.DispatchCron); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("dispatch: %w", cerr))
	}
	if _, cerr := calendar.ParseClock(c.Reminders.TimeOfDay); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("reminders.time_of_day: %w", cerr))
	}
	if c.Reminders.QuietHours.Enabled {
		if _, cerr := calendar.ParseClock(c.Reminders.QuietHours.Start); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("reminders.quiet_hours.start: %w", cerr))
		}
		if _, cerr := calendar.ParseClock(c.Reminders.QuietHours.End); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("reminders.quiet_hours.end: %w", cerr))
		}
	}
	for _, d := range append(append([]int{}, c.Reminders.DaysBefore...), c.Warranty.NotifyDaysBefore...) {
		if d < 0 {
			err = multierr.Append(err, fmt.Errorf("days_before: %d is negative", d))
		}
	}
	if _, nerr := recurrence.ParseNormalization(c.Warranty.Normalization); nerr != nil {
		err = multierr.Append(err, fmt.Errorf("warranty.normalization: %w", nerr))
	}
	seen := make(map[string]bool, len(c.Feeds))
	for i, f := range c.Feeds {
		switch {
		case f.ID == "":
			err = multierr.Append(err, fmt.Errorf("feeds[%d]: id is required", i))
		case seen[f.ID]:
			err = multierr.Append(err, fmt.Errorf("feeds[%d]: duplicate id %q", i, f.ID))
		}
		seen[f.ID] = true
		if f.URL == "" {
			err = multierr.Append(err, fmt.Errorf("feeds[%d]: url is required", i))
		}
	}
	return err
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("config: invalid timezone, using UTC", err, "timezone", c.Timezone)
		return time.UTC
	}
	return loc
}

// FirstWeekday maps WeekStart to a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read, unmarshaled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			appLog.Info("config: wrote defaults", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".invcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
