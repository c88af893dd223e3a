package main

import (
	"os"

	"github.com/spf13/cobra"

	"invcal/internal/config"
	appLog "invcal/internal/log"
)

const version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "invcal",
	Short: "Home inventory calendar: warranties, maintenance reminders and service feeds",
	Long: `invcal tracks when household items were bought, when their warranties end
and when they need maintenance. It plans reminder notifications, exports
everything as an ICS calendar and subscribes to service providers' calendars.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./invcal.yaml", "Path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		appLog.Error("invcal failed", err)
		os.Exit(1)
	}
}

// loadConfig reads --config, validates it and applies the log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := appLog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	appLog.SetLevel(level)
	return cfg, nil
}
