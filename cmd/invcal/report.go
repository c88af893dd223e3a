package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"invcal/internal/config"
	appLog "invcal/internal/log"
	"invcal/internal/report"
	"invcal/internal/store"
	"invcal/internal/web"
)

var reportOpts struct {
	out     string
	url     string
	timeout time.Duration
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the warranty report to PDF",
	Long: `Print the warranty report to PDF with headless Chromium.

Without --url a temporary local server renders the report from the data
directory; with --url the page of a running "invcal serve" is printed.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	f := reportCmd.Flags()
	f.StringVarP(&reportOpts.out, "out", "o", "", "Output PDF path (default <data_dir>/warranties.pdf)")
	f.StringVar(&reportOpts.url, "url", "", "Report page of a running server")
	f.DurationVar(&reportOpts.timeout, "timeout", report.DefaultTimeoutSec*time.Second, "Timeout for the whole print")
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	out := reportOpts.out
	if out == "" {
		out = filepath.Join(cfg.DataDir, "warranties.pdf")
	}

	opts := report.PDFOptions{
		URL:        reportOpts.url,
		OutputPath: out,
		Timeout:    reportOpts.timeout,
		ExecPath:   cfg.ChromiumPath,
	}
	if cfg.BasicAuth != nil {
		opts.Username, opts.Password = cfg.BasicAuth.Username, cfg.BasicAuth.Password
	}

	if opts.URL == "" {
		url, shutdown, err := serveLocalReport(cfg)
		if err != nil {
			return err
		}
		defer shutdown()
		opts.URL = url
	}

	if err := report.ExportPDF(ctx, opts); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
	return nil
}

// serveLocalReport starts the API on a random loopback port and returns the
// report URL and a shutdown func.
func serveLocalReport(cfg *config.Config) (string, func(), error) {
	db, err := store.Open(cfg.DataDir)
	if err != nil {
		return "", nil, err
	}
	db.SetLocation(cfg.Location())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		db.Close()
		return "", nil, err
	}
	srv := &http.Server{
		Handler:           web.NewServer(cfg, web.Deps{Store: db}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("report server failed", err)
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		db.Close()
	}
	return "http://" + ln.Addr().String() + "/report/warranties", shutdown, nil
}
