package report

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	appLog "invcal/internal/log"
)

const DefaultTimeoutSec = 30

// PDFOptions defines parameters for printing a report page to PDF.
type PDFOptions struct {
	// URL of the report page, e.g. "http://127.0.0.1:8080/report/warranties".
	URL string

	// OutputPath is where the PDF is written.
	OutputPath string

	// Timeout bounds the whole print. If zero, DefaultTimeoutSec is used.
	Timeout time.Duration

	// ExecPath overrides the Chromium binary chromedp looks up.
	ExecPath string

	// Username and Password are sent as basic auth when Username is set.
	Username string
	Password string
}

// ExportPDF launches headless Chromium, loads opts.URL, waits for the page
// root to expose data-ready="true", and prints the page to opts.OutputPath.
func ExportPDF(parentCtx context.Context, opts PDFOptions) error {
	if opts.URL == "" {
		return fmt.Errorf("report: URL is required")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("report: OutputPath is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	allocCtx := parentCtx
	if opts.ExecPath != "" {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.ExecPath(opts.ExecPath))
		var allocCancel context.CancelFunc
		allocCtx, allocCancel = chromedp.NewExecAllocator(parentCtx, allocOpts...)
		defer allocCancel()
	}

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var pdf []byte
	tasks := chromedp.Tasks{}
	if opts.Username != "" {
		tasks = append(tasks, network.Enable(), network.SetExtraHTTPHeaders(network.Headers{
			"Authorization": basicAuthHeader(opts.Username, opts.Password),
		}))
	}
	tasks = append(tasks,
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("report: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, pdf, 0o644); err != nil {
		return fmt.Errorf("report: failed to write PDF: %w", err)
	}

	appLog.Info("report exported", "path", opts.OutputPath, "bytes", len(pdf))
	return nil
}

func basicAuthHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}
