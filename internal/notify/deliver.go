package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	appLog "invcal/internal/log"
)

// Deliverer sends one due notification somewhere.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// LogDeliverer writes notifications to the application log.
type LogDeliverer struct{}

func (LogDeliverer) Deliver(_ context.Context, n Notification) error {
	appLog.Info("notification",
		"kind", n.Kind,
		"title", n.Title,
		"body", n.Body,
		"due", n.Due.DateString(),
		"ref", n.RefID,
	)
	return nil
}

// WebhookDeliverer POSTs each notification as JSON.
type WebhookDeliverer struct {
	url    string
	client *http.Client
}

func NewWebhookDeliverer(url string, timeout time.Duration) *WebhookDeliverer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookDeliverer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookDeliverer) Deliver(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: %s", resp.Status)
	}
	return nil
}
