package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/estudioia/videos-api/internal/model"
)

// WebhookNotifier delivers job lifecycle callbacks
type WebhookNotifier interface {
	Notify(ctx context.Context, url string, event WebhookEvent) error
}

// WebhookEvent is the callback payload
type WebhookEvent struct {
	Event string          `json:"event"`
	At    time.Time       `json:"at"`
	Data  model.JobResult `json:"data"`
}

// EventFor maps a terminal status to its callback event name.
func EventFor(status model.JobStatus) string {
	return "render." + string(status)
}

// HTTPWebhookNotifier POSTs JSON events to the job's webhook URL
type HTTPWebhookNotifier struct {
	httpClient *http.Client
}

// NewHTTPWebhookNotifier creates a notifier with the given request timeout
func NewHTTPWebhookNotifier(timeout time.Duration) *HTTPWebhookNotifier {
	return &HTTPWebhookNotifier{httpClient: &http.Client{Timeout: timeout}}
}

func (n *HTTPWebhookNotifier) Notify(ctx context.Context, url string, event WebhookEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "estudioia-render-webhook/1.0")
	req.Header.Set("X-Webhook-Event", event.Event)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
