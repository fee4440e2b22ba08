package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/astrafabric/monitor/internal/database"
)

// WebhookPayload is the JSON body posted to webhook channels
type WebhookPayload struct {
	Alert     database.ActiveAlert `json:"alert"`
	Timestamp time.Time            `json:"timestamp"`
	Source    string               `json:"source"`
}

// WebhookSender posts alerts as JSON to a channel URL
type WebhookSender struct {
	httpClient *http.Client
	now        func() time.Time
}

// NewWebhookSender creates a webhook sender
func NewWebhookSender(client *http.Client) *WebhookSender {
	return &WebhookSender{httpClient: client, now: time.Now}
}

// Send implements Sender. Non-2xx responses are failures.
func (s *WebhookSender) Send(ctx context.Context, channel database.NotificationChannel, alert database.ActiveAlert) error {
	if channel.URL == "" {
		return errors.New("webhook channel has no url")
	}

	body, err := json.Marshal(WebhookPayload{
		Alert:     alert,
		Timestamp: s.now().UTC(),
		Source:    Source,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, channel.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
