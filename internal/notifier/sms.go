package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/astrafabric/monitor/internal/database"
	"github.com/astrafabric/monitor/internal/utils"
)

const twilioBaseURL = "https://api.twilio.com"

// SMSSender delivers alerts through the Twilio Messages API
type SMSSender struct {
	cfg        SMSConfig
	httpClient *http.Client
}

// NewSMSSender creates a Twilio sender
func NewSMSSender(cfg SMSConfig, client *http.Client) *SMSSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = twilioBaseURL
	}
	return &SMSSender{cfg: cfg, httpClient: client}
}

// Send implements Sender
func (s *SMSSender) Send(ctx context.Context, channel database.NotificationChannel, alert database.ActiveAlert) error {
	if !s.cfg.Configured() {
		return ErrNotConfigured
	}
	if channel.Phone == "" {
		return errors.New("sms channel has no phone number")
	}

	form := url.Values{}
	form.Set("To", channel.Phone)
	form.Set("From", s.cfg.From)
	form.Set("Body", SMSBody(alert))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(s.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("twilio returned status %d: %s", resp.StatusCode, utils.TruncateText(string(body), 200))
	}
	return nil
}
