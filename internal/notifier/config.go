package notifier

import (
	"net/http"
	"time"
)

// Config carries the credentials of every transport
type Config struct {
	Email   EmailConfig
	SMS     SMSConfig
	Slack   SlackConfig
	Timeout time.Duration

	// HTTPClient is shared by the webhook, sms and slack senders
	HTTPClient *http.Client
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// EmailConfig configures SMTP delivery
type EmailConfig struct {
	From     string
	Password string
	Host     string
	Port     int
}

// Configured reports whether the sender account is set
func (c EmailConfig) Configured() bool {
	return c.From != "" && c.Host != ""
}

// SMSConfig configures Twilio delivery
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string

	// BaseURL overrides the Twilio API endpoint
	BaseURL string
}

// Configured reports whether the Twilio account is set
func (c SMSConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

// SlackConfig configures bot-token delivery for channels without a webhook URL
type SlackConfig struct {
	BotToken string

	// APIURL overrides the Slack Web API endpoint
	APIURL string
}
