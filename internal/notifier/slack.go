package notifier

import (
	"context"
	"errors"
	"net/http"

	"github.com/slack-go/slack"

	"github.com/astrafabric/monitor/internal/database"
)

// SlackSender posts alerts to an incoming webhook, or to a channel through
// the Web API when the channel has no webhook URL and a bot token is set.
type SlackSender struct {
	httpClient *http.Client
	client     *slack.Client
}

// NewSlackSender creates a Slack sender
func NewSlackSender(cfg SlackConfig, httpClient *http.Client) *SlackSender {
	s := &SlackSender{httpClient: httpClient}
	if cfg.BotToken != "" {
		options := []slack.Option{slack.OptionHTTPClient(httpClient)}
		if cfg.APIURL != "" {
			options = append(options, slack.OptionAPIURL(cfg.APIURL))
		}
		s.client = slack.New(cfg.BotToken, options...)
	}
	return s
}

// Send implements Sender
func (s *SlackSender) Send(ctx context.Context, channel database.NotificationChannel, alert database.ActiveAlert) error {
	text := Subject(alert)
	attachment := SlackAttachment(alert)

	if channel.WebhookURL != "" {
		return slack.PostWebhookCustomHTTPContext(ctx, channel.WebhookURL, s.httpClient, &slack.WebhookMessage{
			Text:        text,
			Attachments: []slack.Attachment{attachment},
		})
	}

	if channel.Channel == "" {
		return errors.New("slack channel has neither webhook_url nor channel")
	}
	if s.client == nil {
		return ErrNotConfigured
	}
	_, _, err := s.client.PostMessageContext(ctx, channel.Channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionAttachments(attachment),
	)
	return err
}
