package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/astrafabric/monitor/internal/database"
)

const brand = "AstraFabric"

// Source identifies this service in webhook payloads
const Source = "astrafabric"

// timeLayout is used wherever an alert time is shown to a human
const timeLayout = "2006-01-02 15:04:05 MST"

// Subject returns the one-line alert summary used by email and Slack
func Subject(alert database.ActiveAlert) string {
	return fmt.Sprintf("%s Alert: %s %s %s", brand, alert.Metric, alert.Condition, alert.Threshold)
}

// SMSBody returns the text message body
func SMSBody(alert database.ActiveAlert) string {
	return fmt.Sprintf("%s on %s", Subject(alert), alert.ResourceID)
}

// EmailHTML renders the HTML body of an alert email
func EmailHTML(alert database.ActiveAlert) string {
	var sb strings.Builder
	sb.WriteString("<h2>Infrastructure Alert</h2>\n")
	writeField := func(label, value string) {
		sb.WriteString(fmt.Sprintf("<p><strong>%s:</strong> %s</p>\n", label, html.EscapeString(value)))
	}
	writeField("Resource", alert.ResourceID)
	writeField("Metric", alert.Metric)
	writeField("Value", alert.Value.String())
	writeField("Threshold", alert.Threshold.String())
	writeField("Condition", string(alert.Condition))
	writeField("Severity", string(alert.Severity))
	writeField("Time", formatTime(alert.Timestamp))
	if alert.Message != "" {
		writeField("Message", alert.Message)
	}
	return sb.String()
}

// SlackColor maps severity to an attachment color
func SlackColor(severity database.Severity) string {
	if severity == database.SeverityCritical {
		return "danger"
	}
	return "warning"
}

// SlackAttachment renders an alert as a Slack attachment
func SlackAttachment(alert database.ActiveAlert) slack.Attachment {
	return slack.Attachment{
		Color: SlackColor(alert.Severity),
		Fields: []slack.AttachmentField{
			{Title: "Resource", Value: alert.ResourceID, Short: true},
			{Title: "Metric", Value: alert.Metric, Short: true},
			{Title: "Value", Value: alert.Value.String(), Short: true},
			{Title: "Threshold", Value: alert.Threshold.String(), Short: true},
			{Title: "Severity", Value: string(alert.Severity), Short: true},
			{Title: "Time", Value: formatTime(alert.Timestamp), Short: false},
		},
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
