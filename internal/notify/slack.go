// Package notify delivers incident lifecycle events to external channels.
package notify

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/utils"
)

// maxMessageLen caps attachment text so one noisy alert can't flood a
// channel.
const maxMessageLen = 500

// SlackNotifier posts incident events to a Slack incoming webhook.
// Delivery is best effort: a failed post is logged and dropped, never
// retried, and never blocks incident processing.
type SlackNotifier struct {
	webhookURL string
	post       func(url string, msg *slack.WebhookMessage) error
}

// NewSlackNotifier creates a notifier for the given webhook URL.
// Returns nil when the URL is empty so callers can pass the result straight
// into the incident manager.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	if webhookURL == "" {
		return nil
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		post:       slack.PostWebhook,
	}
}

// IncidentOpened announces a newly opened incident.
func (n *SlackNotifier) IncidentOpened(integration *database.Integration, incident *database.AlertIncident) {
	msg := &slack.WebhookMessage{
		Attachments: []slack.Attachment{{
			Color: severityColor(incident.Severity),
			Title: fmt.Sprintf(":rotating_light: Incident opened: %s", integrationLabel(integration)),
			Text:  utils.TruncateText(incident.AlertMessage, maxMessageLen),
			Fields: []slack.AttachmentField{
				{Title: "Severity", Value: string(incident.Severity), Short: true},
				{Title: "Incident", Value: incident.UUID, Short: true},
				{Title: "Current value", Value: fmt.Sprintf("%g", incident.TriggerValue), Short: true},
				{Title: "Threshold", Value: fmt.Sprintf("%g", incident.ThresholdValue), Short: true},
			},
		}},
	}
	n.send(msg, incident.UUID)
}

// IncidentResolved announces a resolution, including how long the incident
// was open.
func (n *SlackNotifier) IncidentResolved(integration *database.Integration, incident *database.AlertIncident) {
	duration := "unknown"
	if incident.DurationMinutes != nil {
		duration = utils.FormatMinutes(*incident.DurationMinutes)
	}

	msg := &slack.WebhookMessage{
		Attachments: []slack.Attachment{{
			Color: "good",
			Title: fmt.Sprintf(":white_check_mark: Incident resolved: %s", integrationLabel(integration)),
			Text:  utils.TruncateText(incident.ResolutionNote, maxMessageLen),
			Fields: []slack.AttachmentField{
				{Title: "Incident", Value: incident.UUID, Short: true},
				{Title: "Duration", Value: duration, Short: true},
			},
		}},
	}
	n.send(msg, incident.UUID)
}

func (n *SlackNotifier) send(msg *slack.WebhookMessage, incidentUUID string) {
	if err := n.post(n.webhookURL, msg); err != nil {
		log.Warn().Err(err).Str("incident", incidentUUID).Msg("slack notification failed")
	}
}

func integrationLabel(integration *database.Integration) string {
	if integration.DisplayName != "" {
		return integration.DisplayName
	}
	return integration.Name
}

func severityColor(severity database.Severity) string {
	switch severity {
	case database.SeverityUrgent, database.SeverityCritical:
		return "danger"
	case database.SeverityWarning:
		return "warning"
	default:
		return "#439FE0"
	}
}
