// Package notification implements the notification step. Delivery is an
// external concern: the handler renders the message and emits a
// notification.requested event, and always succeeds.
package notification

import (
	"context"
	"errors"
	"log/slog"

	"github.com/docuflow/docuflow/pkg/eventbus"
	"github.com/docuflow/docuflow/pkg/events"
	"github.com/docuflow/docuflow/pkg/models"
	"github.com/docuflow/docuflow/pkg/protocol"
	"github.com/docuflow/docuflow/pkg/template"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Type() models.StepType {
	return models.StepNotification
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recipients": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"message_template": map[string]any{
				"type":        "string",
				"description": "Message body. Supports templating against the instance context.",
			},
			"channel": map[string]any{
				"type": "string",
			},
		},
		"required": []string{"message_template"},
	}
}

func (f *Factory) Create(config *models.StepConfig) (protocol.StepHandler, error) {
	if config == nil || config.Notification == nil {
		return nil, errors.New("notification step requires a notification config")
	}

	return &Handler{config: config.Notification}, nil
}

type Handler struct {
	config *models.NotificationConfig
}

func (h *Handler) Execute(_ context.Context, sc protocol.StepContext, logger *slog.Logger) (*protocol.StepOutcome, error) {
	message, err := template.RenderWithInstance(h.config.MessageTemplate, sc.Instance)
	if err != nil {
		// A broken template falls back to the raw text rather than
		// blocking the workflow on a notification.
		logger.Warn("Failed to render notification template, using raw message", "error", err)

		message = h.config.MessageTemplate
	}

	recipients := h.config.Recipients
	if len(recipients) == 0 {
		if assignee := sc.Step.ResolveAssignee(sc.Instance); assignee != "" {
			recipients = []string{assignee}
		}
	}

	logger.Info("Notification requested", "recipients", recipients, "channel", h.config.Channel)

	event := events.NotificationRequested{
		BaseEvent:  events.NewBaseEvent(events.NotificationRequestedEvent, sc.Instance),
		StepID:     sc.Step.ID,
		Recipients: recipients,
		Message:    message,
		Channel:    h.config.Channel,
	}

	return &protocol.StepOutcome{
		Output: map[string]any{
			"recipients": recipients,
			"message":    message,
		},
		Events: []eventbus.Event{event},
	}, nil
}
