// Package task implements the task_creation step: it derives a task title
// and assignee from templates and config and emits a task.requested event.
package task

import (
	"context"
	"errors"
	"log/slog"
	"time"

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
	return models.StepTask
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title_template": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Task title. Supports templating against the instance context.",
			},
			"assignee":     map[string]any{"type": "string"},
			"due_in_hours": map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []string{"title_template"},
	}
}

func (f *Factory) Create(config *models.StepConfig) (protocol.StepHandler, error) {
	if config == nil || config.Task == nil {
		return nil, errors.New("task_creation step requires a task config")
	}

	return &Handler{config: config.Task}, nil
}

type Handler struct {
	config *models.TaskConfig
}

func (h *Handler) Execute(_ context.Context, sc protocol.StepContext, logger *slog.Logger) (*protocol.StepOutcome, error) {
	title, err := template.RenderWithInstance(h.config.TitleTemplate, sc.Instance)
	if err != nil {
		logger.Warn("Failed to render task title template, using raw title", "error", err)

		title = h.config.TitleTemplate
	}

	assignee := h.config.Assignee
	if assignee == "" {
		assignee = sc.Step.ResolveAssignee(sc.Instance)
	}

	var dueAt *time.Time

	if h.config.DueInHours > 0 {
		due := time.Now().UTC().Add(time.Duration(h.config.DueInHours) * time.Hour)
		dueAt = &due
	}

	logger.Info("Task requested", "title", title, "assignee", assignee)

	event := events.TaskRequested{
		BaseEvent:  events.NewBaseEvent(events.TaskRequestedEvent, sc.Instance),
		StepID:     sc.Step.ID,
		Title:      title,
		Assignee:   assignee,
		DocumentID: sc.Instance.DocumentID,
		DueAt:      dueAt,
	}

	return &protocol.StepOutcome{
		Output: map[string]any{
			"title":    title,
			"assignee": assignee,
		},
		Events: []eventbus.Event{event},
	}, nil
}
