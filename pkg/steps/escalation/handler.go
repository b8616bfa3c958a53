// Package escalation implements the escalation step. It evaluates the
// configured ladder against elapsed time since instance start and reports
// the active level; the step itself always succeeds.
package escalation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/docuflow/docuflow/pkg/eventbus"
	"github.com/docuflow/docuflow/pkg/events"
	"github.com/docuflow/docuflow/pkg/models"
	"github.com/docuflow/docuflow/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Type() models.StepType {
	return models.StepEscalation
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ladder": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"level":         map[string]any{"type": "integer", "minimum": 1},
						"timeout_hours": map[string]any{"type": "number", "minimum": 0},
						"assignee":      map[string]any{"type": "string"},
					},
					"required": []string{"level", "timeout_hours"},
				},
			},
		},
		"required": []string{"ladder"},
	}
}

func (f *Factory) Create(config *models.StepConfig) (protocol.StepHandler, error) {
	if config == nil || config.Escalation == nil {
		return nil, errors.New("escalation step requires an escalation config")
	}

	return &Handler{config: config.Escalation}, nil
}

type Handler struct {
	config *models.EscalationConfig
}

func (h *Handler) Execute(_ context.Context, sc protocol.StepContext, logger *slog.Logger) (*protocol.StepOutcome, error) {
	elapsed := time.Since(sc.Instance.StartedAt)
	level := h.config.Ladder.ActiveLevel(elapsed)

	if level == nil {
		logger.Info("No escalation threshold exceeded", "elapsed_hours", elapsed.Hours())

		return &protocol.StepOutcome{
			Output: map[string]any{"escalated": false},
		}, nil
	}

	logger.Info("Escalation level active",
		"level", level.Level,
		"assignee", level.Assignee,
		"elapsed_hours", elapsed.Hours())

	event := events.InstanceEscalated{
		BaseEvent: events.NewBaseEvent(events.InstanceEscalatedEvent, sc.Instance),
		StepID:    sc.Step.ID,
		Level:     level.Level,
		Assignee:  level.Assignee,
		Elapsed:   elapsed.Hours(),
	}

	return &protocol.StepOutcome{
		Output: map[string]any{
			"escalated": true,
			"level":     level.Level,
			"assignee":  level.Assignee,
		},
		Events: []eventbus.Event{event},
	}, nil
}
