// Package routing implements the document_routing step: it emits a
// document.routed event carrying the routing config and always succeeds.
package routing

import (
	"context"
	"errors"
	"log/slog"

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
	return models.StepRouting
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"destination": map[string]any{"type": "string", "minLength": 1},
			"department":  map[string]any{"type": "string"},
			"priority":    map[string]any{"type": "string"},
		},
		"required": []string{"destination"},
	}
}

func (f *Factory) Create(config *models.StepConfig) (protocol.StepHandler, error) {
	if config == nil || config.Routing == nil {
		return nil, errors.New("document_routing step requires a routing config")
	}

	return &Handler{config: config.Routing}, nil
}

type Handler struct {
	config *models.RoutingConfig
}

func (h *Handler) Execute(_ context.Context, sc protocol.StepContext, logger *slog.Logger) (*protocol.StepOutcome, error) {
	logger.Info("Document routing requested",
		"document_id", sc.Instance.DocumentID,
		"destination", h.config.Destination)

	event := events.DocumentRouted{
		BaseEvent:  events.NewBaseEvent(events.DocumentRoutedEvent, sc.Instance),
		StepID:     sc.Step.ID,
		DocumentID: sc.Instance.DocumentID,
		Routing:    h.config,
	}

	return &protocol.StepOutcome{
		Output: map[string]any{
			"destination": h.config.Destination,
		},
		Events: []eventbus.Event{event},
	}, nil
}
