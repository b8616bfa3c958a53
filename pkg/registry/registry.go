// Package registry maps step types to their handler factories.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/docuflow/docuflow/pkg/models"
	"github.com/docuflow/docuflow/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[models.StepType]protocol.StepHandlerFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[models.StepType]protocol.StepHandlerFactory),
	}
}

func (r *Registry) Register(factory protocol.StepHandlerFactory) {
	r.factories[factory.Type()] = factory
}

func (r *Registry) CreateHandler(stepType models.StepType, config *models.StepConfig) (protocol.StepHandler, error) {
	factory, ok := r.factories[stepType]
	if !ok {
		return nil, fmt.Errorf("step type '%s' not registered", stepType)
	}

	return factory.Create(config)
}

// RegisteredTypes returns the step types this registry can dispatch.
func (r *Registry) RegisteredTypes() []models.StepType {
	types := make([]models.StepType, 0, len(r.factories))
	for stepType := range r.factories {
		types = append(types, stepType)
	}

	return types
}
