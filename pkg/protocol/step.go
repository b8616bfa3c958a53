// Package protocol defines the contracts between the engine and pluggable
// step handlers and external collaborators.
package protocol

import (
	"context"
	"log/slog"

	"github.com/docuflow/docuflow/pkg/eventbus"
	"github.com/docuflow/docuflow/pkg/models"
)

// StepContext is the snapshot a handler executes against. Handlers must not
// mutate the instance; all state changes go through the executor.
type StepContext struct {
	Instance   *models.WorkflowInstance
	Definition *models.WorkflowDefinition
	Step       *models.StepSpec
	ActorID    string
}

// StepOutcome is a handler's result. Pending means the step suspends
// awaiting an external decision (approval steps only); Events are side-effect
// requests the executor publishes after the instance mutation commits.
type StepOutcome struct {
	Pending bool
	Output  map[string]any
	Events  []eventbus.Event
}

// StepHandler executes one typed step behavior. A returned error means the
// step itself failed and drives the instance through its onFailure actions.
type StepHandler interface {
	Execute(ctx context.Context, sc StepContext, logger *slog.Logger) (*StepOutcome, error)
}

// StepHandlerFactory builds handlers for one step type from its typed config.
type StepHandlerFactory interface {
	Create(config *models.StepConfig) (StepHandler, error)
	Type() models.StepType
	Schema() map[string]any
}
