// Package persistence provides the data storage abstraction for workflow
// definitions and instances.
package persistence

import (
	"context"

	"github.com/docuflow/docuflow/pkg/models"
)

// DefinitionFilter narrows List results. Zero value means no filtering.
type DefinitionFilter struct {
	Category   models.WorkflowCategory
	ActiveOnly bool
}

type DefinitionRepository interface {
	Definitions(ctx context.Context, filter DefinitionFilter) ([]*models.WorkflowDefinition, error)
	DefinitionByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	SaveDefinition(ctx context.Context, definition *models.WorkflowDefinition) error
	DeleteDefinition(ctx context.Context, id string) error
}

// InstanceRepository stores workflow instances. UpdateInstance is the
// engine's per-instance serialization point: implementations must guarantee
// that at most one mutation closure runs for a given instance id at a time,
// while different instances proceed in parallel.
type InstanceRepository interface {
	InstanceByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	CreateInstance(ctx context.Context, instance *models.WorkflowInstance) error
	UpdateInstance(ctx context.Context, id string, mutate func(*models.WorkflowInstance) error) (*models.WorkflowInstance, error)
	ActiveInstances(ctx context.Context) ([]*models.WorkflowInstance, error)
	InstancesByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowInstance, error)
}

type Persistence interface {
	DefinitionRepository() DefinitionRepository
	InstanceRepository() InstanceRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
