package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/docuflow/docuflow/pkg/models"
	"github.com/docuflow/docuflow/pkg/persistence"
	"github.com/docuflow/docuflow/pkg/registry"
)

// ErrDefinitionNotFound is returned when a workflow definition is not found.
var ErrDefinitionNotFound = persistence.ErrDefinitionNotFound

// Catalog manages the lifecycle of workflow definitions. All writes pass
// through structural validation so the executor can assume dependency graphs
// are acyclic and step configs match their declared type.
type Catalog struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validator   *validator.Validate
}

// NewCatalog creates a new workflow catalog service.
func NewCatalog(persistence persistence.Persistence, registry *registry.Registry) *Catalog {
	return &Catalog{
		persistence: persistence,
		registry:    registry,
		validator:   validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (c *Catalog) HealthCheck(ctx context.Context) (string, bool) {
	if c.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := c.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create validates and stores a new workflow definition. The definition ID
// and version are assigned here; new definitions start active.
func (c *Catalog) Create(ctx context.Context, definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if definition == nil {
		return nil, ErrDefinitionNil
	}

	if err := c.Validate(definition); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	definition.ID = uuid.New().String()
	definition.Version = 1
	definition.IsActive = true
	definition.CreatedAt = now
	definition.UpdatedAt = now

	if err := c.persistence.DefinitionRepository().SaveDefinition(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to save workflow definition: %w", err)
	}

	return definition, nil
}

// Update replaces an existing definition after validation and bumps its
// version. Running instances keep executing against the version they were
// triggered with only if the caller stages changes in a new definition;
// in-place updates apply to subsequent step executions.
func (c *Catalog) Update(ctx context.Context, id string, definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if definition == nil {
		return nil, ErrDefinitionNil
	}

	existing, err := c.persistence.DefinitionRepository().DefinitionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.Validate(definition); err != nil {
		return nil, err
	}

	definition.ID = existing.ID
	definition.Version = existing.Version + 1
	definition.CreatedAt = existing.CreatedAt
	definition.UpdatedAt = time.Now().UTC()

	if err := c.persistence.DefinitionRepository().SaveDefinition(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to update workflow definition: %w", err)
	}

	return definition, nil
}

// Get retrieves a single workflow definition by ID.
func (c *Catalog) Get(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return c.persistence.DefinitionRepository().DefinitionByID(ctx, id)
}

// List retrieves workflow definitions, optionally filtered by category and
// active flag.
func (c *Catalog) List(ctx context.Context, filter persistence.DefinitionFilter) ([]*models.WorkflowDefinition, error) {
	definitions, err := c.persistence.DefinitionRepository().Definitions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow definitions: %w", err)
	}

	return definitions, nil
}

// Deactivate marks a definition inactive so it stops matching document
// events. Existing instances are unaffected.
func (c *Catalog) Deactivate(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	definition, err := c.persistence.DefinitionRepository().DefinitionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	definition.IsActive = false
	definition.UpdatedAt = time.Now().UTC()

	if err := c.persistence.DefinitionRepository().SaveDefinition(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to deactivate workflow definition: %w", err)
	}

	return definition, nil
}

// Delete removes a workflow definition. Definitions with active instances
// cannot be deleted; deactivate them instead.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if _, err := c.persistence.DefinitionRepository().DefinitionByID(ctx, id); err != nil {
		return err
	}

	instances, err := c.persistence.InstanceRepository().InstancesByWorkflow(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check instances for workflow %s: %w", id, err)
	}

	for _, instance := range instances {
		if !instance.Status.Terminal() {
			return NewValidationError(
				"Delete",
				"DEFINITION_IN_USE",
				fmt.Sprintf("workflow %s has active instance %s", id, instance.ID),
				ErrDefinitionInUse,
			)
		}
	}

	return c.persistence.DefinitionRepository().DeleteDefinition(ctx, id)
}

// Validate runs structural validation on a workflow definition: struct tags,
// step configuration schemas, and the dependency graph.
func (c *Catalog) Validate(definition *models.WorkflowDefinition) error {
	if definition == nil {
		return ErrDefinitionNil
	}

	if err := c.validator.Struct(definition); err != nil {
		return NewValidationError("Validate", "INVALID_DEFINITION", err.Error(), ErrInvalidRequest)
	}

	if len(definition.Steps) == 0 {
		return ErrStepsRequired
	}

	if err := c.validateSteps(definition); err != nil {
		return err
	}

	return c.validateDependencies(definition)
}

func (c *Catalog) validateSteps(definition *models.WorkflowDefinition) error {
	seen := make(map[string]struct{}, len(definition.Steps))

	for _, step := range definition.Steps {
		if _, dup := seen[step.ID]; dup {
			return NewValidationError(
				"validateSteps",
				"DUPLICATE_STEP_ID",
				fmt.Sprintf("step id '%s' appears more than once", step.ID),
				ErrDuplicateStepID,
			)
		}

		seen[step.ID] = struct{}{}

		if !slices.Contains(c.registry.RegisteredTypes(), step.Type) {
			return NewValidationError(
				"validateSteps",
				"UNKNOWN_STEP_TYPE",
				fmt.Sprintf("step '%s' has unknown type '%s'", step.ID, step.Type),
				ErrUnknownStepType,
			)
		}

		if err := c.registry.ValidateStepConfig(step); err != nil {
			return NewValidationError(
				"validateSteps",
				"INVALID_STEP_CONFIG",
				fmt.Sprintf("step '%s': %v", step.ID, err),
				ErrInvalidStepConfig,
			)
		}
	}

	return nil
}

// validateDependencies rejects references to unknown steps, self references,
// and cycles. Cycle detection is a three-color depth-first search over the
// dependency edges.
func (c *Catalog) validateDependencies(definition *models.WorkflowDefinition) error {
	steps := make(map[string]*models.StepSpec, len(definition.Steps))
	for _, step := range definition.Steps {
		steps[step.ID] = step
	}

	for _, step := range definition.Steps {
		for _, dep := range step.Dependencies {
			if dep == step.ID {
				return NewValidationError(
					"validateDependencies",
					"SELF_DEPENDENCY",
					fmt.Sprintf("step '%s' depends on itself", step.ID),
					ErrSelfDependency,
				)
			}

			if _, ok := steps[dep]; !ok {
				return NewValidationError(
					"validateDependencies",
					"UNKNOWN_DEPENDENCY",
					fmt.Sprintf("step '%s' depends on unknown step '%s'", step.ID, dep),
					ErrUnknownDependency,
				)
			}
		}
	}

	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // fully explored
	)

	colors := make(map[string]int, len(steps))

	var visit func(id string) bool

	visit = func(id string) bool {
		colors[id] = gray

		for _, dep := range steps[id].Dependencies {
			switch colors[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}

		colors[id] = black

		return false
	}

	for _, step := range definition.Steps {
		if colors[step.ID] == white && visit(step.ID) {
			return NewValidationError(
				"validateDependencies",
				"DEPENDENCY_CYCLE",
				fmt.Sprintf("dependency cycle involving step '%s'", step.ID),
				ErrDependencyCycle,
			)
		}
	}

	return nil
}
