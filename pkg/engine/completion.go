package engine

import (
	"time"

	"github.com/docuflow/docuflow/pkg/models"
)

// definitionSatisfied reports whether every step of the definition has a
// completed or skipped history entry, i.e. the instance is done.
func (e *Engine) definitionSatisfied(definition *models.WorkflowDefinition, instance *models.WorkflowInstance) bool {
	for _, step := range definition.Steps {
		if !instance.StepCompleted(step.ID) && !instance.StepSkipped(step.ID) {
			return false
		}
	}

	return true
}

// completeInstance finalizes a satisfied instance: terminal status,
// completion timestamp and total-duration metric.
func (e *Engine) completeInstance(instance *models.WorkflowInstance, actorID string) {
	now := time.Now().UTC()
	instance.CompletedAt = &now
	instance.CurrentStep = ""
	instance.Metrics.TotalDuration = now.Sub(instance.StartedAt)

	e.transition(instance, models.InstanceCompleted, actorID, "all steps completed")
}
