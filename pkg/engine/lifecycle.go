package engine

import (
	"context"
	"fmt"

	"github.com/docuflow/docuflow/pkg/events"
	"github.com/docuflow/docuflow/pkg/models"
)

// transition moves the instance to a new status, appending exactly one
// history entry for the state change.
func (e *Engine) transition(instance *models.WorkflowInstance, to models.InstanceStatus, actorID, notes string) {
	from := instance.Status
	instance.Status = to

	instance.AppendHistory(models.HistoryEntry{
		Action:  "status_change",
		ActorID: actorID,
		Status:  models.HistoryCompleted,
		Notes:   fmt.Sprintf("%s -> %s: %s", from, to, notes),
	})
}

// PauseWorkflow suspends an in-progress instance. Paused instances execute
// no steps until resumed.
func (e *Engine) PauseWorkflow(ctx context.Context, instanceID, actorID string) (*models.WorkflowInstance, error) {
	updated, err := e.persistence.InstanceRepository().UpdateInstance(ctx, instanceID, func(instance *models.WorkflowInstance) error {
		if instance.Status.Terminal() {
			return fmt.Errorf("cannot pause instance %s: %w", instanceID, ErrTerminalState)
		}

		if instance.Status != models.InstanceInProgress {
			return fmt.Errorf("cannot pause instance %s in status %s", instanceID, instance.Status)
		}

		e.transition(instance, models.InstancePaused, actorID, "paused")

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.InstancePaused{
		BaseEvent: events.NewBaseEvent(events.InstancePausedEvent, updated),
	})

	return updated, nil
}

// ResumeWorkflow returns a paused instance to in_progress.
func (e *Engine) ResumeWorkflow(ctx context.Context, instanceID, actorID string) (*models.WorkflowInstance, error) {
	updated, err := e.persistence.InstanceRepository().UpdateInstance(ctx, instanceID, func(instance *models.WorkflowInstance) error {
		if instance.Status != models.InstancePaused {
			return fmt.Errorf("cannot resume instance %s in status %s: %w", instanceID, instance.Status, ErrNotPaused)
		}

		e.transition(instance, models.InstanceInProgress, actorID, "resumed")

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.InstanceResumed{
		BaseEvent: events.NewBaseEvent(events.InstanceResumedEvent, updated),
	})

	return updated, nil
}

// CancelWorkflow is a terminal transition applicable from any non-terminal
// state. It competes for the same per-instance serialization point as step
// execution, so cancelling concurrently with an in-flight step is safe.
func (e *Engine) CancelWorkflow(ctx context.Context, instanceID, actorID, reason string) (*models.WorkflowInstance, error) {
	updated, err := e.persistence.InstanceRepository().UpdateInstance(ctx, instanceID, func(instance *models.WorkflowInstance) error {
		if instance.Status.Terminal() {
			return fmt.Errorf("cannot cancel instance %s: %w", instanceID, ErrTerminalState)
		}

		e.transition(instance, models.InstanceCancelled, actorID, reason)

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.analytics.Record(updated)

	e.publish(ctx, events.InstanceCancelled{
		BaseEvent:   events.NewBaseEvent(events.InstanceCancelledEvent, updated),
		Reason:      reason,
		CancelledBy: actorID,
	})

	return updated, nil
}
