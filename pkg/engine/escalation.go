package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/docuflow/docuflow/pkg/events"
	"github.com/docuflow/docuflow/pkg/models"
)

const escalationLevelKey = "escalation_level:"

// SweepEscalations evaluates escalation ladders across all active instances.
// The engine keeps no timers of its own; a caller (typically the sweeper
// binary) invokes this periodically and escalations fire on the next sweep
// after their timeout elapses. Returns the number of escalations raised.
func (e *Engine) SweepEscalations(ctx context.Context) (int, error) {
	instances, err := e.persistence.InstanceRepository().ActiveInstances(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active instances: %w", err)
	}

	raised := 0

	for _, snapshot := range instances {
		if snapshot.Status != models.InstanceInProgress {
			continue
		}

		count, err := e.sweepInstance(ctx, snapshot.ID)
		if err != nil {
			e.logger.Error("Escalation sweep failed for instance",
				"instance_id", snapshot.ID, "error", err)

			continue
		}

		raised += count
	}

	return raised, nil
}

// sweepInstance raises at most one escalation per escalation step: the
// highest ladder level whose timeout has elapsed and that has not been
// published before. The last raised level is tracked in the instance context
// so repeated sweeps stay idempotent.
func (e *Engine) sweepInstance(ctx context.Context, instanceID string) (int, error) {
	snapshot, err := e.persistence.InstanceRepository().InstanceByID(ctx, instanceID)
	if err != nil {
		return 0, err
	}

	definition, err := e.persistence.DefinitionRepository().DefinitionByID(ctx, snapshot.WorkflowID)
	if err != nil {
		return 0, err
	}

	type raisedEscalation struct {
		stepID string
		level  models.EscalationLevel
	}

	var pending []raisedEscalation

	elapsed := time.Since(snapshot.StartedAt)

	for _, step := range definition.Steps {
		if step.Type != models.StepEscalation || step.Config.Escalation == nil {
			continue
		}

		if snapshot.StepCompleted(step.ID) || snapshot.StepSkipped(step.ID) {
			continue
		}

		level := step.Config.Escalation.Ladder.ActiveLevel(elapsed)
		if level == nil {
			continue
		}

		if lastRaisedLevel(snapshot, step.ID) >= level.Level {
			continue
		}

		pending = append(pending, raisedEscalation{stepID: step.ID, level: *level})
	}

	if len(pending) == 0 {
		return 0, nil
	}

	updated, err := e.persistence.InstanceRepository().UpdateInstance(ctx, instanceID, func(instance *models.WorkflowInstance) error {
		if instance.Status != models.InstanceInProgress {
			return fmt.Errorf("instance left in_progress during sweep: %w", ErrTerminalState)
		}

		for _, esc := range pending {
			if lastRaisedLevel(instance, esc.stepID) >= esc.level.Level {
				continue
			}

			if instance.Context.Variables == nil {
				instance.Context.Variables = make(map[string]any)
			}

			instance.Context.Variables[escalationLevelKey+esc.stepID] = esc.level.Level

			if esc.level.Assignee != "" {
				if instance.Context.Assignments == nil {
					instance.Context.Assignments = make(map[string]string)
				}

				instance.Context.Assignments[esc.stepID] = esc.level.Assignee
			}

			instance.AppendHistory(models.HistoryEntry{
				StepID: esc.stepID,
				Action: "escalated",
				Status: models.HistoryCompleted,
				Notes:  fmt.Sprintf("escalated to level %d (%s)", esc.level.Level, esc.level.Assignee),
			})
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, esc := range pending {
		e.logger.Info("Instance escalated",
			"instance_id", instanceID,
			"step_id", esc.stepID,
			"level", esc.level.Level,
			"assignee", esc.level.Assignee)

		e.publish(ctx, events.InstanceEscalated{
			BaseEvent: events.NewBaseEvent(events.InstanceEscalatedEvent, updated),
			StepID:    esc.stepID,
			Level:     esc.level.Level,
			Assignee:  esc.level.Assignee,
			Elapsed:   elapsed.Hours(),
		})
	}

	return len(pending), nil
}

func lastRaisedLevel(instance *models.WorkflowInstance, stepID string) int {
	raw, ok := instance.Context.Variables[escalationLevelKey+stepID]
	if !ok {
		return 0
	}

	// Variables round-trip through JSON, so the stored level may come back
	// as a float64.
	switch v := raw.(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
