package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/docuflow/docuflow/pkg/events"
	"github.com/docuflow/docuflow/pkg/models"
)

// RecordApproval registers an approver's decision against a pending approval
// step. Approval resumes step execution under the approver's identity;
// rejection is a normal terminal outcome, not an error; delegation reassigns
// the step without changing instance status.
func (e *Engine) RecordApproval(
	ctx context.Context,
	instanceID, stepID, approverID string,
	decision models.ApprovalDecision,
	comments, delegatedTo string,
) (*models.WorkflowInstance, error) {
	logger := e.logger.With("instance_id", instanceID, "step_id", stepID, "approver_id", approverID)

	snapshot, err := e.persistence.InstanceRepository().InstanceByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	definition, err := e.persistence.DefinitionRepository().DefinitionByID(ctx, snapshot.WorkflowID)
	if err != nil {
		return nil, err
	}

	step, found := definition.Step(stepID)
	if !found {
		return nil, &StepError{InstanceID: instanceID, StepID: stepID, Err: ErrStepNotFound}
	}

	if step.Type != models.StepApproval {
		return nil, &StepError{
			InstanceID: instanceID,
			StepID:     stepID,
			Err:        fmt.Errorf("step is of type %s, not approval", step.Type),
		}
	}

	switch decision {
	case models.DecisionApproved, models.DecisionRejected, models.DecisionDelegated:
	default:
		return nil, fmt.Errorf("invalid approval decision '%s'", decision)
	}

	if decision == models.DecisionDelegated && delegatedTo == "" {
		return nil, fmt.Errorf("delegation requires a delegate")
	}

	var rejected bool

	updated, err := e.persistence.InstanceRepository().UpdateInstance(ctx, instanceID, func(instance *models.WorkflowInstance) error {
		if instance.Status.Terminal() {
			return fmt.Errorf("cannot record approval for instance %s: %w", instanceID, ErrTerminalState)
		}

		instance.Approvals = append(instance.Approvals, models.ApprovalRecord{
			StepID:      stepID,
			ApproverID:  approverID,
			Decision:    decision,
			Timestamp:   time.Now().UTC(),
			Comments:    comments,
			DelegatedTo: delegatedTo,
		})

		switch decision {
		case models.DecisionDelegated:
			if instance.Context.Assignments == nil {
				instance.Context.Assignments = make(map[string]string)
			}

			instance.Context.Assignments[stepID] = delegatedTo

		case models.DecisionRejected:
			instance.AppendHistory(models.HistoryEntry{
				StepID:  stepID,
				Action:  "approval_rejected",
				ActorID: approverID,
				Status:  models.HistoryFailed,
				Notes:   comments,
			})
			e.transition(instance, models.InstanceFailed, approverID, "approval rejected for step "+stepID)
			rejected = true
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.ApprovalRecorded{
		BaseEvent:  events.NewBaseEvent(events.ApprovalRecordedEvent, updated),
		StepID:     stepID,
		ApproverID: approverID,
		Decision:   decision,
	})

	if rejected {
		logger.Info("Approval rejected, instance failed")
		e.analytics.Record(updated)
		e.publish(ctx, events.InstanceFailed{
			BaseEvent: events.NewBaseEvent(events.InstanceFailedEvent, updated),
			StepID:    stepID,
			Reason:    "approval rejected: " + comments,
		})

		return updated, nil
	}

	if decision == models.DecisionDelegated {
		logger.Info("Approval delegated", "delegated_to", delegatedTo)

		return updated, nil
	}

	// Approved: resume step execution under the approver's identity. The
	// approval handler re-evaluates the quorum rule and either completes the
	// step or leaves it pending for the remaining approvers.
	return e.ExecuteStep(ctx, instanceID, stepID, approverID)
}
