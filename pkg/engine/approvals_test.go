package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/docuflow/pkg/events"
	"github.com/docuflow/docuflow/pkg/models"
)

func approvalOnlyWorkflow(approvalType models.ApprovalType, approvers ...string) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:       "approval-only",
		Name:     "Approval only",
		Category: models.CategoryGeneral,
		IsActive: true,
		Steps: []*models.StepSpec{
			{
				ID:   "approve",
				Type: models.StepApproval,
				Config: models.StepConfig{
					Approval: &models.ApprovalConfig{ApprovalType: approvalType, Approvers: approvers},
				},
			},
		},
	}
}

func TestRecordApproval_MajorityQuorum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	definition := approvalOnlyWorkflow(models.ApprovalMajority, "alice", "bob", "carla")
	instance := env.mustStart(t, definition, models.DocumentEvent{DocumentID: "doc-1"})

	// 1 of 3: no quorum yet.
	updated, err := env.engine.RecordApproval(ctx, instance.ID, "approve", "alice", models.DecisionApproved, "", "")
	require.NoError(t, err)
	assert.False(t, updated.StepCompleted("approve"))
	require.Len(t, updated.Approvals, 1)

	// 2 of 3 is a majority: the step completes and the workflow finishes.
	updated, err = env.engine.RecordApproval(ctx, instance.ID, "approve", "bob", models.DecisionApproved, "", "")
	require.NoError(t, err)
	assert.True(t, updated.StepCompleted("approve"))
	assert.Equal(t, models.InstanceCompleted, updated.Status)
}

func TestRecordApproval_SequentialOrderEnforced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	definition := approvalOnlyWorkflow(models.ApprovalSequential, "alice", "bob")
	instance := env.mustStart(t, definition, models.DocumentEvent{DocumentID: "doc-1"})

	// Bob approving before alice does not advance the sequence.
	updated, err := env.engine.RecordApproval(ctx, instance.ID, "approve", "bob", models.DecisionApproved, "", "")
	require.NoError(t, err)
	assert.False(t, updated.StepCompleted("approve"))

	updated, err = env.engine.RecordApproval(ctx, instance.ID, "approve", "alice", models.DecisionApproved, "", "")
	require.NoError(t, err)
	assert.False(t, updated.StepCompleted("approve"))

	// Now bob's approval lands in order.
	updated, err = env.engine.RecordApproval(ctx, instance.ID, "approve", "bob", models.DecisionApproved, "", "")
	require.NoError(t, err)
	assert.True(t, updated.StepCompleted("approve"))
}

func TestRecordApproval_RejectionFailsInstance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	definition := approvalOnlyWorkflow(models.ApprovalParallel, "alice", "bob")
	instance := env.mustStart(t, definition, models.DocumentEvent{DocumentID: "doc-1"})

	// A rejection fails the instance even before any step has executed.
	assert.Equal(t, models.InstancePending, instance.Status)

	updated, err := env.engine.RecordApproval(ctx, instance.ID, "approve", "alice", models.DecisionRejected, "budget exceeded", "")
	require.NoError(t, err)

	assert.Equal(t, models.InstanceFailed, updated.Status)
	require.Len(t, updated.Approvals, 1)
	assert.Equal(t, models.DecisionRejected, updated.Approvals[0].Decision)

	failures := env.publisher.EventsOfType(events.InstanceFailedEvent)
	require.Len(t, failures, 1)

	failed := failures[0].(events.InstanceFailed)
	assert.Contains(t, failed.Reason, "budget exceeded")

	// Nothing further can be recorded against a failed instance.
	_, err = env.engine.RecordApproval(ctx, instance.ID, "approve", "bob", models.DecisionApproved, "", "")
	require.Error(t, err)
	assert.True(t, IsTerminalState(err))
}

func TestRecordApproval_DelegationReassignsStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	definition := approvalOnlyWorkflow(models.ApprovalSingle, "alice")
	instance := env.mustStart(t, definition, models.DocumentEvent{DocumentID: "doc-1"})

	updated, err := env.engine.RecordApproval(ctx, instance.ID, "approve", "alice", models.DecisionDelegated, "on leave", "dana")
	require.NoError(t, err)

	assert.Equal(t, "dana", updated.Context.Assignments["approve"])
	assert.False(t, updated.StepCompleted("approve"))
	assert.False(t, updated.Status.Terminal())

	// The delegate's approval satisfies the single quorum.
	updated, err = env.engine.RecordApproval(ctx, instance.ID, "approve", "dana", models.DecisionApproved, "", "")
	require.NoError(t, err)
	assert.True(t, updated.StepCompleted("approve"))
}

func TestRecordApproval_DelegateSatisfiesParallelQuorum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	definition := approvalOnlyWorkflow(models.ApprovalParallel, "alice", "bob")
	instance := env.mustStart(t, definition, models.DocumentEvent{DocumentID: "doc-1"})

	updated, err := env.engine.RecordApproval(ctx, instance.ID, "approve", "alice", models.DecisionApproved, "", "")
	require.NoError(t, err)
	assert.False(t, updated.StepCompleted("approve"))

	updated, err = env.engine.RecordApproval(ctx, instance.ID, "approve", "bob", models.DecisionDelegated, "on leave", "dana")
	require.NoError(t, err)
	assert.False(t, updated.StepCompleted("approve"))

	// Dana stands in for bob, so dana's approval completes the quorum.
	updated, err = env.engine.RecordApproval(ctx, instance.ID, "approve", "dana", models.DecisionApproved, "", "")
	require.NoError(t, err)
	assert.True(t, updated.StepCompleted("approve"))
	assert.Equal(t, models.InstanceCompleted, updated.Status)
}

func TestRecordApproval_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	definition := highValueApprovalWorkflow()
	instance := env.mustStart(t, definition, models.DocumentEvent{DocumentID: "doc-1"})

	// Delegation without a delegate is rejected.
	_, err := env.engine.RecordApproval(ctx, instance.ID, "approve", "alice", models.DecisionDelegated, "", "")
	require.Error(t, err)

	// Approval decisions only apply to approval steps.
	_, err = env.engine.RecordApproval(ctx, instance.ID, "validate", "alice", models.DecisionApproved, "", "")
	require.Error(t, err)

	// Unknown decision values are rejected.
	_, err = env.engine.RecordApproval(ctx, instance.ID, "approve", "alice", models.ApprovalDecision("maybe"), "", "")
	require.Error(t, err)
}

func TestRecordApproval_EmitsApprovalRecordedEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	definition := approvalOnlyWorkflow(models.ApprovalParallel, "alice", "bob")
	instance := env.mustStart(t, definition, models.DocumentEvent{DocumentID: "doc-1"})

	_, err := env.engine.RecordApproval(ctx, instance.ID, "approve", "alice", models.DecisionApproved, "", "")
	require.NoError(t, err)
	_, err = env.engine.RecordApproval(ctx, instance.ID, "approve", "bob", models.DecisionApproved, "", "")
	require.NoError(t, err)

	recorded := env.publisher.EventsOfType(events.ApprovalRecordedEvent)
	require.Len(t, recorded, 2)

	first := recorded[0].(events.ApprovalRecorded)
	assert.Equal(t, "alice", first.ApproverID)
	assert.Equal(t, models.DecisionApproved, first.Decision)
}
