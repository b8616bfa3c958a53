package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceStatus_Terminal(t *testing.T) {
	assert.True(t, InstanceCompleted.Terminal())
	assert.True(t, InstanceFailed.Terminal())
	assert.True(t, InstanceCancelled.Terminal())

	assert.False(t, InstancePending.Terminal())
	assert.False(t, InstanceInProgress.Terminal())
	assert.False(t, InstancePaused.Terminal())
}

func TestWorkflowInstance_StepCompleted(t *testing.T) {
	instance := &WorkflowInstance{}

	instance.AppendHistory(HistoryEntry{StepID: "validate", Status: HistoryStarted})
	assert.False(t, instance.StepCompleted("validate"))

	instance.AppendHistory(HistoryEntry{StepID: "validate", Status: HistoryCompleted})
	assert.True(t, instance.StepCompleted("validate"))
	assert.False(t, instance.StepCompleted("approve"))
}

func TestWorkflowInstance_ApprovalsFor(t *testing.T) {
	instance := &WorkflowInstance{
		Approvals: []ApprovalRecord{
			{StepID: "approve", ApproverID: "alice", Decision: DecisionApproved},
			{StepID: "sign-off", ApproverID: "bob", Decision: DecisionRejected},
			{StepID: "approve", ApproverID: "carla", Decision: DecisionApproved},
		},
	}

	records := instance.ApprovalsFor("approve")

	require.Len(t, records, 2)
	assert.Equal(t, "alice", records[0].ApproverID)
	assert.Equal(t, "carla", records[1].ApproverID)
	assert.Empty(t, instance.ApprovalsFor("missing"))
}

func TestWorkflowInstance_Clone_IsIndependent(t *testing.T) {
	completedAt := time.Now().UTC()
	original := &WorkflowInstance{
		ID:          "inst-1",
		Status:      InstanceInProgress,
		CompletedAt: &completedAt,
		Context: InstanceContext{
			Variables:   map[string]any{"amount": 1200.0},
			Assignments: map[string]string{"approve": "alice"},
		},
		History: []HistoryEntry{{Action: "workflow_triggered", Status: HistoryCompleted}},
		Metrics: InstanceMetrics{StepDurations: map[string]time.Duration{"validate": time.Second}},
	}

	clone := original.Clone()

	clone.Context.Variables["amount"] = 99.0
	clone.Context.Assignments["approve"] = "bob"
	clone.Metrics.StepDurations["validate"] = time.Minute
	clone.AppendHistory(HistoryEntry{Action: "mutated"})

	assert.Equal(t, 1200.0, original.Context.Variables["amount"])
	assert.Equal(t, "alice", original.Context.Assignments["approve"])
	assert.Equal(t, time.Second, original.Metrics.StepDurations["validate"])
	assert.Len(t, original.History, 1)
}
