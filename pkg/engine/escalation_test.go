package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/docuflow/pkg/events"
	"github.com/docuflow/docuflow/pkg/models"
)

// escalatingWorkflow has a notification step to move the instance into
// in_progress and an escalation step whose first rung fires immediately.
func escalatingWorkflow() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:       "stale-review",
		Name:     "Stale review escalation",
		Category: models.CategoryCompliance,
		IsActive: true,
		Steps: []*models.StepSpec{
			{
				ID:   "notify",
				Type: models.StepNotification,
				Config: models.StepConfig{
					Notification: &models.NotificationConfig{
						Recipients:      []string{"reviewer"},
						MessageTemplate: "please review",
					},
				},
			},
			{
				ID:           "escalate",
				Type:         models.StepEscalation,
				Dependencies: []string{"notify"},
				Config: models.StepConfig{
					Escalation: &models.EscalationConfig{
						Ladder: models.EscalationLadder{
							{Level: 1, TimeoutHours: 0, Assignee: "supervisor"},
							{Level: 2, TimeoutHours: 1000, Assignee: "director"},
						},
					},
				},
			},
		},
	}
}

func TestSweepEscalations_RaisesAndStaysIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t, escalatingWorkflow(), models.DocumentEvent{DocumentID: "doc-1"})

	// Move the instance into in_progress; pending instances are not swept.
	raised, err := env.engine.SweepEscalations(ctx)
	require.NoError(t, err)
	assert.Zero(t, raised)

	_, err = env.engine.ExecuteStep(ctx, instance.ID, "notify", "system")
	require.NoError(t, err)

	raised, err = env.engine.SweepEscalations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, raised)

	updated, err := env.engine.Instance(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, "supervisor", updated.Context.Assignments["escalate"])

	escalations := env.publisher.EventsOfType(events.InstanceEscalatedEvent)
	require.Len(t, escalations, 1)

	escalated := escalations[0].(events.InstanceEscalated)
	assert.Equal(t, 1, escalated.Level)
	assert.Equal(t, "supervisor", escalated.Assignee)

	// A second sweep against the same elapsed level raises nothing new.
	raised, err = env.engine.SweepEscalations(ctx)
	require.NoError(t, err)
	assert.Zero(t, raised)
	assert.Len(t, env.publisher.EventsOfType(events.InstanceEscalatedEvent), 1)
}

func TestSweepEscalations_CompletedEscalationStepIgnored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t, escalatingWorkflow(), models.DocumentEvent{DocumentID: "doc-1"})

	_, err := env.engine.ExecuteStep(ctx, instance.ID, "notify", "system")
	require.NoError(t, err)

	// Executing the escalation step completes it; sweeps then skip it.
	_, err = env.engine.ExecuteStep(ctx, instance.ID, "escalate", "system")
	require.NoError(t, err)

	raised, err := env.engine.SweepEscalations(ctx)
	require.NoError(t, err)
	assert.Zero(t, raised)
}
