package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscalationLadder_ActiveLevel(t *testing.T) {
	ladder := EscalationLadder{
		{Level: 1, TimeoutHours: 24, Assignee: "supervisor"},
		{Level: 2, TimeoutHours: 48, Assignee: "department-head"},
		{Level: 3, TimeoutHours: 72, Assignee: "compliance-officer"},
	}

	tests := []struct {
		name      string
		elapsed   time.Duration
		wantLevel int
	}{
		{name: "before first threshold", elapsed: 23 * time.Hour, wantLevel: 0},
		{name: "first threshold reached", elapsed: 24 * time.Hour, wantLevel: 1},
		{name: "between first and second", elapsed: 36 * time.Hour, wantLevel: 1},
		{name: "second threshold reached", elapsed: 48 * time.Hour, wantLevel: 2},
		{name: "well past the top", elapsed: 100 * time.Hour, wantLevel: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := ladder.ActiveLevel(tt.elapsed)

			if tt.wantLevel == 0 {
				assert.Nil(t, level)

				return
			}

			require.NotNil(t, level)
			assert.Equal(t, tt.wantLevel, level.Level)
		})
	}
}

func TestEscalationLadder_ActiveLevel_SkipsIntermediateLevels(t *testing.T) {
	// A sweep that runs long after several thresholds expired must report the
	// highest exceeded level, not replay every rung.
	ladder := EscalationLadder{
		{Level: 1, TimeoutHours: 4},
		{Level: 2, TimeoutHours: 8},
		{Level: 3, TimeoutHours: 12, Assignee: "vp"},
	}

	level := ladder.ActiveLevel(13 * time.Hour)

	require.NotNil(t, level)
	assert.Equal(t, 3, level.Level)
	assert.Equal(t, "vp", level.Assignee)
}

func TestEscalationLadder_ActiveLevel_UnorderedLadder(t *testing.T) {
	ladder := EscalationLadder{
		{Level: 3, TimeoutHours: 72},
		{Level: 1, TimeoutHours: 24},
		{Level: 2, TimeoutHours: 48},
	}

	level := ladder.ActiveLevel(50 * time.Hour)

	require.NotNil(t, level)
	assert.Equal(t, 2, level.Level)
}

func TestStepSpec_ResolveAssignee(t *testing.T) {
	tests := []struct {
		name     string
		step     StepSpec
		instance WorkflowInstance
		want     string
	}{
		{
			name: "direct user assignment",
			step: StepSpec{
				ID:         "review",
				AssignedTo: &Assignment{Kind: AssignUser, Target: "alice"},
			},
			want: "alice",
		},
		{
			name: "delegation overrides configured assignee",
			step: StepSpec{
				ID:         "review",
				AssignedTo: &Assignment{Kind: AssignUser, Target: "alice"},
			},
			instance: WorkflowInstance{
				Context: InstanceContext{Assignments: map[string]string{"review": "bob"}},
			},
			want: "bob",
		},
		{
			name: "auto resolves from context",
			step: StepSpec{
				ID:         "review",
				AssignedTo: &Assignment{Kind: AssignAuto, Fallback: "ops-team"},
			},
			instance: WorkflowInstance{
				Context: InstanceContext{Variables: map[string]any{"default_assignee": "carla"}},
			},
			want: "carla",
		},
		{
			name: "auto falls back when context empty",
			step: StepSpec{
				ID:         "review",
				AssignedTo: &Assignment{Kind: AssignAuto, Fallback: "ops-team"},
			},
			want: "ops-team",
		},
		{
			name: "no assignment",
			step: StepSpec{ID: "review"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.step.ResolveAssignee(&tt.instance))
		})
	}
}

func TestStepConfig_ForType(t *testing.T) {
	config := StepConfig{Approval: &ApprovalConfig{Approvers: []string{"alice"}}}

	assert.True(t, config.ForType(StepApproval))
	assert.False(t, config.ForType(StepNotification))
	assert.False(t, config.ForType(StepType("bogus")))
}
