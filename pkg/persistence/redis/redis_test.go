package redis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/docuflow/pkg/models"
)

// Empty context and metric maps disappear during the JSON round trip, so an
// instance loaded from redis must have them re-initialized before any
// mutation closure writes into them.
func TestRestoreContextMaps_AfterRoundTrip(t *testing.T) {
	fresh := &models.WorkflowInstance{
		ID:         "inst-1",
		WorkflowID: "wf-1",
		Status:     models.InstancePending,
		StartedAt:  time.Now().UTC(),
		Context: models.InstanceContext{
			Variables: map[string]any{},
		},
		Metrics: models.InstanceMetrics{
			StepDurations: map[string]time.Duration{},
		},
	}

	payload, err := json.Marshal(fresh)
	require.NoError(t, err)

	var loaded models.WorkflowInstance
	require.NoError(t, json.Unmarshal(payload, &loaded))

	// The round trip drops the empty maps.
	require.Nil(t, loaded.Metrics.StepDurations)
	require.Nil(t, loaded.Context.Variables)

	restoreContextMaps(&loaded)

	require.NotNil(t, loaded.Metrics.StepDurations)
	require.NotNil(t, loaded.Context.Variables)
	require.NotNil(t, loaded.Context.Assignments)
	require.NotNil(t, loaded.Context.Deadlines)

	// Writes the executor and escalation sweep perform must not panic.
	loaded.Metrics.StepDurations["validate"] = 3 * time.Second
	loaded.Context.Variables["escalation_level:approve"] = 1
	loaded.Context.Assignments["approve"] = "supervisor"

	assert.Equal(t, 3*time.Second, loaded.Metrics.StepDurations["validate"])
}

func TestRestoreContextMaps_KeepsExistingEntries(t *testing.T) {
	instance := &models.WorkflowInstance{
		Context: models.InstanceContext{
			Variables:   map[string]any{"region": "emea"},
			Assignments: map[string]string{"approve": "dana"},
		},
		Metrics: models.InstanceMetrics{
			StepDurations: map[string]time.Duration{"validate": time.Minute},
		},
	}

	restoreContextMaps(instance)

	assert.Equal(t, "emea", instance.Context.Variables["region"])
	assert.Equal(t, "dana", instance.Context.Assignments["approve"])
	assert.Equal(t, time.Minute, instance.Metrics.StepDurations["validate"])
}
