package notification

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/docuflow/pkg/events"
	"github.com/docuflow/docuflow/pkg/models"
	"github.com/docuflow/docuflow/pkg/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stepContext(config *models.NotificationConfig) protocol.StepContext {
	return protocol.StepContext{
		Instance: &models.WorkflowInstance{
			ID:         "inst-1",
			WorkflowID: "wf-1",
			Status:     models.InstanceInProgress,
			Context: models.InstanceContext{
				Document:    map[string]any{"title": "NDA renewal"},
				Assignments: map[string]string{"notify": "dana"},
			},
		},
		Step: &models.StepSpec{
			ID:     "notify",
			Type:   models.StepNotification,
			Config: models.StepConfig{Notification: config},
		},
	}
}

func TestHandler_RendersTemplate(t *testing.T) {
	config := &models.NotificationConfig{
		Recipients:      []string{"legal-team"},
		MessageTemplate: "Document {{ .document.title }} is ready",
		Channel:         "email",
	}

	handler := &Handler{config: config}

	outcome, err := handler.Execute(context.Background(), stepContext(config), testLogger())
	require.NoError(t, err)

	assert.False(t, outcome.Pending)
	assert.Equal(t, "Document NDA renewal is ready", outcome.Output["message"])

	require.Len(t, outcome.Events, 1)
	event, ok := outcome.Events[0].(events.NotificationRequested)
	require.True(t, ok)
	assert.Equal(t, []string{"legal-team"}, event.Recipients)
	assert.Equal(t, "Document NDA renewal is ready", event.Message)
	assert.Equal(t, "email", event.Channel)
}

// A template that fails to parse must not block the workflow: the raw text
// is sent instead.
func TestHandler_BrokenTemplateFallsBack(t *testing.T) {
	config := &models.NotificationConfig{
		Recipients:      []string{"ops"},
		MessageTemplate: "{{ .unclosed",
	}

	handler := &Handler{config: config}

	outcome, err := handler.Execute(context.Background(), stepContext(config), testLogger())
	require.NoError(t, err)
	assert.Equal(t, "{{ .unclosed", outcome.Output["message"])
}

func TestHandler_DefaultsRecipientToAssignee(t *testing.T) {
	config := &models.NotificationConfig{MessageTemplate: "ping"}

	handler := &Handler{config: config}

	outcome, err := handler.Execute(context.Background(), stepContext(config), testLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"dana"}, outcome.Output["recipients"])
}
