package dispatcher

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/docuflow/docuflow/pkg/events"
	"github.com/docuflow/docuflow/pkg/mocks"
	"github.com/docuflow/docuflow/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDispatcher(bus *mocks.MockEventBus) *Dispatcher {
	return NewDispatcher("dispatcher-test", testLogger(), bus, noop.NewTracerProvider().Tracer("test"))
}

func testInstance() *models.WorkflowInstance {
	return &models.WorkflowInstance{
		ID:         "inst-1",
		WorkflowID: "wf-1",
		Status:     models.InstanceInProgress,
	}
}

func TestDispatcher_Run_RegistersAllHandlers(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Handle", mock.Anything, mock.Anything).Return(nil)
	bus.On("Subscribe", mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, testDispatcher(bus).Run(ctx))

	bus.AssertNumberOfCalls(t, "Handle", 5)
	bus.AssertNumberOfCalls(t, "Subscribe", 1)
}

func TestDispatcher_Run_SubscribeFailure(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Handle", mock.Anything, mock.Anything).Return(nil)
	bus.On("Subscribe", mock.Anything).Return(assert.AnError)

	err := testDispatcher(bus).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDispatcher_Handlers(t *testing.T) {
	d := testDispatcher(&mocks.MockEventBus{})
	ctx := context.Background()

	assert.NoError(t, d.handleNotification(ctx, &events.NotificationRequested{
		BaseEvent:  events.NewBaseEvent(events.NotificationRequestedEvent, testInstance()),
		StepID:     "notify",
		Recipients: []string{"ops"},
		Message:    "done",
	}))

	assert.NoError(t, d.handleTask(ctx, &events.TaskRequested{
		BaseEvent: events.NewBaseEvent(events.TaskRequestedEvent, testInstance()),
		StepID:    "task",
		Title:     "Review invoice",
		Assignee:  "alice",
	}))

	assert.NoError(t, d.handleEscalated(ctx, &events.InstanceEscalated{
		BaseEvent: events.NewBaseEvent(events.InstanceEscalatedEvent, testInstance()),
		StepID:    "approve",
		Level:     1,
		Assignee:  "supervisor",
	}))

	// A payload of the wrong type is a handler bug, surfaced as an error.
	assert.Error(t, d.handleNotification(ctx, &events.TaskRequested{}))
	assert.Error(t, d.handleTask(ctx, "bogus"))
}

func TestWebhookClient_Deliver(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewWebhookClient(testLogger())

	err := client.Deliver(context.Background(), &events.WebhookRequested{
		BaseEvent: events.NewBaseEvent(events.WebhookRequestedEvent, testInstance()),
		StepID:    "hook",
		URL:       server.URL,
		Params:    map[string]any{"kind": "completion"},
	})
	require.NoError(t, err)

	assert.Equal(t, "inst-1", received["instance_id"])
	assert.Equal(t, "hook", received["step_id"])
}

func TestWebhookClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewWebhookClient(testLogger())

	err := client.Deliver(context.Background(), &events.WebhookRequested{
		BaseEvent: events.NewBaseEvent(events.WebhookRequestedEvent, testInstance()),
		URL:       server.URL,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
	assert.Equal(t, int32(1), calls.Load())
}

func TestWebhookClient_RetriesServerError(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewWebhookClient(testLogger())

	err := client.Deliver(context.Background(), &events.WebhookRequested{
		BaseEvent: events.NewBaseEvent(events.WebhookRequestedEvent, testInstance()),
		URL:       server.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
