package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/docuflow/pkg/channels/gochannel"
	"github.com/docuflow/docuflow/pkg/eventbus"
	"github.com/docuflow/docuflow/pkg/events"
	"github.com/docuflow/docuflow/pkg/models"
)

func testBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func testInstance() *models.WorkflowInstance {
	return &models.WorkflowInstance{
		ID:         "inst-1",
		WorkflowID: "wf-1",
		Status:     models.InstanceInProgress,
	}
}

func TestWatermillEventBus_RoundTrip(t *testing.T) {
	bus := testBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.NotificationRequested, 1)

	err := bus.Handle(events.NotificationRequestedEvent, func(_ context.Context, event any) error {
		notification, ok := event.(*events.NotificationRequested)
		if !ok {
			t.Errorf("unexpected event payload %T", event)

			return nil
		}

		received <- notification

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	sent := events.NotificationRequested{
		BaseEvent:  events.NewBaseEvent(events.NotificationRequestedEvent, testInstance()),
		StepID:     "notify",
		Recipients: []string{"legal-team"},
		Message:    "contract ready",
		Channel:    "email",
	}
	require.NoError(t, bus.Publish(ctx, "inst-1", sent))

	select {
	case notification := <-received:
		assert.Equal(t, "notify", notification.StepID)
		assert.Equal(t, []string{"legal-team"}, notification.Recipients)
		assert.Equal(t, "contract ready", notification.Message)
		assert.Equal(t, "inst-1", notification.InstanceID)
		assert.Equal(t, "wf-1", notification.WorkflowID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification event")
	}
}

// Events without a registered handler are acked and dropped, not redelivered.
func TestWatermillEventBus_UnhandledTypeIgnored(t *testing.T) {
	bus := testBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.InstanceCompleted, 1)

	err := bus.Handle(events.InstanceCompletedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.InstanceCompleted)

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "inst-1", events.InstancePaused{
		BaseEvent: events.NewBaseEvent(events.InstancePausedEvent, testInstance()),
	}))
	require.NoError(t, bus.Publish(ctx, "inst-1", events.InstanceCompleted{
		BaseEvent: events.NewBaseEvent(events.InstanceCompletedEvent, testInstance()),
		Duration:  time.Minute,
	}))

	select {
	case completed := <-received:
		assert.Equal(t, time.Minute, completed.Duration)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for completion event")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := testBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
