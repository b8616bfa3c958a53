// Package events defines the typed side-effect events the engine publishes
// for external collaborators (notification delivery, task systems, routing).
package events

import (
	"time"

	"github.com/docuflow/docuflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic is the bus topic all engine events are published on.
const Topic = "docuflow.events"

const EventKeyMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Instance lifecycle events.
	InstanceStartedEvent   EventType = "instance.started"
	InstanceCompletedEvent EventType = "instance.completed"
	InstanceFailedEvent    EventType = "instance.failed"
	InstanceCancelledEvent EventType = "instance.cancelled"
	InstancePausedEvent    EventType = "instance.paused"
	InstanceResumedEvent   EventType = "instance.resumed"

	// Side-effect requests for external collaborators.
	NotificationRequestedEvent EventType = "notification.requested"
	DocumentRoutedEvent        EventType = "document.routed"
	TaskRequestedEvent         EventType = "task.requested"
	WebhookRequestedEvent      EventType = "webhook.requested"
	InstanceEscalatedEvent     EventType = "instance.escalated"

	// Approval audit trail.
	ApprovalRecordedEvent EventType = "approval.recorded"
)

// BaseEvent carries the fields common to every engine event, including the
// full instance snapshot for observability.
type BaseEvent struct {
	ID         string                   `json:"id"`
	Type       EventType                `json:"type"`
	Timestamp  time.Time                `json:"timestamp"`
	InstanceID string                   `json:"instance_id"`
	WorkflowID string                   `json:"workflow_id"`
	Instance   *models.WorkflowInstance `json:"instance,omitempty"`
}

func NewBaseEvent(eventType EventType, instance *models.WorkflowInstance) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		InstanceID: instance.ID,
		WorkflowID: instance.WorkflowID,
		Instance:   instance,
	}
}

type InstanceStarted struct {
	BaseEvent

	DocumentID  string `json:"document_id"`
	TriggeredBy string `json:"triggered_by,omitempty"`
}

func (e InstanceStarted) GetType() EventType { return InstanceStartedEvent }

type InstanceCompleted struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e InstanceCompleted) GetType() EventType { return InstanceCompletedEvent }

type InstanceFailed struct {
	BaseEvent

	StepID string `json:"step_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (e InstanceFailed) GetType() EventType { return InstanceFailedEvent }

type InstanceCancelled struct {
	BaseEvent

	Reason      string `json:"reason,omitempty"`
	CancelledBy string `json:"cancelled_by,omitempty"`
}

func (e InstanceCancelled) GetType() EventType { return InstanceCancelledEvent }

type InstancePaused struct {
	BaseEvent
}

func (e InstancePaused) GetType() EventType { return InstancePausedEvent }

type InstanceResumed struct {
	BaseEvent
}

func (e InstanceResumed) GetType() EventType { return InstanceResumedEvent }

type NotificationRequested struct {
	BaseEvent

	StepID     string   `json:"step_id"`
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
	Channel    string   `json:"channel,omitempty"`
}

func (e NotificationRequested) GetType() EventType { return NotificationRequestedEvent }

type DocumentRouted struct {
	BaseEvent

	StepID     string                `json:"step_id"`
	DocumentID string                `json:"document_id"`
	Routing    *models.RoutingConfig `json:"routing"`
}

func (e DocumentRouted) GetType() EventType { return DocumentRoutedEvent }

type TaskRequested struct {
	BaseEvent

	StepID     string     `json:"step_id"`
	Title      string     `json:"title"`
	Assignee   string     `json:"assignee,omitempty"`
	DocumentID string     `json:"document_id"`
	DueAt      *time.Time `json:"due_at,omitempty"`
}

func (e TaskRequested) GetType() EventType { return TaskRequestedEvent }

type WebhookRequested struct {
	BaseEvent

	StepID string         `json:"step_id"`
	URL    string         `json:"url"`
	Params map[string]any `json:"params,omitempty"`
}

func (e WebhookRequested) GetType() EventType { return WebhookRequestedEvent }

type InstanceEscalated struct {
	BaseEvent

	StepID   string  `json:"step_id,omitempty"`
	Level    int     `json:"level"`
	Assignee string  `json:"assignee,omitempty"`
	Elapsed  float64 `json:"elapsed_hours"`
}

func (e InstanceEscalated) GetType() EventType { return InstanceEscalatedEvent }

type ApprovalRecorded struct {
	BaseEvent

	StepID     string                  `json:"step_id"`
	ApproverID string                  `json:"approver_id"`
	Decision   models.ApprovalDecision `json:"decision"`
}

func (e ApprovalRecorded) GetType() EventType { return ApprovalRecordedEvent }
