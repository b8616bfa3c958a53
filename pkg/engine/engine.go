package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docuflow/docuflow/pkg/eventbus"
	"github.com/docuflow/docuflow/pkg/events"
	"github.com/docuflow/docuflow/pkg/models"
	"github.com/docuflow/docuflow/pkg/persistence"
	"github.com/docuflow/docuflow/pkg/registry"
	"github.com/google/uuid"
)

// Engine is the in-process workflow orchestration facade. All instance
// mutations funnel through the store's per-instance serialization point;
// outbound events are published best-effort after each mutation commits.
type Engine struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	publisher   eventbus.EventPublisher
	matcher     *TriggerMatcher
	analytics   *Analytics
}

func NewEngine(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	publisher eventbus.EventPublisher,
) *Engine {
	return &Engine{
		logger:      logger.With("module", "engine"),
		persistence: persistence,
		registry:    registry,
		publisher:   publisher,
		matcher:     NewTriggerMatcher(logger),
		analytics:   NewAnalytics(),
	}
}

// TriggerWorkflow evaluates the event against every active definition and
// creates one pending instance per match. Returns the created instance ids.
func (e *Engine) TriggerWorkflow(ctx context.Context, event models.DocumentEvent) ([]string, error) {
	definitions, err := e.persistence.DefinitionRepository().Definitions(ctx, persistence.DefinitionFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active definitions: %w", err)
	}

	matched := e.matcher.MatchTriggers(event, definitions)

	instanceIDs := make([]string, 0, len(matched))

	for _, definition := range matched {
		instance, err := e.createInstance(ctx, definition, event)
		if err != nil {
			return instanceIDs, err
		}

		instanceIDs = append(instanceIDs, instance.ID)
	}

	return instanceIDs, nil
}

// StartWorkflow creates an instance for one definition without trigger
// evaluation. This is the entry point for manual trigger types.
func (e *Engine) StartWorkflow(ctx context.Context, workflowID string, event models.DocumentEvent) (*models.WorkflowInstance, error) {
	definition, err := e.persistence.DefinitionRepository().DefinitionByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return e.createInstance(ctx, definition, event)
}

func (e *Engine) createInstance(ctx context.Context, definition *models.WorkflowDefinition, event models.DocumentEvent) (*models.WorkflowInstance, error) {
	now := time.Now().UTC()

	instance := &models.WorkflowInstance{
		ID:             uuid.New().String(),
		WorkflowID:     definition.ID,
		DocumentID:     event.DocumentID,
		OrganizationID: event.OrganizationID,
		Status:         models.InstancePending,
		StartedAt:      now,
		Context: models.InstanceContext{
			Document:    event.Payload,
			Variables:   make(map[string]any),
			Assignments: make(map[string]string),
			Deadlines:   make(map[string]time.Time),
		},
		Metrics: models.InstanceMetrics{
			StepDurations: make(map[string]time.Duration),
		},
	}

	if event.ComplianceScore != nil {
		instance.Metrics.ComplianceScore = *event.ComplianceScore
	}

	instance.AppendHistory(models.HistoryEntry{
		Action:  "workflow_triggered",
		ActorID: event.ActorID,
		Status:  models.HistoryCompleted,
		Notes:   "matched definition " + definition.Name,
	})

	if err := e.persistence.InstanceRepository().CreateInstance(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to create instance for workflow %s: %w", definition.ID, err)
	}

	e.logger.Info("Workflow instance created",
		"instance_id", instance.ID,
		"workflow_id", definition.ID,
		"document_id", event.DocumentID)

	e.publish(ctx, events.InstanceStarted{
		BaseEvent:   events.NewBaseEvent(events.InstanceStartedEvent, instance),
		DocumentID:  event.DocumentID,
		TriggeredBy: event.ActorID,
	})

	return instance, nil
}

// Instance returns a snapshot of one instance.
func (e *Engine) Instance(ctx context.Context, instanceID string) (*models.WorkflowInstance, error) {
	return e.persistence.InstanceRepository().InstanceByID(ctx, instanceID)
}

// ActiveInstances returns snapshots of every non-terminal instance.
func (e *Engine) ActiveInstances(ctx context.Context) ([]*models.WorkflowInstance, error) {
	return e.persistence.InstanceRepository().ActiveInstances(ctx)
}

func (e *Engine) InstancesByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowInstance, error) {
	return e.persistence.InstanceRepository().InstancesByWorkflow(ctx, workflowID)
}

// Analytics returns the current organization-level statistics.
func (e *Engine) Analytics() AnalyticsSnapshot {
	return e.analytics.Snapshot()
}

// Bottlenecks ranks a definition's steps by average observed delay.
func (e *Engine) Bottlenecks(workflowID string) []StepLatency {
	return e.analytics.Bottlenecks(workflowID)
}

// publish sends an event best-effort: publish failures are logged, never
// propagated, so observability problems cannot abort step execution.
func (e *Engine) publish(ctx context.Context, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, events.Topic, event); err != nil {
		e.logger.Error("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) publishAll(ctx context.Context, eventList []eventbus.Event) {
	for _, event := range eventList {
		e.publish(ctx, event)
	}
}
