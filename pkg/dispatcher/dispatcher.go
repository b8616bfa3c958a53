// Package dispatcher consumes engine events and performs their external side
// effects: notification delivery, task creation, document routing, and
// webhook calls. Running it as a separate process keeps the step executor
// free of slow I/O.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/docuflow/docuflow/pkg/eventbus"
	"github.com/docuflow/docuflow/pkg/events"
	"github.com/docuflow/docuflow/pkg/otelhelper"
)

type Dispatcher struct {
	id       string
	logger   *slog.Logger
	eventBus eventbus.EventBus
	tracer   trace.Tracer
	webhooks *WebhookClient
}

func NewDispatcher(
	id string,
	logger *slog.Logger,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *Dispatcher {
	return &Dispatcher{
		id:       id,
		logger:   logger.With("dispatcher_id", id),
		eventBus: eventBus,
		tracer:   tracer,
		webhooks: NewWebhookClient(logger),
	}
}

// Run registers the event handlers and blocks until the context is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.NotificationRequestedEvent: d.handleNotification,
		events.TaskRequestedEvent:         d.handleTask,
		events.DocumentRoutedEvent:        d.handleRouted,
		events.WebhookRequestedEvent:      d.handleWebhook,
		events.InstanceEscalatedEvent:     d.handleEscalated,
	}

	for eventType, handler := range handlers {
		if err := d.eventBus.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	if err := d.eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}

	d.logger.InfoContext(ctx, "Dispatcher started")

	<-ctx.Done()

	d.logger.Info("Dispatcher stopping")

	return nil
}

func (d *Dispatcher) handleNotification(ctx context.Context, event any) error {
	notification, ok := event.(*events.NotificationRequested)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	spanCtx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.notification",
		attribute.String(otelhelper.InstanceIDKey, notification.InstanceID),
		attribute.String(otelhelper.StepIDKey, notification.StepID),
	)
	defer span.End()

	// Channel integrations (email, chat) plug in here; delivery is currently
	// a structured log line consumed by the notification gateway.
	d.logger.InfoContext(spanCtx, "Delivering notification",
		"instance_id", notification.InstanceID,
		"step_id", notification.StepID,
		"channel", notification.Channel,
		"recipients", notification.Recipients,
		"message", notification.Message,
	)

	return nil
}

func (d *Dispatcher) handleTask(ctx context.Context, event any) error {
	task, ok := event.(*events.TaskRequested)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	spanCtx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.task",
		attribute.String(otelhelper.InstanceIDKey, task.InstanceID),
		attribute.String(otelhelper.StepIDKey, task.StepID),
		attribute.String(otelhelper.ActorIDKey, task.Assignee),
	)
	defer span.End()

	d.logger.InfoContext(spanCtx, "Creating task",
		"instance_id", task.InstanceID,
		"step_id", task.StepID,
		"title", task.Title,
		"assignee", task.Assignee,
		"due_at", task.DueAt,
	)

	return nil
}

func (d *Dispatcher) handleRouted(ctx context.Context, event any) error {
	routed, ok := event.(*events.DocumentRouted)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	spanCtx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.routing",
		attribute.String(otelhelper.InstanceIDKey, routed.InstanceID),
		attribute.String(otelhelper.DocumentIDKey, routed.DocumentID),
	)
	defer span.End()

	destination := ""
	department := ""

	if routed.Routing != nil {
		destination = routed.Routing.Destination
		department = routed.Routing.Department
	}

	d.logger.InfoContext(spanCtx, "Routing document",
		"instance_id", routed.InstanceID,
		"document_id", routed.DocumentID,
		"destination", destination,
		"department", department,
	)

	return nil
}

func (d *Dispatcher) handleWebhook(ctx context.Context, event any) error {
	webhook, ok := event.(*events.WebhookRequested)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	spanCtx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.webhook",
		attribute.String(otelhelper.InstanceIDKey, webhook.InstanceID),
		attribute.String("webhook.url", webhook.URL),
	)
	defer span.End()

	if err := d.webhooks.Deliver(spanCtx, webhook); err != nil {
		otelhelper.SetError(span, err,
			attribute.String(otelhelper.InstanceIDKey, webhook.InstanceID),
		)
		d.logger.ErrorContext(spanCtx, "Webhook delivery failed",
			"instance_id", webhook.InstanceID,
			"url", webhook.URL,
			"error", err,
		)

		return err
	}

	return nil
}

func (d *Dispatcher) handleEscalated(ctx context.Context, event any) error {
	escalated, ok := event.(*events.InstanceEscalated)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	spanCtx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.escalation",
		attribute.String(otelhelper.InstanceIDKey, escalated.InstanceID),
		attribute.Int("escalation.level", escalated.Level),
	)
	defer span.End()

	d.logger.WarnContext(spanCtx, "Escalation raised",
		"instance_id", escalated.InstanceID,
		"step_id", escalated.StepID,
		"level", escalated.Level,
		"assignee", escalated.Assignee,
		"elapsed_hours", escalated.Elapsed,
	)

	return nil
}
