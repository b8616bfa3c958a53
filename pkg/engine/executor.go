package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docuflow/docuflow/pkg/eventbus"
	"github.com/docuflow/docuflow/pkg/events"
	"github.com/docuflow/docuflow/pkg/models"
	"github.com/docuflow/docuflow/pkg/protocol"
	"github.com/docuflow/docuflow/pkg/template"
)

// ExecuteStep runs one step of an instance: it checks preconditions,
// dispatches to the step-type handler and applies success/failure actions.
// Re-executing a step already completed in history is a no-op returning the
// existing instance state, so upstream retries never duplicate side effects.
//
// When a step handler fails, the failure is committed to the instance
// (history entry, onFailure actions, failed status) and returned alongside
// the updated instance.
func (e *Engine) ExecuteStep(ctx context.Context, instanceID, stepID, actorID string) (*models.WorkflowInstance, error) {
	logger := e.logger.With("instance_id", instanceID, "step_id", stepID, "actor_id", actorID)

	snapshot, err := e.persistence.InstanceRepository().InstanceByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	definition, err := e.persistence.DefinitionRepository().DefinitionByID(ctx, snapshot.WorkflowID)
	if err != nil {
		return nil, err
	}

	step, found := definition.Step(stepID)
	if !found {
		return nil, &StepError{InstanceID: instanceID, StepID: stepID, Err: ErrStepNotFound}
	}

	var (
		noop       bool
		completed  bool
		stepErr    error
		sideEffect []eventbus.Event
	)

	updated, err := e.persistence.InstanceRepository().UpdateInstance(ctx, instanceID, func(instance *models.WorkflowInstance) error {
		// Idempotency: a completed step is never re-run.
		if instance.StepCompleted(stepID) {
			noop = true

			return nil
		}

		if instance.Status.Terminal() {
			return fmt.Errorf("cannot execute step %s: %w", stepID, ErrTerminalState)
		}

		if instance.Status == models.InstancePaused {
			return fmt.Errorf("cannot execute step %s: %w", stepID, ErrInstancePaused)
		}

		for _, dependency := range step.Dependencies {
			if !instance.StepCompleted(dependency) {
				return &StepError{
					InstanceID: instanceID,
					StepID:     stepID,
					Err:        fmt.Errorf("%w: dependency %s has not completed", ErrDependencyNotSatisfied, dependency),
				}
			}
		}

		if instance.Status == models.InstancePending {
			e.transition(instance, models.InstanceInProgress, actorID, "first step dispatched")
		}

		instance.CurrentStep = stepID
		startedAt := time.Now().UTC()
		instance.AppendHistory(models.HistoryEntry{
			StepID:    stepID,
			Action:    "step_" + string(step.Type),
			Timestamp: startedAt,
			ActorID:   actorID,
			Status:    models.HistoryStarted,
		})

		handler, err := e.registry.CreateHandler(step.Type, &step.Config)
		if err != nil {
			return &StepError{InstanceID: instanceID, StepID: stepID, Err: err}
		}

		outcome, execErr := handler.Execute(ctx, protocol.StepContext{
			Instance:   instance.Clone(),
			Definition: definition,
			Step:       step,
			ActorID:    actorID,
		}, logger)

		duration := time.Since(startedAt)

		if execErr != nil {
			sideEffect = e.failStep(instance, step, actorID, duration, execErr)
			stepErr = &StepError{InstanceID: instanceID, StepID: stepID, Err: fmt.Errorf("%w: %v", ErrStepExecution, execErr)}

			return nil
		}

		if outcome.Pending {
			// The step stays pending until an external decision arrives;
			// nothing blocks waiting for it.
			logger.Info("Step suspended awaiting external decision")

			return nil
		}

		instance.AppendHistory(models.HistoryEntry{
			StepID:   stepID,
			Action:   "step_" + string(step.Type),
			ActorID:  actorID,
			Status:   models.HistoryCompleted,
			Duration: duration,
		})
		instance.Metrics.StepDurations[stepID] = duration

		sideEffect = append(sideEffect, outcome.Events...)

		actionEvents, _ := e.runActions(step.OnSuccess, instance, step, logger)
		sideEffect = append(sideEffect, actionEvents...)

		if e.definitionSatisfied(definition, instance) {
			e.completeInstance(instance, actorID)
			completed = true

			sideEffect = append(sideEffect, events.InstanceCompleted{
				BaseEvent: events.NewBaseEvent(events.InstanceCompletedEvent, instance),
				Duration:  instance.Metrics.TotalDuration,
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if noop {
		logger.Info("Step already completed, skipping re-execution")

		return snapshot, nil
	}

	e.publishAll(ctx, sideEffect)

	if completed {
		e.analytics.Record(updated)
	}

	if stepErr != nil {
		e.analytics.Record(updated)
		logger.Error("Step execution failed", "error", stepErr)

		return updated, stepErr
	}

	return updated, nil
}

// failStep commits a handler failure: failed history entry, onFailure
// actions, and the failed transition unless an action redirected status.
func (e *Engine) failStep(
	instance *models.WorkflowInstance,
	step *models.StepSpec,
	actorID string,
	duration time.Duration,
	cause error,
) []eventbus.Event {
	instance.AppendHistory(models.HistoryEntry{
		StepID:   step.ID,
		Action:   "step_" + string(step.Type),
		ActorID:  actorID,
		Status:   models.HistoryFailed,
		Duration: duration,
		Notes:    cause.Error(),
	})
	instance.Metrics.StepDurations[step.ID] = duration

	logger := e.logger.With("instance_id", instance.ID, "step_id", step.ID)

	sideEffect, redirected := e.runActions(step.OnFailure, instance, step, logger)

	if !redirected {
		e.transition(instance, models.InstanceFailed, actorID, "step "+step.ID+" failed: "+cause.Error())

		sideEffect = append(sideEffect, events.InstanceFailed{
			BaseEvent: events.NewBaseEvent(events.InstanceFailedEvent, instance),
			StepID:    step.ID,
			Reason:    cause.Error(),
		})
	}

	return sideEffect
}

// runActions executes an ordered action list against the instance, returning
// the side-effect events to publish and whether an update_status action
// redirected the instance status.
func (e *Engine) runActions(
	actions []models.Action,
	instance *models.WorkflowInstance,
	step *models.StepSpec,
	logger *slog.Logger,
) ([]eventbus.Event, bool) {
	var (
		sideEffect []eventbus.Event
		redirected bool
	)

	for _, action := range actions {
		switch action.Type {
		case models.ActionUpdateStatus:
			status := models.InstanceStatus(paramString(action.Params, "status"))
			if status != "" {
				instance.Status = status
				redirected = true
			}

		case models.ActionSendNotification:
			sideEffect = append(sideEffect, events.NotificationRequested{
				BaseEvent:  events.NewBaseEvent(events.NotificationRequestedEvent, instance),
				StepID:     step.ID,
				Recipients: paramStrings(action.Params, "recipients"),
				Message:    e.renderParam(action.Params, "message", instance),
			})

		case models.ActionCreateTask:
			sideEffect = append(sideEffect, events.TaskRequested{
				BaseEvent:  events.NewBaseEvent(events.TaskRequestedEvent, instance),
				StepID:     step.ID,
				Title:      e.renderParam(action.Params, "title", instance),
				Assignee:   paramString(action.Params, "assignee"),
				DocumentID: instance.DocumentID,
			})

		case models.ActionRouteDocument:
			sideEffect = append(sideEffect, events.DocumentRouted{
				BaseEvent:  events.NewBaseEvent(events.DocumentRoutedEvent, instance),
				StepID:     step.ID,
				DocumentID: instance.DocumentID,
				Routing: &models.RoutingConfig{
					Destination: paramString(action.Params, "destination"),
					Department:  paramString(action.Params, "department"),
				},
			})

		case models.ActionTriggerWebhook:
			sideEffect = append(sideEffect, events.WebhookRequested{
				BaseEvent: events.NewBaseEvent(events.WebhookRequestedEvent, instance),
				StepID:    step.ID,
				URL:       paramString(action.Params, "url"),
				Params:    action.Params,
			})

		case models.ActionLogEvent:
			logger.Info("Workflow action log",
				"step_id", step.ID,
				"message", paramString(action.Params, "message"))
		}
	}

	return sideEffect, redirected
}

func (e *Engine) renderParam(params map[string]any, key string, instance *models.WorkflowInstance) string {
	raw := paramString(params, key)
	if raw == "" {
		return raw
	}

	rendered, err := template.RenderWithInstance(raw, instance)
	if err != nil {
		return raw
	}

	return rendered
}

func paramString(params map[string]any, key string) string {
	if params == nil {
		return ""
	}

	s, _ := params[key].(string)

	return s
}

func paramStrings(params map[string]any, key string) []string {
	if params == nil {
		return nil
	}

	switch v := params[key].(type) {
	case []string:
		return v
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}

		return result
	case string:
		return []string{v}
	default:
		return nil
	}
}
