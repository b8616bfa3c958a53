// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/docuflow/docuflow/pkg/engine"
	"github.com/docuflow/docuflow/pkg/models"
	"github.com/docuflow/docuflow/pkg/persistence"
	"github.com/docuflow/docuflow/pkg/services"
)

type APIHandlers struct {
	catalog   *services.Catalog
	engine    *engine.Engine
	validator *validator.Validate
}

func NewAPIHandlers(catalog *services.Catalog, engine *engine.Engine, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		catalog:   catalog,
		engine:    engine,
		validator: validator,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	filter := persistence.DefinitionFilter{
		Category: models.WorkflowCategory(c.Query("category")),
	}

	if activeStr := c.Query("active_only"); activeStr != "" {
		activeOnly, err := strconv.ParseBool(activeStr)
		if err != nil {
			return badRequest(c, "Invalid active_only parameter: "+err.Error())
		}

		filter.ActiveOnly = activeOnly
	}

	definitions, err := h.catalog.List(c.Context(), filter)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   definitions,
		"total_count": len(definitions),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	definition, err := h.catalog.Get(c.Context(), id)
	if err != nil {
		if persistence.IsDefinitionNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	definition := &models.WorkflowDefinition{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Triggers:    req.Triggers,
		Steps:       req.Steps,
		Metadata:    req.Metadata,
	}

	created, err := h.catalog.Create(c.Context(), definition)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.catalog.Get(c.Context(), id)
	if err != nil {
		if persistence.IsDefinitionNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Category != nil {
		existing.Category = *req.Category
	}

	if req.Triggers != nil {
		existing.Triggers = req.Triggers
	}

	if req.Steps != nil {
		existing.Steps = req.Steps
	}

	if req.Metadata != nil {
		existing.Metadata = *req.Metadata
	}

	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	updated, err := h.catalog.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.catalog.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetBottlenecks(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if _, err := h.catalog.Get(c.Context(), id); err != nil {
		if persistence.IsDefinitionNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow_id": id,
		"bottlenecks": h.engine.Bottlenecks(id),
	})
}

// PublishEvent submits a document event for trigger evaluation. One instance
// is created per matching active workflow definition.
func (h *APIHandlers) PublishEvent(c fiber.Ctx) error {
	var event models.DocumentEvent
	if err := c.Bind().JSON(&event); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(event); err != nil {
		return badRequest(c, err.Error())
	}

	instanceIDs, err := h.engine.TriggerWorkflow(c.Context(), event)
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(TriggerResponse{
		InstanceIDs: instanceIDs,
		Matched:     len(instanceIDs),
	})
}

// StartWorkflow manually starts an instance of a specific workflow
// definition, bypassing trigger evaluation.
func (h *APIHandlers) StartWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var event models.DocumentEvent
	if err := c.Bind().JSON(&event); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(event); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.engine.StartWorkflow(c.Context(), id, event)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(instance)
}

func (h *APIHandlers) GetInstances(c fiber.Ctx) error {
	if workflowID := c.Query("workflow_id"); workflowID != "" {
		instances, err := h.engine.InstancesByWorkflow(c.Context(), workflowID)
		if err != nil {
			return internalError(c, err)
		}

		return c.JSON(fiber.Map{"instances": instances, "total_count": len(instances)})
	}

	instances, err := h.engine.ActiveInstances(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"instances": instances, "total_count": len(instances)})
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	instance, err := h.engine.Instance(c.Context(), id)
	if err != nil {
		if persistence.IsInstanceNotFound(err) {
			return notFound(c, "Instance not found")
		}

		return internalError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) ExecuteStep(c fiber.Ctx) error {
	instanceID := c.Params("id")
	stepID := c.Params("stepId")

	if instanceID == "" || stepID == "" {
		return badRequest(c, "Instance ID and step ID are required")
	}

	var req ExecuteStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.engine.ExecuteStep(c.Context(), instanceID, stepID, req.ActorID)
	if err != nil {
		// A step failure is a processed outcome: the failure is recorded on
		// the instance, so return it alongside the error detail.
		if errors.Is(err, engine.ErrStepExecution) && instance != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"instance": instance,
				"error":    err.Error(),
			})
		}

		return handleEngineError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) RecordApproval(c fiber.Ctx) error {
	instanceID := c.Params("id")
	stepID := c.Params("stepId")

	if instanceID == "" || stepID == "" {
		return badRequest(c, "Instance ID and step ID are required")
	}

	var req ApprovalRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.engine.RecordApproval(
		c.Context(), instanceID, stepID, req.ApproverID,
		req.Decision, req.Comments, req.DelegatedTo,
	)
	if err != nil {
		if errors.Is(err, engine.ErrStepExecution) && instance != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"instance": instance,
				"error":    err.Error(),
			})
		}

		return handleEngineError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) PauseInstance(c fiber.Ctx) error {
	return h.lifecycle(c, func(c fiber.Ctx, req LifecycleRequest) (*models.WorkflowInstance, error) {
		return h.engine.PauseWorkflow(c.Context(), c.Params("id"), req.ActorID)
	})
}

func (h *APIHandlers) ResumeInstance(c fiber.Ctx) error {
	return h.lifecycle(c, func(c fiber.Ctx, req LifecycleRequest) (*models.WorkflowInstance, error) {
		return h.engine.ResumeWorkflow(c.Context(), c.Params("id"), req.ActorID)
	})
}

func (h *APIHandlers) CancelInstance(c fiber.Ctx) error {
	return h.lifecycle(c, func(c fiber.Ctx, req LifecycleRequest) (*models.WorkflowInstance, error) {
		return h.engine.CancelWorkflow(c.Context(), c.Params("id"), req.ActorID, req.Reason)
	})
}

func (h *APIHandlers) lifecycle(
	c fiber.Ctx,
	apply func(fiber.Ctx, LifecycleRequest) (*models.WorkflowInstance, error),
) error {
	if c.Params("id") == "" {
		return badRequest(c, "Instance ID is required")
	}

	var req LifecycleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := apply(c, req)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) GetAnalytics(c fiber.Ctx) error {
	return c.JSON(h.engine.Analytics())
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.catalog.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Docuflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Docuflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
