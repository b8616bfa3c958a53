// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/docuflow/docuflow/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow definition.
type CreateWorkflowRequest struct {
	Name        string                    `json:"name"        validate:"required,min=3"`
	Description string                    `json:"description"`
	Category    models.WorkflowCategory   `json:"category"    validate:"required,oneof=financial legal compliance audit general"`
	Triggers    []*models.Trigger         `json:"triggers"`
	Steps       []*models.StepSpec        `json:"steps"       validate:"required,min=1"`
	Metadata    models.DefinitionMetadata `json:"metadata,omitempty"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow definition. All fields are optional to support partial updates;
// omitted steps and triggers keep their current value.
type UpdateWorkflowRequest struct {
	Name        *string                    `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string                    `json:"description,omitempty"`
	Category    *models.WorkflowCategory   `json:"category,omitempty"    validate:"omitempty,oneof=financial legal compliance audit general"`
	Triggers    []*models.Trigger          `json:"triggers,omitempty"`
	Steps       []*models.StepSpec         `json:"steps,omitempty"`
	Metadata    *models.DefinitionMetadata `json:"metadata,omitempty"`
	IsActive    *bool                      `json:"is_active,omitempty"`
}

// ExecuteStepRequest identifies who is executing a step.
type ExecuteStepRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
}

// ApprovalRequest represents an approver's decision on a pending approval step.
type ApprovalRequest struct {
	ApproverID  string                  `json:"approver_id"  validate:"required"`
	Decision    models.ApprovalDecision `json:"decision"     validate:"required,oneof=approved rejected delegated"`
	Comments    string                  `json:"comments,omitempty"`
	DelegatedTo string                  `json:"delegated_to,omitempty" validate:"required_if=Decision delegated"`
}

// LifecycleRequest identifies who is pausing, resuming, or cancelling an instance.
type LifecycleRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
	Reason  string `json:"reason,omitempty"`
}

// TriggerResponse reports the instances created for a document event.
type TriggerResponse struct {
	InstanceIDs []string `json:"instance_ids"`
	Matched     int      `json:"matched"`
}
