// Package models defines the core domain models for document workflow orchestration.
package models

import (
	"slices"
	"time"
)

// WorkflowCategory groups definitions by the business domain they serve.
type WorkflowCategory string

const (
	CategoryFinancial  WorkflowCategory = "financial"
	CategoryLegal      WorkflowCategory = "legal"
	CategoryCompliance WorkflowCategory = "compliance"
	CategoryAudit      WorkflowCategory = "audit"
	CategoryGeneral    WorkflowCategory = "general"
)

// WorkflowDefinition is a versioned template describing when a workflow fires
// (triggers) and what it does (an ordered, dependency-aware set of steps).
// Definitions are immutable once published; updates bump the version.
type WorkflowDefinition struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"        validate:"required,min=3"`
	Description string             `json:"description"`
	Category    WorkflowCategory   `json:"category"    validate:"required,oneof=financial legal compliance audit general"`
	Triggers    []*Trigger         `json:"triggers"    validate:"dive"`
	Steps       []*StepSpec        `json:"steps"       validate:"required,min=1,dive"`
	Metadata    DefinitionMetadata `json:"metadata"`
	IsActive    bool               `json:"is_active"`
	Version     int                `json:"version"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

type DefinitionMetadata struct {
	RiskLevel  string   `json:"risk_level,omitempty"`
	Complexity string   `json:"complexity,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Clone returns a deep copy. Repositories hand out clones so a caller
// mutating a fetched definition never touches the published one.
func (d *WorkflowDefinition) Clone() *WorkflowDefinition {
	clone := *d

	if d.Triggers != nil {
		clone.Triggers = make([]*Trigger, len(d.Triggers))
		for i, trigger := range d.Triggers {
			t := *trigger
			clone.Triggers[i] = &t
		}
	}

	if d.Steps != nil {
		clone.Steps = make([]*StepSpec, len(d.Steps))
		for i, step := range d.Steps {
			clone.Steps[i] = step.Clone()
		}
	}

	clone.Metadata.Tags = slices.Clone(d.Metadata.Tags)

	return &clone
}

// Step returns the step spec with the given id, if present.
func (d *WorkflowDefinition) Step(stepID string) (*StepSpec, bool) {
	for _, step := range d.Steps {
		if step.ID == stepID {
			return step, true
		}
	}

	return nil, false
}
