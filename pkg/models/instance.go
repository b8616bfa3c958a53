package models

import (
	"maps"
	"slices"
	"time"
)

// InstanceStatus is the lifecycle state of a workflow instance.
type InstanceStatus string

const (
	InstancePending    InstanceStatus = "pending"
	InstanceInProgress InstanceStatus = "in_progress"
	InstanceCompleted  InstanceStatus = "completed"
	InstanceFailed     InstanceStatus = "failed"
	InstanceCancelled  InstanceStatus = "cancelled"
	InstancePaused     InstanceStatus = "paused"
)

// Terminal reports whether the status admits no further transitions.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceCompleted || s == InstanceFailed || s == InstanceCancelled
}

// WorkflowInstance is one running execution of a definition against a
// specific document. Instances are never deleted; terminal instances are
// retained for audit and analytics.
type WorkflowInstance struct {
	ID             string          `json:"id"`
	WorkflowID     string          `json:"workflow_id"`
	DocumentID     string          `json:"document_id"`
	OrganizationID string          `json:"organization_id,omitempty"`
	Status         InstanceStatus  `json:"status"`
	CurrentStep    string          `json:"current_step,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	Context        InstanceContext `json:"context"`
	History        []HistoryEntry  `json:"history"`
	Approvals      []ApprovalRecord `json:"approvals"`
	Metrics        InstanceMetrics `json:"metrics"`
}

// InstanceContext carries the opaque document payload plus runtime variables,
// per-step assignments and deadlines.
type InstanceContext struct {
	Document    map[string]any       `json:"document,omitempty"`
	Variables   map[string]any       `json:"variables,omitempty"`
	Assignments map[string]string    `json:"assignments,omitempty"`
	Deadlines   map[string]time.Time `json:"deadlines,omitempty"`
}

type HistoryStatus string

const (
	HistoryStarted   HistoryStatus = "started"
	HistoryCompleted HistoryStatus = "completed"
	HistoryFailed    HistoryStatus = "failed"
	HistorySkipped   HistoryStatus = "skipped"
)

// HistoryEntry is an immutable audit record. History is append-only; entries
// are never edited or removed.
type HistoryEntry struct {
	StepID    string        `json:"step_id,omitempty"`
	Action    string        `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
	ActorID   string        `json:"actor_id,omitempty"`
	Status    HistoryStatus `json:"status"`
	Duration  time.Duration `json:"duration,omitempty"`
	Notes     string        `json:"notes,omitempty"`
}

type ApprovalDecision string

const (
	DecisionApproved  ApprovalDecision = "approved"
	DecisionRejected  ApprovalDecision = "rejected"
	DecisionDelegated ApprovalDecision = "delegated"
	DecisionPending   ApprovalDecision = "pending"
)

// ApprovalRecord captures one approver's decision on a pending approval
// step. A step may accumulate multiple records under sequential, parallel or
// majority quorum rules.
type ApprovalRecord struct {
	StepID      string           `json:"step_id"`
	ApproverID  string           `json:"approver_id"`
	Decision    ApprovalDecision `json:"decision"`
	Timestamp   time.Time        `json:"timestamp"`
	Comments    string           `json:"comments,omitempty"`
	DelegatedTo string           `json:"delegated_to,omitempty"`
}

type InstanceMetrics struct {
	StepDurations   map[string]time.Duration `json:"step_durations,omitempty"`
	TotalDuration   time.Duration            `json:"total_duration,omitempty"`
	ComplianceScore float64                  `json:"compliance_score,omitempty"`
}

// StepCompleted reports whether history records a completed execution of the
// given step.
func (i *WorkflowInstance) StepCompleted(stepID string) bool {
	return i.stepHasStatus(stepID, HistoryCompleted)
}

// StepSkipped reports whether history records the given step as skipped.
func (i *WorkflowInstance) StepSkipped(stepID string) bool {
	return i.stepHasStatus(stepID, HistorySkipped)
}

func (i *WorkflowInstance) stepHasStatus(stepID string, status HistoryStatus) bool {
	for _, entry := range i.History {
		if entry.StepID == stepID && entry.Status == status {
			return true
		}
	}

	return false
}

// ApprovalsFor returns the approval records accumulated against a step, in
// the order they were recorded.
func (i *WorkflowInstance) ApprovalsFor(stepID string) []ApprovalRecord {
	var records []ApprovalRecord

	for _, record := range i.Approvals {
		if record.StepID == stepID {
			records = append(records, record)
		}
	}

	return records
}

// AppendHistory appends an audit entry stamped with the current UTC time.
func (i *WorkflowInstance) AppendHistory(entry HistoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	i.History = append(i.History, entry)
}

// Clone returns a deep copy so stores can hand out snapshots without
// exposing internal state to concurrent mutation.
func (i *WorkflowInstance) Clone() *WorkflowInstance {
	clone := *i
	clone.History = slices.Clone(i.History)
	clone.Approvals = slices.Clone(i.Approvals)
	clone.Context = InstanceContext{
		Document:    maps.Clone(i.Context.Document),
		Variables:   maps.Clone(i.Context.Variables),
		Assignments: maps.Clone(i.Context.Assignments),
		Deadlines:   maps.Clone(i.Context.Deadlines),
	}
	clone.Metrics.StepDurations = maps.Clone(i.Metrics.StepDurations)

	if i.CompletedAt != nil {
		completedAt := *i.CompletedAt
		clone.CompletedAt = &completedAt
	}

	return &clone
}
