package models

import (
	"maps"
	"slices"
	"sort"
	"time"
)

// StepType identifies one of the seven typed step behaviors.
type StepType string

const (
	StepApproval     StepType = "approval"
	StepNotification StepType = "notification"
	StepRouting      StepType = "document_routing"
	StepTask         StepType = "task_creation"
	StepValidation   StepType = "validation"
	StepEscalation   StepType = "escalation"
	StepAutomation   StepType = "automation"
)

// StepSpec is a unit of work within a workflow definition. Dependencies
// reference sibling step ids and must form a DAG; cycles are rejected at
// definition validation time.
type StepSpec struct {
	ID           string      `json:"id"   validate:"required"`
	Name         string      `json:"name"`
	Type         StepType    `json:"type" validate:"required,oneof=approval notification document_routing task_creation validation escalation automation"`
	Config       StepConfig  `json:"config"`
	Dependencies []string    `json:"dependencies,omitempty"`
	OnSuccess    []Action    `json:"on_success,omitempty"`
	OnFailure    []Action    `json:"on_failure,omitempty"`
	AssignedTo   *Assignment `json:"assigned_to,omitempty"`
}

// Clone returns a deep copy of the step spec, including its typed config.
func (s *StepSpec) Clone() *StepSpec {
	clone := *s
	clone.Dependencies = slices.Clone(s.Dependencies)
	clone.OnSuccess = cloneActions(s.OnSuccess)
	clone.OnFailure = cloneActions(s.OnFailure)
	clone.Config = s.Config.clone()

	if s.AssignedTo != nil {
		assigned := *s.AssignedTo
		clone.AssignedTo = &assigned
	}

	return &clone
}

func cloneActions(actions []Action) []Action {
	if actions == nil {
		return nil
	}

	out := make([]Action, len(actions))
	for i, action := range actions {
		out[i] = action
		out[i].Params = maps.Clone(action.Params)
	}

	return out
}

// StepConfig is a tagged union: exactly one member matching the step type
// must be set. Typed configs replace the free-form map the legacy system
// carried, so a wrong field name is a compile error instead of a silent
// runtime miss.
type StepConfig struct {
	Approval     *ApprovalConfig     `json:"approval,omitempty"`
	Notification *NotificationConfig `json:"notification,omitempty"`
	Routing      *RoutingConfig      `json:"routing,omitempty"`
	Task         *TaskConfig         `json:"task,omitempty"`
	Validation   *ValidationConfig   `json:"validation,omitempty"`
	Escalation   *EscalationConfig   `json:"escalation,omitempty"`
	Automation   *AutomationConfig   `json:"automation,omitempty"`
}

func (c StepConfig) clone() StepConfig {
	clone := c

	if c.Approval != nil {
		approval := *c.Approval
		approval.Approvers = slices.Clone(c.Approval.Approvers)
		clone.Approval = &approval
	}

	if c.Notification != nil {
		notification := *c.Notification
		notification.Recipients = slices.Clone(c.Notification.Recipients)
		clone.Notification = &notification
	}

	if c.Routing != nil {
		routing := *c.Routing
		clone.Routing = &routing
	}

	if c.Task != nil {
		task := *c.Task
		clone.Task = &task
	}

	if c.Validation != nil {
		validation := *c.Validation
		validation.RuleIDs = slices.Clone(c.Validation.RuleIDs)
		clone.Validation = &validation
	}

	if c.Escalation != nil {
		escalation := *c.Escalation
		escalation.Ladder = slices.Clone(c.Escalation.Ladder)
		clone.Escalation = &escalation
	}

	if c.Automation != nil {
		automation := *c.Automation
		clone.Automation = &automation
	}

	return clone
}

// ForType reports whether the config member for the given step type is set.
func (c StepConfig) ForType(t StepType) bool {
	switch t {
	case StepApproval:
		return c.Approval != nil
	case StepNotification:
		return c.Notification != nil
	case StepRouting:
		return c.Routing != nil
	case StepTask:
		return c.Task != nil
	case StepValidation:
		return c.Validation != nil
	case StepEscalation:
		return c.Escalation != nil
	case StepAutomation:
		return c.Automation != nil
	default:
		return false
	}
}

// ApprovalType is the quorum rule deciding when an approval step resolves.
type ApprovalType string

const (
	ApprovalSingle     ApprovalType = "single"
	ApprovalSequential ApprovalType = "sequential"
	ApprovalParallel   ApprovalType = "parallel"
	ApprovalMajority   ApprovalType = "majority"
)

type ApprovalConfig struct {
	ApprovalType ApprovalType `json:"approval_type,omitempty" validate:"omitempty,oneof=single sequential parallel majority"`
	Approvers    []string     `json:"approvers"`
}

type NotificationConfig struct {
	Recipients      []string `json:"recipients,omitempty"`
	MessageTemplate string   `json:"message_template"`
	Channel         string   `json:"channel,omitempty"`
}

type RoutingConfig struct {
	Destination string `json:"destination"`
	Department  string `json:"department,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

type TaskConfig struct {
	TitleTemplate string `json:"title_template"`
	Assignee      string `json:"assignee,omitempty"`
	DueInHours    int    `json:"due_in_hours,omitempty"`
}

type ValidationConfig struct {
	RuleIDs []string `json:"rule_ids"`
}

type EscalationConfig struct {
	Ladder EscalationLadder `json:"ladder"`
}

type AutomationConfig struct {
	Script         string `json:"script"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// EscalationLevel is one rung of an escalation ladder.
type EscalationLevel struct {
	Level        int     `json:"level"`
	TimeoutHours float64 `json:"timeout_hours"`
	Assignee     string  `json:"assignee,omitempty"`
}

type EscalationLadder []EscalationLevel

// ActiveLevel returns the highest level whose timeout has been exceeded after
// the given elapsed time, or nil when no threshold is exceeded. Returning the
// highest exceeded level keeps reported urgency monotonic regardless of how
// irregularly the ladder is evaluated.
func (l EscalationLadder) ActiveLevel(elapsed time.Duration) *EscalationLevel {
	sorted := make(EscalationLadder, len(l))
	copy(sorted, l)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Level > sorted[j].Level
	})

	elapsedHours := elapsed.Hours()
	for i := range sorted {
		if elapsedHours >= sorted[i].TimeoutHours {
			level := sorted[i]

			return &level
		}
	}

	return nil
}

// ActionType enumerates the side effects a step may request on success or
// failure.
type ActionType string

const (
	ActionUpdateStatus     ActionType = "update_status"
	ActionSendNotification ActionType = "send_notification"
	ActionCreateTask       ActionType = "create_task"
	ActionRouteDocument    ActionType = "route_document"
	ActionTriggerWebhook   ActionType = "trigger_webhook"
	ActionLogEvent         ActionType = "log_event"
)

type Action struct {
	Type   ActionType     `json:"type" validate:"required,oneof=update_status send_notification create_task route_document trigger_webhook log_event"`
	Params map[string]any `json:"params,omitempty"`
}

// ResolveAssignee determines who a step is assigned to for a given instance.
// A runtime reassignment (delegation) in the instance context wins over the
// configured assignment; auto assignment reads the instance's default
// assignee variable and falls back to the configured fallback.
func (s *StepSpec) ResolveAssignee(instance *WorkflowInstance) string {
	if assignee, ok := instance.Context.Assignments[s.ID]; ok && assignee != "" {
		return assignee
	}

	if s.AssignedTo == nil {
		return ""
	}

	if s.AssignedTo.Kind == AssignAuto {
		if v, ok := instance.Context.Variables["default_assignee"].(string); ok && v != "" {
			return v
		}

		return s.AssignedTo.Fallback
	}

	return s.AssignedTo.Target
}

// AssigneeKind describes how a step assignee is resolved.
type AssigneeKind string

const (
	AssignUser  AssigneeKind = "user"
	AssignRole  AssigneeKind = "role"
	AssignGroup AssigneeKind = "group"
	AssignAuto  AssigneeKind = "auto"
)

// Assignment names who a step is assigned to. Auto assignment resolves from
// the instance context at execution time, falling back to Fallback when the
// context carries no assignee.
type Assignment struct {
	Kind     AssigneeKind `json:"kind" validate:"omitempty,oneof=user role group auto"`
	Target   string       `json:"target"`
	Fallback string       `json:"fallback,omitempty"`
}
