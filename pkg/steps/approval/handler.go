// Package approval implements the approval step: the only step type that
// suspends awaiting an external decision.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/docuflow/docuflow/pkg/models"
	"github.com/docuflow/docuflow/pkg/protocol"
)

// ErrRejected signals that an approver rejected the step; the executor turns
// this into a failed step and a failed instance.
var ErrRejected = errors.New("approval rejected")

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Type() models.StepType {
	return models.StepApproval
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"approval_type": map[string]any{
				"type": "string",
				"enum": []string{"single", "sequential", "parallel", "majority"},
			},
			"approvers": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 1,
			},
		},
		"required": []string{"approvers"},
	}
}

func (f *Factory) Create(config *models.StepConfig) (protocol.StepHandler, error) {
	if config == nil || config.Approval == nil {
		return nil, errors.New("approval step requires an approval config")
	}

	return &Handler{config: config.Approval}, nil
}

type Handler struct {
	config *models.ApprovalConfig
}

// Execute inspects the approvals accumulated against the step. The step
// completes once the quorum rule is satisfied, fails on any rejection, and
// otherwise stays pending until RecordApproval is invoked again.
func (h *Handler) Execute(_ context.Context, sc protocol.StepContext, logger *slog.Logger) (*protocol.StepOutcome, error) {
	records := sc.Instance.ApprovalsFor(sc.Step.ID)

	for _, record := range records {
		if record.Decision == models.DecisionRejected {
			return nil, fmt.Errorf("%w: %s rejected step %s", ErrRejected, record.ApproverID, sc.Step.ID)
		}
	}

	decided, err := h.quorumSatisfied(records)
	if err != nil {
		return nil, err
	}

	if !decided {
		logger.Info("Approval step awaiting decision",
			"approvals_recorded", len(records),
			"approval_type", h.approvalType())

		return &protocol.StepOutcome{
			Pending: true,
			Output: map[string]any{
				"approvals_recorded": len(records),
			},
		}, nil
	}

	return &protocol.StepOutcome{
		Output: map[string]any{
			"approvals_recorded": len(records),
			"approved_by":        approverIDs(records),
		},
	}, nil
}

func (h *Handler) approvalType() models.ApprovalType {
	if h.config.ApprovalType == "" {
		return models.ApprovalSingle
	}

	return h.config.ApprovalType
}

func (h *Handler) quorumSatisfied(records []models.ApprovalRecord) (bool, error) {
	approvals := approvalsByApprover(records)
	approvers := effectiveApprovers(records, h.config.Approvers)

	switch h.approvalType() {
	case models.ApprovalSingle:
		return len(approvals) >= 1, nil

	case models.ApprovalSequential:
		// Each expected approver must approve in listed order.
		approved := approvedInOrder(records, approvers)

		return approved == len(approvers), nil

	case models.ApprovalParallel:
		for _, approver := range approvers {
			if _, ok := approvals[approver]; !ok {
				return false, nil
			}
		}

		return true, nil

	case models.ApprovalMajority:
		quorum := len(approvers)/2 + 1

		return len(approvals) >= quorum, nil

	default:
		return false, fmt.Errorf("unknown approval type '%s'", h.config.ApprovalType)
	}
}

// effectiveApprovers resolves delegations against the configured approver
// list: each delegation record replaces the delegator with the delegate,
// in record order, so delegation chains resolve to the final assignee.
func effectiveApprovers(records []models.ApprovalRecord, configured []string) []string {
	approvers := slices.Clone(configured)

	for _, record := range records {
		if record.Decision != models.DecisionDelegated || record.DelegatedTo == "" {
			continue
		}

		for i, approver := range approvers {
			if approver == record.ApproverID {
				approvers[i] = record.DelegatedTo
			}
		}
	}

	return approvers
}

func approvalsByApprover(records []models.ApprovalRecord) map[string]struct{} {
	approvals := make(map[string]struct{})

	for _, record := range records {
		if record.Decision == models.DecisionApproved {
			approvals[record.ApproverID] = struct{}{}
		}
	}

	return approvals
}

// approvedInOrder counts how many of the listed approvers have approved,
// respecting the listed order: approver n+1 only counts after approver n.
func approvedInOrder(records []models.ApprovalRecord, approvers []string) int {
	next := 0

	for _, record := range records {
		if next >= len(approvers) {
			break
		}

		if record.Decision == models.DecisionApproved && record.ApproverID == approvers[next] {
			next++
		}
	}

	return next
}

func approverIDs(records []models.ApprovalRecord) []string {
	ids := make([]string, 0, len(records))

	for _, record := range records {
		if record.Decision == models.DecisionApproved {
			ids = append(ids, record.ApproverID)
		}
	}

	return ids
}
