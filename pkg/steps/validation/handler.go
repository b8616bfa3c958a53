// Package validation implements the validation step, delegating rule
// evaluation to the external validator collaborator. The step succeeds only
// when every configured rule passes.
package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docuflow/docuflow/pkg/models"
	"github.com/docuflow/docuflow/pkg/protocol"
)

type Factory struct {
	validator protocol.Validator
}

func NewFactory(validator protocol.Validator) *Factory {
	return &Factory{validator: validator}
}

func (*Factory) Type() models.StepType {
	return models.StepValidation
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"rule_ids": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 1,
			},
		},
		"required": []string{"rule_ids"},
	}
}

func (f *Factory) Create(config *models.StepConfig) (protocol.StepHandler, error) {
	if config == nil || config.Validation == nil {
		return nil, errors.New("validation step requires a validation config")
	}

	return &Handler{config: config.Validation, validator: f.validator}, nil
}

type Handler struct {
	config    *models.ValidationConfig
	validator protocol.Validator
}

func (h *Handler) Execute(ctx context.Context, sc protocol.StepContext, logger *slog.Logger) (*protocol.StepOutcome, error) {
	results, err := h.validator.RunValidation(ctx, h.config.RuleIDs, sc.Instance.Context.Document)
	if err != nil {
		return nil, fmt.Errorf("validator failed for step %s: %w", sc.Step.ID, err)
	}

	var failed []string

	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result.RuleID)
		}
	}

	output := map[string]any{
		"rules_evaluated": len(results),
		"results":         results,
	}

	if len(failed) > 0 {
		logger.Info("Validation step failed", "failed_rules", failed)

		return nil, fmt.Errorf("validation rules failed: %s", strings.Join(failed, ", "))
	}

	logger.Info("Validation step passed", "rules_evaluated", len(results))

	return &protocol.StepOutcome{Output: output}, nil
}
