// Package automation implements the automation step. Scripts run in the
// external sandboxed runner collaborator; untrusted code never executes
// in-process.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docuflow/docuflow/pkg/models"
	"github.com/docuflow/docuflow/pkg/protocol"
)

const defaultTimeout = 30 * time.Second

type Factory struct {
	runner protocol.ScriptRunner
}

func NewFactory(runner protocol.ScriptRunner) *Factory {
	return &Factory{runner: runner}
}

func (*Factory) Type() models.StepType {
	return models.StepAutomation
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"script":          map[string]any{"type": "string", "minLength": 1},
			"timeout_seconds": map[string]any{"type": "integer", "minimum": 1},
		},
		"required": []string{"script"},
	}
}

func (f *Factory) Create(config *models.StepConfig) (protocol.StepHandler, error) {
	if config == nil || config.Automation == nil {
		return nil, errors.New("automation step requires an automation config")
	}

	return &Handler{config: config.Automation, runner: f.runner}, nil
}

type Handler struct {
	config *models.AutomationConfig
	runner protocol.ScriptRunner
}

func (h *Handler) Execute(ctx context.Context, sc protocol.StepContext, logger *slog.Logger) (*protocol.StepOutcome, error) {
	timeout := defaultTimeout
	if h.config.TimeoutSeconds > 0 {
		timeout = time.Duration(h.config.TimeoutSeconds) * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	scriptContext := map[string]any{
		"document":  sc.Instance.Context.Document,
		"variables": sc.Instance.Context.Variables,
	}

	result, err := h.runner.RunScript(ctx, h.config.Script, scriptContext)
	if err != nil {
		return nil, fmt.Errorf("automation script failed for step %s: %w", sc.Step.ID, err)
	}

	logger.Info("Automation script completed", "step_id", sc.Step.ID)

	return &protocol.StepOutcome{Output: result}, nil
}
