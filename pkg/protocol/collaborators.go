package protocol

import "context"

// RuleResult is one validation rule's verdict.
type RuleResult struct {
	RuleID  string `json:"rule_id"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Validator is the external rule-evaluation collaborator consulted by
// validation steps. Its verdicts are authoritative; the engine never
// re-derives them.
type Validator interface {
	RunValidation(ctx context.Context, ruleIDs []string, context map[string]any) ([]RuleResult, error)
}

// ScriptRunner is the external sandboxed automation collaborator. Scripts
// are never executed in-process.
type ScriptRunner interface {
	RunScript(ctx context.Context, script string, context map[string]any) (map[string]any, error)
}
