package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/docuflow/docuflow/pkg/protocol"
)

// MockValidator is a mock implementation of protocol.Validator interface.
type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) RunValidation(ctx context.Context, ruleIDs []string, context map[string]any) ([]protocol.RuleResult, error) {
	args := m.Called(ctx, ruleIDs, context)

	if results := args.Get(0); results != nil {
		return results.([]protocol.RuleResult), args.Error(1)
	}

	return nil, args.Error(1)
}

// MockScriptRunner is a mock implementation of protocol.ScriptRunner interface.
type MockScriptRunner struct {
	mock.Mock
}

func (m *MockScriptRunner) RunScript(ctx context.Context, script string, context map[string]any) (map[string]any, error) {
	args := m.Called(ctx, script, context)

	if output := args.Get(0); output != nil {
		return output.(map[string]any), args.Error(1)
	}

	return nil, args.Error(1)
}
