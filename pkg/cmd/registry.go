// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/docuflow/docuflow/pkg/collaborators"
	"github.com/docuflow/docuflow/pkg/protocol"
	"github.com/docuflow/docuflow/pkg/registry"
	"github.com/docuflow/docuflow/pkg/steps/approval"
	"github.com/docuflow/docuflow/pkg/steps/automation"
	"github.com/docuflow/docuflow/pkg/steps/escalation"
	"github.com/docuflow/docuflow/pkg/steps/notification"
	"github.com/docuflow/docuflow/pkg/steps/routing"
	"github.com/docuflow/docuflow/pkg/steps/task"
	"github.com/docuflow/docuflow/pkg/steps/validation"
)

// NewRegistry builds a step handler registry with all native step types.
// Validation and automation steps delegate to the external rule and script
// services reachable at the given base URLs.
func NewRegistry(logger *slog.Logger, rulesServiceURL, scriptServiceURL string) *registry.Registry {
	return NewRegistryWithCollaborators(
		logger,
		collaborators.NewHTTPValidator(rulesServiceURL),
		collaborators.NewHTTPScriptRunner(scriptServiceURL),
	)
}

// NewRegistryWithCollaborators builds a registry with explicit collaborator
// implementations. Tests use this with mocks.
func NewRegistryWithCollaborators(
	logger *slog.Logger,
	validator protocol.Validator,
	runner protocol.ScriptRunner,
) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.Register(approval.NewFactory())
	reg.Register(notification.NewFactory())
	reg.Register(routing.NewFactory())
	reg.Register(task.NewFactory())
	reg.Register(validation.NewFactory(validator))
	reg.Register(escalation.NewFactory())
	reg.Register(automation.NewFactory(runner))

	return reg
}
