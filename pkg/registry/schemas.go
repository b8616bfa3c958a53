package registry

import (
	"fmt"
	"strings"

	"github.com/docuflow/docuflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// ValidateStepConfig checks a step's typed config against the JSON schema
// its handler factory declares. Definitions with invalid configs are
// rejected at catalog create/update time, never stored.
func (r *Registry) ValidateStepConfig(step *models.StepSpec) error {
	factory, ok := r.factories[step.Type]
	if !ok {
		return fmt.Errorf("step type '%s' not registered", step.Type)
	}

	if !step.Config.ForType(step.Type) {
		return fmt.Errorf("step '%s' is missing the %s config", step.ID, step.Type)
	}

	schemaLoader := gojsonschema.NewGoLoader(factory.Schema())
	documentLoader := gojsonschema.NewGoLoader(configDocument(step))

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate config for step '%s': %w", step.ID, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid config for step '%s': %s", step.ID, strings.Join(details, "; "))
	}

	return nil
}

func configDocument(step *models.StepSpec) any {
	switch step.Type {
	case models.StepApproval:
		return step.Config.Approval
	case models.StepNotification:
		return step.Config.Notification
	case models.StepRouting:
		return step.Config.Routing
	case models.StepTask:
		return step.Config.Task
	case models.StepValidation:
		return step.Config.Validation
	case models.StepEscalation:
		return step.Config.Escalation
	case models.StepAutomation:
		return step.Config.Automation
	default:
		return nil
	}
}
