// Package template renders message and task templates against a workflow
// instance's context.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/docuflow/docuflow/pkg/models"
)

// RenderWithInstance renders a template string against the instance context.
// Templates address the document payload as {{.document.x}}, runtime
// variables as {{.variables.y}} and instance identity under {{.instance}}.
func RenderWithInstance(input string, instance *models.WorkflowInstance) (string, error) {
	data := map[string]any{
		"document":    instance.Context.Document,
		"variables":   instance.Context.Variables,
		"vars":        instance.Context.Variables,
		"assignments": instance.Context.Assignments,
		"instance": map[string]any{
			"id":          instance.ID,
			"workflow_id": instance.WorkflowID,
			"document_id": instance.DocumentID,
			"status":      string(instance.Status),
		},
	}

	return Render(input, data)
}

func Render(templateStr string, data any) (string, error) {
	tmpl, err := template.
		New("render").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return strings.TrimSpace(buf.String()), nil
}
