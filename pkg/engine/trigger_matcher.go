package engine

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/docuflow/docuflow/pkg/models"
)

// TriggerMatcher decides which workflow definitions should fire for an
// inbound document event. Matching is a pure function of (definition, event)
// with no side effects.
type TriggerMatcher struct {
	logger *slog.Logger
}

func NewTriggerMatcher(logger *slog.Logger) *TriggerMatcher {
	return &TriggerMatcher{
		logger: logger.With("module", "trigger_matcher"),
	}
}

// MatchTriggers returns every active definition with at least one trigger
// matching the event (OR semantics across a definition's triggers).
func (tm *TriggerMatcher) MatchTriggers(event models.DocumentEvent, definitions []*models.WorkflowDefinition) []*models.WorkflowDefinition {
	var matched []*models.WorkflowDefinition

	for _, definition := range definitions {
		if !definition.IsActive {
			continue
		}

		for _, trigger := range definition.Triggers {
			if tm.matchTrigger(event, trigger) {
				tm.logger.Debug("Definition matched event",
					"workflow_id", definition.ID,
					"workflow_name", definition.Name,
					"trigger_type", trigger.Type)

				matched = append(matched, definition)

				break
			}
		}
	}

	tm.logger.Info("Completed trigger matching",
		"document_id", event.DocumentID,
		"definitions_checked", len(definitions),
		"matches_found", len(matched))

	return matched
}

func (tm *TriggerMatcher) matchTrigger(event models.DocumentEvent, trigger *models.Trigger) bool {
	switch trigger.Type {
	case models.TriggerDocumentType:
		return tm.matchDocumentType(event, trigger)
	case models.TriggerAmountThreshold:
		return tm.matchAmountThreshold(event, trigger)
	case models.TriggerComplianceFlag:
		return tm.matchComplianceFlag(event, trigger)
	case models.TriggerKeywordMatch:
		return tm.matchKeyword(event, trigger)
	case models.TriggerManual:
		// Manual triggers never fire automatically.
		return false
	default:
		tm.logger.Warn("Unknown trigger type", "type", trigger.Type)

		return false
	}
}

func (tm *TriggerMatcher) matchDocumentType(event models.DocumentEvent, trigger *models.Trigger) bool {
	expected, ok := conditionString(trigger.Condition.Value)
	if !ok {
		return false
	}

	return event.Category == expected
}

func (tm *TriggerMatcher) matchAmountThreshold(event models.DocumentEvent, trigger *models.Trigger) bool {
	// An absent extracted amount never matches a threshold.
	if event.Amount == nil {
		return false
	}

	threshold, ok := conditionNumber(trigger.Condition.Value)
	if !ok {
		return false
	}

	return compareNumbers(*event.Amount, trigger.Condition.Operator, threshold)
}

func (tm *TriggerMatcher) matchComplianceFlag(event models.DocumentEvent, trigger *models.Trigger) bool {
	if event.ComplianceScore == nil {
		return false
	}

	threshold, ok := conditionNumber(trigger.Condition.Value)
	if !ok {
		return false
	}

	return compareNumbers(*event.ComplianceScore, trigger.Condition.Operator, threshold)
}

func (tm *TriggerMatcher) matchKeyword(event models.DocumentEvent, trigger *models.Trigger) bool {
	if event.TextContent == "" {
		return false
	}

	pattern, ok := conditionString(trigger.Condition.Value)
	if !ok || pattern == "" {
		return false
	}

	if trigger.Condition.Operator == models.OperatorMatches {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			tm.logger.Warn("Invalid keyword regexp in trigger", "pattern", pattern, "error", err)

			return false
		}

		return re.MatchString(event.TextContent)
	}

	return strings.Contains(strings.ToLower(event.TextContent), strings.ToLower(pattern))
}

func compareNumbers(value float64, operator models.ConditionOperator, threshold float64) bool {
	switch operator {
	case models.OperatorGreaterThan:
		return value > threshold
	case models.OperatorLessThan:
		return value < threshold
	case models.OperatorEquals:
		return value == threshold
	default:
		return false
	}
}

func conditionString(value any) (string, bool) {
	s, ok := value.(string)

	return s, ok
}

func conditionNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%f", &f); err == nil {
			return f, true
		}
	}

	return 0, false
}
