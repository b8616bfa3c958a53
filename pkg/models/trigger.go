package models

// TriggerType identifies how an inbound document event is matched against a
// workflow definition.
type TriggerType string

const (
	TriggerDocumentType    TriggerType = "document_type"
	TriggerAmountThreshold TriggerType = "amount_threshold"
	TriggerComplianceFlag  TriggerType = "compliance_flag"
	TriggerKeywordMatch    TriggerType = "keyword_match"
	// TriggerManual never matches automatically; it is reserved for
	// user-initiated workflow starts.
	TriggerManual TriggerType = "manual"
)

type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorContains    ConditionOperator = "contains"
	OperatorMatches     ConditionOperator = "matches"
)

// TriggerCondition is the predicate a single trigger evaluates against an
// event. Value holds a string for text conditions and a float64 for numeric
// thresholds.
type TriggerCondition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator" validate:"omitempty,oneof=equals greater_than less_than contains matches"`
	Value    any               `json:"value"`
}

// Trigger is stateless: it is evaluated per event and never mutated.
type Trigger struct {
	Type      TriggerType      `json:"type"      validate:"required,oneof=document_type amount_threshold compliance_flag keyword_match manual"`
	Condition TriggerCondition `json:"condition"`
	Priority  int              `json:"priority"`
}
