package models

// DocumentEvent is the inbound event produced by the surrounding document
// intelligence pipeline. Amount and ComplianceScore are nil when the
// extractor produced no value; an absent amount never matches a threshold
// trigger.
type DocumentEvent struct {
	DocumentID      string         `json:"document_id" validate:"required"`
	Category        string         `json:"category"`
	Amount          *float64       `json:"amount,omitempty"`
	ComplianceScore *float64       `json:"compliance_score,omitempty"`
	TextContent     string         `json:"text_content,omitempty"`
	ActorID         string         `json:"actor_id"`
	OrganizationID  string         `json:"organization_id"`
	Payload         map[string]any `json:"payload,omitempty"`
}
