package models

import "time"

// StepType labels a single entry in a reasoning chain.
type StepType string

const (
	StepAnalysis       StepType = "analysis"
	StepIdentification StepType = "identification"
	StepMatching       StepType = "matching"
	StepGeneration     StepType = "generation"
	StepSchemaAnalysis StepType = "schema_analysis"
	StepReflection     StepType = "reflection"
)

// ReasoningStep is one ordered entry of a chain. Payload carries structured
// evidence (scores, candidate lists, raw LLM text) for later inspection.
type ReasoningStep struct {
	StepNo      int            `json:"step_no"`
	Type        StepType       `json:"type"`
	Description string         `json:"description"`
	Detail      string         `json:"detail,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// ReasoningChain is the append-only record of how one point moved through one
// pipeline phase. Chains are identified by (operation_id, point_id, phase)
// and are never mutated after being written.
type ReasoningChain struct {
	OperationID string          `json:"operation_id"`
	PointID     string          `json:"point_id"`
	Phase       string          `json:"phase"` // grouping | tagging | mapping | reflection
	Steps       []ReasoningStep `json:"steps"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Append adds a step with the next sequential step number.
func (c *ReasoningChain) Append(t StepType, description, detail string, payload map[string]any) {
	c.Steps = append(c.Steps, ReasoningStep{
		StepNo:      len(c.Steps) + 1,
		Type:        t,
		Description: description,
		Detail:      detail,
		Payload:     payload,
	})
}
