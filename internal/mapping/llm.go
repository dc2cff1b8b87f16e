package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yourorg/enos-mapper/internal/ai"
	"github.com/yourorg/enos-mapper/internal/models"
)

const selectSystemPrompt = `You map building management system points to a canonical schema.
You are given one BMS point and a short list of candidate canonical points.
Pick the single best candidate, or "unknown" if none fits.
Respond with exactly one JSON object of the form {"enosPoint": "<id>"} and nothing else.`

// selectionEnvelope is the only response shape the engine accepts.
type selectionEnvelope struct {
	EnosPoint string `json:"enosPoint"`
}

// selectWithLLM asks the model to choose among the local top-k candidates.
// The answer must be one of the offered ids; anything else (including
// "unknown") yields "", nil. Format errors propagate to the caller for
// reflection.
func (e *Engine) selectWithLLM(ctx context.Context, tp models.TaggedPoint, ranked []Breakdown, k int) (string, error) {
	if len(ranked) < k {
		k = len(ranked)
	}
	allowed := make(map[string]bool, k)
	var b strings.Builder
	fmt.Fprintf(&b, "BMS point:\n")
	fmt.Fprintf(&b, "  name=%s\n", tp.PointName)
	fmt.Fprintf(&b, "  type=%s\n", tp.PointType)
	if tp.Unit != "" {
		fmt.Fprintf(&b, "  unit=%s\n", tp.Unit)
	}
	if tp.Description != "" {
		fmt.Fprintf(&b, "  description=%s\n", tp.Description)
	}
	fmt.Fprintf(&b, "  equipment=%s function=%s phenomenon=%s\n", tp.EquipmentType, tp.Function, tp.Phenomenon)
	fmt.Fprintf(&b, "\nCandidates:\n")
	for _, cand := range ranked[:k] {
		allowed[cand.CandidateID] = true
		cp, _ := e.CandidateByID(cand.CandidateID)
		fmt.Fprintf(&b, "- %s (name=%s unit=%s local_score=%.2f)\n", cand.CandidateID, cp.Name, cp.Unit, cand.Total)
	}
	b.WriteString("\nAnswer with {\"enosPoint\": \"<one of the candidate ids or unknown>\"}")

	raw, err := e.svc.Complete(ctx, "select_candidate", ai.Prompt{System: selectSystemPrompt, User: b.String()})
	if err != nil {
		return "", err
	}

	pick, err := ParseSelection(raw)
	if err != nil {
		return "", err
	}
	if pick == "" || pick == "unknown" || !allowed[pick] {
		// Out-of-set answers are never accepted.
		return "", nil
	}
	return pick, nil
}

// ParseSelection decodes the strict {"enosPoint": "<id>"} envelope.
func ParseSelection(raw json.RawMessage) (string, error) {
	var env selectionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", &ai.FormatError{Raw: string(raw), Reason: "selection envelope did not parse"}
	}
	if env.EnosPoint == "" {
		return "", &ai.FormatError{Raw: string(raw), Reason: "selection envelope missing enosPoint"}
	}
	return env.EnosPoint, nil
}
