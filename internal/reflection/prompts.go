package reflection

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourorg/enos-mapper/internal/ai"
	"github.com/yourorg/enos-mapper/internal/mapping"
	"github.com/yourorg/enos-mapper/internal/models"
)

// The prompt families are a closed set selected by reflection type. Each
// template states the exact response contract up front.

const correctiveSystemPrompt = `Your previous answer for a BMS point mapping was not valid JSON.
You must respond with exactly one JSON object and nothing else.
The only accepted shape is: {"enosPoint": "<id>"}
where <id> is one of the candidate ids listed, or "unknown".
No prose, no markdown fences, no additional fields.`

const refinedSystemPrompt = `You map building management system points to a canonical schema.
A first mapping pass failed for this point. You are given a structural decomposition
of its name, the closest canonical candidates, and specific suggestions.
Pick the single best candidate id, or "unknown" if none fits.
Respond with exactly one JSON object of the form {"enosPoint": "<id>"} and nothing else.`

// correctiveCall re-issues the candidate selection with the schema spelled
// out after a format failure.
func (e *Engine) correctiveCall(ctx context.Context, tp models.TaggedPoint, candidates []models.CanonicalPoint) (string, error) {
	if e.svc == nil || !e.svc.Enabled() {
		return "", nil
	}

	allowed := make(map[string]bool, len(candidates))
	var b strings.Builder
	fmt.Fprintf(&b, "BMS point: name=%s type=%s unit=%s\n\nCandidate ids:\n", tp.PointName, tp.PointType, tp.Unit)
	max := len(candidates)
	if max > 10 {
		max = 10
	}
	for _, cp := range candidates[:max] {
		allowed[cp.ID] = true
		fmt.Fprintf(&b, "- %s\n", cp.ID)
	}

	raw, err := e.svc.Complete(ctx, "reflect_corrective", ai.Prompt{System: correctiveSystemPrompt, User: b.String()})
	if err != nil {
		return "", err
	}
	pick, err := mapping.ParseSelection(raw)
	if err != nil || pick == "unknown" || !allowed[pick] {
		return "", err
	}
	return pick, nil
}

// refinedCall issues the unknown-mapping prompt: decomposition, closest
// matches, and suggestions.
func (e *Engine) refinedCall(ctx context.Context, tp models.TaggedPoint, d models.Decomposition,
	closest []models.CanonicalPoint, suggestions []string) (string, error) {

	allowed := make(map[string]bool, len(closest))
	var b strings.Builder
	fmt.Fprintf(&b, "BMS point: name=%s type=%s unit=%s\n", tp.PointName, tp.PointType, tp.Unit)
	fmt.Fprintf(&b, "\nName decomposition:\n")
	fmt.Fprintf(&b, "  segments=%v\n  measurement=%s\n  device=%s\n  property=%s\n",
		d.Segments, d.MeasurementType, d.Device, d.Property)
	fmt.Fprintf(&b, "\nClosest canonical candidates:\n")
	for _, cp := range closest {
		allowed[cp.ID] = true
		fmt.Fprintf(&b, "- %s (name=%s unit=%s)\n", cp.ID, cp.Name, cp.Unit)
	}
	if len(suggestions) > 0 {
		fmt.Fprintf(&b, "\nSuggestions:\n")
		for _, s := range suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	b.WriteString("\nAnswer with {\"enosPoint\": \"<one of the candidate ids or unknown>\"}")

	raw, err := e.svc.Complete(ctx, "reflect_refined", ai.Prompt{System: refinedSystemPrompt, User: b.String()})
	if err != nil {
		return "", err
	}
	pick, err := mapping.ParseSelection(raw)
	if err != nil || pick == "unknown" || !allowed[pick] {
		return "", err
	}
	return pick, nil
}
