package grouping

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yourorg/enos-mapper/internal/ai"
	"github.com/yourorg/enos-mapper/internal/models"
)

const groupingSystemPrompt = `You classify groups of building management system points by equipment type.
For each prefix you are given the shared name prefix, the point name suffixes under it, and the available equipment catalog.
Assign each prefix to exactly one catalog equipment type, or "unknown".
Respond with exactly one JSON object of the form {"assignments": {"<prefix>": "<equipment_type>"}} and nothing else.`

// groupingEnvelope is the only response shape accepted from the model.
type groupingEnvelope struct {
	Assignments map[string]string `json:"assignments"`
}

// resolveWithLLM classifies the undecided prefixes in token-budgeted
// batches and merges the answers by prefix key. Exhausted or unparseable
// responses leave the affected prefixes in the unknown group.
func (e *Engine) resolveWithLLM(ctx context.Context, pending map[string][]models.Point,
	assignments map[string]assignment, chains map[string]*models.ReasoningChain, operationID string) {

	prefixes := sortedKeys(pending)

	if e.svc == nil || !e.svc.Enabled() {
		for _, prefix := range prefixes {
			e.assignGroup(assignments, chains, operationID, prefix, pending[prefix], models.EquipmentUnknown, "unknown")
		}
		return
	}

	// Each prefix block's size drives the batch split; the catalog section
	// is counted once per batch as overhead.
	blocks := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		blocks = append(blocks, e.prefixBlock(prefix, pending[prefix]))
	}
	catalog := e.catalogSection()
	batches := ai.SplitByTokenBudget(blocks, e.tokenBudget, ai.EstimateTokens(catalog))

	decided := make(map[string]string)
	blockIdx := 0
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			break
		}
		batchPrefixes := prefixes[blockIdx : blockIdx+len(batch)]
		blockIdx += len(batch)

		user := catalog + "\nPrefixes:\n" + strings.Join(batch, "\n")
		raw, err := e.svc.Complete(ctx, "group_prefixes", ai.Prompt{System: groupingSystemPrompt, User: user})
		if err != nil {
			slog.Warn("llm grouping batch failed", "prefixes", len(batchPrefixes), "err", err)
			continue
		}
		var env groupingEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Warn("llm grouping envelope did not parse", "err", err)
			continue
		}
		valid := make(map[string]bool)
		for _, t := range e.ont.AllEquipmentTypes() {
			valid[t] = true
		}
		for prefix, equip := range env.Assignments {
			if valid[equip] {
				decided[prefix] = equip
			}
		}
	}

	for _, prefix := range prefixes {
		equip, ok := decided[prefix]
		if ok {
			e.assignGroup(assignments, chains, operationID, prefix, pending[prefix], equip, "llm")
		} else {
			e.assignGroup(assignments, chains, operationID, prefix, pending[prefix], models.EquipmentUnknown, "unknown")
		}
	}
}

func (e *Engine) prefixBlock(prefix string, group []models.Point) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- prefix=%q suffixes=[", prefix)
	for i, p := range group {
		if i > 0 {
			b.WriteString(", ")
		}
		suffix := strings.TrimPrefix(p.PointName, prefix)
		suffix = strings.TrimPrefix(suffix, ".")
		fmt.Fprintf(&b, "%q", suffix)
	}
	b.WriteString("]")
	return b.String()
}

func (e *Engine) catalogSection() string {
	var b strings.Builder
	b.WriteString("Equipment catalog:\n")
	for _, t := range e.ont.AllEquipmentTypes() {
		eq, _ := e.ont.EquipmentTypeInfo(t)
		fmt.Fprintf(&b, "- %s: %s\n", t, eq.Description)
	}
	return b.String()
}
