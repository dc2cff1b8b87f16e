// Package mapping scores tagged points against the normalized canonical
// schema and emits the per-point Mapping records.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/yourorg/enos-mapper/internal/ai"
	"github.com/yourorg/enos-mapper/internal/models"
	"github.com/yourorg/enos-mapper/internal/ontology"
)

// ReasonStructuredView marks container objects that are never mapped.
const ReasonStructuredView = "structured_view_container_not_mapped"

// Engine maps tagged points onto canonical points.
type Engine struct {
	ont        *ontology.Store
	svc        ai.Service
	weights    Weights
	thresholds Thresholds

	byEquipment map[string][]models.CanonicalPoint
	all         []models.CanonicalPoint
}

// NewEngine indexes the normalized canonical schema by equipment type.
func NewEngine(ont *ontology.Store, points []models.CanonicalPoint, svc ai.Service, w Weights, t Thresholds) *Engine {
	e := &Engine{
		ont:         ont,
		svc:         svc,
		weights:     w,
		thresholds:  t,
		byEquipment: make(map[string][]models.CanonicalPoint),
		all:         points,
	}
	for _, p := range points {
		e.byEquipment[p.EquipmentType] = append(e.byEquipment[p.EquipmentType], p)
	}
	return e
}

// Thresholds returns the engine's threshold configuration.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// Weights returns the engine's factor weights.
func (e *Engine) Weights() Weights { return e.weights }

// CandidatesFor returns the canonical points for an equipment type; the
// whole schema when the equipment is unknown.
func (e *Engine) CandidatesFor(equipmentType string) []models.CanonicalPoint {
	if equipmentType == models.EquipmentUnknown || equipmentType == "" {
		return e.all
	}
	return e.byEquipment[equipmentType]
}

// Rank scores the point against every candidate and returns breakdowns in
// tie-broken order: higher total, then function match, then unit
// compatibility, then lexicographic canonical id.
func (e *Engine) Rank(tp models.TaggedPoint, candidates []models.CanonicalPoint) []Breakdown {
	out := make([]Breakdown, 0, len(candidates))
	for _, cp := range candidates {
		out = append(out, e.score(tp, cp))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.FunctionMatch != b.FunctionMatch {
			return a.FunctionMatch > b.FunctionMatch
		}
		if a.UnitCompat != b.UnitCompat {
			return a.UnitCompat > b.UnitCompat
		}
		return a.CandidateID < b.CandidateID
	})
	return out
}

// CandidateByID resolves a candidate from the whole schema.
func (e *Engine) CandidateByID(id string) (models.CanonicalPoint, bool) {
	for _, p := range e.all {
		if p.ID == id {
			return p, true
		}
	}
	return models.CanonicalPoint{}, false
}

// Map emits the mapping for one tagged point. The returned breakdown is the
// best candidate's factor scores (nil for container points). A non-nil
// error is either a context cancellation or deadline error, returned with
// an empty mapping, or an *ai.FormatError carrying the raw LLM response; in
// the latter case the mapping alongside it is the local result, and the
// caller routes the error into format_error reflection.
func (e *Engine) Map(ctx context.Context, tp models.TaggedPoint, chain *models.ReasoningChain) (models.Mapping, *Breakdown, error) {
	// Containers (structured views, device objects) hold no datum to map.
	if tp.PointType == models.PointTypeStructuredView || tp.PointType == models.PointTypeDevice {
		chain.Append(models.StepAnalysis, "container point", "structured view and device objects are not mappable", nil)
		return models.Mapping{
			SourcePoint: tp.Point,
			Kind:        models.MappingUnmapped,
			Reason:      ReasonStructuredView,
		}, nil, nil
	}

	candidates := e.CandidatesFor(tp.EquipmentType)
	chain.Append(models.StepSchemaAnalysis, "candidate selection",
		fmt.Sprintf("%d canonical candidates for equipment %q", len(candidates), tp.EquipmentType), nil)
	if len(candidates) == 0 {
		return models.Mapping{
			SourcePoint: tp.Point,
			Kind:        models.MappingUnmapped,
			Reason:      "no_candidates_for_equipment",
		}, nil, nil
	}

	ranked := e.Rank(tp, candidates)
	best := ranked[0]
	chain.Append(models.StepMatching, "scored candidates",
		fmt.Sprintf("best %s at %.3f", best.CandidateID, best.Total),
		map[string]any{"top": topSummary(ranked, 5), "factors": best.Factors()})

	// Low-confidence selection may be delegated to the LLM over the local
	// top-k; an out-of-set answer is never accepted.
	var formatErr *ai.FormatError
	if best.Total < e.thresholds.Auto && e.svc != nil && e.svc.Enabled() {
		pick, err := e.selectWithLLM(ctx, tp, ranked, 5)
		switch {
		case err == nil && pick != "":
			for _, b := range ranked {
				if b.CandidateID == pick {
					best = b
					chain.Append(models.StepGeneration, "llm candidate selection",
						fmt.Sprintf("llm selected %s", pick), nil)
					break
				}
			}
		case errors.As(err, &formatErr):
			chain.Append(models.StepGeneration, "llm response unparseable",
				"format error; reflection will inspect the raw response", nil)
		case ai.IsFallback(err):
			chain.Append(models.StepGeneration, "llm path exhausted", "applying local rules", nil)
			if best.Total < e.thresholds.Suggest {
				if m, ok := e.applyFallbackRules(tp, candidates); ok {
					chain.Append(models.StepGeneration, "rule-based fallback mapping",
						fmt.Sprintf("matched %s", m.EnosPoint()), nil)
					return m, &best, nil
				}
			}
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return models.Mapping{}, nil, err
		default:
			slog.Warn("llm candidate selection failed", "point_id", tp.PointID, "err", err)
		}
	}

	m := e.emit(tp, best)
	chain.Append(models.StepGeneration, "mapping decision",
		fmt.Sprintf("kind=%s confidence=%.3f target=%s", m.Kind, m.Confidence, m.EnosPoint()), nil)
	if formatErr != nil {
		return m, &best, formatErr
	}
	return m, &best, nil
}

// emit converts a chosen breakdown into the Mapping record, enforcing the
// threshold and equipment-match invariants.
func (e *Engine) emit(tp models.TaggedPoint, best Breakdown) models.Mapping {
	m := models.Mapping{
		SourcePoint: tp.Point,
		Confidence:  best.Total,
	}

	cp, ok := e.CandidateByID(best.CandidateID)
	if !ok || best.Total < e.thresholds.Suggest {
		m.Kind = models.MappingUnmapped
		m.Confidence = best.Total
		m.Reason = "below_suggest_threshold"
		return m
	}

	// A candidate from another equipment class is rejected, not emitted.
	if tp.EquipmentType != models.EquipmentUnknown && cp.EquipmentType != tp.EquipmentType {
		m.Kind = models.MappingUnmapped
		m.Reason = "equipment_mismatch"
		return m
	}

	m.Target = &cp
	m.Transform = transformFor(tp.Unit, cp.Unit)
	if best.Total >= e.thresholds.Auto {
		m.Kind = models.MappingAuto
	} else {
		m.Kind = models.MappingSuggested
	}
	m.Rationale = fmt.Sprintf("matched %s on name=%.2f function=%.2f unit=%.2f",
		cp.ID, best.NameSimilarity, best.FunctionMatch, best.UnitCompat)
	return m
}

func topSummary(ranked []Breakdown, n int) []map[string]any {
	if len(ranked) < n {
		n = len(ranked)
	}
	out := make([]map[string]any, 0, n)
	for _, b := range ranked[:n] {
		out = append(out, map[string]any{"id": b.CandidateID, "score": b.Total})
	}
	return out
}
