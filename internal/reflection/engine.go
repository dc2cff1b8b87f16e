// Package reflection diagnoses failing mappings and produces refined
// prompts or locally corrected mappings. Each failure mode has its own
// prompt family; the mode tag selects the variant.
package reflection

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/yourorg/enos-mapper/internal/ai"
	"github.com/yourorg/enos-mapper/internal/analyzer"
	"github.com/yourorg/enos-mapper/internal/mapping"
	"github.com/yourorg/enos-mapper/internal/models"
	"github.com/yourorg/enos-mapper/internal/ontology"
)

// Outcome is the result of one reflection pass: the durable reflection
// record plus, when recovery succeeded, a revised mapping.
type Outcome struct {
	Reflection models.Reflection
	Revised    *models.Mapping
}

// Engine runs bounded reflection passes.
type Engine struct {
	ont        *ontology.Store
	an         *analyzer.Analyzer
	svc        ai.Service
	mapper     *mapping.Engine
	thresholds mapping.Thresholds
}

// NewEngine creates a reflection engine sharing the mapper's candidate index.
func NewEngine(ont *ontology.Store, an *analyzer.Analyzer, svc ai.Service, mapper *mapping.Engine) *Engine {
	return &Engine{
		ont:        ont,
		an:         an,
		svc:        svc,
		mapper:     mapper,
		thresholds: mapper.Thresholds(),
	}
}

// ShouldReflect reports whether a mapping outcome warrants a reflection
// pass: unmapped or suggested kinds, or confidence under the reflect
// threshold. Container points are exempt; there is nothing to recover.
func (e *Engine) ShouldReflect(m models.Mapping) bool {
	if m.Reason == mapping.ReasonStructuredView {
		return false
	}
	switch m.Kind {
	case models.MappingUnmapped, models.MappingSuggested:
		return true
	}
	return m.Confidence < e.thresholds.Reflect
}

// Reflect runs one reflection pass for a point. formatErr is non-nil when
// the mapping stage ended in an unparseable LLM response; it selects the
// format_error mode. The pass is strictly serial per point.
func (e *Engine) Reflect(ctx context.Context, operationID string, tp models.TaggedPoint,
	m models.Mapping, breakdown *mapping.Breakdown, formatErr *ai.FormatError,
	chain *models.ReasoningChain) (Outcome, error) {

	switch {
	case formatErr != nil:
		return e.reflectFormatError(ctx, operationID, tp, m, formatErr, chain)
	case m.Kind == models.MappingUnmapped:
		return e.reflectUnknownMapping(ctx, operationID, tp, m, chain)
	default:
		return e.reflectLowConfidence(operationID, tp, m, breakdown, chain)
	}
}

var identifierPattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_\-]{2,}`)

// reflectFormatError inspects the raw response for a salvageable payload:
// a bare identifier, JSON under a wrong field name, or a truncated object.
// When an allowed candidate id is found the mapping is rewritten locally
// without re-calling the LLM; otherwise a corrective prompt enumerating the
// exact response schema goes back through the adapter.
func (e *Engine) reflectFormatError(ctx context.Context, operationID string, tp models.TaggedPoint,
	m models.Mapping, formatErr *ai.FormatError, chain *models.ReasoningChain) (Outcome, error) {

	refl := models.Reflection{
		OperationID: operationID,
		PointID:     tp.PointID,
		Type:        models.ReflectionFormatError,
		CreatedAt:   time.Now().UTC(),
	}
	refl.Analysis = append(refl.Analysis, "llm response failed JSON extraction")

	candidates := e.mapper.CandidatesFor(tp.EquipmentType)
	allowed := make(map[string]models.CanonicalPoint, len(candidates))
	for _, cp := range candidates {
		allowed[cp.ID] = cp
	}

	// Salvage scan: every identifier-looking token in the raw text, checked
	// against the allowed candidate set.
	var salvaged string
	for _, tok := range identifierPattern.FindAllString(formatErr.Raw, -1) {
		if _, ok := allowed[tok]; ok {
			salvaged = tok
			break
		}
		// Wrong-field or truncated JSON often carries the suffix only.
		for id := range allowed {
			if strings.HasSuffix(id, tok) && len(tok) >= len(id)/2 {
				salvaged = id
				break
			}
		}
		if salvaged != "" {
			break
		}
	}

	if salvaged != "" {
		refl.Analysis = append(refl.Analysis, fmt.Sprintf("raw response contains allowed identifier %q", salvaged))
		refl.CorrectedFormat = fmt.Sprintf(`{"enosPoint": %q}`, salvaged)
		revised := e.reviseTo(tp, m, salvaged, "format_error_recovered")
		chain.Append(models.StepReflection, "format error recovered locally",
			fmt.Sprintf("salvaged %s from raw response without re-calling the llm", salvaged),
			map[string]any{"raw": formatErr.Raw})
		return Outcome{Reflection: refl, Revised: revised}, nil
	}

	refl.Analysis = append(refl.Analysis, "no allowed identifier in raw response; issuing corrective prompt")
	chain.Append(models.StepReflection, "format error corrective prompt",
		"raw response held no allowed identifier", map[string]any{"raw": formatErr.Raw})

	pick, err := e.correctiveCall(ctx, tp, candidates)
	if err != nil || pick == "" {
		return Outcome{Reflection: refl}, nil
	}
	refl.Analysis = append(refl.Analysis, fmt.Sprintf("corrective prompt yielded %q", pick))
	revised := e.reviseTo(tp, m, pick, "format_error_corrected")
	return Outcome{Reflection: refl, Revised: revised}, nil
}

// reflectUnknownMapping decomposes the name, derives the closest canonical
// matches from measurement, device, and unit signals, and issues a refined
// prompt carrying the decomposition, the top matches, and suggestions.
func (e *Engine) reflectUnknownMapping(ctx context.Context, operationID string, tp models.TaggedPoint,
	m models.Mapping, chain *models.ReasoningChain) (Outcome, error) {

	d := e.an.Decompose(tp.PointName, tp.Unit)
	refl := models.Reflection{
		OperationID:   operationID,
		PointID:       tp.PointID,
		Type:          models.ReflectionUnknownMapping,
		Decomposition: &d,
		CreatedAt:     time.Now().UTC(),
	}
	refl.Analysis = append(refl.Analysis,
		fmt.Sprintf("decomposed name: measurement=%s device=%s unit=%s", d.MeasurementType, d.Device, tp.Unit))

	candidates := e.mapper.CandidatesFor(tp.EquipmentType)
	closest := e.closestMatches(d, tp, candidates, 5)
	for _, c := range closest {
		refl.ClosestMatches = append(refl.ClosestMatches, c.ID)
	}
	refl.Suggestions = buildSuggestions(d, tp, closest)
	chain.Append(models.StepReflection, "unknown mapping diagnosis",
		fmt.Sprintf("closest matches: %v", refl.ClosestMatches),
		map[string]any{"suggestions": refl.Suggestions})

	if len(closest) == 0 || e.svc == nil || !e.svc.Enabled() {
		return Outcome{Reflection: refl}, nil
	}

	pick, err := e.refinedCall(ctx, tp, d, closest, refl.Suggestions)
	if err != nil || pick == "" {
		return Outcome{Reflection: refl}, nil
	}
	refl.Analysis = append(refl.Analysis, fmt.Sprintf("refined prompt selected %q", pick))
	revised := e.reviseTo(tp, m, pick, "unknown_mapping_recovered")
	chain.Append(models.StepReflection, "unknown mapping recovered",
		fmt.Sprintf("refined llm call selected %s", pick), nil)
	return Outcome{Reflection: refl, Revised: revised}, nil
}

// reflectLowConfidence identifies the weakest scoring factor, proposes a
// targeted improvement, and projects the resulting confidence. A revised
// mapping is produced only when the projection clears the suggest threshold.
func (e *Engine) reflectLowConfidence(operationID string, tp models.TaggedPoint,
	m models.Mapping, breakdown *mapping.Breakdown, chain *models.ReasoningChain) (Outcome, error) {

	refl := models.Reflection{
		OperationID: operationID,
		PointID:     tp.PointID,
		Type:        models.ReflectionLowConfidence,
		CreatedAt:   time.Now().UTC(),
	}
	if breakdown == nil {
		refl.Analysis = append(refl.Analysis, "no factor breakdown available")
		return Outcome{Reflection: refl}, nil
	}

	factor, value := breakdown.WeakestFactor()
	refl.Analysis = append(refl.Analysis, fmt.Sprintf("weakest factor %s at %.2f", factor, value))

	const projectedFactor = 0.8
	switch factor {
	case "name_similarity":
		refl.Suggestions = append(refl.Suggestions,
			fmt.Sprintf("add name pattern %q for canonical point %s", normalizePattern(tp.PointName), breakdown.CandidateID))
	case "phenomenon_match", "component_overlap", "tag_overlap":
		refl.Suggestions = append(refl.Suggestions,
			fmt.Sprintf("consider alternate interpretation: %s may describe %s", tp.PointName, breakdown.CandidateID))
	case "unit_compatibility":
		refl.Suggestions = append(refl.Suggestions,
			fmt.Sprintf("reconcile units: point reports %q, candidate expects different unit", tp.Unit))
	case "function_match":
		refl.Suggestions = append(refl.Suggestions,
			fmt.Sprintf("re-examine transport type %s against candidate function", tp.PointType))
	}

	projected := projectConfidence(*breakdown, factor, projectedFactor, e.mapper.Weights())
	refl.ConfidenceImprovements = map[string]float64{factor: projectedFactor}
	refl.Analysis = append(refl.Analysis, fmt.Sprintf("projected confidence %.3f (was %.3f)", projected, m.Confidence))
	chain.Append(models.StepReflection, "low confidence diagnosis",
		fmt.Sprintf("weakest=%s projected=%.3f", factor, projected),
		map[string]any{"factors": breakdown.Factors()})

	if projected < e.thresholds.Suggest || m.Target == nil {
		return Outcome{Reflection: refl}, nil
	}

	revised := m
	pre := m.Confidence
	revised.PreReflectionConfidence = &pre
	revised.Confidence = projected
	if revised.Confidence >= e.thresholds.Auto {
		revised.Kind = models.MappingAuto
	} else {
		revised.Kind = models.MappingSuggested
	}
	revised.Reason = "low_confidence_recalibrated"
	return Outcome{Reflection: refl, Revised: &revised}, nil
}

// reviseTo builds a revised suggested mapping targeting the given canonical
// id. Reflection recoveries never emit auto; the confidence is the local
// score clamped into [suggest, auto).
func (e *Engine) reviseTo(tp models.TaggedPoint, prev models.Mapping, id, reason string) *models.Mapping {
	cp, ok := e.mapper.CandidateByID(id)
	if !ok {
		return nil
	}
	ranked := e.mapper.Rank(tp, []models.CanonicalPoint{cp})
	score := ranked[0].Total
	if score < e.thresholds.Suggest {
		score = e.thresholds.Suggest
	}
	if score >= e.thresholds.Auto {
		score = e.thresholds.Auto - 0.01
	}
	pre := prev.Confidence
	return &models.Mapping{
		SourcePoint:             tp.Point,
		Target:                  &cp,
		Confidence:              score,
		PreReflectionConfidence: &pre,
		Kind:                    models.MappingSuggested,
		Rationale:               fmt.Sprintf("reflection (%s) selected %s", reason, id),
		Reason:                  reason,
	}
}

// closestMatches ranks candidates by measurement-type, device, and unit
// signals from the decomposition.
func (e *Engine) closestMatches(d models.Decomposition, tp models.TaggedPoint,
	candidates []models.CanonicalPoint, n int) []models.CanonicalPoint {

	type scored struct {
		cp    models.CanonicalPoint
		score float64
	}
	var ranked []scored
	for _, cp := range candidates {
		s := 0.0
		idLower := strings.ToLower(cp.ID + " " + cp.Name + " " + cp.Measurement + " " + strings.Join(cp.Component, " "))
		if d.MeasurementType != "" && strings.Contains(idLower, d.MeasurementType) {
			s += 0.4
		}
		if d.Device != "" && strings.Contains(idLower, d.Device) {
			s += 0.3
		}
		if tp.Unit != "" && strings.EqualFold(tp.Unit, cp.Unit) {
			s += 0.3
		}
		if s > 0 {
			ranked = append(ranked, scored{cp: cp, score: s})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].cp.ID < ranked[j].cp.ID
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]models.CanonicalPoint, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.cp)
	}
	return out
}

func buildSuggestions(d models.Decomposition, tp models.TaggedPoint, closest []models.CanonicalPoint) []string {
	var out []string
	if d.Device != "" && tp.Unit != "" && len(closest) > 0 {
		out = append(out, fmt.Sprintf("%s+%s ⇒ consider %s", d.Device, tp.Unit, closest[0].ID))
	}
	if d.MeasurementType != "" {
		out = append(out, fmt.Sprintf("name decomposes to measurement=%s; restrict candidates to that phenomenon", d.MeasurementType))
	}
	return out
}

func normalizePattern(name string) string {
	return strings.ToLower(strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name))
}

// projectConfidence recomputes the weighted total with one factor raised to
// its projected value.
func projectConfidence(b mapping.Breakdown, factor string, projected float64, w mapping.Weights) float64 {
	f := b.Factors()
	f[factor] = projected
	return w.NameSimilarity*f["name_similarity"] +
		w.FunctionMatch*f["function_match"] +
		w.ComponentOverlap*f["component_overlap"] +
		w.PhenomenonMatch*f["phenomenon_match"] +
		w.UnitCompat*f["unit_compatibility"] +
		w.TagOverlap*f["tag_overlap"]
}
