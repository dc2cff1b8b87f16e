package mapping

import (
	"strings"

	"github.com/yourorg/enos-mapper/internal/models"
)

// fallbackRule maps a (name substring, unit) pair to a canonical id suffix.
// The table is the documented last-resort rule set used when the LLM path
// is exhausted; confidences stay in 0.6–0.8 and the kind is always
// suggested, never auto.
type fallbackRule struct {
	substrings []string // any-of, matched case-insensitively against the point name
	unit       string   // required unit, "" = any
	idSuffix   string   // candidate id must end with this
	confidence float64
}

var fallbackRules = []fallbackRule{
	{substrings: []string{"pump", "cwp", "chwp"}, unit: "Hz", idSuffix: "PUMP_raw_frequency", confidence: 0.75},
	{substrings: []string{"fan"}, unit: "Hz", idSuffix: "fan_frequency", confidence: 0.75},
	{substrings: []string{"vsd", "vfd"}, unit: "Hz", idSuffix: "frequency", confidence: 0.7},
	{substrings: []string{"roomtemp", "room temp", "zonetemp"}, unit: "degC", idSuffix: "RoomTemp", confidence: 0.7},
	{substrings: []string{"chws"}, unit: "degC", idSuffix: "CHWS_raw_temp", confidence: 0.7},
	{substrings: []string{"chwr"}, unit: "degC", idSuffix: "CHWR_raw_temp", confidence: 0.7},
	{substrings: []string{"kw", "power"}, unit: "kW", idSuffix: "raw_active_power", confidence: 0.7},
	{substrings: []string{"status", "sts"}, unit: "", idSuffix: "raw_run_status", confidence: 0.6},
	{substrings: []string{"airflow"}, unit: "", idSuffix: "raw_airflow", confidence: 0.65},
	{substrings: []string{"dmpr", "damper"}, unit: "%", idSuffix: "raw_damper_position", confidence: 0.65},
}

// applyFallbackRules maps a small documented subset of (substring, unit)
// pairs onto the candidate set. It never emits kind auto.
func (e *Engine) applyFallbackRules(tp models.TaggedPoint, candidates []models.CanonicalPoint) (models.Mapping, bool) {
	lower := strings.ToLower(tp.PointName)
	for _, rule := range fallbackRules {
		if rule.unit != "" && !strings.EqualFold(rule.unit, tp.Unit) {
			continue
		}
		matched := false
		for _, sub := range rule.substrings {
			if strings.Contains(lower, sub) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for _, cp := range candidates {
			if !strings.HasSuffix(cp.ID, rule.idSuffix) {
				continue
			}
			return models.Mapping{
				SourcePoint: tp.Point,
				Target:      &cp,
				Confidence:  rule.confidence,
				Kind:        models.MappingSuggested,
				Transform:   transformFor(tp.Unit, cp.Unit),
				Rationale:   "rule-based fallback: " + strings.Join(rule.substrings, "|") + " + " + rule.unit,
				Reason:      "llm_exhausted_rule_fallback",
			}, true
		}
	}
	return models.Mapping{}, false
}
