package grouping

import (
	"fmt"
	"strings"

	"github.com/yourorg/enos-mapper/internal/models"
)

// contradictions lists name fragments that cannot belong to a group of the
// given equipment type. A VAV box has no chiller internals; a chiller plant
// has no air-side hardware.
var contradictions = map[string][]string{
	"VAV":    {"chiller", "compressor", "condenser"},
	"FCU":    {"chiller", "compressor", "condenser"},
	"CH-SYS": {"airflow", "damper", "duct"},
	"CT":     {"airflow", "damper", "duct"},
	"PUMP":   {"airflow", "damper", "duct"},
}

// verify detects contradictory points inside tentatively assigned groups
// and reassigns them by rerunning the cascade against a filtered candidate
// set. Points the cascade cannot place land in the unknown group.
func (e *Engine) verify(assignments map[string]assignment, chains map[string]*models.ReasoningChain, points []models.Point) {
	byID := make(map[string]models.Point, len(points))
	for _, p := range points {
		byID[p.PointID] = p
	}

	for id, a := range assignments {
		fragments, ok := contradictions[a.equipment]
		if !ok {
			continue
		}
		p := byID[id]
		lower := strings.ToLower(p.PointName)
		var clash string
		for _, frag := range fragments {
			if strings.Contains(lower, frag) {
				clash = frag
				break
			}
		}
		if clash == "" {
			continue
		}

		exclude := map[string]bool{a.equipment: true}
		equip, method := e.cascade(prefixOf(p.PointName), []models.Point{p}, exclude)
		if equip == "" {
			equip, method = models.EquipmentUnknown, "unknown"
		}
		d := e.an.Decompose(p.PointName, p.Unit)
		assignments[id] = assignment{equipment: equip, instance: e.instanceID(d), method: method}

		if c, ok := chains[id]; ok {
			c.Append(models.StepAnalysis, "group contradiction",
				fmt.Sprintf("%q contradicts %s (fragment %q); reassigned to %s via %s",
					p.PointName, a.equipment, clash, equip, method), nil)
		}
	}
}

// groupConfidence is the weighted mean of naming-pattern dominance (0.4),
// point-type consistency (0.2), unit consistency (0.2), and overall
// coherence (0.2). Recorded only; never gates progression.
func (e *Engine) groupConfidence(equip string, pts []models.Point) float64 {
	if len(pts) == 0 || equip == models.EquipmentUnknown {
		return 0
	}
	eq, ok := e.ont.EquipmentTypeInfo(equip)
	if !ok {
		return 0
	}

	patterns := append([]string{}, eq.NamePatterns...)
	patterns = append(patterns, eq.Abbreviations...)
	patternHits, typeHits, unitHits, clashes := 0, 0, 0, 0

	expectedUnits := make(map[string]bool)
	for _, sp := range eq.StandardPoints {
		if sp.Unit != "" {
			expectedUnits[strings.ToLower(sp.Unit)] = true
		}
	}

	for _, p := range pts {
		lower := strings.ToLower(p.PointName)
		for _, pat := range patterns {
			if strings.Contains(lower, strings.ToLower(pat)) {
				patternHits++
				break
			}
		}
		switch p.PointType {
		case models.PointTypeStructuredView, models.PointTypeDevice:
			// containers are neutral for type consistency
		default:
			typeHits++
		}
		if p.Unit == "" || expectedUnits[strings.ToLower(p.Unit)] {
			unitHits++
		}
		for _, frag := range contradictions[equip] {
			if strings.Contains(lower, frag) {
				clashes++
				break
			}
		}
	}

	n := float64(len(pts))
	coherence := 1 - float64(clashes)/n
	return 0.4*float64(patternHits)/n + 0.2*float64(typeHits)/n + 0.2*float64(unitHits)/n + 0.2*coherence
}
