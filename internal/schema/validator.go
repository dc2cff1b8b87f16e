package schema

import (
	"fmt"

	"github.com/yourorg/enos-mapper/internal/models"
)

// Issue is one validation finding for an adapted canonical point. Issues are
// logged, not fatal; only a missing id causes a point to be discarded.
type Issue struct {
	PointID string `json:"point_id"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate inspects adapted points and returns per-point findings. It never
// mutates its input.
func (a *Adapter) Validate(points []models.CanonicalPoint) []Issue {
	var issues []Issue
	seen := make(map[string]bool, len(points))

	for _, p := range points {
		if p.ID == "" {
			issues = append(issues, Issue{Field: "id", Message: fmt.Sprintf("point %q has no id and will be discarded", p.Name)})
			continue
		}
		if seen[p.ID] {
			issues = append(issues, Issue{PointID: p.ID, Field: "id", Message: "duplicate point id"})
		}
		seen[p.ID] = true

		if p.EquipmentType == "" {
			issues = append(issues, Issue{PointID: p.ID, Field: "equipment_type", Message: "no equipment type; point matches only unknown-equipment candidates"})
		} else if _, ok := a.ont.EquipmentTypeInfo(p.EquipmentType); !ok {
			issues = append(issues, Issue{PointID: p.ID, Field: "equipment_type", Message: fmt.Sprintf("equipment type %q not in ontology", p.EquipmentType)})
		}
		if p.Name == "" {
			issues = append(issues, Issue{PointID: p.ID, Field: "name", Message: "no name"})
		}
		if p.Unit == "" && p.Measurement != "" {
			issues = append(issues, Issue{PointID: p.ID, Field: "unit", Message: "no unit and none derivable from ontology"})
		}
	}

	logIssues(issues)
	return issues
}
