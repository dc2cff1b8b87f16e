package schema

import (
	"github.com/yourorg/enos-mapper/internal/models"
	"github.com/yourorg/enos-mapper/internal/ontology"
)

// FromOntology derives a canonical point list from the ontology's standard
// points. Deployments without an external canonical schema document get a
// usable target schema out of the equipment catalog itself.
func FromOntology(ont *ontology.Store) []models.CanonicalPoint {
	var points []models.CanonicalPoint
	for _, t := range ont.AllEquipmentTypes() {
		for _, sp := range ont.StandardPoints(t) {
			cp := models.CanonicalPoint{
				ID:            sp.CanonicalID(t),
				EquipmentType: t,
				Name:          sp.EnosID,
				Measurement:   sp.Quantity,
				Unit:          sp.Unit,
			}
			if sp.Phenomenon != "" {
				cp.Component = []string{sp.Phenomenon}
			}
			points = append(points, cp)
		}
	}
	a := New(ont)
	return a.AdaptPoints(points)
}
