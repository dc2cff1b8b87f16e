package ontology

import "github.com/yourorg/enos-mapper/internal/models"

// StandardPoint is an expected point on an equipment type, carrying the
// canonical suffix it maps to and its resource classification.
type StandardPoint struct {
	Name       string               `yaml:"name" json:"name"`           // e.g. "VSD.Hz"
	EnosID     string               `yaml:"enos_id" json:"enos_id"`     // e.g. "PUMP_raw_frequency"
	Phenomenon string               `yaml:"phenomenon" json:"phenomenon"`
	Quantity   string               `yaml:"quantity,omitempty" json:"quantity,omitempty"`
	Unit       string               `yaml:"unit,omitempty" json:"unit,omitempty"`
	Function   models.PointFunction `yaml:"function,omitempty" json:"function,omitempty"`
}

// CanonicalID returns the full canonical point id for this standard point on
// the given equipment type, e.g. "CH-SYS" + "PUMP_raw_frequency".
func (sp StandardPoint) CanonicalID(equipmentType string) string {
	return equipmentType + "_" + sp.EnosID
}

// Component is a physical sub-assembly of an equipment type. Components and
// equipment reference each other by id only, never by pointer, so either
// table can be reloaded independently.
type Component struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Aliases       []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Subcomponents []string `yaml:"subcomponents,omitempty" json:"subcomponents,omitempty"`
}

// Equipment is one entry of the equipment catalog.
type Equipment struct {
	Type          string   `yaml:"type" json:"type"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	Abbreviations []string `yaml:"abbreviations" json:"abbreviations"`
	// Components lists component ids from the component table.
	Components     []string        `yaml:"components,omitempty" json:"components,omitempty"`
	StandardPoints []StandardPoint `yaml:"standard_points" json:"standard_points"`
	// NamePatterns are leading-segment patterns that directly identify this
	// equipment, checked case-insensitively.
	NamePatterns []string `yaml:"name_patterns,omitempty" json:"name_patterns,omitempty"`
}

// Phenomenon is one entry of the general resource taxonomy.
type Phenomenon struct {
	Name       string   `yaml:"name" json:"name"`
	Quantities []string `yaml:"quantities,omitempty" json:"quantities,omitempty"`
	// Units maps a quantity ("" for the default) to its admissible units.
	Units map[string][]string `yaml:"units,omitempty" json:"units,omitempty"`
	// Related names phenomena considered semantically adjacent for scoring.
	Related []string `yaml:"related,omitempty" json:"related,omitempty"`
}

// equipmentDocument is the on-disk shape of the equipment catalog.
type equipmentDocument struct {
	Equipment  []Equipment `yaml:"equipment"`
	Components []Component `yaml:"components"`
}

// resourceDocument is the on-disk shape of the resource taxonomy.
type resourceDocument struct {
	Phenomena []Phenomenon `yaml:"phenomena"`
}
