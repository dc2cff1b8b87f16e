package ontology

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrOntologyLoad is returned when a definition document cannot be read.
	ErrOntologyLoad = errors.New("ontology_load_error")
	// ErrOntologySchema is returned when a document is structurally invalid.
	ErrOntologySchema = errors.New("ontology_schema_error")
)

// Store holds the equipment ontology and the general resource taxonomy.
// It is read-only after load and safe to share across operations.
type Store struct {
	equipment  map[string]Equipment
	components map[string]Component
	phenomena  map[string]Phenomenon
	warnings   []string
}

// LoadFiles reads the equipment catalog and resource taxonomy from YAML
// documents and validates them. Missing optional fields produce warnings,
// not errors; unreadable input fails with ErrOntologyLoad and structurally
// invalid input with ErrOntologySchema.
func LoadFiles(equipmentPath, resourcesPath string) (*Store, error) {
	equipRaw, err := os.ReadFile(equipmentPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrOntologyLoad, equipmentPath, err)
	}
	resRaw, err := os.ReadFile(resourcesPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrOntologyLoad, resourcesPath, err)
	}
	return Load(equipRaw, resRaw)
}

// Load parses and validates in-memory definition documents.
func Load(equipmentDoc, resourceDoc []byte) (*Store, error) {
	var eq equipmentDocument
	if err := yaml.Unmarshal(equipmentDoc, &eq); err != nil {
		return nil, fmt.Errorf("%w: equipment document: %v", ErrOntologySchema, err)
	}
	var res resourceDocument
	if err := yaml.Unmarshal(resourceDoc, &res); err != nil {
		return nil, fmt.Errorf("%w: resource document: %v", ErrOntologySchema, err)
	}
	return build(eq.Equipment, eq.Components, res.Phenomena)
}

// build indexes the tables and runs validation.
func build(equipment []Equipment, components []Component, phenomena []Phenomenon) (*Store, error) {
	if len(equipment) == 0 {
		return nil, fmt.Errorf("%w: equipment catalog is empty", ErrOntologySchema)
	}

	s := &Store{
		equipment:  make(map[string]Equipment, len(equipment)),
		components: make(map[string]Component, len(components)),
		phenomena:  make(map[string]Phenomenon, len(phenomena)),
	}

	for _, c := range components {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: component with empty id", ErrOntologySchema)
		}
		s.components[c.ID] = c
	}

	for _, e := range equipment {
		if e.Type == "" {
			return nil, fmt.Errorf("%w: equipment with empty type", ErrOntologySchema)
		}
		if len(e.Abbreviations) == 0 {
			return nil, fmt.Errorf("%w: equipment %q has no abbreviations", ErrOntologySchema, e.Type)
		}
		if e.StandardPoints == nil {
			return nil, fmt.Errorf("%w: equipment %q has no standard_points list", ErrOntologySchema, e.Type)
		}
		if len(e.StandardPoints) == 0 {
			s.warn("equipment %q has an empty standard_points list", e.Type)
		}
		if e.Description == "" {
			s.warn("equipment %q has no description", e.Type)
		}
		for _, cid := range e.Components {
			if _, ok := s.components[cid]; !ok {
				s.warn("equipment %q references unknown component %q", e.Type, cid)
			}
		}
		for _, sp := range e.StandardPoints {
			if sp.Name == "" || sp.EnosID == "" {
				return nil, fmt.Errorf("%w: equipment %q has a standard point with empty name or enos_id", ErrOntologySchema, e.Type)
			}
			if sp.Phenomenon != "" {
				if _, ok := indexOf(phenomena, sp.Phenomenon); !ok {
					s.warn("equipment %q standard point %q references unknown phenomenon %q", e.Type, sp.Name, sp.Phenomenon)
				}
			}
		}
		s.equipment[e.Type] = e
	}

	for _, p := range phenomena {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: phenomenon with empty name", ErrOntologySchema)
		}
		s.phenomena[p.Name] = p
	}

	for _, w := range s.warnings {
		slog.Warn("ontology load warning", "warning", w)
	}
	return s, nil
}

func indexOf(phenomena []Phenomenon, name string) (int, bool) {
	for i, p := range phenomena {
		if p.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (s *Store) warn(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

// Warnings returns the non-fatal findings collected at load time.
func (s *Store) Warnings() []string {
	out := make([]string, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// EquipmentTypeInfo looks up one equipment catalog entry.
func (s *Store) EquipmentTypeInfo(t string) (Equipment, bool) {
	e, ok := s.equipment[t]
	return e, ok
}

// StandardPoints returns the standard point list for an equipment type,
// nil when the type is unknown.
func (s *Store) StandardPoints(t string) []StandardPoint {
	e, ok := s.equipment[t]
	if !ok {
		return nil
	}
	return e.StandardPoints
}

// Abbreviations returns a lower-cased abbreviation -> equipment type index
// over the whole catalog.
func (s *Store) Abbreviations() map[string]string {
	out := make(map[string]string)
	for t, e := range s.equipment {
		for _, a := range e.Abbreviations {
			out[strings.ToLower(a)] = t
		}
	}
	return out
}

// AllEquipmentTypes returns the catalog's equipment types in sorted order.
func (s *Store) AllEquipmentTypes() []string {
	out := make([]string, 0, len(s.equipment))
	for t := range s.equipment {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ComponentByID resolves a component table entry.
func (s *Store) ComponentByID(id string) (Component, bool) {
	c, ok := s.components[id]
	return c, ok
}

// ComponentsFor resolves the component entries referenced by an equipment
// type, skipping dangling ids (already warned at load).
func (s *Store) ComponentsFor(t string) []Component {
	e, ok := s.equipment[t]
	if !ok {
		return nil
	}
	out := make([]Component, 0, len(e.Components))
	for _, id := range e.Components {
		if c, ok := s.components[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// UnitsFor returns the admissible units for a phenomenon/quantity pair.
// An unknown quantity falls back to the phenomenon's default unit list.
func (s *Store) UnitsFor(phenomenon, quantity string) []string {
	p, ok := s.phenomena[phenomenon]
	if !ok {
		return nil
	}
	if units, ok := p.Units[quantity]; ok {
		return units
	}
	return p.Units[""]
}

// Phenomenon looks up one resource taxonomy entry.
func (s *Store) Phenomenon(name string) (Phenomenon, bool) {
	p, ok := s.phenomena[name]
	return p, ok
}

// Related reports whether two phenomena are semantically adjacent, in either
// direction. Equal names are not related; they are equal.
func (s *Store) Related(a, b string) bool {
	if a == b {
		return false
	}
	if p, ok := s.phenomena[a]; ok {
		for _, r := range p.Related {
			if r == b {
				return true
			}
		}
	}
	if p, ok := s.phenomena[b]; ok {
		for _, r := range p.Related {
			if r == a {
				return true
			}
		}
	}
	return false
}
