// Package schema absorbs drift between the external canonical point schema
// and the internal CanonicalPoint shape consumed by the mapping engine.
package schema

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yourorg/enos-mapper/internal/models"
	"github.com/yourorg/enos-mapper/internal/ontology"
)

// Adapter normalizes external canonical schema documents. It is stateless
// apart from the ontology used to backfill missing units.
type Adapter struct {
	ont *ontology.Store
}

// New creates an adapter backed by the given ontology.
func New(ont *ontology.Store) *Adapter {
	return &Adapter{ont: ont}
}

// AdaptDocument parses a YAML or JSON canonical schema document and adapts
// it. The document may be a list of points, a dict keyed by point id, or a
// wrapper object with a "points" member of either shape.
func (a *Adapter) AdaptDocument(raw []byte) ([]models.CanonicalPoint, []Issue, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("canonical schema: parse: %w", err)
	}
	return a.Adapt(doc)
}

// Adapt normalizes a decoded schema document into the internal shape:
// container normalized to a list, quantity renamed to measurement,
// phenomenon and aspect folded into the component list, scalars coerced to
// singleton lists, and unit backfilled from the ontology when absent.
// Running AdaptPoints over Adapt's output yields the same result.
func (a *Adapter) Adapt(doc any) ([]models.CanonicalPoint, []Issue, error) {
	entries, err := flatten(doc)
	if err != nil {
		return nil, nil, err
	}

	points := make([]models.CanonicalPoint, 0, len(entries))
	for _, e := range entries {
		points = append(points, a.adaptEntry(e))
	}

	// Stable output order regardless of container shape.
	sort.Slice(points, func(i, j int) bool { return points[i].ID < points[j].ID })

	issues := a.Validate(points)
	kept := points[:0]
	for _, p := range points {
		// A point without an id cannot be referenced by any mapping.
		if p.ID == "" {
			continue
		}
		kept = append(kept, p)
	}
	return kept, issues, nil
}

// AdaptPoints re-normalizes an already-internal point list. It applies the
// same coercions as Adapt and is idempotent.
func (a *Adapter) AdaptPoints(points []models.CanonicalPoint) []models.CanonicalPoint {
	out := make([]models.CanonicalPoint, 0, len(points))
	for _, p := range points {
		if p.EquipmentType == "" {
			p.EquipmentType = equipmentFromID(p.ID)
		}
		if p.Name == "" {
			p.Name = nameFromID(p.ID, p.EquipmentType)
		}
		p.Component = dedupe(p.Component)
		if p.Unit == "" {
			p.Unit = a.unitFor(p.Measurement, p.Component)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// entry is one raw schema record plus the container key it was found under.
type entry struct {
	key    string
	fields map[string]any
}

func flatten(doc any) ([]entry, error) {
	switch v := doc.(type) {
	case []any:
		out := make([]entry, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("canonical schema: list entry is %T, want object", item)
			}
			out = append(out, entry{fields: m})
		}
		return out, nil
	case map[string]any:
		// A wrapper object carries its points under "points".
		if inner, ok := v["points"]; ok {
			return flatten(inner)
		}
		// Otherwise the map is a dict keyed by point id.
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]entry, 0, len(keys))
		for _, k := range keys {
			m, ok := v[k].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("canonical schema: entry %q is %T, want object", k, v[k])
			}
			out = append(out, entry{key: k, fields: m})
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("canonical schema: document is %T, want list or object", doc)
	}
}

func (a *Adapter) adaptEntry(e entry) models.CanonicalPoint {
	p := models.CanonicalPoint{
		ID:            stringField(e.fields, "id"),
		EquipmentType: stringField(e.fields, "equipment_type", "equipmentType", "equipment"),
		Name:          stringField(e.fields, "name", "point_name", "pointName"),
		Measurement:   stringField(e.fields, "measurement", "quantity"),
		Unit:          stringField(e.fields, "unit", "units"),
		DataType:      stringField(e.fields, "data_type", "dataType", "type"),
	}
	if p.ID == "" {
		p.ID = e.key
	}
	if p.EquipmentType == "" {
		p.EquipmentType = equipmentFromID(p.ID)
	}
	if p.Name == "" {
		p.Name = nameFromID(p.ID, p.EquipmentType)
	}

	// phenomenon ∪ aspect ∪ component fold into one component list.
	var components []string
	components = append(components, listField(e.fields, "component", "components")...)
	phenomenon := stringField(e.fields, "phenomenon")
	if phenomenon != "" {
		components = append(components, phenomenon)
	}
	components = append(components, listField(e.fields, "aspect", "aspects")...)
	p.Component = dedupe(components)

	if p.Unit == "" {
		quantity := stringField(e.fields, "quantity", "measurement")
		if phenomenon != "" {
			if units := a.ont.UnitsFor(phenomenon, quantity); len(units) > 0 {
				p.Unit = units[0]
			}
		}
		if p.Unit == "" {
			p.Unit = a.unitFor(p.Measurement, p.Component)
		}
	}
	return p
}

// unitFor backfills a unit by treating each component entry as a candidate
// phenomenon name. Used when the source document carried no explicit unit.
func (a *Adapter) unitFor(measurement string, components []string) string {
	for _, c := range components {
		if units := a.ont.UnitsFor(c, measurement); len(units) > 0 {
			return units[0]
		}
	}
	return ""
}

func equipmentFromID(id string) string {
	if i := strings.Index(id, "_"); i > 0 {
		return id[:i]
	}
	return ""
}

func nameFromID(id, equipmentType string) string {
	if equipmentType != "" && strings.HasPrefix(id, equipmentType+"_") {
		return id[len(equipmentType)+1:]
	}
	return id
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			switch s := v.(type) {
			case string:
				return s
			case fmt.Stringer:
				return s.String()
			}
		}
	}
	return ""
}

// listField reads a field that may be a scalar or a list, coercing scalars
// to singleton lists.
func listField(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return []string{t}
			}
		case []any:
			out := make([]string, 0, len(t))
			for _, item := range t {
				if s, ok := item.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return t
		}
	}
	return nil
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// logIssues writes validation findings through slog at warn level.
func logIssues(issues []Issue) {
	for _, iss := range issues {
		slog.Warn("canonical schema issue", "point_id", iss.PointID, "field", iss.Field, "message", iss.Message)
	}
}
