package models

import "sort"

// PointFunction is the role a point plays on its equipment.
type PointFunction string

const (
	FunctionSensor   PointFunction = "sensor"
	FunctionCommand  PointFunction = "command"
	FunctionSetpoint PointFunction = "setpoint"
	FunctionStatus   PointFunction = "status"
	FunctionUnknown  PointFunction = "unknown"
)

// EquipmentUnknown is the equipment type assigned to points that no grouping
// pass could place. Points in the unknown group still flow through tagging
// and mapping; they are never dropped.
const EquipmentUnknown = "unknown"

// TaggedPoint is a Point enriched by the grouping and tagging stages.
// The originating Point is embedded unchanged; the invariant is that every
// field of Point survives byte-for-byte on the TaggedPoint.
type TaggedPoint struct {
	Point

	EquipmentType       string            `json:"equipment_type"`
	InstanceID          string            `json:"instance_id,omitempty"`
	Component           string            `json:"component,omitempty"`
	Subcomponent        string            `json:"subcomponent,omitempty"`
	Function            PointFunction     `json:"function"`
	Phenomenon          string            `json:"phenomenon,omitempty"`
	Quantity            string            `json:"quantity,omitempty"`
	Tags                map[string]string `json:"tags,omitempty"`
	EnhancedDescription string            `json:"enhanced_description,omitempty"`
}

// TagList renders the tag set as sorted "key:value" strings. Ordering of the
// underlying set is irrelevant; the sort gives callers a stable view.
func (t TaggedPoint) TagList() []string {
	out := make([]string, 0, len(t.Tags))
	for k, v := range t.Tags {
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
