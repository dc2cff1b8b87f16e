package models

// PointType is the transport type of a BMS point as reported by the controller.
type PointType string

const (
	PointTypeAnalogInput     PointType = "analog-input"
	PointTypeAnalogOutput    PointType = "analog-output"
	PointTypeAnalogValue     PointType = "analog-value"
	PointTypeBinaryInput     PointType = "binary-input"
	PointTypeBinaryOutput    PointType = "binary-output"
	PointTypeBinaryValue     PointType = "binary-value"
	PointTypeMultiStateInput PointType = "multi-state-input"
	PointTypeMultiStateValue PointType = "multi-state-value"
	PointTypeStructuredView  PointType = "structured-view"
	PointTypeDevice          PointType = "device"
)

// Point is a single raw BMS point as ingested from a controller catalog.
// Points are immutable after ingestion; every downstream record references
// them by PointID and carries a copy, never a mutation.
type Point struct {
	PointID     string            `json:"point_id"`
	PointName   string            `json:"point_name"`
	PointType   PointType         `json:"point_type"`
	Description string            `json:"description,omitempty"`
	DeviceID    string            `json:"device_id,omitempty"`
	ValueType   string            `json:"value_type,omitempty"`
	Unit        string            `json:"unit,omitempty"`
	Min         *float64          `json:"min,omitempty"`
	Max         *float64          `json:"max,omitempty"`
	Raw         map[string]string `json:"raw,omitempty"`
}

// Clone returns a deep copy so shared point slices can never alias raw maps.
func (p Point) Clone() Point {
	out := p
	if p.Min != nil {
		v := *p.Min
		out.Min = &v
	}
	if p.Max != nil {
		v := *p.Max
		out.Max = &v
	}
	if p.Raw != nil {
		out.Raw = make(map[string]string, len(p.Raw))
		for k, v := range p.Raw {
			out.Raw[k] = v
		}
	}
	return out
}

// Equal reports whether two points are byte-for-byte identical, including
// the optional numeric bounds and the raw attribute map.
func (p Point) Equal(o Point) bool {
	if p.PointID != o.PointID || p.PointName != o.PointName || p.PointType != o.PointType ||
		p.Description != o.Description || p.DeviceID != o.DeviceID ||
		p.ValueType != o.ValueType || p.Unit != o.Unit {
		return false
	}
	if !floatPtrEqual(p.Min, o.Min) || !floatPtrEqual(p.Max, o.Max) {
		return false
	}
	if len(p.Raw) != len(o.Raw) {
		return false
	}
	for k, v := range p.Raw {
		if ov, ok := o.Raw[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
