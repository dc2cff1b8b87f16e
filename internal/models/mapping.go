package models

// MappingKind classifies how a mapping was produced and how much trust it
// carries. auto requires confidence >= the auto threshold, suggested sits
// between the suggest and auto thresholds, unmapped always has a nil target.
type MappingKind string

const (
	MappingAuto      MappingKind = "auto"
	MappingSuggested MappingKind = "suggested"
	MappingManual    MappingKind = "manual"
	MappingUnmapped  MappingKind = "unmapped"
)

// TransformType identifies the kind of value transform a mapping requires.
type TransformType string

const (
	TransformUnitConversion TransformType = "unit_conversion"
	TransformScale          TransformType = "scale"
	TransformEnumMap        TransformType = "enum_map"
)

// Transform describes how raw values must be converted before they satisfy
// the canonical point's unit and data type.
type Transform struct {
	Type     TransformType     `json:"type"`
	FromUnit string            `json:"from_unit,omitempty"`
	ToUnit   string            `json:"to_unit,omitempty"`
	Scale    float64           `json:"scale,omitempty"`
	Offset   float64           `json:"offset,omitempty"`
	EnumMap  map[string]string `json:"enum_map,omitempty"`
}

// Mapping is the ownership record tying a source point to a canonical point.
// Target is nil exactly when Kind is unmapped.
type Mapping struct {
	SourcePoint Point           `json:"source_point"`
	Target      *CanonicalPoint `json:"target,omitempty"`
	Confidence  float64         `json:"confidence"`
	// PreReflectionConfidence preserves the score a mapping carried before a
	// reflection pass revised it, so both values stay visible.
	PreReflectionConfidence *float64    `json:"pre_reflection_confidence,omitempty"`
	Kind                    MappingKind `json:"kind"`
	Transform               *Transform  `json:"transform,omitempty"`
	Rationale               string      `json:"rationale,omitempty"`
	Reason                  string      `json:"reason,omitempty"`
	ReasoningRef            string      `json:"reasoning_ref,omitempty"`
}

// EnosPoint returns the canonical id this mapping resolved to, or "" when
// the point is unmapped.
func (m Mapping) EnosPoint() string {
	if m.Target == nil {
		return ""
	}
	return m.Target.ID
}

// MappingRecord is the flat output shape surfaced per input point.
type MappingRecord struct {
	PointID    string      `json:"pointId"`
	PointName  string      `json:"pointName"`
	PointType  PointType   `json:"pointType"`
	EnosPoint  string      `json:"enosPoint,omitempty"`
	Confidence float64     `json:"confidence"`
	Kind       MappingKind `json:"kind"`
	Transform  *Transform  `json:"transform,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// Record flattens a Mapping into its external output shape.
func (m Mapping) Record() MappingRecord {
	return MappingRecord{
		PointID:    m.SourcePoint.PointID,
		PointName:  m.SourcePoint.PointName,
		PointType:  m.SourcePoint.PointType,
		EnosPoint:  m.EnosPoint(),
		Confidence: m.Confidence,
		Kind:       m.Kind,
		Transform:  m.Transform,
		Reason:     m.Reason,
	}
}
