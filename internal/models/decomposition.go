package models

// Decomposition is the point analyzer's structural reading of a raw point
// name. It is produced deterministically; no LLM is consulted.
type Decomposition struct {
	Segments        []string `json:"segments"`
	Abbreviations   []string `json:"abbreviations,omitempty"`
	MeasurementType string   `json:"measurement_type,omitempty"`
	Device          string   `json:"device,omitempty"`
	Property        string   `json:"property,omitempty"`
	// Instance joins every numeric group of the leading segment with "_"
	// ("01_25" for "FCU_01_25.RoomTemp"), "" when the name carries none.
	Instance string `json:"instance,omitempty"`
	// InstanceGroups holds every numeric group found in the leading segment,
	// in order, so callers can apply either instance-id strategy.
	InstanceGroups []string `json:"instance_groups,omitempty"`
}
