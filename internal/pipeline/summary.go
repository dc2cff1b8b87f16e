package pipeline

import "github.com/yourorg/enos-mapper/internal/models"

// Summary aggregates an operation's mapping outcomes for the operator
// surface.
type Summary struct {
	OperationID   string                 `json:"operation_id"`
	Total         int                    `json:"total"`
	Auto          int                    `json:"auto"`
	Suggested     int                    `json:"suggested"`
	Manual        int                    `json:"manual"`
	Unmapped      int                    `json:"unmapped"`
	AvgConfidence float64                `json:"avg_confidence"`
	NeedsReview   bool                   `json:"needs_review"`
	Records       []models.MappingRecord `json:"records"`
}

// reviewConfidenceFloor is the average confidence under which a completed
// operation is flagged for manual review.
const reviewConfidenceFloor = 0.65

func summarize(operationID string, mappings []models.Mapping) Summary {
	s := Summary{OperationID: operationID, Total: len(mappings)}
	confSum := 0.0
	mapped := 0
	for _, m := range mappings {
		switch m.Kind {
		case models.MappingAuto:
			s.Auto++
		case models.MappingSuggested:
			s.Suggested++
		case models.MappingManual:
			s.Manual++
		default:
			s.Unmapped++
		}
		if m.Target != nil {
			confSum += m.Confidence
			mapped++
		}
		s.Records = append(s.Records, m.Record())
	}
	if mapped > 0 {
		s.AvgConfidence = confSum / float64(mapped)
	}
	// Review when confidence is weak or too much of the catalog fell through.
	unmappedRatio := 0.0
	if s.Total > 0 {
		unmappedRatio = float64(s.Unmapped) / float64(s.Total)
	}
	s.NeedsReview = (mapped > 0 && s.AvgConfidence < reviewConfidenceFloor) || unmappedRatio > 0.40
	return s
}
