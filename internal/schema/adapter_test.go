package schema

import (
	"reflect"
	"testing"

	"github.com/yourorg/enos-mapper/internal/models"
	"github.com/yourorg/enos-mapper/internal/ontology"
)

func testAdapter() *Adapter {
	return New(ontology.Default())
}

func TestAdapt_ListShape(t *testing.T) {
	a := testAdapter()

	doc := []any{
		map[string]any{
			"id":             "FCU_RoomTemp",
			"equipment_type": "FCU",
			"name":           "RoomTemp",
			"quantity":       "room",
			"phenomenon":     "temperature",
			"unit":           "degC",
		},
	}
	points, _, err := a.Adapt(doc)
	if err != nil {
		t.Fatalf("adapt failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d points, want 1", len(points))
	}
	p := points[0]
	if p.Measurement != "room" {
		t.Errorf("quantity not renamed to measurement: %q", p.Measurement)
	}
	if len(p.Component) != 1 || p.Component[0] != "temperature" {
		t.Errorf("phenomenon not folded into component: %v", p.Component)
	}
}

func TestAdapt_DictByIDShape(t *testing.T) {
	a := testAdapter()

	doc := map[string]any{
		"CH-SYS_PUMP_raw_frequency": map[string]any{
			"equipment_type": "CH-SYS",
			"quantity":       "output",
			"phenomenon":     "frequency",
		},
		"CH-SYS_CHWS_raw_temp": map[string]any{
			"equipment_type": "CH-SYS",
			"quantity":       "supply",
			"phenomenon":     "temperature",
		},
	}
	points, _, err := a.Adapt(doc)
	if err != nil {
		t.Fatalf("adapt failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	// Output is sorted by id regardless of map order.
	if points[0].ID != "CH-SYS_CHWS_raw_temp" || points[1].ID != "CH-SYS_PUMP_raw_frequency" {
		t.Errorf("unexpected order: %s, %s", points[0].ID, points[1].ID)
	}
	// The container key becomes the id; equipment falls out of it if absent.
	if points[1].Name != "PUMP_raw_frequency" {
		t.Errorf("name not derived from id: %q", points[1].Name)
	}
	// Unit backfilled from the ontology via phenomenon/quantity.
	if points[1].Unit != "Hz" {
		t.Errorf("unit not backfilled: %q", points[1].Unit)
	}
	if points[0].Unit != "degC" {
		t.Errorf("unit not backfilled: %q", points[0].Unit)
	}
}

func TestAdapt_ScalarComponentCoerced(t *testing.T) {
	a := testAdapter()

	doc := []any{
		map[string]any{
			"id":        "VAV_raw_airflow",
			"component": "flow",
		},
	}
	points, _, err := a.Adapt(doc)
	if err != nil {
		t.Fatalf("adapt failed: %v", err)
	}
	if !reflect.DeepEqual(points[0].Component, []string{"flow"}) {
		t.Errorf("scalar component not coerced to list: %v", points[0].Component)
	}
}

func TestAdapt_MissingIDDiscarded(t *testing.T) {
	a := testAdapter()

	doc := []any{
		map[string]any{"name": "orphan"},
		map[string]any{"id": "FCU_RoomTemp"},
	}
	points, issues, err := a.Adapt(doc)
	if err != nil {
		t.Fatalf("adapt failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d points, want 1 (missing id discarded)", len(points))
	}
	found := false
	for _, iss := range issues {
		if iss.Field == "id" {
			found = true
		}
	}
	if !found {
		t.Error("expected an issue for the missing id")
	}
}

func TestAdapt_Idempotent(t *testing.T) {
	a := testAdapter()

	doc := map[string]any{
		"CH-SYS_PUMP_raw_frequency": map[string]any{
			"equipment_type": "CH-SYS",
			"quantity":       "output",
			"phenomenon":     "frequency",
		},
		"FCU_RoomTemp": map[string]any{
			"quantity":   "room",
			"phenomenon": "temperature",
			"aspect":     []any{"comfort"},
		},
	}
	once, _, err := a.Adapt(doc)
	if err != nil {
		t.Fatalf("adapt failed: %v", err)
	}
	twice := a.AdaptPoints(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("adapt is not idempotent:\n once: %+v\ntwice: %+v", once, twice)
	}
}

func TestAdaptDocument_YAML(t *testing.T) {
	a := testAdapter()

	raw := []byte(`
points:
  - id: CT_fan_frequency
    equipment_type: CT
    quantity: output
    phenomenon: frequency
`)
	points, _, err := a.AdaptDocument(raw)
	if err != nil {
		t.Fatalf("adapt failed: %v", err)
	}
	if len(points) != 1 || points[0].ID != "CT_fan_frequency" {
		t.Fatalf("unexpected points: %+v", points)
	}
	if points[0].Unit != "Hz" {
		t.Errorf("unit = %q, want Hz", points[0].Unit)
	}
}

func TestFromOntology(t *testing.T) {
	ont := ontology.Default()
	points := FromOntology(ont)
	if len(points) == 0 {
		t.Fatal("no canonical points derived from ontology")
	}
	var found *models.CanonicalPoint
	for i := range points {
		if points[i].ID == "CH-SYS_PUMP_raw_frequency" {
			found = &points[i]
		}
	}
	if found == nil {
		t.Fatal("expected CH-SYS_PUMP_raw_frequency among derived points")
	}
	if found.EquipmentType != "CH-SYS" || found.Unit != "Hz" {
		t.Errorf("unexpected derived point: %+v", found)
	}
}
