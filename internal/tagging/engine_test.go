package tagging

import (
	"context"
	"testing"

	"github.com/yourorg/enos-mapper/internal/analyzer"
	"github.com/yourorg/enos-mapper/internal/models"
	"github.com/yourorg/enos-mapper/internal/ontology"
)

func testEngine() *Engine {
	ont := ontology.Default()
	return NewEngine(ont, analyzer.New(ont.Abbreviations()), nil)
}

func tag(t *testing.T, e *Engine, equip, instance string, p models.Point) models.TaggedPoint {
	t.Helper()
	chain := &models.ReasoningChain{OperationID: "op", PointID: p.PointID, Phase: "tagging"}
	return e.Tag(context.Background(), equip, instance, p, chain)
}

func TestTag_PreservesPointByteForByte(t *testing.T) {
	e := testEngine()

	minV, maxV := 0.0, 60.0
	p := models.Point{
		PointID:     "p1",
		PointName:   "CH-SYS-1.CWP.VSD.Hz",
		PointType:   models.PointTypeAnalogInput,
		Description: "condenser water pump drive output",
		DeviceID:    "dev-9",
		ValueType:   "float",
		Unit:        "Hz",
		Min:         &minV,
		Max:         &maxV,
		Raw:         map[string]string{"presentValue": "49.8", "vendor": "acme"},
	}
	tp := tag(t, e, "CH-SYS", "1", p)

	if !tp.Point.Equal(p) {
		t.Fatalf("tagged point does not preserve its origin:\n got: %+v\nwant: %+v", tp.Point, p)
	}
	// The embedded copy must not alias the original's raw map.
	tp.Raw["vendor"] = "mutated"
	if p.Raw["vendor"] != "acme" {
		t.Error("tagging aliased the original point's raw map")
	}
}

func TestTag_FunctionPrecedence(t *testing.T) {
	e := testEngine()

	cases := []struct {
		name      string
		pointType models.PointType
		pointName string
		want      models.PointFunction
	}{
		// (a) transport type defaults
		{"analog input", models.PointTypeAnalogInput, "FCU_1.RoomTemp", models.FunctionSensor},
		{"analog output", models.PointTypeAnalogOutput, "FCU_1.ValvePos", models.FunctionCommand},
		{"analog value", models.PointTypeAnalogValue, "FCU_1.TempSet", models.FunctionSetpoint},
		{"multi state input", models.PointTypeMultiStateInput, "FCU_1.Mode", models.FunctionSensor},
		// (b) name-pattern rules when transport is silent
		{"name setpoint", "", "FCU_1.RoomTempSetpoint", models.FunctionSetpoint},
		{"name command", "", "FCU_1.FanCmd", models.FunctionCommand},
		{"name status", "", "FCU_1.FanStatus", models.FunctionStatus},
		// (c) standard-point lookup
		{"standard point", "", "FCU_1.FanSpeed", models.FunctionSensor},
		// (d) unknown
		{"no signal", models.PointTypeStructuredView, "ChillerPlant", models.FunctionUnknown},
	}
	for _, tc := range cases {
		equip := "FCU"
		if tc.want == models.FunctionUnknown {
			equip = models.EquipmentUnknown
		}
		tp := tag(t, e, equip, "1", models.Point{PointID: "x", PointName: tc.pointName, PointType: tc.pointType})
		if tp.Function != tc.want {
			t.Errorf("%s: function = %q, want %q", tc.name, tp.Function, tc.want)
		}
	}
}

func TestTag_Tags(t *testing.T) {
	e := testEngine()

	p := models.Point{
		PointID:   "p1",
		PointName: "CH-SYS-1.CWP.VSD.Hz",
		PointType: models.PointTypeAnalogInput,
		Unit:      "Hz",
	}
	tp := tag(t, e, "CH-SYS", "1", p)

	want := map[string]string{
		"equipment":      "CH-SYS",
		"instance":       "1",
		"component":      "CWP",
		"function":       "sensor",
		"unit":           "Hz",
		"transport":      "analog-input",
		"standard_point": "VSD.Hz",
	}
	for k, v := range want {
		if tp.Tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, tp.Tags[k], v)
		}
	}

	// TagList is sorted and stable.
	l1 := tp.TagList()
	l2 := tp.TagList()
	for i := range l1 {
		if l1[i] != l2[i] {
			t.Fatal("TagList is not stable")
		}
		if i > 0 && l1[i-1] >= l1[i] {
			t.Fatal("TagList is not sorted")
		}
	}
}

func TestTag_PhenomenonAndQuantity(t *testing.T) {
	e := testEngine()

	cases := []struct {
		pointName      string
		unit           string
		wantPhenomenon string
		wantQuantity   string
	}{
		{"CH-SYS-1.CWP.VSD.Hz", "Hz", "frequency", "output"},
		{"FCU_1.RoomTemp", "degC", "temperature", "room"},
		{"AHU-1.SAT", "degC", "temperature", "supply"},
		{"VAV-1.Airflow", "L/s", "flow", ""},
	}
	for _, tc := range cases {
		tp := tag(t, e, "FCU", "1", models.Point{PointID: "x", PointName: tc.pointName, Unit: tc.unit, PointType: models.PointTypeAnalogInput})
		if tp.Phenomenon != tc.wantPhenomenon {
			t.Errorf("%s: phenomenon = %q, want %q", tc.pointName, tp.Phenomenon, tc.wantPhenomenon)
		}
		if tp.Quantity != tc.wantQuantity {
			t.Errorf("%s: quantity = %q, want %q", tc.pointName, tp.Quantity, tc.wantQuantity)
		}
	}
}

func TestTag_EnhancedDescription(t *testing.T) {
	e := testEngine()

	p := models.Point{PointID: "p", PointName: "FCU_2.RoomTemp", PointType: models.PointTypeAnalogInput, Unit: "degC"}
	tp := tag(t, e, "FCU", "2", p)
	want := "FCU 2 — Temperature Sensor — sensor — temperature/room — in degC"
	if tp.EnhancedDescription != want {
		t.Errorf("enhanced description = %q, want %q", tp.EnhancedDescription, want)
	}

	// Elided parts are omitted, not rendered empty.
	bare := tag(t, e, models.EquipmentUnknown, "", models.Point{PointID: "q", PointName: "Mystery"})
	if bare.EnhancedDescription != "" {
		t.Errorf("bare point description = %q, want empty", bare.EnhancedDescription)
	}
}
