package catalog

import (
	"strings"
	"testing"

	"github.com/yourorg/enos-mapper/internal/models"
)

func TestMapColumns_StandardHeaders(t *testing.T) {
	headers := []string{"Point Name", "Object Type", "Description", "Present Value", "Units", "Device Instance"}
	colMap, unmapped := MapColumns(headers)

	want := map[Column]int{
		ColPointName:      0,
		ColObjectType:     1,
		ColDescription:    2,
		ColPresentValue:   3,
		ColUnits:          4,
		ColDeviceInstance: 5,
	}
	for col, idx := range want {
		if colMap[col] != idx {
			t.Errorf("%s mapped to %d, want %d", col, colMap[col], idx)
		}
	}
	if len(unmapped) != 0 {
		t.Errorf("unexpected unmapped headers: %v", unmapped)
	}
}

func TestMapColumns_CaseAndSpacing(t *testing.T) {
	colMap, _ := MapColumns([]string{"POINTNAME", "  object type  ", "ENGINEERINGUNIT"})
	if _, ok := colMap[ColPointName]; !ok {
		t.Error("POINTNAME not recognized")
	}
	if _, ok := colMap[ColObjectType]; !ok {
		t.Error("padded header not recognized")
	}
	if _, ok := colMap[ColUnits]; !ok {
		t.Error("ENGINEERINGUNIT not recognized")
	}
}

func TestMapColumns_MostSpecificWins(t *testing.T) {
	// "pointName" carries stronger evidence than a bare "name"; the column
	// goes to the better-scoring header regardless of order.
	colMap, unmapped := MapColumns([]string{"name", "pointName"})
	if colMap[ColPointName] != 1 {
		t.Errorf("point name mapped to %d, want 1", colMap[ColPointName])
	}
	if len(unmapped) != 1 || unmapped[0] != "name" {
		t.Errorf("unmapped = %v, want [name]", unmapped)
	}
}

func TestMapColumns_OneHeaderPerColumn(t *testing.T) {
	colMap, _ := MapColumns([]string{"Point ID", "Point Name", "Min", "Max"})
	if colMap[ColPointID] != 0 || colMap[ColPointName] != 1 {
		t.Errorf("id/name assignment wrong: %v", colMap)
	}
	if colMap[ColMin] != 2 || colMap[ColMax] != 3 {
		t.Errorf("min/max assignment wrong: %v", colMap)
	}
}

func TestLoadCSV(t *testing.T) {
	csv := strings.Join([]string{
		"pointName,objectType,units,description,deviceInstance",
		"CH-SYS-1.CWP.VSD.Hz,analog-input,Hz,pump drive,1001",
		",analog-input,,missing name,1001",
		"FCU_01_25.RoomTemp,AI,degC,,1002",
	}, "\n")

	res, err := LoadCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Points) != 2 {
		t.Fatalf("got %d points, want 2", len(res.Points))
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}

	p := res.Points[0]
	if p.PointName != "CH-SYS-1.CWP.VSD.Hz" || p.PointType != models.PointTypeAnalogInput || p.Unit != "Hz" {
		t.Errorf("point = %+v", p)
	}
	if p.DeviceID != "1001" {
		t.Errorf("device id = %q", p.DeviceID)
	}
	// Shorthand object types normalize too.
	if res.Points[1].PointType != models.PointTypeAnalogInput {
		t.Errorf("AI shorthand not normalized: %q", res.Points[1].PointType)
	}
	// Missing ids get synthesized, stable per row.
	if res.Points[0].PointID == "" || res.Points[0].PointID == res.Points[1].PointID {
		t.Errorf("synthesized ids wrong: %q vs %q", res.Points[0].PointID, res.Points[1].PointID)
	}
}

func TestLoadCSV_NoHeader(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("a,b,c\n1,2,3\n"))
	if err == nil {
		t.Fatal("catalog without a pointName column accepted")
	}
}

func TestNormalizeObjectType(t *testing.T) {
	cases := map[string]models.PointType{
		"analog-input":      models.PointTypeAnalogInput,
		"Analog Input":      models.PointTypeAnalogInput,
		"analog_input":      models.PointTypeAnalogInput,
		"AO":                models.PointTypeAnalogOutput,
		"structured-view":   models.PointTypeStructuredView,
		"multi-state-input": models.PointTypeMultiStateInput,
		"device":            models.PointTypeDevice,
		"weird-thing":       models.PointType("weird-thing"),
	}
	for in, want := range cases {
		if got := normalizeObjectType(in); got != want {
			t.Errorf("normalizeObjectType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseGoogleSheetURL(t *testing.T) {
	id, ok := ParseGoogleSheetURL("https://docs.google.com/spreadsheets/d/abc123-XYZ_9/edit#gid=0")
	if !ok || id != "abc123-XYZ_9" {
		t.Errorf("got %q, %v", id, ok)
	}
	if _, ok := ParseGoogleSheetURL("https://example.com/spreadsheets/d/abc"); ok {
		t.Error("non-google host accepted")
	}
	if _, ok := ParseGoogleSheetURL("points.xlsx"); ok {
		t.Error("local path accepted as sheet URL")
	}
}
