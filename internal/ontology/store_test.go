package ontology

import (
	"errors"
	"testing"
)

func TestDefault_Lookups(t *testing.T) {
	s := Default()

	eq, ok := s.EquipmentTypeInfo("CH-SYS")
	if !ok {
		t.Fatal("expected CH-SYS in default ontology")
	}
	if len(eq.Abbreviations) == 0 {
		t.Error("CH-SYS has no abbreviations")
	}
	if len(s.StandardPoints("CH-SYS")) == 0 {
		t.Error("CH-SYS has no standard points")
	}

	abbrs := s.Abbreviations()
	if abbrs["fcu"] != "FCU" {
		t.Errorf("abbreviation fcu resolves to %q, want FCU", abbrs["fcu"])
	}
	if abbrs["ch-sys"] != "CH-SYS" {
		t.Errorf("abbreviation ch-sys resolves to %q, want CH-SYS", abbrs["ch-sys"])
	}

	types := s.AllEquipmentTypes()
	for i := 1; i < len(types); i++ {
		if types[i-1] >= types[i] {
			t.Fatalf("AllEquipmentTypes not sorted: %v", types)
		}
	}
}

func TestDefault_UnitsFor(t *testing.T) {
	s := Default()

	units := s.UnitsFor("temperature", "supply")
	if len(units) == 0 || units[0] != "degC" {
		t.Errorf("UnitsFor(temperature, supply) = %v, want degC first", units)
	}
	if got := s.UnitsFor("frequency", "output"); len(got) != 1 || got[0] != "Hz" {
		t.Errorf("UnitsFor(frequency, output) = %v, want [Hz]", got)
	}
	if got := s.UnitsFor("nonsense", ""); got != nil {
		t.Errorf("UnitsFor(nonsense) = %v, want nil", got)
	}
}

func TestDefault_Related(t *testing.T) {
	s := Default()

	if !s.Related("frequency", "speed") {
		t.Error("frequency and speed should be related")
	}
	if !s.Related("speed", "frequency") {
		t.Error("related must be symmetric")
	}
	if s.Related("temperature", "temperature") {
		t.Error("equal phenomena are not related, they are equal")
	}
	if s.Related("temperature", "frequency") {
		t.Error("temperature and frequency should not be related")
	}
}

func TestLoad_SchemaErrors(t *testing.T) {
	resources := []byte("phenomena:\n  - name: temperature\n")

	cases := []struct {
		name string
		doc  string
	}{
		{"missing abbreviations", `
equipment:
  - type: CH
    abbreviations: []
    standard_points: []
`},
		{"missing standard_points", `
equipment:
  - type: CH
    abbreviations: [CH]
`},
		{"empty type", `
equipment:
  - type: ""
    abbreviations: [CH]
    standard_points: []
`},
		{"empty catalog", `equipment: []`},
	}
	for _, tc := range cases {
		_, err := Load([]byte(tc.doc), resources)
		if !errors.Is(err, ErrOntologySchema) {
			t.Errorf("%s: err = %v, want ErrOntologySchema", tc.name, err)
		}
	}
}

func TestLoad_WarningsNotFatal(t *testing.T) {
	equipment := []byte(`
equipment:
  - type: CH
    abbreviations: [CH]
    standard_points:
      - name: Temp
        enos_id: raw_temp
        phenomenon: mystery_phenomenon
    components: [NOPE]
`)
	resources := []byte("phenomena:\n  - name: temperature\n")

	s, err := Load(equipment, resources)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(s.Warnings()) == 0 {
		t.Error("expected warnings for unknown component and phenomenon references")
	}
}

func TestLoad_UnreadableFiles(t *testing.T) {
	_, err := LoadFiles("/nonexistent/equipment.yaml", "/nonexistent/resources.yaml")
	if !errors.Is(err, ErrOntologyLoad) {
		t.Errorf("err = %v, want ErrOntologyLoad", err)
	}
}
