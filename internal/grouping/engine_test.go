package grouping

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/yourorg/enos-mapper/internal/ai"
	"github.com/yourorg/enos-mapper/internal/analyzer"
	"github.com/yourorg/enos-mapper/internal/config"
	"github.com/yourorg/enos-mapper/internal/models"
	"github.com/yourorg/enos-mapper/internal/ontology"
)

func testEngine(svc ai.Service, strategy string) *Engine {
	ont := ontology.Default()
	return NewEngine(ont, analyzer.New(ont.Abbreviations()), svc, strategy, 0)
}

func TestGroup_PrefixPatternMatch(t *testing.T) {
	e := testEngine(nil, config.InstanceStrategyCompound)

	points := []models.Point{
		{PointID: "p1", PointName: "CH-SYS-1.CWP.VSD.Hz", PointType: models.PointTypeAnalogInput, Unit: "Hz"},
		{PointID: "p2", PointName: "CH-SYS-1.CHWS.Temp", PointType: models.PointTypeAnalogInput, Unit: "degC"},
		{PointID: "p3", PointName: "FCU_01_25.RoomTemp", PointType: models.PointTypeAnalogInput, Unit: "degC"},
	}
	res, err := e.Group(context.Background(), "op", points, nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := len(res.Groups["CH-SYS"]["1"]); got != 2 {
		t.Errorf("CH-SYS/1 has %d points, want 2", got)
	}
	if got := len(res.Groups["FCU"]["01_25"]); got != 1 {
		t.Errorf("FCU/01_25 has %d points, want 1", got)
	}
	for id, method := range res.Method {
		if method != "pattern" {
			t.Errorf("point %s grouped via %q, want pattern", id, method)
		}
	}
}

func TestGroup_InstanceStrategyLastNumeric(t *testing.T) {
	e := testEngine(nil, config.InstanceStrategyLastNumeric)

	points := []models.Point{
		{PointID: "p1", PointName: "FCU_01_25.RoomTemp", PointType: models.PointTypeAnalogInput},
	}
	res, err := e.Group(context.Background(), "op", points, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Groups["FCU"]["25"]; !ok {
		t.Errorf("last_numeric strategy: groups = %v, want instance 25", res.Groups["FCU"])
	}
}

func TestGroup_ExplicitEquipmentWins(t *testing.T) {
	e := testEngine(nil, config.InstanceStrategyCompound)

	points := []models.Point{
		{PointID: "p1", PointName: "X-7.Speed", Raw: map[string]string{"equipment_type": "PUMP"}},
	}
	res, err := e.Group(context.Background(), "op", points, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Groups["PUMP"]; !ok {
		t.Fatalf("explicit equipment ignored: %v", res.Groups)
	}
	if res.Method["p1"] != "explicit" {
		t.Errorf("method = %q, want explicit", res.Method["p1"])
	}
}

func TestGroup_ContainersGoToUnknown(t *testing.T) {
	svc := ai.NewMockService()
	e := testEngine(svc, config.InstanceStrategyCompound)

	points := []models.Point{
		{PointID: "p3", PointName: "ChillerPlant", PointType: models.PointTypeStructuredView},
	}
	res, err := e.Group(context.Background(), "op", points, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Groups[models.EquipmentUnknown]; !ok {
		t.Fatalf("container not in unknown group: %v", res.Groups)
	}
	if svc.CallCount() != 0 {
		t.Errorf("container grouping made %d LLM calls, want 0", svc.CallCount())
	}
}

func TestGroup_UnknownWithoutLLM(t *testing.T) {
	e := testEngine(nil, config.InstanceStrategyCompound)

	points := []models.Point{
		{PointID: "p1", PointName: "XYZZY-9.Widget", PointType: models.PointTypeAnalogInput},
	}
	res, err := e.Group(context.Background(), "op", points, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Unknown points still flow onward; they are not dropped.
	if _, ok := res.Groups[models.EquipmentUnknown]; !ok {
		t.Fatalf("unresolvable prefix not in unknown group: %v", res.Groups)
	}
}

func TestGroup_LLMBatchInference(t *testing.T) {
	svc := ai.NewMockService()
	svc.CompleteFunc = func(ctx context.Context, op string, p ai.Prompt) (json.RawMessage, error) {
		return json.RawMessage(`{"assignments": {"XYZZY-9": "PUMP"}}`), nil
	}
	e := testEngine(svc, config.InstanceStrategyCompound)

	points := []models.Point{
		{PointID: "p1", PointName: "XYZZY-9.Widget", PointType: models.PointTypeAnalogInput},
	}
	res, err := e.Group(context.Background(), "op", points, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Groups["PUMP"]; !ok {
		t.Fatalf("llm assignment ignored: %v", res.Groups)
	}
	if res.Method["p1"] != "llm" {
		t.Errorf("method = %q, want llm", res.Method["p1"])
	}
}

func TestGroup_LLMInvalidEquipmentRejected(t *testing.T) {
	svc := ai.NewMockService()
	svc.CompleteFunc = func(ctx context.Context, op string, p ai.Prompt) (json.RawMessage, error) {
		return json.RawMessage(`{"assignments": {"XYZZY-9": "NOT_IN_CATALOG"}}`), nil
	}
	e := testEngine(svc, config.InstanceStrategyCompound)

	points := []models.Point{
		{PointID: "p1", PointName: "XYZZY-9.Widget", PointType: models.PointTypeAnalogInput},
	}
	res, err := e.Group(context.Background(), "op", points, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Groups[models.EquipmentUnknown]; !ok {
		t.Fatalf("out-of-catalog equipment accepted: %v", res.Groups)
	}
}

func TestGroup_VerifyReassignsContradictions(t *testing.T) {
	e := testEngine(nil, config.InstanceStrategyCompound)

	// A VAV group containing a compressor point is contradictory.
	points := []models.Point{
		{PointID: "p1", PointName: "VAV-3.Airflow", PointType: models.PointTypeAnalogInput, Unit: "L/s"},
		{PointID: "p2", PointName: "VAV-3.CompressorStatus", PointType: models.PointTypeBinaryInput},
	}
	res, err := e.Group(context.Background(), "op", points, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range res.Groups["VAV"]["3"] {
		if p.PointID == "p2" {
			t.Error("contradictory point left in VAV group")
		}
	}
}

func TestGroup_ConfidenceRecorded(t *testing.T) {
	e := testEngine(nil, config.InstanceStrategyCompound)

	points := []models.Point{
		{PointID: "p1", PointName: "CH-SYS-1.CWP.VSD.Hz", PointType: models.PointTypeAnalogInput, Unit: "Hz"},
		{PointID: "p2", PointName: "CH-SYS-1.CHWS.Temp", PointType: models.PointTypeAnalogInput, Unit: "degC"},
	}
	res, err := e.Group(context.Background(), "op", points, nil)
	if err != nil {
		t.Fatal(err)
	}
	conf, ok := res.Confidence["CH-SYS/1"]
	if !ok {
		t.Fatalf("no confidence for CH-SYS/1: %v", res.Confidence)
	}
	if conf <= 0 || conf > 1 {
		t.Errorf("confidence %v outside (0,1]", conf)
	}
}

func TestGroup_EmitsChainsPerPoint(t *testing.T) {
	e := testEngine(nil, config.InstanceStrategyCompound)

	points := []models.Point{
		{PointID: "p1", PointName: "CH-SYS-1.CWP.VSD.Hz", PointType: models.PointTypeAnalogInput},
		{PointID: "p2", PointName: "FCU_2.RoomTemp", PointType: models.PointTypeAnalogInput},
	}
	var chains []models.ReasoningChain
	_, err := e.Group(context.Background(), "op", points, func(c models.ReasoningChain) {
		chains = append(chains, c)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(chains) != 2 {
		t.Fatalf("emitted %d chains, want 2", len(chains))
	}
	for _, c := range chains {
		if c.OperationID != "op" || c.Phase != "grouping" || len(c.Steps) == 0 {
			t.Errorf("malformed chain: %+v", c)
		}
	}
}
