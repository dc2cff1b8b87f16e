package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/yourorg/enos-mapper/internal/ai"
	"github.com/yourorg/enos-mapper/internal/analyzer"
	"github.com/yourorg/enos-mapper/internal/config"
	"github.com/yourorg/enos-mapper/internal/grouping"
	"github.com/yourorg/enos-mapper/internal/mapping"
	"github.com/yourorg/enos-mapper/internal/models"
	"github.com/yourorg/enos-mapper/internal/ontology"
	"github.com/yourorg/enos-mapper/internal/reasoning"
	"github.com/yourorg/enos-mapper/internal/reflection"
	"github.com/yourorg/enos-mapper/internal/schema"
	"github.com/yourorg/enos-mapper/internal/tagging"
)

func testOrchestrator(t *testing.T, svc ai.Service, cfg Config) (*Orchestrator, *reasoning.Store) {
	t.Helper()
	ont := ontology.Default()
	an := analyzer.New(ont.Abbreviations())
	canonical := schema.FromOntology(ont)
	mapper := mapping.NewEngine(ont, canonical, svc, mapping.DefaultWeights(), mapping.DefaultThresholds())
	store, err := reasoning.NewStore("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	orch := New(cfg,
		grouping.NewEngine(ont, an, svc, config.InstanceStrategyCompound, 0),
		tagging.NewEngine(ont, an, svc),
		mapper,
		reflection.NewEngine(ont, an, svc, mapper),
		store,
	)
	return orch, store
}

func TestRun_EndToEnd(t *testing.T) {
	orch, store := testOrchestrator(t, nil, Config{BatchSize: 10, NReflect: 1})

	points := []models.Point{
		{PointID: "p1", PointName: "CH-SYS-1.CWP.VSD.Hz", PointType: models.PointTypeAnalogInput, Unit: "Hz"},
		{PointID: "p2", PointName: "FCU_01_25.RoomTemp", PointType: models.PointTypeAnalogInput, Unit: "degC"},
		{PointID: "p3", PointName: "ChillerPlant", PointType: models.PointTypeStructuredView},
	}
	id := orch.Run(context.Background(), points, "map_points")

	progress, ok := orch.Progress(id)
	if !ok {
		t.Fatal("operation vanished")
	}
	if progress.State != models.StateCompleted {
		t.Fatalf("state = %q, want completed (%s)", progress.State, progress.Message)
	}
	if progress.Processed != 3 || progress.Total != 3 {
		t.Errorf("processed/total = %d/%d, want 3/3", progress.Processed, progress.Total)
	}

	records, _ := orch.Records(id)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	byID := map[string]models.MappingRecord{}
	for _, r := range records {
		byID[r.PointID] = r
	}
	if byID["p1"].EnosPoint != "CH-SYS_PUMP_raw_frequency" || byID["p1"].Kind != models.MappingAuto {
		t.Errorf("p1 record = %+v", byID["p1"])
	}
	if byID["p2"].EnosPoint != "FCU_RoomTemp" {
		t.Errorf("p2 record = %+v", byID["p2"])
	}
	if byID["p3"].Kind != models.MappingUnmapped || byID["p3"].Reason != mapping.ReasonStructuredView {
		t.Errorf("p3 record = %+v", byID["p3"])
	}

	// One chain per phase per point, at minimum grouping+tagging+mapping.
	chains, err := store.ChainsFor(id, "p1")
	if err != nil {
		t.Fatal(err)
	}
	phases := map[string]bool{}
	for _, c := range chains {
		phases[c.Phase] = true
	}
	for _, want := range []string{"grouping", "tagging", "mapping"} {
		if !phases[want] {
			t.Errorf("p1 missing %s chain", want)
		}
	}
}

func TestRun_DeterministicWithoutLLM(t *testing.T) {
	points := []models.Point{
		{PointID: "p1", PointName: "CH-SYS-1.CWP.VSD.Hz", PointType: models.PointTypeAnalogInput, Unit: "Hz"},
		{PointID: "p2", PointName: "CH-SYS-1.CHWS.Temp", PointType: models.PointTypeAnalogInput, Unit: "degC"},
		{PointID: "p3", PointName: "FCU_7.RoomTemp", PointType: models.PointTypeAnalogInput, Unit: "degC"},
		{PointID: "p4", PointName: "VAV-2.Airflow", PointType: models.PointTypeAnalogInput, Unit: "L/s"},
		{PointID: "p5", PointName: "Mystery.Thing", PointType: models.PointTypeAnalogInput},
	}

	var baseline []models.MappingRecord
	for run := 0; run < 3; run++ {
		orch, _ := testOrchestrator(t, nil, Config{BatchSize: 2, NReflect: 1})
		id := orch.Run(context.Background(), points, "map_points")
		records, _ := orch.Records(id)
		if run == 0 {
			baseline = records
			continue
		}
		if len(records) != len(baseline) {
			t.Fatalf("run %d: %d records vs %d", run, len(records), len(baseline))
		}
		for i := range records {
			if records[i] != baseline[i] && !sameRecord(records[i], baseline[i]) {
				t.Fatalf("run %d record %d differs:\n got %+v\nwant %+v", run, i, records[i], baseline[i])
			}
		}
	}
}

func sameRecord(a, b models.MappingRecord) bool {
	return a.PointID == b.PointID && a.EnosPoint == b.EnosPoint && a.Kind == b.Kind && a.Confidence == b.Confidence
}

func TestRun_InvalidPointsCountedFailed(t *testing.T) {
	orch, _ := testOrchestrator(t, nil, Config{BatchSize: 10})

	points := []models.Point{
		{PointID: "", PointName: "NoID.Temp", PointType: models.PointTypeAnalogInput},
		{PointID: "ok", PointName: "FCU_1.RoomTemp", PointType: models.PointTypeAnalogInput, Unit: "degC"},
	}
	id := orch.Run(context.Background(), points, "map_points")

	progress, _ := orch.Progress(id)
	if progress.Failed != 1 || progress.Succeeded != 1 {
		t.Errorf("failed/succeeded = %d/%d, want 1/1", progress.Failed, progress.Succeeded)
	}
	if progress.Processed != 2 {
		t.Errorf("processed = %d, want 2", progress.Processed)
	}
	if progress.Succeeded+progress.Failed > progress.Processed {
		t.Error("succeeded+failed exceeds processed")
	}
}

func TestRun_ProgressMonotonic(t *testing.T) {
	orch, _ := testOrchestrator(t, nil, Config{BatchSize: 3})

	var points []models.Point
	for i := 0; i < 30; i++ {
		points = append(points, models.Point{
			PointID:   fmt.Sprintf("p%02d", i),
			PointName: fmt.Sprintf("FCU_%02d.RoomTemp", i),
			PointType: models.PointTypeAnalogInput,
			Unit:      "degC",
		})
	}

	id := orch.Submit(points, "map_points")

	last := -1
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		progress, ok := orch.Progress(id)
		if !ok {
			t.Fatal("operation vanished")
		}
		if progress.Processed < last {
			t.Fatalf("processed decreased: %d -> %d", last, progress.Processed)
		}
		if progress.Processed > progress.Total {
			t.Fatalf("processed %d exceeds total %d", progress.Processed, progress.Total)
		}
		if progress.Succeeded+progress.Failed > progress.Processed {
			t.Fatal("succeeded+failed exceeds processed")
		}
		last = progress.Processed
		if progress.Terminal() {
			if progress.State != models.StateCompleted {
				t.Fatalf("state = %q, want completed", progress.State)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("operation did not finish in time")
}

func TestRun_CancellationPreservesCommits(t *testing.T) {
	// The mock blocks on the grouping LLM call for the second batch; the
	// cancel lands while it waits, so exactly one batch commits.
	release := make(chan struct{})
	svc := ai.NewMockService()
	svc.CompleteFunc = func(ctx context.Context, op string, p ai.Prompt) (json.RawMessage, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return nil, &ai.FallbackError{Attempts: 1, Last: ai.ErrAIUnavailable}
		}
	}
	orch, store := testOrchestrator(t, svc, Config{BatchSize: 5, NReflect: 0})

	var points []models.Point
	for i := 0; i < 5; i++ {
		points = append(points, models.Point{
			PointID:   fmt.Sprintf("a%d", i),
			PointName: fmt.Sprintf("FCU_%d.RoomTemp", i),
			PointType: models.PointTypeAnalogInput,
			Unit:      "degC",
		})
	}
	for i := 0; i < 5; i++ {
		// Unknown prefixes force the grouping LLM call in batch two.
		points = append(points, models.Point{
			PointID:   fmt.Sprintf("b%d", i),
			PointName: fmt.Sprintf("ZZZ%d.Widget", i),
			PointType: models.PointTypeAnalogInput,
		})
	}

	id := orch.Submit(points, "map_points")

	// Wait until the first batch is fully committed and the second one is
	// blocked inside the LLM call.
	deadline := time.Now().Add(10 * time.Second)
	for {
		if progress, _ := orch.Progress(id); progress.Processed >= 5 && svc.CallCount() > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first batch never committed")
		}
		time.Sleep(time.Millisecond)
	}

	if !orch.Cancel(id) {
		t.Fatal("cancel rejected")
	}
	close(release)

	for {
		progress, _ := orch.Progress(id)
		if progress.Terminal() {
			if progress.State != models.StateCancelled {
				t.Fatalf("state = %q, want cancelled", progress.State)
			}
			if progress.Processed != 5 {
				t.Errorf("processed = %d, want 5", progress.Processed)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("operation never became terminal")
		}
		time.Sleep(time.Millisecond)
	}

	records, _ := orch.Records(id)
	if len(records) != 5 {
		t.Errorf("%d records committed, want 5 (prior batch preserved)", len(records))
	}
	// No reasoning chains may exist for the second batch's points beyond
	// grouping attempts, and none at all for tagging/mapping.
	for i := 0; i < 5; i++ {
		pid := fmt.Sprintf("b%d", i)
		chains, err := store.ChainsFor(id, pid)
		if err == nil {
			for _, c := range chains {
				if c.Phase == "tagging" || c.Phase == "mapping" {
					t.Errorf("cancelled point %s has a %s chain", pid, c.Phase)
				}
			}
		}
	}
}

func TestRun_ReflectionBound(t *testing.T) {
	orch, store := testOrchestrator(t, nil, Config{BatchSize: 10, NReflect: 1})

	// Low-scoring points trigger reflection; the bound still holds.
	points := []models.Point{
		{PointID: "p1", PointName: "CH-SYS-1.Oddball", PointType: models.PointTypeAnalogInput},
		{PointID: "p2", PointName: "VAV-1.Weird", PointType: models.PointTypeAnalogInput},
	}
	id := orch.Run(context.Background(), points, "map_points")

	for _, p := range points {
		n, err := store.ReflectionCount(id, p.PointID)
		if err != nil {
			t.Fatal(err)
		}
		if n > 1 {
			t.Errorf("point %s has %d reflections, bound is 1", p.PointID, n)
		}
	}
}

func TestSummary(t *testing.T) {
	orch, _ := testOrchestrator(t, nil, Config{BatchSize: 10, NReflect: 0})

	points := []models.Point{
		{PointID: "p1", PointName: "CH-SYS-1.CWP.VSD.Hz", PointType: models.PointTypeAnalogInput, Unit: "Hz"},
		{PointID: "p2", PointName: "ChillerPlant", PointType: models.PointTypeStructuredView},
	}
	id := orch.Run(context.Background(), points, "map_points")

	summary, ok := orch.Summary(id)
	if !ok {
		t.Fatal("no summary")
	}
	if summary.Total != 2 || summary.Auto != 1 || summary.Unmapped != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRemapPoint(t *testing.T) {
	orch, _ := testOrchestrator(t, nil, Config{BatchSize: 10, NReflect: 0})

	points := []models.Point{
		{PointID: "p1", PointName: "CH-SYS-1.CWP.VSD.Hz", PointType: models.PointTypeAnalogInput, Unit: "Hz"},
	}
	id := orch.Run(context.Background(), points, "map_points")

	m, err := orch.RemapPoint(context.Background(), id, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if m.EnosPoint() != "CH-SYS_PUMP_raw_frequency" {
		t.Errorf("remap target = %q", m.EnosPoint())
	}

	if _, err := orch.RemapPoint(context.Background(), "nope", "p1"); err == nil {
		t.Error("unknown operation accepted")
	}
}
