package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/enos-mapper/internal/analyzer"
	"github.com/yourorg/enos-mapper/internal/config"
	"github.com/yourorg/enos-mapper/internal/grouping"
	"github.com/yourorg/enos-mapper/internal/mapping"
	"github.com/yourorg/enos-mapper/internal/models"
	"github.com/yourorg/enos-mapper/internal/ontology"
	"github.com/yourorg/enos-mapper/internal/pipeline"
	"github.com/yourorg/enos-mapper/internal/reasoning"
	"github.com/yourorg/enos-mapper/internal/reflection"
	"github.com/yourorg/enos-mapper/internal/schema"
	"github.com/yourorg/enos-mapper/internal/tagging"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ont := ontology.Default()
	an := analyzer.New(ont.Abbreviations())
	mapper := mapping.NewEngine(ont, schema.FromOntology(ont), nil, mapping.DefaultWeights(), mapping.DefaultThresholds())
	store, err := reasoning.NewStore("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	orch := pipeline.New(pipeline.Config{BatchSize: 100, NReflect: 1},
		grouping.NewEngine(ont, an, nil, config.InstanceStrategyCompound, 0),
		tagging.NewEngine(ont, an, nil),
		mapper,
		reflection.NewEngine(ont, an, nil, mapper),
		store,
	)

	router := gin.New()
	ops := NewOperationsHandler(orch)
	reason := NewReasoningHandler(store)
	api := router.Group("/api")
	api.POST("/operations", ops.Submit)
	api.GET("/operations/:id", ops.Progress)
	api.GET("/operations/:id/summary", ops.Summary)
	api.POST("/operations/:id/points/:pointId/remap", ops.Remap)
	api.POST("/operations/:id/cancel", ops.Cancel)
	api.GET("/operations/:id/points/:pointId/reasoning", reason.Chains)
	return router
}

func submitAndWait(t *testing.T, router *gin.Engine, points []models.Point) string {
	t.Helper()

	body, _ := json.Marshal(SubmitRequest{Points: points})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/operations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("submit returned %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		OperationID string `json:"operation_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/operations/"+resp.OperationID, nil))
		var progress models.OperationProgress
		if err := json.Unmarshal(w.Body.Bytes(), &progress); err == nil && progress.Terminal() {
			return resp.OperationID
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("operation did not finish")
	return ""
}

func TestOperations_SubmitProgressSummary(t *testing.T) {
	router := testRouter(t)

	id := submitAndWait(t, router, []models.Point{
		{PointID: "p1", PointName: "CH-SYS-1.CWP.VSD.Hz", PointType: models.PointTypeAnalogInput, Unit: "Hz"},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/operations/"+id+"/summary", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("summary returned %d", w.Code)
	}
	var summary pipeline.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Total != 1 || summary.Auto != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestOperations_ReasoningEndpoint(t *testing.T) {
	router := testRouter(t)

	id := submitAndWait(t, router, []models.Point{
		{PointID: "p1", PointName: "FCU_2.RoomTemp", PointType: models.PointTypeAnalogInput, Unit: "degC"},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/operations/"+id+"/points/p1/reasoning", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("reasoning returned %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Chains []models.ReasoningChain `json:"chains"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Chains) == 0 {
		t.Error("no reasoning chains returned")
	}
}

func TestOperations_NotFound(t *testing.T) {
	router := testRouter(t)

	for _, path := range []string{
		"/api/operations/missing",
		"/api/operations/missing/summary",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("%s returned %d, want 404", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/operations/missing/cancel", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("cancel returned %d, want 404", w.Code)
	}
}

func TestOperations_SubmitValidation(t *testing.T) {
	router := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/operations", bytes.NewReader([]byte(`{"points": []}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty points returned %d, want 400", w.Code)
	}
}
