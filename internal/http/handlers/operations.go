package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/enos-mapper/internal/models"
	"github.com/yourorg/enos-mapper/internal/pipeline"
)

// OperationsHandler exposes the orchestrator's entry points one-to-one:
// submit, progress, summary, per-point remap, cancel.
type OperationsHandler struct {
	orch *pipeline.Orchestrator
}

func NewOperationsHandler(orch *pipeline.Orchestrator) *OperationsHandler {
	return &OperationsHandler{orch: orch}
}

// SubmitRequest is the payload for starting a mapping operation.
type SubmitRequest struct {
	Points []models.Point `json:"points" binding:"required"`
	Kind   string         `json:"kind"`
}

// Submit starts a mapping operation.
// POST /api/operations
func (h *OperationsHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Points) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "points must not be empty"})
		return
	}
	if req.Kind == "" {
		req.Kind = "map_points"
	}

	id := h.orch.Submit(req.Points, req.Kind)
	c.JSON(http.StatusAccepted, gin.H{"operation_id": id})
}

// Progress returns the operation's progress snapshot.
// GET /api/operations/:id
func (h *OperationsHandler) Progress(c *gin.Context) {
	id := c.Param("id")
	progress, ok := h.orch.Progress(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "operation not found"})
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Summary returns the mapping summary plus committed records.
// GET /api/operations/:id/summary
func (h *OperationsHandler) Summary(c *gin.Context) {
	id := c.Param("id")
	summary, ok := h.orch.Summary(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "operation not found"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Remap reruns mapping plus reflection for one point.
// POST /api/operations/:id/points/:pointId/remap
func (h *OperationsHandler) Remap(c *gin.Context) {
	id := c.Param("id")
	pointID := c.Param("pointId")

	m, err := h.orch.RemapPoint(c.Request.Context(), id, pointID)
	if err != nil {
		if errors.Is(err, pipeline.ErrOperationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m.Record())
}

// Cancel requests cooperative cancellation; partial results are preserved.
// POST /api/operations/:id/cancel
func (h *OperationsHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if !h.orch.Cancel(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "operation not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"operation_id": id, "cancelled": true})
}
