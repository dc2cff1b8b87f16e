package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/enos-mapper/internal/reasoning"
)

// ReasoningHandler serves the durable reasoning and reflection records.
type ReasoningHandler struct {
	store *reasoning.Store
}

func NewReasoningHandler(store *reasoning.Store) *ReasoningHandler {
	return &ReasoningHandler{store: store}
}

// Chains returns the reasoning chains and reflections for one point.
// GET /api/operations/:id/points/:pointId/reasoning
func (h *ReasoningHandler) Chains(c *gin.Context) {
	id := c.Param("id")
	pointID := c.Param("pointId")

	chains, err := h.store.ChainsFor(id, pointID)
	if err != nil {
		if errors.Is(err, reasoning.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no reasoning records for point"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	reflections, err := h.store.ReflectionsFor(id, pointID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chains":      chains,
		"reflections": reflections,
	})
}
