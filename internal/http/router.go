package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/enos-mapper/internal/config"
	"github.com/yourorg/enos-mapper/internal/http/handlers"
	"github.com/yourorg/enos-mapper/internal/http/middleware"
	"github.com/yourorg/enos-mapper/internal/pipeline"
	"github.com/yourorg/enos-mapper/internal/reasoning"
)

// SetupRouter wires the operator surface over the orchestrator. The verbs
// map one-to-one onto the orchestrator entry points.
func SetupRouter(cfg *config.Config, orch *pipeline.Orchestrator, store *reasoning.Store) *gin.Engine {
	router := gin.Default()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		slog.Error("failed to set trusted proxies", "err", err)
	}
	router.MaxMultipartMemory = 8 * 1024 * 1024 // 8MB

	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RequestID())

	router.GET("/health", handlers.HealthHandler)

	ops := handlers.NewOperationsHandler(orch)
	reason := handlers.NewReasoningHandler(store)
	cat := handlers.NewCatalogHandler()

	api := router.Group("/api")
	{
		api.POST("/operations", ops.Submit)
		api.GET("/operations/:id", ops.Progress)
		api.GET("/operations/:id/summary", ops.Summary)
		api.POST("/operations/:id/points/:pointId/remap", ops.Remap)
		api.POST("/operations/:id/cancel", ops.Cancel)
		api.GET("/operations/:id/points/:pointId/reasoning", reason.Chains)
		api.POST("/catalog/parse", cat.Parse)
	}

	return router
}
