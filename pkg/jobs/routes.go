package jobs

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers job routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, jobService *Service) {
	h := &handler{
		jobService: jobService,
		db:         db,
	}

	g.GET("", h.list)
	g.GET("/queue", h.queue)
	g.POST("/sync", h.syncBatch)
	g.GET("/:workflow_id", h.retrieve)
	g.POST("/:workflow_id/cancel", h.cancel)
	g.POST("/:workflow_id/sync", h.sync)
	g.POST("/:workflow_id/retry", h.retry)
}
