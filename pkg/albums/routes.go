package albums

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers album routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, albumService *Service) {
	h := &handler{
		albumService: albumService,
		db:           db,
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.PATCH("/:id", h.update)
	g.POST("/:id/approve", h.approve)
	g.POST("/:id/reject", h.reject)
}
