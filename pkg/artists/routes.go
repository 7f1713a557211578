package artists

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithGroup registers artist routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, artistService *Service) {
	h := &handler{
		artistService: artistService,
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.PATCH("/:id", h.update)
}
