package tracks

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithGroup registers track routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, trackService *Service) {
	h := &handler{
		trackService: trackService,
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.PATCH("/:id", h.update)
}
