package lyricvariants

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithGroup registers lyric variant routes on a pre-configured
// group.
func RegisterRoutesWithGroup(g *echo.Group, variantService *Service) {
	h := &handler{
		variantService: variantService,
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.deleteVariant)
}
