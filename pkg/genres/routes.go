package genres

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithGroup registers genre routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, genreService *Service) {
	h := &handler{genreService: genreService}

	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.retrieve)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.PUT("/:id/albums/:album_id", h.attachAlbum)
	g.DELETE("/:id/albums/:album_id", h.detachAlbum)
	g.PUT("/:id/artists/:artist_id", h.attachArtist)
	g.DELETE("/:id/artists/:artist_id", h.detachArtist)
}
