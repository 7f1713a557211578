package ingest

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithGroup registers ingestion routes on a pre-configured
// group.
func RegisterRoutesWithGroup(g *echo.Group, pipeline *Pipeline) {
	h := &handler{pipeline: pipeline}

	g.POST("/albums", h.startAlbum)
	g.POST("/lyrics", h.startLyricFetch)
}
