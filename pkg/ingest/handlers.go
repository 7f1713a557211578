package ingest

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	pipeline *Pipeline
}

func (h *handler) startAlbum(c echo.Context) error {
	ctx := c.Request().Context()

	params := StartAlbumIngestPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	workflowID, err := h.pipeline.StartAlbumIngest(ctx, params.AlbumID)
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]interface{}{
		"workflow_id": workflowID,
	}

	return errors.WithStack(c.JSON(http.StatusAccepted, response))
}

func (h *handler) startLyricFetch(c echo.Context) error {
	ctx := c.Request().Context()

	params := StartLyricFetchPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	workflowID, err := h.pipeline.StartLyricFetch(ctx, LyricArgs{
		TrackID: params.TrackID,
		Title:   params.Title,
		Artist:  params.Artist,
		Force:   params.Force,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]interface{}{
		"workflow_id": workflowID,
	}

	return errors.WithStack(c.JSON(http.StatusAccepted, response))
}
