package jobs

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/uptrace/bun"
)

type handler struct {
	jobService *Service
	db         *bun.DB
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListJobsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	jobs, total, err := h.jobService.ListJobsWithTotal(ctx, ListJobsOptions{
		Limit:        &params.Limit,
		Offset:       &params.Offset,
		Status:       params.Status,
		WorkflowName: params.WorkflowName,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]interface{}{
		"jobs":  jobs,
		"total": total,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	workflowID := c.Param("workflow_id")

	job, err := h.jobService.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &workflowID})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, job))
}

func (h *handler) cancel(c echo.Context) error {
	ctx := c.Request().Context()
	workflowID := c.Param("workflow_id")

	job, err := h.jobService.CancelJob(ctx, workflowID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, job))
}

func (h *handler) sync(c echo.Context) error {
	ctx := c.Request().Context()
	workflowID := c.Param("workflow_id")

	job, err := h.jobService.SyncJob(ctx, workflowID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, job))
}

func (h *handler) syncBatch(c echo.Context) error {
	ctx := c.Request().Context()

	params := SyncJobsPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	jobs, err := h.jobService.SyncJobs(ctx, params.WorkflowIDs)
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]interface{}{
		"jobs": jobs,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) retry(c echo.Context) error {
	ctx := c.Request().Context()
	workflowID := c.Param("workflow_id")

	newWorkflowID, err := h.jobService.RetryJob(ctx, workflowID)
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]interface{}{
		"workflow_id": newWorkflowID,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

// queue returns the operator's queue view in one round trip: recent jobs plus
// the albums and artists they reference.
func (h *handler) queue(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListJobsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	jobs, err := h.jobService.ListJobs(ctx, ListJobsOptions{
		Limit:        &params.Limit,
		Offset:       &params.Offset,
		Status:       params.Status,
		WorkflowName: params.WorkflowName,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	albumIDs := map[int]struct{}{}
	for _, job := range jobs {
		if job.ContextParsed != nil && job.ContextParsed.AlbumID != 0 {
			albumIDs[job.ContextParsed.AlbumID] = struct{}{}
		}
	}

	var albums []*models.Album
	if len(albumIDs) > 0 {
		ids := make([]int, 0, len(albumIDs))
		for id := range albumIDs {
			ids = append(ids, id)
		}
		err = h.db.NewSelect().
			Model(&albums).
			Where("a.id IN (?)", bun.In(ids)).
			Order("a.title_normalized ASC").
			Scan(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	artistIDs := map[int]struct{}{}
	for _, album := range albums {
		artistIDs[album.PrimaryArtistID] = struct{}{}
		for _, id := range album.ArtistIDs {
			artistIDs[id] = struct{}{}
		}
	}

	var artists []*models.Artist
	if len(artistIDs) > 0 {
		ids := make([]int, 0, len(artistIDs))
		for id := range artistIDs {
			ids = append(ids, id)
		}
		err = h.db.NewSelect().
			Model(&artists).
			Where("ar.id IN (?)", bun.In(ids)).
			Order("ar.name_normalized ASC").
			Scan(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	response := map[string]interface{}{
		"jobs":    jobs,
		"albums":  albums,
		"artists": artists,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}
