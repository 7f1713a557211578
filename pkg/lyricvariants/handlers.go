package lyricvariants

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
)

type handler struct {
	variantService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListVariantsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	variants, err := h.variantService.ListVariants(ctx, ListVariantsOptions{
		TrackID: params.TrackID,
		Source:  params.Source,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]interface{}{
		"lyric_variants": variants,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Lyric variant")
	}

	variant, err := h.variantService.RetrieveVariant(ctx, RetrieveVariantOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, variant))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Lyric variant")
	}

	params := UpdateVariantPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	variant, err := h.variantService.RetrieveVariant(ctx, RetrieveVariantOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	opts := UpdateVariantOptions{Columns: []string{}}

	if params.Lyrics != nil {
		variant.Lyrics = *params.Lyrics
		opts.Columns = append(opts.Columns, "lyrics")
	}
	if params.URL != nil {
		variant.URL = *params.URL
		opts.Columns = append(opts.Columns, "url")
	}
	if params.TextHash != nil {
		variant.TextHash = *params.TextHash
		opts.Columns = append(opts.Columns, "text_hash")
	}
	if params.Version != nil {
		variant.Version = *params.Version
		opts.Columns = append(opts.Columns, "version")
	}
	if params.LastCrawledAt != nil {
		variant.LastCrawledAt = *params.LastCrawledAt
		opts.Columns = append(opts.Columns, "last_crawled_at")
	}
	if params.Source != nil {
		variant.Source = *params.Source
		opts.Columns = append(opts.Columns, "source")
	}

	if len(opts.Columns) == 0 {
		return errcodes.NoValidFields()
	}

	err = h.variantService.UpdateVariant(ctx, variant, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, variant))
}

func (h *handler) deleteVariant(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Lyric variant")
	}

	err = h.variantService.DeleteVariant(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}
