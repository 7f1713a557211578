package artists

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/sortname"
	"github.com/tonearmlabs/tonearm/pkg/textnorm"
)

type handler struct {
	artistService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListArtistsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	artists, total, err := h.artistService.ListArtistsWithTotal(ctx, ListArtistsOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
		Search: params.Search,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]interface{}{
		"artists": artists,
		"total":   total,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Artist")
	}

	artist, err := h.artistService.RetrieveArtist(ctx, RetrieveArtistOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, artist))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Artist")
	}

	params := UpdateArtistPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	artist, err := h.artistService.RetrieveArtist(ctx, RetrieveArtistOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	opts := UpdateArtistOptions{Columns: []string{}}

	if params.Name != nil && *params.Name != artist.Name {
		artist.Name = *params.Name
		artist.NameNormalized = textnorm.NormalizeName(*params.Name)
		artist.SortName = sortname.ForArtist(*params.Name)
		opts.Columns = append(opts.Columns, "name", "name_normalized", "sort_name")
	}
	if params.Aliases != nil {
		artist.Aliases = models.StringList(*params.Aliases)
		opts.Columns = append(opts.Columns, "aliases")
	}
	if params.GenreTags != nil {
		artist.GenreTags = models.StringList(*params.GenreTags)
		opts.Columns = append(opts.Columns, "genre_tags")
	}

	if len(opts.Columns) == 0 {
		return errcodes.NoValidFields()
	}

	err = h.artistService.UpdateArtist(ctx, artist, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, artist))
}
