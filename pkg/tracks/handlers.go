package tracks

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/textnorm"
)

type handler struct {
	trackService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListTracksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	tracks, total, err := h.trackService.ListTracksWithTotal(ctx, ListTracksOptions{
		Limit:       &params.Limit,
		Offset:      &params.Offset,
		LyricStatus: params.LyricStatus,
		Search:      params.Search,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]interface{}{
		"tracks": tracks,
		"total":  total,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Track")
	}

	track, err := h.trackService.RetrieveTrack(ctx, RetrieveTrackOptions{
		ID:                   &id,
		IncludePrimaryArtist: true,
		IncludeLyricVariants: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, track))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Track")
	}

	params := UpdateTrackPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	track, err := h.trackService.RetrieveTrack(ctx, RetrieveTrackOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	opts := UpdateTrackOptions{Columns: []string{}}
	keyChanged := false

	if params.Title != nil && *params.Title != track.Title {
		track.Title = *params.Title
		track.TitleNormalized = textnorm.NormalizeName(*params.Title)
		opts.Columns = append(opts.Columns, "title", "title_normalized")
		keyChanged = true
	}
	if params.DurationMs != nil && *params.DurationMs != track.DurationMs {
		track.DurationMs = *params.DurationMs
		opts.Columns = append(opts.Columns, "duration_ms")
		keyChanged = true
	}
	if params.ExplicitFlag != nil {
		track.ExplicitFlag = *params.ExplicitFlag
		opts.Columns = append(opts.Columns, "explicit_flag")
	}
	if params.ISRC != nil {
		track.ISRC = *params.ISRC
		opts.Columns = append(opts.Columns, "isrc")
	}
	if params.EditionTag != nil {
		track.EditionTag = *params.EditionTag
		opts.Columns = append(opts.Columns, "edition_tag")
	}
	if params.ReleaseDate != nil {
		track.ReleaseDate = *params.ReleaseDate
		opts.Columns = append(opts.Columns, "release_date")
	}
	if params.GenreTags != nil {
		track.GenreTags = models.StringList(*params.GenreTags)
		opts.Columns = append(opts.Columns, "genre_tags")
	}
	if params.Metadata != nil {
		track.Metadata = track.Metadata.Merge(models.Metadata{Extra: *params.Metadata})
		opts.Columns = append(opts.Columns, "metadata")
	}

	if keyChanged {
		track.CanonicalKey = CanonicalKey(track.TitleNormalized, track.PrimaryArtistID, track.DurationMs)
		opts.Columns = append(opts.Columns, "canonical_key")
	}

	linkChanged := params.AlbumID != nil && (params.TrackNumber != nil || params.DiscNumber != nil)
	if len(opts.Columns) == 0 && !linkChanged {
		return errcodes.NoValidFields()
	}

	err = h.trackService.UpdateTrack(ctx, track, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	if linkChanged {
		link, err := h.trackService.retrieveLink(ctx, *params.AlbumID, track.ID)
		if err != nil {
			return errors.WithStack(err)
		}
		linkOpts := LinkOptions{TrackNumber: link.TrackNumber, DiscNumber: link.DiscNumber}
		if params.TrackNumber != nil {
			linkOpts.TrackNumber = *params.TrackNumber
		}
		if params.DiscNumber != nil {
			linkOpts.DiscNumber = *params.DiscNumber
		}
		_, err = h.trackService.LinkAlbumTrack(ctx, *params.AlbumID, track.ID, linkOpts)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return errors.WithStack(c.JSON(http.StatusOK, track))
}
