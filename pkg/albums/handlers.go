package albums

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/textnorm"
	"github.com/uptrace/bun"
)

type handler struct {
	albumService *Service
	db           *bun.DB
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListAlbumsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	albums, total, err := h.albumService.ListAlbumsWithTotal(ctx, ListAlbumsOptions{
		Limit:    &params.Limit,
		Offset:   &params.Offset,
		Approved: params.Approved,
		Rejected: params.Rejected,
		Search:   params.Search,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]interface{}{
		"albums": albums,
		"total":  total,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

// retrieve returns the full review aggregate: the album with its primary
// artist, its tracks (with lyric variants), and every artist referenced by
// those tracks.
func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Album")
	}

	album, err := h.albumService.RetrieveAlbum(ctx, RetrieveAlbumOptions{
		ID:                   &id,
		IncludePrimaryArtist: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	links, err := h.albumService.ListAlbumTracks(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	// Collect every artist the album or its tracks reference.
	artistIDs := map[int]struct{}{}
	for _, aid := range album.ArtistIDs {
		artistIDs[aid] = struct{}{}
	}
	for _, link := range links {
		if link.Track == nil {
			continue
		}
		for _, aid := range link.Track.ArtistIDs {
			artistIDs[aid] = struct{}{}
		}
	}

	var albumArtists []*models.Artist
	if len(artistIDs) > 0 {
		ids := make([]int, 0, len(artistIDs))
		for aid := range artistIDs {
			ids = append(ids, aid)
		}
		err = h.db.NewSelect().
			Model(&albumArtists).
			Where("ar.id IN (?)", bun.In(ids)).
			Order("ar.name_normalized ASC").
			Scan(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	response := struct {
		*models.Album
		Tracks  []*models.AlbumTrack `json:"tracks"`
		Artists []*models.Artist     `json:"artists"`
	}{album, links, albumArtists}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Album")
	}

	params := UpdateAlbumPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	album, err := h.albumService.RetrieveAlbum(ctx, RetrieveAlbumOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	opts := UpdateAlbumOptions{Columns: []string{}}

	if params.Title != nil && *params.Title != album.Title {
		album.Title = *params.Title
		album.TitleNormalized, _ = textnorm.NormalizeAlbumTitle(*params.Title)
		opts.Columns = append(opts.Columns, "title", "title_normalized")
	}
	if params.EditionTag != nil {
		album.EditionTag = *params.EditionTag
		opts.Columns = append(opts.Columns, "edition_tag")
	}
	if params.ReleaseDate != nil {
		album.ReleaseDate = *params.ReleaseDate
		opts.Columns = append(opts.Columns, "release_date")
	}
	if params.TotalTracks != nil {
		album.TotalTracks = *params.TotalTracks
		opts.Columns = append(opts.Columns, "total_tracks")
	}
	if params.GenreTags != nil {
		album.GenreTags = models.StringList(*params.GenreTags)
		opts.Columns = append(opts.Columns, "genre_tags")
	}
	if params.Images != nil {
		album.Images = models.StringList(*params.Images)
		opts.Columns = append(opts.Columns, "images")
	}
	if params.Metadata != nil {
		album.Metadata = album.Metadata.Merge(models.Metadata{Extra: *params.Metadata})
		opts.Columns = append(opts.Columns, "metadata")
	}

	if len(opts.Columns) == 0 {
		return errcodes.NoValidFields()
	}

	err = h.albumService.UpdateAlbum(ctx, album, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, album))
}

func (h *handler) approve(c echo.Context) error {
	return h.review(c, true)
}

func (h *handler) reject(c echo.Context) error {
	return h.review(c, false)
}

func (h *handler) review(c echo.Context, approved bool) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Album")
	}

	album, err := h.albumService.ReviewAlbum(ctx, id, approved)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, album))
}
