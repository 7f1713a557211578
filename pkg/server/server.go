package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/tonearmlabs/tonearm/pkg/albums"
	"github.com/tonearmlabs/tonearm/pkg/artists"
	"github.com/tonearmlabs/tonearm/pkg/binder"
	"github.com/tonearmlabs/tonearm/pkg/config"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/genres"
	"github.com/tonearmlabs/tonearm/pkg/ingest"
	"github.com/tonearmlabs/tonearm/pkg/jobs"
	"github.com/tonearmlabs/tonearm/pkg/lyricvariants"
	"github.com/tonearmlabs/tonearm/pkg/search"
	"github.com/tonearmlabs/tonearm/pkg/tracks"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB, pipeline *ingest.Pipeline) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	// The catalog routes share the pipeline's service instances so that HTTP
	// writes and workflow writes go through the same per-key locks and review
	// notifier.
	albums.RegisterRoutesWithGroup(e.Group("/albums"), db, pipeline.AlbumService())
	artists.RegisterRoutesWithGroup(e.Group("/artists"), pipeline.ArtistService())
	tracks.RegisterRoutesWithGroup(e.Group("/tracks"), pipeline.TrackService())
	lyricvariants.RegisterRoutesWithGroup(e.Group("/lyric-variants"), pipeline.VariantService())
	genres.RegisterRoutesWithGroup(e.Group("/genres"), genres.NewService(db))
	jobs.RegisterRoutesWithGroup(e.Group("/jobs"), db, pipeline.JobService())
	ingest.RegisterRoutesWithGroup(e.Group("/ingest"), pipeline)
	search.RegisterRoutesWithGroup(e.Group("/search"), db)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
