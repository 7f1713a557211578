// Package ingest wires the catalog and lyric providers into durable
// workflows: one that ingests a full album (artists, tracks, links, lyrics)
// and one that fetches lyrics for a single track on demand.
package ingest

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/tonearmlabs/tonearm/pkg/albums"
	"github.com/tonearmlabs/tonearm/pkg/artists"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/jobs"
	"github.com/tonearmlabs/tonearm/pkg/lyricvariants"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/providers"
	"github.com/tonearmlabs/tonearm/pkg/tracks"
	"github.com/tonearmlabs/tonearm/pkg/workflow"
	"github.com/uptrace/bun"
)

const (
	AlbumWorkflowName = "album_ingest"
	LyricWorkflowName = "lyric_fetch"
)

// AlbumArgs starts an album ingestion from a provider-side album id.
type AlbumArgs struct {
	AlbumID string `json:"album_id"`
}

// LyricArgs starts a single-track lyric fetch. Title and Artist override the
// generated search queries when an operator knows better; Force overwrites
// the crawl record even when nothing changed.
type LyricArgs struct {
	TrackID int    `json:"track_id"`
	Title   string `json:"title,omitempty"`
	Artist  string `json:"artist,omitempty"`
	Force   bool   `json:"force,omitempty"`
}

// Pipeline owns the ingestion workflows and the services they write through.
type Pipeline struct {
	engine      *workflow.Engine
	catalog     providers.Catalog
	lyricSource providers.LyricSource

	artistService  *artists.Service
	albumService   *albums.Service
	trackService   *tracks.Service
	variantService *lyricvariants.Service
	jobService     *jobs.Service
}

func NewPipeline(db *bun.DB, engine *workflow.Engine, catalog providers.Catalog, lyricSource providers.LyricSource) *Pipeline {
	artistService := artists.NewService(db)
	albumService := albums.NewService(db, artistService)
	trackService := tracks.NewService(db, artistService, albumService)
	variantService := lyricvariants.NewService(db)
	jobService := jobs.NewService(db, engine)
	albumService.SetReviewNotifier(jobService)

	p := &Pipeline{
		engine:      engine,
		catalog:     catalog,
		lyricSource: lyricSource,

		artistService:  artistService,
		albumService:   albumService,
		trackService:   trackService,
		variantService: variantService,
		jobService:     jobService,
	}

	engine.Register(AlbumWorkflowName, workflow.Workflow{
		Handler:    p.runAlbum,
		OnComplete: jobService.HandleCompletion,
	})
	engine.Register(LyricWorkflowName, workflow.Workflow{
		Handler:    p.runLyricFetch,
		OnComplete: jobService.HandleCompletion,
	})
	jobService.RegisterRetryStarter(AlbumWorkflowName, func(ctx context.Context, rawArgs string) (string, error) {
		args := AlbumArgs{}
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return "", errors.WithStack(err)
		}
		return p.StartAlbumIngest(ctx, args.AlbumID)
	})

	return p
}

// Services the HTTP layer shares with the pipeline, so both sides go through
// the same locks and review notifier.

func (p *Pipeline) ArtistService() *artists.Service        { return p.artistService }
func (p *Pipeline) AlbumService() *albums.Service          { return p.albumService }
func (p *Pipeline) TrackService() *tracks.Service          { return p.trackService }
func (p *Pipeline) VariantService() *lyricvariants.Service { return p.variantService }
func (p *Pipeline) JobService() *jobs.Service              { return p.jobService }

// StartAlbumIngest queues an album ingestion run and records its job. The
// job record is best-effort; the run itself is already durable.
func (p *Pipeline) StartAlbumIngest(ctx context.Context, sourceAlbumID string) (string, error) {
	if sourceAlbumID == "" {
		return "", errcodes.MalformedInput("Album ingest requires a source album id.")
	}

	args := AlbumArgs{AlbumID: sourceAlbumID}
	workflowID, err := p.engine.Start(ctx, AlbumWorkflowName, args)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(args)
	if err != nil {
		return "", errors.WithStack(err)
	}

	_, err = p.jobService.CreateJob(ctx, jobs.CreateJobOptions{
		WorkflowID:   workflowID,
		WorkflowName: AlbumWorkflowName,
		Args:         string(data),
		Context:      &models.JobContext{SourceAlbumID: sourceAlbumID},
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn("create job error", logger.Data{"workflow_id": workflowID, "error": err.Error()})
	}

	return workflowID, nil
}

// StartLyricFetch queues a single-track lyric fetch run.
func (p *Pipeline) StartLyricFetch(ctx context.Context, args LyricArgs) (string, error) {
	if args.TrackID == 0 {
		return "", errcodes.MalformedInput("Lyric fetch requires a track id.")
	}

	workflowID, err := p.engine.Start(ctx, LyricWorkflowName, args)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(args)
	if err != nil {
		return "", errors.WithStack(err)
	}

	_, err = p.jobService.CreateJob(ctx, jobs.CreateJobOptions{
		WorkflowID:   workflowID,
		WorkflowName: LyricWorkflowName,
		Args:         string(data),
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn("create job error", logger.Data{"workflow_id": workflowID, "error": err.Error()})
	}

	return workflowID, nil
}
