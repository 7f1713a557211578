package ingest

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/providers"
	"github.com/tonearmlabs/tonearm/pkg/tracks"
	"github.com/tonearmlabs/tonearm/pkg/workflow"
)

// runAlbum is the album ingestion workflow: fetch the album, upsert it, fan
// out over its artists and tracks, link everything, then fetch lyrics per
// track. Every step is idempotent, so a re-executed run converges on the
// same rows.
func (p *Pipeline) runAlbum(ctx context.Context, run *workflow.Run, rawArgs string) error {
	args := AlbumArgs{}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return errcodes.MalformedInput("Album ingest args are malformed.")
	}
	if args.AlbumID == "" {
		return errcodes.MalformedInput("Album ingest requires a source album id.")
	}

	rec, err := workflow.Step(ctx, run, "catalog.get_album", workflow.CatalogRetry, func(ctx context.Context) (*providers.AlbumRecord, error) {
		return p.catalog.GetAlbumByID(ctx, args.AlbumID)
	})
	if err != nil {
		return err
	}
	if rec == nil {
		return errcodes.MalformedInput("Catalog returned no album.")
	}

	album, err := workflow.Step(ctx, run, "db.upsert_album", workflow.NoRetry, func(ctx context.Context) (*models.Album, error) {
		return p.albumService.UpsertAlbum(ctx, rec)
	})
	if err != nil {
		return err
	}

	// Tracking only; a broken job record must not fail the ingestion.
	err = run.Do(ctx, "jobs.patch_context", workflow.NoRetry, func(ctx context.Context) error {
		if err := p.jobService.PatchJobContext(ctx, run.WorkflowID, album.ID); err != nil {
			log := logger.FromContext(ctx)
			log.Warn("patch job context error", logger.Data{"workflow_id": run.WorkflowID, "error": err.Error()})
		}
		return nil
	})
	if err != nil {
		return err
	}

	artistIDs := collectArtistIDs(rec)
	err = workflow.ForEach(ctx, p.engine.Concurrency(), artistIDs, func(ctx context.Context, providerID string) error {
		artistRec, err := workflow.Step(ctx, run, fmt.Sprintf("catalog.get_artist.%s", providerID), workflow.CatalogRetry, func(ctx context.Context) (*providers.ArtistRecord, error) {
			return p.catalog.GetArtistByID(ctx, providerID)
		})
		if err != nil {
			return err
		}
		if artistRec == nil {
			return nil
		}
		return run.Do(ctx, fmt.Sprintf("db.upsert_artist.%s", providerID), workflow.NoRetry, func(ctx context.Context) error {
			_, err := p.artistService.UpsertArtist(ctx, artistRec)
			return err
		})
	})
	if err != nil {
		return err
	}

	type trackRef struct {
		providerID string
		position   int
	}
	refs := []trackRef{}
	seen := map[string]struct{}{}
	for i, embedded := range rec.Tracks {
		if embedded.ProviderID == "" {
			continue
		}
		if _, ok := seen[embedded.ProviderID]; ok {
			continue
		}
		seen[embedded.ProviderID] = struct{}{}
		refs = append(refs, trackRef{providerID: embedded.ProviderID, position: i + 1})
	}

	return workflow.ForEach(ctx, p.engine.Concurrency(), refs, func(ctx context.Context, ref trackRef) error {
		trackRec, err := workflow.Step(ctx, run, fmt.Sprintf("catalog.get_track.%s", ref.providerID), workflow.CatalogRetry, func(ctx context.Context) (*providers.TrackRecord, error) {
			return p.catalog.GetTrackByID(ctx, ref.providerID)
		})
		if err != nil {
			return err
		}
		if trackRec == nil {
			return errors.Errorf("catalog returned no track for %s", ref.providerID)
		}
		if trackRec.Album == nil {
			trackRec.Album = &providers.EmbeddedAlbum{
				ProviderID: args.AlbumID,
				Provider:   rec.Provider,
				Title:      rec.Title,
			}
		}

		track, err := workflow.Step(ctx, run, fmt.Sprintf("db.upsert_track.%s", ref.providerID), workflow.NoRetry, func(ctx context.Context) (*models.Track, error) {
			return p.trackService.UpsertTrack(ctx, trackRec)
		})
		if err != nil {
			return err
		}

		err = run.Do(ctx, fmt.Sprintf("db.link_track.%s", ref.providerID), workflow.NoRetry, func(ctx context.Context) error {
			_, err := p.trackService.LinkAlbumTrack(ctx, album.ID, track.ID, tracks.LinkOptions{
				TrackNumber: ref.position,
				DiscNumber:  1,
			})
			return err
		})
		if err != nil {
			return err
		}

		artistName := ""
		if trackRec.PrimaryArtist != nil {
			artistName = trackRec.PrimaryArtist.Name
		} else if rec.PrimaryArtist != nil {
			artistName = rec.PrimaryArtist.Name
		}

		return p.fetchLyricsForTrack(ctx, run, track, artistName, lyricOptions{})
	})
}

// collectArtistIDs gathers the distinct provider artist ids referenced by the
// album and its tracks, preserving first-seen order.
func collectArtistIDs(rec *providers.AlbumRecord) []string {
	ids := []string{}
	seen := map[string]struct{}{}

	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if rec.PrimaryArtist != nil {
		add(rec.PrimaryArtist.ProviderID)
	}
	for _, artist := range rec.Artists {
		add(artist.ProviderID)
	}
	for _, track := range rec.Tracks {
		if track.PrimaryArtist != nil {
			add(track.PrimaryArtist.ProviderID)
		}
	}

	return ids
}
