package ingest

import (
	"context"
	"fmt"

	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/lyricvariants"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/providers"
	"github.com/tonearmlabs/tonearm/pkg/textnorm"
	"github.com/tonearmlabs/tonearm/pkg/tracks"
	"github.com/tonearmlabs/tonearm/pkg/workflow"
)

type lyricOptions struct {
	Title  string
	Artist string
	Force  bool
}

// runLyricFetch is the on-demand single-track lyric workflow.
func (p *Pipeline) runLyricFetch(ctx context.Context, run *workflow.Run, rawArgs string) error {
	args := LyricArgs{}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return errcodes.MalformedInput("Lyric fetch args are malformed.")
	}
	if args.TrackID == 0 {
		return errcodes.MalformedInput("Lyric fetch requires a track id.")
	}

	track, err := workflow.Step(ctx, run, "db.get_track", workflow.NoRetry, func(ctx context.Context) (*models.Track, error) {
		return p.trackService.RetrieveTrack(ctx, tracks.RetrieveTrackOptions{
			ID:                   &args.TrackID,
			IncludePrimaryArtist: true,
		})
	})
	if err != nil {
		return err
	}

	artistName := ""
	if track.PrimaryArtist != nil {
		artistName = track.PrimaryArtist.Name
	}

	return p.fetchLyricsForTrack(ctx, run, track, artistName, lyricOptions{
		Title:  args.Title,
		Artist: args.Artist,
		Force:  args.Force,
	})
}

// fetchLyricsForTrack walks the lyric sources in priority order, trying each
// title variant until one returns text. The first source that yields lyrics
// wins and is persisted as a versioned variant; the track ends up fetched if
// one did, failed if none.
//
// Provider failures degrade the track, they never fail the run: the returned
// error covers store writes and cancellation only.
func (p *Pipeline) fetchLyricsForTrack(ctx context.Context, run *workflow.Run, track *models.Track, artistName string, opts lyricOptions) error {
	log := logger.FromContext(ctx)

	// A crashed run can leave the track parked in fetching; skip only the
	// redundant write and fetch anyway so re-execution unsticks it.
	if track.LyricStatus != models.LyricStatusFetching {
		if err := p.trackService.UpdateLyricStatus(ctx, track.ID, models.LyricStatusFetching); err != nil {
			return err
		}
	}

	variants := textnorm.TitleVariantsForLyrics(track.Title)
	if opts.Title != "" {
		variants = []string{opts.Title}
	}
	artist := artistName
	if opts.Artist != "" {
		artist = opts.Artist
	}
	// Lyric providers match on the scrubbed form.
	artist = textnorm.NormalizeName(artist)

	found := false
	for _, source := range providers.LyricSources {
		result, err := workflow.Step(ctx, run, fmt.Sprintf("lyrics.%s.track_%d", source, track.ID), workflow.LyricRetry, func(ctx context.Context) (*providers.LyricResult, error) {
			for _, variant := range variants {
				res, err := p.lyricSource.GetLyricsByTrack(ctx, source, variant, artist)
				if err != nil {
					return nil, err
				}
				if res != nil && res.Lyrics != "" {
					return res, nil
				}
			}
			return nil, nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Warn("lyric source failed", logger.Data{
				"track_id": track.ID,
				"source":   source,
				"error":    err.Error(),
			})
			continue
		}
		if result == nil || result.Lyrics == "" {
			continue
		}

		_, err = p.variantService.UpsertVariant(ctx, lyricvariants.UpsertVariantOptions{
			TrackID:        track.ID,
			Source:         source,
			Lyrics:         result.Lyrics,
			URL:            result.URL,
			ForceOverwrite: opts.Force,
		})
		if err != nil {
			return err
		}
		found = true
		break
	}

	status := models.LyricStatusFailed
	if found {
		status = models.LyricStatusFetched
	}
	return p.trackService.UpdateLyricStatus(ctx, track.ID, status)
}
