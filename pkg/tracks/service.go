package tracks

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/tonearmlabs/tonearm/pkg/albums"
	"github.com/tonearmlabs/tonearm/pkg/artists"
	"github.com/tonearmlabs/tonearm/pkg/database"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/identifiers"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/providers"
	"github.com/tonearmlabs/tonearm/pkg/textnorm"
	"github.com/uptrace/bun"
)

type RetrieveTrackOptions struct {
	ID                   *int
	IncludePrimaryArtist bool
	IncludeLyricVariants bool
}

type ListTracksOptions struct {
	Limit       *int
	Offset      *int
	LyricStatus *string
	Search      *string

	includeTotal bool
}

type UpdateTrackOptions struct {
	Columns []string
}

// LinkOptions positions a track on an album.
type LinkOptions struct {
	TrackNumber int
	DiscNumber  int
}

// CanonicalKey derives the track's fuzzy identity key. Durations are
// bucketed to 3 seconds so provider-to-provider jitter lands in the same
// bucket.
func CanonicalKey(titleNormalized string, primaryArtistID, durationMs int) string {
	bucket := int(math.Round(float64(durationMs) / 3000))
	return fmt.Sprintf("%s|%d|%d", titleNormalized, primaryArtistID, bucket)
}

// Service resolves and upserts track identities. Resolution is tiered:
// provider-id pairs, then ISRC, then a scan of the normalized-title index
// filtered by primary artist and exact duration.
type Service struct {
	db            *bun.DB
	artistService *artists.Service
	albumService  *albums.Service
	locks         *database.KeyMutex
}

func NewService(db *bun.DB, artistService *artists.Service, albumService *albums.Service) *Service {
	return &Service{db: db, artistService: artistService, albumService: albumService, locks: database.NewKeyMutex()}
}

func (svc *Service) RetrieveTrack(ctx context.Context, opts RetrieveTrackOptions) (*models.Track, error) {
	track := &models.Track{}

	q := svc.db.
		NewSelect().
		Model(track)

	if opts.IncludePrimaryArtist {
		q = q.Relation("PrimaryArtist")
	}
	if opts.IncludeLyricVariants {
		q = q.Relation("LyricVariants")
	}
	if opts.ID != nil {
		q = q.Where("t.id = ?", *opts.ID)
	}

	err := q.Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Track")
		}
		return nil, errors.WithStack(err)
	}

	return track, nil
}

func (svc *Service) ListTracks(ctx context.Context, opts ListTracksOptions) ([]*models.Track, error) {
	tr, _, err := svc.listTracksWithTotal(ctx, opts)
	return tr, errors.WithStack(err)
}

func (svc *Service) ListTracksWithTotal(ctx context.Context, opts ListTracksOptions) ([]*models.Track, int, error) {
	opts.includeTotal = true
	return svc.listTracksWithTotal(ctx, opts)
}

func (svc *Service) listTracksWithTotal(ctx context.Context, opts ListTracksOptions) ([]*models.Track, int, error) {
	var tracks []*models.Track
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&tracks).
		Relation("PrimaryArtist").
		Order("t.title_normalized ASC")

	if opts.LyricStatus != nil {
		q = q.Where("t.lyric_status = ?", *opts.LyricStatus)
	}
	if opts.Search != nil && *opts.Search != "" {
		q = q.Where("t.title_normalized LIKE ?", "%"+textnorm.NormalizeName(*opts.Search)+"%")
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return tracks, total, nil
}

// ResolveResult is the outcome of track identity resolution.
type ResolveResult struct {
	Existing        *models.Track
	TitleNormalized string
	ArtistIDs       models.IntList
	PrimaryArtistID int
}

// ResolveTrack resolves the record's artists (and embedded album, when one
// is supplied) and finds an existing track row. A record with no resolvable
// primary artist is malformed and fatal.
func (svc *Service) ResolveTrack(ctx context.Context, rec *providers.TrackRecord) (*ResolveResult, error) {
	titleNormalized := textnorm.NormalizeName(rec.Title)

	artistIDs, err := svc.artistService.BuildArtistIDs(ctx, rec.Artists)
	if err != nil {
		return nil, err
	}

	var primaryArtistID int
	primaryEmbedded := rec.PrimaryArtist
	if primaryEmbedded == nil && len(rec.Artists) > 0 {
		primaryEmbedded = &rec.Artists[0]
	}
	if primaryEmbedded != nil {
		primary, err := svc.artistService.UpsertEmbedded(ctx, *primaryEmbedded)
		if err != nil {
			return nil, err
		}
		primaryArtistID = primary.ID
	} else if len(artistIDs) > 0 {
		primaryArtistID = artistIDs[0]
	}

	if primaryArtistID == 0 {
		return nil, errcodes.MalformedInput("Track requires a primary artist.")
	}

	// Make sure the embedded album exists so the link step has a target.
	if rec.Album != nil && (rec.Album.Title != "" || rec.Album.ProviderID != "") {
		minimal := &providers.AlbumRecord{
			Title:       rec.Album.Title,
			ReleaseDate: rec.ReleaseDate,
			Provider:    rec.Album.Provider,
			SourceURL:   rec.Album.URL,
		}
		if primaryEmbedded != nil {
			minimal.PrimaryArtist = primaryEmbedded
			minimal.Artists = []providers.EmbeddedArtist{*primaryEmbedded}
		}
		if rec.Album.Provider != "" && rec.Album.ProviderID != "" {
			minimal.IDs = map[string]string{rec.Album.Provider: rec.Album.ProviderID}
		}
		_, err = svc.albumService.UpsertAlbum(ctx, minimal)
		if err != nil {
			return nil, err
		}
	}

	result := &ResolveResult{
		TitleNormalized: titleNormalized,
		ArtistIDs:       artistIDs.Sorted(),
		PrimaryArtistID: primaryArtistID,
	}

	existing, err := svc.findByProviderIDs(ctx, rec.IDs)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		result.Existing = existing
		return result, nil
	}

	if isrc := identifiers.NormalizeISRC(rec.ISRC); identifiers.ValidISRC(isrc) {
		existing, err = svc.findByISRC(ctx, isrc)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			result.Existing = existing
			return result, nil
		}
	}

	existing, err = svc.findBySoftKey(ctx, titleNormalized, primaryArtistID, rec.DurationMs)
	if err != nil {
		return nil, err
	}
	result.Existing = existing

	return result, nil
}

// UpsertTrack resolves the record and patches the matched row or inserts a
// new one. The canonical key is recomputed on every write that touches its
// inputs. The explicit flag is only overwritten when the record defines it,
// and the artist set is preserved when the record's list is empty.
func (svc *Service) UpsertTrack(ctx context.Context, rec *providers.TrackRecord) (*models.Track, error) {
	if rec == nil || rec.Title == "" {
		return nil, errcodes.MalformedInput("Track record requires a title.")
	}

	titleNormalized := textnorm.NormalizeName(rec.Title)
	unlock := svc.locks.Lock("track:" + titleNormalized)
	defer unlock()

	resolved, err := svc.ResolveTrack(ctx, rec)
	if err != nil {
		return nil, err
	}

	incoming := models.Metadata{
		ProviderIDs: rec.IDs,
		AudioURLs:   rec.AudioURLs,
	}
	if rec.Provider != "" && rec.SourceURL != "" {
		incoming.SourceURLs = map[string]string{rec.Provider: rec.SourceURL}
	}

	now := time.Now()

	if existing := resolved.Existing; existing != nil {
		durationMs := existing.DurationMs
		if rec.DurationMs > 0 {
			durationMs = rec.DurationMs
		}

		existing.UpdatedAt = now
		existing.Title = rec.Title
		existing.TitleNormalized = resolved.TitleNormalized
		existing.PrimaryArtistID = resolved.PrimaryArtistID
		existing.DurationMs = durationMs
		existing.CanonicalKey = CanonicalKey(resolved.TitleNormalized, resolved.PrimaryArtistID, durationMs)
		existing.Metadata = existing.Metadata.Merge(incoming)
		columns := []string{"updated_at", "title", "title_normalized", "primary_artist_id", "duration_ms", "canonical_key", "metadata"}

		if isrc := identifiers.NormalizeISRC(rec.ISRC); isrc != "" {
			existing.ISRC = isrc
			columns = append(columns, "isrc")
		}
		if rec.ReleaseDate != "" {
			existing.ReleaseDate = rec.ReleaseDate
			columns = append(columns, "release_date")
		}
		if rec.ExplicitFlag != nil {
			existing.ExplicitFlag = *rec.ExplicitFlag
			columns = append(columns, "explicit_flag")
		}
		if len(resolved.ArtistIDs) > 0 {
			existing.ArtistIDs = resolved.ArtistIDs
			columns = append(columns, "artist_ids")
		}
		if len(rec.GenreTags) > 0 {
			existing.GenreTags = models.StringList(rec.GenreTags)
			columns = append(columns, "genre_tags")
		}

		_, err = svc.db.
			NewUpdate().
			Model(existing).
			Column(columns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return existing, nil
	}

	artistIDs := resolved.ArtistIDs
	if len(artistIDs) == 0 {
		artistIDs = models.IntList{resolved.PrimaryArtistID}
	}

	track := &models.Track{
		CreatedAt:       now,
		UpdatedAt:       now,
		Title:           rec.Title,
		TitleNormalized: resolved.TitleNormalized,
		ISRC:            identifiers.NormalizeISRC(rec.ISRC),
		ReleaseDate:     rec.ReleaseDate,
		DurationMs:      rec.DurationMs,
		PrimaryArtistID: resolved.PrimaryArtistID,
		ArtistIDs:       artistIDs,
		LyricStatus:     models.LyricStatusNotFetched,
		CanonicalKey:    CanonicalKey(resolved.TitleNormalized, resolved.PrimaryArtistID, rec.DurationMs),
		GenreTags:       models.StringList(rec.GenreTags),
		Metadata:        models.Metadata{}.Merge(incoming),
	}
	if rec.ExplicitFlag != nil {
		track.ExplicitFlag = *rec.ExplicitFlag
	}
	if track.GenreTags == nil {
		track.GenreTags = models.StringList{}
	}

	_, err = svc.db.
		NewInsert().
		Model(track).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return track, nil
}

// LinkAlbumTrack inserts the album/track link row if it does not already
// exist, updating its position when it does.
func (svc *Service) LinkAlbumTrack(ctx context.Context, albumID, trackID int, opts LinkOptions) (*models.AlbumTrack, error) {
	link := &models.AlbumTrack{}

	err := svc.db.
		NewSelect().
		Model(link).
		Where("at.album_id = ?", albumID).
		Where("at.track_id = ?", trackID).
		Limit(1).
		Scan(ctx)
	if err == nil {
		if link.TrackNumber != opts.TrackNumber || link.DiscNumber != opts.DiscNumber {
			link.TrackNumber = opts.TrackNumber
			link.DiscNumber = opts.DiscNumber
			_, err = svc.db.
				NewUpdate().
				Model(link).
				Column("track_number", "disc_number").
				WherePK().
				Exec(ctx)
			if err != nil {
				return nil, errors.WithStack(err)
			}
		}
		return link, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(err)
	}

	link = &models.AlbumTrack{
		CreatedAt:   time.Now(),
		AlbumID:     albumID,
		TrackID:     trackID,
		TrackNumber: opts.TrackNumber,
		DiscNumber:  opts.DiscNumber,
	}
	_, err = svc.db.
		NewInsert().
		Model(link).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return link, nil
}

func (svc *Service) retrieveLink(ctx context.Context, albumID, trackID int) (*models.AlbumTrack, error) {
	link := &models.AlbumTrack{}
	err := svc.db.
		NewSelect().
		Model(link).
		Where("at.album_id = ?", albumID).
		Where("at.track_id = ?", trackID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Album track")
		}
		return nil, errors.WithStack(err)
	}
	return link, nil
}

// UpdateLyricStatus transitions the track's lyrics-fetch status.
func (svc *Service) UpdateLyricStatus(ctx context.Context, trackID int, status string) error {
	_, err := svc.db.
		NewUpdate().
		Model((*models.Track)(nil)).
		Set("lyric_status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", trackID).
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) UpdateTrack(ctx context.Context, track *models.Track, opts UpdateTrackOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	track.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(track).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Track")
		}
		return errors.WithStack(err)
	}
	return nil
}

func (svc *Service) findByProviderIDs(ctx context.Context, ids map[string]string) (*models.Track, error) {
	for _, provider := range database.SortedKeys(ids) {
		id := ids[provider]
		if id == "" {
			continue
		}

		track := &models.Track{}
		err := svc.db.
			NewSelect().
			Model(track).
			Where("json_extract(t.metadata, ?) = ?", database.ProviderIDPath(provider), id).
			Limit(1).
			Scan(ctx)
		if err == nil {
			return track, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, errors.WithStack(err)
		}
	}
	return nil, nil
}

func (svc *Service) findByISRC(ctx context.Context, isrc string) (*models.Track, error) {
	track := &models.Track{}
	err := svc.db.
		NewSelect().
		Model(track).
		Where("t.isrc = ?", isrc).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	return track, nil
}

// findBySoftKey scans the normalized-title index, then filters in process by
// primary artist and exact duration. Duration only participates when the
// record supplies one.
func (svc *Service) findBySoftKey(ctx context.Context, titleNormalized string, primaryArtistID, durationMs int) (*models.Track, error) {
	var candidates []*models.Track
	err := svc.db.
		NewSelect().
		Model(&candidates).
		Where("t.title_normalized = ?", titleNormalized).
		Order("t.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, candidate := range candidates {
		if candidate.PrimaryArtistID != primaryArtistID {
			continue
		}
		if durationMs > 0 && candidate.DurationMs != durationMs {
			continue
		}
		return candidate, nil
	}
	return nil, nil
}
