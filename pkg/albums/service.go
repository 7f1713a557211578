package albums

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tonearmlabs/tonearm/pkg/artists"
	"github.com/tonearmlabs/tonearm/pkg/database"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/providers"
	"github.com/tonearmlabs/tonearm/pkg/textnorm"
	"github.com/uptrace/bun"
)

type RetrieveAlbumOptions struct {
	ID                   *int
	IncludePrimaryArtist bool
}

type ListAlbumsOptions struct {
	Limit    *int
	Offset   *int
	Approved *bool
	Rejected *bool
	Search   *string

	includeTotal bool
}

type UpdateAlbumOptions struct {
	Columns []string
}

// ReviewNotifier receives best-effort review notifications. The job tracker
// implements it; failures are logged and swallowed so a tracker outage never
// blocks a review decision.
type ReviewNotifier interface {
	AlbumReviewed(ctx context.Context, albumID int, approved bool) error
}

// Service resolves and upserts album identities and serves the review
// surface. Resolution is tiered: provider-id pairs are authoritative, then
// the (title_normalized, primary_artist_id, edition_tag) soft key, then the
// (title_normalized, sorted artist_ids, edition_tag) soft key.
type Service struct {
	db            *bun.DB
	artistService *artists.Service
	locks         *database.KeyMutex
	notifier      ReviewNotifier
}

func NewService(db *bun.DB, artistService *artists.Service) *Service {
	return &Service{db: db, artistService: artistService, locks: database.NewKeyMutex()}
}

// SetReviewNotifier wires the job tracker in after construction. The jobs
// package depends on albums' models but not on this package, so the hookup
// happens at server wiring time.
func (svc *Service) SetReviewNotifier(n ReviewNotifier) {
	svc.notifier = n
}

func (svc *Service) RetrieveAlbum(ctx context.Context, opts RetrieveAlbumOptions) (*models.Album, error) {
	album := &models.Album{}

	q := svc.db.
		NewSelect().
		Model(album)

	if opts.IncludePrimaryArtist {
		q = q.Relation("PrimaryArtist")
	}
	if opts.ID != nil {
		q = q.Where("a.id = ?", *opts.ID)
	}

	err := q.Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Album")
		}
		return nil, errors.WithStack(err)
	}

	return album, nil
}

func (svc *Service) ListAlbums(ctx context.Context, opts ListAlbumsOptions) ([]*models.Album, error) {
	a, _, err := svc.listAlbumsWithTotal(ctx, opts)
	return a, errors.WithStack(err)
}

func (svc *Service) ListAlbumsWithTotal(ctx context.Context, opts ListAlbumsOptions) ([]*models.Album, int, error) {
	opts.includeTotal = true
	return svc.listAlbumsWithTotal(ctx, opts)
}

func (svc *Service) listAlbumsWithTotal(ctx context.Context, opts ListAlbumsOptions) ([]*models.Album, int, error) {
	var albums []*models.Album
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&albums).
		Relation("PrimaryArtist").
		Order("a.updated_at DESC")

	if opts.Approved != nil {
		q = q.Where("a.approved = ?", *opts.Approved)
	}
	if opts.Rejected != nil {
		q = q.Where("a.rejected = ?", *opts.Rejected)
	}
	if opts.Search != nil && *opts.Search != "" {
		q = q.Where("a.title_normalized LIKE ?", "%"+textnorm.NormalizeName(*opts.Search)+"%")
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

	return albums, total, nil
}

// ListAlbumTracks returns the album's link rows with their tracks and lyric
// variants, ordered by disc then track number.
func (svc *Service) ListAlbumTracks(ctx context.Context, albumID int) ([]*models.AlbumTrack, error) {
	var links []*models.AlbumTrack

	err := svc.db.
		NewSelect().
		Model(&links).
		Relation("Track").
		Relation("Track.LyricVariants").
		Where("at.album_id = ?", albumID).
		Order("at.disc_number ASC", "at.track_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return links, nil
}

// ResolveResult is the outcome of album identity resolution. Existing is nil
// when no tier matched; the normalized components are returned either way so
// the upsert does not recompute them.
type ResolveResult struct {
	Existing        *models.Album
	TitleNormalized string
	EditionTag      string
	ArtistIDs       models.IntList
	PrimaryArtistID int
}

// ResolveAlbum resolves the record's artists (upserting embedded ones) and
// finds an existing album row. The independently-supplied primary artist is
// preferred over artists[0]; a record with neither is malformed and fatal.
func (svc *Service) ResolveAlbum(ctx context.Context, rec *providers.AlbumRecord) (*ResolveResult, error) {
	titleNormalized, editionTag := textnorm.NormalizeAlbumTitle(rec.Title)

	artistIDs, err := svc.artistService.BuildArtistIDs(ctx, rec.Artists)
	if err != nil {
		return nil, err
	}

	var primaryArtistID int
	if rec.PrimaryArtist != nil {
		primary, err := svc.artistService.UpsertEmbedded(ctx, *rec.PrimaryArtist)
		if err != nil {
			return nil, err
		}
		primaryArtistID = primary.ID
	} else if len(artistIDs) > 0 {
		primaryArtistID = artistIDs[0]
	}

	if primaryArtistID == 0 {
		return nil, errcodes.MalformedInput("Album requires a primary artist.")
	}

	// artist_ids reflects the record's artist list; fall back to the primary
	// when the list is empty. Sorted, since the serialized form is an
	// identity component.
	if len(artistIDs) == 0 {
		artistIDs = models.IntList{primaryArtistID}
	}
	artistIDs = artistIDs.Sorted()

	result := &ResolveResult{
		TitleNormalized: titleNormalized,
		EditionTag:      editionTag,
		ArtistIDs:       artistIDs,
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

	existing, err = svc.findBySoftKey(ctx, titleNormalized, primaryArtistID, editionTag)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		result.Existing = existing
		return result, nil
	}

	existing, err = svc.findByArtistSetKey(ctx, titleNormalized, artistIDs, editionTag)
	if err != nil {
		return nil, err
	}
	result.Existing = existing

	return result, nil
}

// UpsertAlbum resolves the record and patches the matched row or inserts a
// new one. On patch, non-empty incoming fields win; metadata bags merge; the
// artist set is only replaced when the record carries its own track list
// (a bare embedded album from a track payload must not shrink it).
func (svc *Service) UpsertAlbum(ctx context.Context, rec *providers.AlbumRecord) (*models.Album, error) {
	if rec == nil || rec.Title == "" {
		return nil, errcodes.MalformedInput("Album record requires a title.")
	}

	titleNormalized, editionTag := textnorm.NormalizeAlbumTitle(rec.Title)
	unlock := svc.locks.Lock(fmt.Sprintf("album:%s|%s", titleNormalized, editionTag))
	defer unlock()

	resolved, err := svc.ResolveAlbum(ctx, rec)
	if err != nil {
		return nil, err
	}

	incoming := models.Metadata{ProviderIDs: rec.IDs}
	if rec.Provider != "" && rec.SourceURL != "" {
		incoming.SourceURLs = map[string]string{rec.Provider: rec.SourceURL}
	}

	totalTracks := rec.TotalTracks
	if totalTracks == 0 {
		totalTracks = len(rec.Tracks)
	}

	now := time.Now()

	if existing := resolved.Existing; existing != nil {
		existing.UpdatedAt = now
		existing.Title = rec.Title
		existing.TitleNormalized = resolved.TitleNormalized
		existing.EditionTag = resolved.EditionTag
		existing.PrimaryArtistID = resolved.PrimaryArtistID
		existing.Metadata = existing.Metadata.Merge(incoming)
		columns := []string{"updated_at", "title", "title_normalized", "edition_tag", "primary_artist_id", "metadata"}

		if rec.ReleaseDate != "" {
			existing.ReleaseDate = rec.ReleaseDate
			columns = append(columns, "release_date")
		}
		if totalTracks > 0 {
			existing.TotalTracks = totalTracks
			columns = append(columns, "total_tracks")
		}
		if len(rec.GenreTags) > 0 {
			existing.GenreTags = models.StringList(rec.GenreTags)
			columns = append(columns, "genre_tags")
		}
		if len(rec.ImageURLs) > 0 {
			existing.Images = models.StringList(rec.ImageURLs)
			columns = append(columns, "images")
		}
		if len(rec.Tracks) > 0 {
			existing.ArtistIDs = resolved.ArtistIDs
			columns = append(columns, "artist_ids")
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

	album := &models.Album{
		CreatedAt:       now,
		UpdatedAt:       now,
		Title:           rec.Title,
		TitleNormalized: resolved.TitleNormalized,
		EditionTag:      resolved.EditionTag,
		PrimaryArtistID: resolved.PrimaryArtistID,
		ArtistIDs:       resolved.ArtistIDs,
		ReleaseDate:     rec.ReleaseDate,
		TotalTracks:     totalTracks,
		GenreTags:       models.StringList(rec.GenreTags),
		Images:          models.StringList(rec.ImageURLs),
		Metadata:        models.Metadata{}.Merge(incoming),
	}
	if album.GenreTags == nil {
		album.GenreTags = models.StringList{}
	}
	if album.Images == nil {
		album.Images = models.StringList{}
	}

	_, err = svc.db.
		NewInsert().
		Model(album).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return album, nil
}

func (svc *Service) UpdateAlbum(ctx context.Context, album *models.Album, opts UpdateAlbumOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	album.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(album).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Album")
		}
		return errors.WithStack(err)
	}
	return nil
}

// ReviewAlbum records an approve or reject decision and notifies the job
// tracker best-effort.
func (svc *Service) ReviewAlbum(ctx context.Context, albumID int, approved bool) (*models.Album, error) {
	album, err := svc.RetrieveAlbum(ctx, RetrieveAlbumOptions{ID: &albumID})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	album.Approved = approved
	album.Rejected = !approved
	album.ReviewedAt = &now

	err = svc.UpdateAlbum(ctx, album, UpdateAlbumOptions{
		Columns: []string{"approved", "rejected", "reviewed_at"},
	})
	if err != nil {
		return nil, err
	}

	if svc.notifier != nil {
		if err := svc.notifier.AlbumReviewed(ctx, album.ID, approved); err != nil {
			log := logger.FromContext(ctx)
			log.Warn("failed to notify job tracker of review", logger.Data{"album_id": album.ID, "error": err.Error()})
		}
	}

	return album, nil
}

func (svc *Service) findByProviderIDs(ctx context.Context, ids map[string]string) (*models.Album, error) {
	for _, provider := range database.SortedKeys(ids) {
		id := ids[provider]
		if id == "" {
			continue
		}

		album := &models.Album{}
		err := svc.db.
			NewSelect().
			Model(album).
			Where("json_extract(a.metadata, ?) = ?", database.ProviderIDPath(provider), id).
			Limit(1).
			Scan(ctx)
		if err == nil {
			return album, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, errors.WithStack(err)
		}
	}
	return nil, nil
}

func (svc *Service) findBySoftKey(ctx context.Context, titleNormalized string, primaryArtistID int, editionTag string) (*models.Album, error) {
	album := &models.Album{}
	err := svc.db.
		NewSelect().
		Model(album).
		Where("a.title_normalized = ?", titleNormalized).
		Where("a.primary_artist_id = ?", primaryArtistID).
		Where("a.edition_tag = ?", editionTag).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	return album, nil
}

func (svc *Service) findByArtistSetKey(ctx context.Context, titleNormalized string, artistIDs models.IntList, editionTag string) (*models.Album, error) {
	album := &models.Album{}
	err := svc.db.
		NewSelect().
		Model(album).
		Where("a.title_normalized = ?", titleNormalized).
		Where("a.artist_ids = ?", artistIDs.Sorted()).
		Where("a.edition_tag = ?", editionTag).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	return album, nil
}
