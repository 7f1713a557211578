package genres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/textnorm"
	"github.com/uptrace/bun"
)

type RetrieveGenreOptions struct {
	ID   *int
	Slug *string
}

type ListGenresOptions struct {
	Limit  *int
	Offset *int
	Search *string

	includeTotal bool
}

type UpdateGenreOptions struct {
	Columns []string
}

// Service owns genre rows, keyed by slug so "Hip Hop", "hip-hop" and
// "HIP HOP" all resolve to one row, and the album/artist attachments.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateGenre(ctx context.Context, genre *models.Genre) error {
	now := time.Now()
	if genre.CreatedAt.IsZero() {
		genre.CreatedAt = now
	}
	genre.UpdatedAt = genre.CreatedAt
	if genre.Slug == "" {
		genre.Slug = textnorm.Slugify(genre.Name)
	}

	_, err := svc.db.
		NewInsert().
		Model(genre).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveGenre(ctx context.Context, opts RetrieveGenreOptions) (*models.Genre, error) {
	genre := &models.Genre{}

	q := svc.db.
		NewSelect().
		Model(genre)

	if opts.ID != nil {
		q = q.Where("g.id = ?", *opts.ID)
	}
	if opts.Slug != nil {
		q = q.Where("g.slug = ?", *opts.Slug)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Genre")
		}
		return nil, errors.WithStack(err)
	}

	return genre, nil
}

// FindOrCreateGenre resolves a display name to its genre row, creating the
// row on first sight. Matching is on the normalized slug.
func (svc *Service) FindOrCreateGenre(ctx context.Context, name string) (*models.Genre, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errcodes.MalformedInput("Genre name can't be empty.")
	}

	slug := textnorm.Slugify(name)
	genre, err := svc.RetrieveGenre(ctx, RetrieveGenreOptions{Slug: &slug})
	if err == nil {
		return genre, nil
	}
	if !errors.Is(err, errcodes.NotFound("Genre")) {
		return nil, err
	}

	genre = &models.Genre{
		Name: name,
		Slug: slug,
	}
	err = svc.CreateGenre(ctx, genre)
	if err != nil {
		// A concurrent create can win the unique slug; fall back to it.
		existing, retrieveErr := svc.RetrieveGenre(ctx, RetrieveGenreOptions{Slug: &slug})
		if retrieveErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return genre, nil
}

func (svc *Service) ListGenres(ctx context.Context, opts ListGenresOptions) ([]*models.Genre, error) {
	g, _, err := svc.listGenresWithTotal(ctx, opts)
	return g, errors.WithStack(err)
}

func (svc *Service) ListGenresWithTotal(ctx context.Context, opts ListGenresOptions) ([]*models.Genre, int, error) {
	opts.includeTotal = true
	return svc.listGenresWithTotal(ctx, opts)
}

func (svc *Service) listGenresWithTotal(ctx context.Context, opts ListGenresOptions) ([]*models.Genre, int, error) {
	var genres []*models.Genre
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&genres).
		ColumnExpr("g.*").
		ColumnExpr("(SELECT count(*) FROM album_genres ag WHERE ag.genre_id = g.id) AS album_count").
		ColumnExpr("(SELECT count(*) FROM artist_genres arg WHERE arg.genre_id = g.id) AS artist_count").
		Order("g.slug ASC")

	if opts.Search != nil && *opts.Search != "" {
		q = q.Where("g.slug LIKE ?", "%"+textnorm.Slugify(*opts.Search)+"%")
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

	return genres, total, nil
}

func (svc *Service) UpdateGenre(ctx context.Context, genre *models.Genre, opts UpdateGenreOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	genre.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(genre).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Genre")
		}
		return errors.WithStack(err)
	}
	return nil
}

// DeleteGenre deletes a genre and all album/artist attachments.
func (svc *Service) DeleteGenre(ctx context.Context, genreID int) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.AlbumGenre)(nil)).
			Where("genre_id = ?", genreID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.ArtistGenre)(nil)).
			Where("genre_id = ?", genreID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.Genre)(nil)).
			Where("id = ?", genreID).
			Exec(ctx)
		return errors.WithStack(err)
	})
}

// AttachAlbumGenre links a genre to an album. Idempotent.
func (svc *Service) AttachAlbumGenre(ctx context.Context, albumID, genreID int) error {
	exists, err := svc.db.
		NewSelect().
		Model((*models.AlbumGenre)(nil)).
		Where("ag.album_id = ?", albumID).
		Where("ag.genre_id = ?", genreID).
		Exists(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if exists {
		return nil
	}

	link := &models.AlbumGenre{AlbumID: albumID, GenreID: genreID}
	_, err = svc.db.
		NewInsert().
		Model(link).
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) DetachAlbumGenre(ctx context.Context, albumID, genreID int) error {
	_, err := svc.db.
		NewDelete().
		Model((*models.AlbumGenre)(nil)).
		Where("album_id = ?", albumID).
		Where("genre_id = ?", genreID).
		Exec(ctx)
	return errors.WithStack(err)
}

// AttachArtistGenre links a genre to an artist. Idempotent.
func (svc *Service) AttachArtistGenre(ctx context.Context, artistID, genreID int) error {
	exists, err := svc.db.
		NewSelect().
		Model((*models.ArtistGenre)(nil)).
		Where("arg.artist_id = ?", artistID).
		Where("arg.genre_id = ?", genreID).
		Exists(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if exists {
		return nil
	}

	link := &models.ArtistGenre{ArtistID: artistID, GenreID: genreID}
	_, err = svc.db.
		NewInsert().
		Model(link).
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) DetachArtistGenre(ctx context.Context, artistID, genreID int) error {
	_, err := svc.db.
		NewDelete().
		Model((*models.ArtistGenre)(nil)).
		Where("artist_id = ?", artistID).
		Where("genre_id = ?", genreID).
		Exec(ctx)
	return errors.WithStack(err)
}

// ListAlbumGenres returns the genres attached to one album.
func (svc *Service) ListAlbumGenres(ctx context.Context, albumID int) ([]*models.Genre, error) {
	var genres []*models.Genre
	err := svc.db.
		NewSelect().
		Model(&genres).
		Join("JOIN album_genres ag ON ag.genre_id = g.id").
		Where("ag.album_id = ?", albumID).
		Order("g.slug ASC").
		Scan(ctx)
	return genres, errors.WithStack(err)
}

// ListArtistGenres returns the genres attached to one artist.
func (svc *Service) ListArtistGenres(ctx context.Context, artistID int) ([]*models.Genre, error) {
	var genres []*models.Genre
	err := svc.db.
		NewSelect().
		Model(&genres).
		Join("JOIN artist_genres arg ON arg.genre_id = g.id").
		Where("arg.artist_id = ?", artistID).
		Order("g.slug ASC").
		Scan(ctx)
	return genres, errors.WithStack(err)
}

// SyncAlbumGenres find-or-creates each tag name and attaches the results to
// the album. Existing attachments not in the list are left alone; ingestion
// only ever adds.
func (svc *Service) SyncAlbumGenres(ctx context.Context, albumID int, names []string) ([]*models.Genre, error) {
	genres := make([]*models.Genre, 0, len(names))
	for _, name := range names {
		genre, err := svc.FindOrCreateGenre(ctx, name)
		if err != nil {
			if errors.Is(err, errcodes.MalformedInput("Genre name can't be empty.")) {
				continue
			}
			return nil, err
		}
		if err := svc.AttachAlbumGenre(ctx, albumID, genre.ID); err != nil {
			return nil, err
		}
		genres = append(genres, genre)
	}
	return genres, nil
}

// SyncArtistGenres is SyncAlbumGenres for artists.
func (svc *Service) SyncArtistGenres(ctx context.Context, artistID int, names []string) ([]*models.Genre, error) {
	genres := make([]*models.Genre, 0, len(names))
	for _, name := range names {
		genre, err := svc.FindOrCreateGenre(ctx, name)
		if err != nil {
			if errors.Is(err, errcodes.MalformedInput("Genre name can't be empty.")) {
				continue
			}
			return nil, err
		}
		if err := svc.AttachArtistGenre(ctx, artistID, genre.ID); err != nil {
			return nil, err
		}
		genres = append(genres, genre)
	}
	return genres, nil
}
