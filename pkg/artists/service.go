package artists

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/tonearmlabs/tonearm/pkg/database"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/providers"
	"github.com/tonearmlabs/tonearm/pkg/sortname"
	"github.com/tonearmlabs/tonearm/pkg/textnorm"
	"github.com/uptrace/bun"
)

type RetrieveArtistOptions struct {
	ID             *int
	NameNormalized *string
}

type ListArtistsOptions struct {
	Limit  *int
	Offset *int
	Search *string

	includeTotal bool
}

type UpdateArtistOptions struct {
	Columns []string
}

// Service resolves and upserts artist identities. Resolution is tiered:
// a provider-id match is authoritative; the normalized-name index is the
// fallback; otherwise a new row is inserted.
type Service struct {
	db    *bun.DB
	locks *database.KeyMutex
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db, locks: database.NewKeyMutex()}
}

// RetrieveArtist fetches a single artist by id or normalized name.
func (svc *Service) RetrieveArtist(ctx context.Context, opts RetrieveArtistOptions) (*models.Artist, error) {
	artist := &models.Artist{}

	q := svc.db.
		NewSelect().
		Model(artist)

	if opts.ID != nil {
		q = q.Where("ar.id = ?", *opts.ID)
	}
	if opts.NameNormalized != nil {
		q = q.Where("ar.name_normalized = ?", *opts.NameNormalized)
	}

	err := q.Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Artist")
		}
		return nil, errors.WithStack(err)
	}

	return artist, nil
}

func (svc *Service) ListArtists(ctx context.Context, opts ListArtistsOptions) ([]*models.Artist, error) {
	a, _, err := svc.listArtistsWithTotal(ctx, opts)
	return a, errors.WithStack(err)
}

func (svc *Service) ListArtistsWithTotal(ctx context.Context, opts ListArtistsOptions) ([]*models.Artist, int, error) {
	opts.includeTotal = true
	return svc.listArtistsWithTotal(ctx, opts)
}

func (svc *Service) listArtistsWithTotal(ctx context.Context, opts ListArtistsOptions) ([]*models.Artist, int, error) {
	var artists []*models.Artist
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&artists).
		Order("ar.sort_name ASC", "ar.name_normalized ASC")

	if opts.Search != nil && *opts.Search != "" {
		q = q.Where("ar.name_normalized LIKE ?", "%"+textnorm.NormalizeName(*opts.Search)+"%")
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

	return artists, total, nil
}

// ResolveArtist finds an existing artist for the record without writing.
// Tier 1 is any provider-id pair in the record's metadata; tier 3 is the
// normalized-name index. Returns nil when nothing matches.
func (svc *Service) ResolveArtist(ctx context.Context, ids map[string]string, nameNormalized string) (*models.Artist, error) {
	existing, err := svc.findByProviderIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if nameNormalized == "" {
		return nil, nil
	}

	existing, err = svc.RetrieveArtist(ctx, RetrieveArtistOptions{NameNormalized: &nameNormalized})
	if err != nil {
		if errors.Is(err, errcodes.NotFound("Artist")) {
			return nil, nil
		}
		return nil, err
	}
	return existing, nil
}

// UpsertArtist resolves the record to an existing row and patches it, or
// inserts a new one. Metadata bags are merged; genre tags are only replaced
// when the record carries some. Idempotent, and safe to call concurrently
// from fan-out branches.
func (svc *Service) UpsertArtist(ctx context.Context, rec *providers.ArtistRecord) (*models.Artist, error) {
	if rec == nil || rec.Name == "" {
		return nil, errcodes.MalformedInput("Artist record requires a name.")
	}

	nameNormalized := textnorm.NormalizeName(rec.Name)

	unlock := svc.locks.Lock("artist:" + nameNormalized)
	defer unlock()

	existing, err := svc.ResolveArtist(ctx, rec.IDs, nameNormalized)
	if err != nil {
		return nil, err
	}

	incoming := models.Metadata{
		ProviderIDs: rec.IDs,
	}
	if rec.Provider != "" && rec.SourceURL != "" {
		incoming.SourceURLs = map[string]string{rec.Provider: rec.SourceURL}
	}

	now := time.Now()

	if existing == nil {
		artist := &models.Artist{
			CreatedAt:      now,
			UpdatedAt:      now,
			Name:           rec.Name,
			NameNormalized: nameNormalized,
			SortName:       sortname.ForArtist(rec.Name),
			Aliases:        models.StringList{},
			GenreTags:      models.StringList(rec.GenreTags),
			Metadata:       models.Metadata{}.Merge(incoming),
		}
		if artist.GenreTags == nil {
			artist.GenreTags = models.StringList{}
		}
		_, err = svc.db.
			NewInsert().
			Model(artist).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return artist, nil
	}

	existing.UpdatedAt = now
	existing.Metadata = existing.Metadata.Merge(incoming)
	columns := []string{"updated_at", "metadata"}

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

// UpsertEmbedded finds or creates an artist from a denormalized snapshot
// carried inside an album or track payload.
func (svc *Service) UpsertEmbedded(ctx context.Context, embedded providers.EmbeddedArtist) (*models.Artist, error) {
	rec := &providers.ArtistRecord{
		Name:      embedded.Name,
		Provider:  embedded.Provider,
		SourceURL: embedded.URL,
	}
	if embedded.Provider != "" && embedded.ProviderID != "" {
		rec.IDs = map[string]string{embedded.Provider: embedded.ProviderID}
	}
	return svc.UpsertArtist(ctx, rec)
}

// BuildArtistIDs upserts every embedded artist and returns their distinct
// row ids in input order. Callers sort before using the set as an identity
// component.
func (svc *Service) BuildArtistIDs(ctx context.Context, embedded []providers.EmbeddedArtist) (models.IntList, error) {
	ids := models.IntList{}
	for _, e := range embedded {
		if e.Name == "" {
			continue
		}
		artist, err := svc.UpsertEmbedded(ctx, e)
		if err != nil {
			return nil, err
		}
		if !ids.Contains(artist.ID) {
			ids = append(ids, artist.ID)
		}
	}
	return ids, nil
}

func (svc *Service) UpdateArtist(ctx context.Context, artist *models.Artist, opts UpdateArtistOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	artist.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(artist).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Artist")
		}
		return errors.WithStack(err)
	}
	return nil
}

// findByProviderIDs checks every provider-id pair against the metadata
// column. Pairs are tried in sorted provider order for determinism; the
// first hit wins.
func (svc *Service) findByProviderIDs(ctx context.Context, ids map[string]string) (*models.Artist, error) {
	for _, provider := range database.SortedKeys(ids) {
		id := ids[provider]
		if id == "" {
			continue
		}

		artist := &models.Artist{}
		err := svc.db.
			NewSelect().
			Model(artist).
			Where("json_extract(ar.metadata, ?) = ?", database.ProviderIDPath(provider), id).
			Limit(1).
			Scan(ctx)
		if err == nil {
			return artist, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, errors.WithStack(err)
		}
	}
	return nil, nil
}
