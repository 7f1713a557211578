package lyricvariants

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/uptrace/bun"
)

type RetrieveVariantOptions struct {
	ID      *int
	TrackID *int
	Source  *string
}

type ListVariantsOptions struct {
	TrackID *int
	Source  *string
}

type UpdateVariantOptions struct {
	Columns []string
}

// UpsertVariantOptions carries one provider response into the versioner.
type UpsertVariantOptions struct {
	TrackID        int
	Source         string
	Lyrics         string
	URL            string
	ForceOverwrite bool
}

// Service owns lyric variant rows and their version discipline: one row per
// (track, source); version bumps exactly when the normalized hash changes.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) RetrieveVariant(ctx context.Context, opts RetrieveVariantOptions) (*models.LyricVariant, error) {
	variant := &models.LyricVariant{}

	q := svc.db.
		NewSelect().
		Model(variant)

	if opts.ID != nil {
		q = q.Where("lv.id = ?", *opts.ID)
	}
	if opts.TrackID != nil {
		q = q.Where("lv.track_id = ?", *opts.TrackID)
	}
	if opts.Source != nil {
		q = q.Where("lv.source = ?", *opts.Source)
	}

	err := q.Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Lyric variant")
		}
		return nil, errors.WithStack(err)
	}

	return variant, nil
}

func (svc *Service) ListVariants(ctx context.Context, opts ListVariantsOptions) ([]*models.LyricVariant, error) {
	var variants []*models.LyricVariant

	q := svc.db.
		NewSelect().
		Model(&variants).
		Order("lv.track_id ASC", "lv.source ASC")

	if opts.TrackID != nil {
		q = q.Where("lv.track_id = ?", *opts.TrackID)
	}
	if opts.Source != nil {
		q = q.Where("lv.source = ?", *opts.Source)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return variants, nil
}

// UpsertVariant resolves the (track, source) variant and applies the version
// discipline:
//
//   - no existing row: insert at version 1.
//   - hash unchanged: touch url and last_crawled_at only. A forced
//     overwrite with an unchanged hash deliberately leaves the text and
//     version alone; there is nothing new to store.
//   - hash changed: replace text, bump version, clear the processed flag.
func (svc *Service) UpsertVariant(ctx context.Context, opts UpsertVariantOptions) (*models.LyricVariant, error) {
	textHash := HashLyrics(opts.Lyrics)
	now := time.Now()

	existing, err := svc.RetrieveVariant(ctx, RetrieveVariantOptions{
		TrackID: &opts.TrackID,
		Source:  &opts.Source,
	})
	if err != nil && !errors.Is(err, errcodes.NotFound("Lyric variant")) {
		return nil, err
	}

	if existing == nil {
		variant := &models.LyricVariant{
			CreatedAt:     now,
			UpdatedAt:     now,
			TrackID:       opts.TrackID,
			Source:        opts.Source,
			Lyrics:        opts.Lyrics,
			URL:           opts.URL,
			TextHash:      textHash,
			Version:       1,
			LastCrawledAt: now,
		}
		_, err = svc.db.
			NewInsert().
			Model(variant).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return variant, nil
	}

	hashChanged := existing.TextHash != textHash

	existing.UpdatedAt = now
	existing.LastCrawledAt = now
	columns := []string{"updated_at", "last_crawled_at"}
	// A forced crawl replaces the url even when the provider omitted it.
	if opts.URL != "" || opts.ForceOverwrite {
		existing.URL = opts.URL
		columns = append(columns, "url")
	}

	if hashChanged {
		existing.Version++
		existing.Lyrics = opts.Lyrics
		existing.TextHash = textHash
		existing.Processed = false
		columns = append(columns, "version", "lyrics", "text_hash", "processed")
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

func (svc *Service) UpdateVariant(ctx context.Context, variant *models.LyricVariant, opts UpdateVariantOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	variant.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(variant).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Lyric variant")
		}
		return errors.WithStack(err)
	}
	return nil
}

// DeleteVariant removes a variant. Deleting the last variant for a track
// resets the track's lyrics-fetch status to not_fetched so the pipeline will
// try again.
func (svc *Service) DeleteVariant(ctx context.Context, variantID int) error {
	variant, err := svc.RetrieveVariant(ctx, RetrieveVariantOptions{ID: &variantID})
	if err != nil {
		return err
	}

	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.LyricVariant)(nil)).
			Where("id = ?", variant.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		remaining, err := tx.NewSelect().
			Model((*models.LyricVariant)(nil)).
			Where("track_id = ?", variant.TrackID).
			Count(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		if remaining == 0 {
			_, err = tx.NewUpdate().
				Model((*models.Track)(nil)).
				Set("lyric_status = ?", models.LyricStatusNotFetched).
				Set("updated_at = ?", time.Now()).
				Where("id = ?", variant.TrackID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	})
}
