package search

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/textnorm"
	"github.com/uptrace/bun"
)

const globalSearchLimit = 5

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// GlobalSearch searches albums, artists, and tracks by their normalized
// name columns. The query goes through the same normalization as the
// indexed text, so "Deluxe!" finds "deluxe". Returns up to 5 results per
// resource type for popover display.
func (svc *Service) GlobalSearch(ctx context.Context, query string) (*GlobalSearchResponse, error) {
	pattern := likePattern(query)

	resp := &GlobalSearchResponse{
		Albums:  []AlbumSearchResult{},
		Artists: []ArtistSearchResult{},
		Tracks:  []TrackSearchResult{},
	}
	if pattern == "" {
		return resp, nil
	}

	var albums []*models.Album
	err := svc.db.
		NewSelect().
		Model(&albums).
		Relation("PrimaryArtist").
		Where("a.title_normalized LIKE ? ESCAPE '\\'", pattern).
		Order("a.title_normalized ASC").
		Limit(globalSearchLimit).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, album := range albums {
		result := AlbumSearchResult{
			ID:         album.ID,
			Title:      album.Title,
			EditionTag: album.EditionTag,
		}
		if album.PrimaryArtist != nil {
			result.PrimaryArtist = album.PrimaryArtist.Name
		}
		resp.Albums = append(resp.Albums, result)
	}

	var artists []*models.Artist
	err = svc.db.
		NewSelect().
		Model(&artists).
		Where("ar.name_normalized LIKE ? ESCAPE '\\'", pattern).
		Order("ar.sort_name ASC").
		Limit(globalSearchLimit).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, artist := range artists {
		resp.Artists = append(resp.Artists, ArtistSearchResult{
			ID:       artist.ID,
			Name:     artist.Name,
			SortName: artist.SortName,
		})
	}

	var tracks []*models.Track
	err = svc.db.
		NewSelect().
		Model(&tracks).
		Relation("PrimaryArtist").
		Where("t.title_normalized LIKE ? ESCAPE '\\'", pattern).
		Order("t.title_normalized ASC").
		Limit(globalSearchLimit).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, track := range tracks {
		result := TrackSearchResult{
			ID:    track.ID,
			Title: track.Title,
			ISRC:  track.ISRC,
		}
		if track.PrimaryArtist != nil {
			result.PrimaryArtist = track.PrimaryArtist.Name
		}
		resp.Tracks = append(resp.Tracks, result)
	}

	return resp, nil
}

// likePattern normalizes the query and wraps it for substring matching.
// Normalization strips punctuation, but LIKE metacharacters are escaped
// anyway in case the scrubbing rules ever loosen.
func likePattern(query string) string {
	normalized := textnorm.NormalizeName(query)
	if normalized == "" {
		return ""
	}
	normalized = strings.ReplaceAll(normalized, `%`, `\%`)
	normalized = strings.ReplaceAll(normalized, `_`, `\_`)
	return "%" + normalized + "%"
}
