package search

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonearmlabs/tonearm/pkg/migrations"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func seedCatalog(t *testing.T, db *bun.DB) {
	t.Helper()
	ctx := context.Background()

	artist := &models.Artist{Name: "The National", NameNormalized: "the national", SortName: "National, The"}
	_, err := db.NewInsert().Model(artist).Returning("*").Exec(ctx)
	require.NoError(t, err)

	album := &models.Album{
		Title:           "Trouble Will Find Me",
		TitleNormalized: "trouble will find me",
		PrimaryArtistID: artist.ID,
		ArtistIDs:       models.IntList{artist.ID},
	}
	_, err = db.NewInsert().Model(album).Returning("*").Exec(ctx)
	require.NoError(t, err)

	track := &models.Track{
		Title:           "Sea of Love",
		TitleNormalized: "sea of love",
		ISRC:            "US4XP1300023",
		PrimaryArtistID: artist.ID,
		ArtistIDs:       models.IntList{artist.ID},
		LyricStatus:     models.LyricStatusNotFetched,
		CanonicalKey:    "sea of love|1|0",
	}
	_, err = db.NewInsert().Model(track).Returning("*").Exec(ctx)
	require.NoError(t, err)
}

func TestGlobalSearch(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	seedCatalog(t, db)

	// The query is normalized before matching, so punctuation and case
	// don't matter.
	resp, err := svc.GlobalSearch(ctx, "Trouble!")
	require.NoError(t, err)
	require.Len(t, resp.Albums, 1)
	assert.Equal(t, "Trouble Will Find Me", resp.Albums[0].Title)
	assert.Equal(t, "The National", resp.Albums[0].PrimaryArtist)
	assert.Empty(t, resp.Artists)
	assert.Empty(t, resp.Tracks)

	resp, err = svc.GlobalSearch(ctx, "NATIONAL")
	require.NoError(t, err)
	require.Len(t, resp.Artists, 1)
	assert.Equal(t, "National, The", resp.Artists[0].SortName)

	resp, err = svc.GlobalSearch(ctx, "sea of")
	require.NoError(t, err)
	require.Len(t, resp.Tracks, 1)
	assert.Equal(t, "Sea of Love", resp.Tracks[0].Title)
	assert.Equal(t, "The National", resp.Tracks[0].PrimaryArtist)
}

func TestGlobalSearchEmptyQuery(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	resp, err := svc.GlobalSearch(context.Background(), "!!!")
	require.NoError(t, err)
	assert.Empty(t, resp.Albums)
	assert.Empty(t, resp.Artists)
	assert.Empty(t, resp.Tracks)
}
