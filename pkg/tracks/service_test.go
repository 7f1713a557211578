package tracks

import (
	"context"
	"database/sql"
	"testing"

	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonearmlabs/tonearm/pkg/albums"
	"github.com/tonearmlabs/tonearm/pkg/artists"
	"github.com/tonearmlabs/tonearm/pkg/migrations"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/providers"
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

func newTestService(t *testing.T) (*Service, *bun.DB) {
	t.Helper()
	db := newTestDB(t)
	artistService := artists.NewService(db)
	return NewService(db, artistService, albums.NewService(db, artistService)), db
}

func trackRecord() *providers.TrackRecord {
	return &providers.TrackRecord{
		Title:        "Alright",
		ISRC:         "USUM71502498",
		DurationMs:   219000,
		ExplicitFlag: pointerutil.Bool(true),
		Artists: []providers.EmbeddedArtist{
			{Name: "Kendrick Lamar", Provider: "spotify", ProviderID: "2YZyLoL8N0Wb9xBt1NhZWg"},
		},
		IDs:      map[string]string{"spotify": "3iVcZ5G6tvkXZkZKlMpIUs"},
		Provider: "spotify",
	}
}

func TestCanonicalKey(t *testing.T) {
	// Durations bucket to 3 seconds: 219000ms -> bucket 73.
	assert.Equal(t, "alright|7|73", CanonicalKey("alright", 7, 219000))

	// Jitter within the bucket does not change the key.
	assert.Equal(t, CanonicalKey("alright", 7, 219000), CanonicalKey("alright", 7, 220400))

	// A different bucket does.
	assert.NotEqual(t, CanonicalKey("alright", 7, 219000), CanonicalKey("alright", 7, 225100))

	assert.Equal(t, "alright|7|0", CanonicalKey("alright", 7, 0))
}

func TestUpsertTrack_InsertsNew(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	track, err := svc.UpsertTrack(ctx, trackRecord())
	require.NoError(t, err)

	assert.NotZero(t, track.ID)
	assert.Equal(t, "Alright", track.Title)
	assert.Equal(t, "alright", track.TitleNormalized)
	assert.Equal(t, "USUM71502498", track.ISRC)
	assert.True(t, track.ExplicitFlag)
	assert.Equal(t, models.LyricStatusNotFetched, track.LyricStatus)
	assert.Equal(t, CanonicalKey("alright", track.PrimaryArtistID, 219000), track.CanonicalKey)
	assert.True(t, track.ArtistIDs.Contains(track.PrimaryArtistID))
}

func TestUpsertTrack_MatchesByProviderID(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertTrack(ctx, trackRecord())
	require.NoError(t, err)

	rec := trackRecord()
	rec.Title = "Alright - Single Version"
	rec.ISRC = ""
	second, err := svc.UpsertTrack(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	count, err := db.NewSelect().Model((*models.Track)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertTrack_MatchesByISRC(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertTrack(ctx, trackRecord())
	require.NoError(t, err)

	// No provider-id overlap, but the ISRC matches even in hyphenated form.
	rec := trackRecord()
	rec.IDs = map[string]string{"deezer": "916424"}
	rec.ISRC = "US-UM7-15-02498"
	second, err := svc.UpsertTrack(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	// Both provider ids are now known.
	assert.Equal(t, "3iVcZ5G6tvkXZkZKlMpIUs", second.Metadata.ProviderIDs["spotify"])
	assert.Equal(t, "916424", second.Metadata.ProviderIDs["deezer"])
}

func TestUpsertTrack_SoftKeyNeedsArtistAndDuration(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertTrack(ctx, trackRecord())
	require.NoError(t, err)

	// Same title and artist, exact duration, no shared ids: soft key match.
	rec := trackRecord()
	rec.IDs = nil
	rec.ISRC = ""
	second, err := svc.UpsertTrack(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Same title but a different duration: new row.
	rec = trackRecord()
	rec.IDs = nil
	rec.ISRC = ""
	rec.DurationMs = 180000
	third, err := svc.UpsertTrack(ctx, rec)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	count, err := db.NewSelect().Model((*models.Track)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUpsertTrack_ExplicitFlagOnlyOverwrittenWhenDefined(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertTrack(ctx, trackRecord())
	require.NoError(t, err)

	rec := trackRecord()
	rec.ExplicitFlag = nil
	updated, err := svc.UpsertTrack(ctx, rec)
	require.NoError(t, err)
	assert.True(t, updated.ExplicitFlag)

	rec = trackRecord()
	rec.ExplicitFlag = pointerutil.Bool(false)
	updated, err = svc.UpsertTrack(ctx, rec)
	require.NoError(t, err)
	assert.False(t, updated.ExplicitFlag)
}

func TestUpsertTrack_EmptyArtistListPreservesSet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertTrack(ctx, trackRecord())
	require.NoError(t, err)
	require.NotEmpty(t, first.ArtistIDs)

	rec := trackRecord()
	rec.Artists = nil
	rec.PrimaryArtist = &providers.EmbeddedArtist{Name: "Kendrick Lamar", Provider: "spotify", ProviderID: "2YZyLoL8N0Wb9xBt1NhZWg"}
	second, err := svc.UpsertTrack(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, first.ArtistIDs, second.ArtistIDs)
}

func TestUpsertTrack_EmbeddedAlbumIsUpserted(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	rec := trackRecord()
	rec.Album = &providers.EmbeddedAlbum{
		Title:      "To Pimp a Butterfly",
		Provider:   "spotify",
		ProviderID: "7ycBtnsMtyVbbwTfJwRjSP",
	}
	_, err := svc.UpsertTrack(ctx, rec)
	require.NoError(t, err)

	album := &models.Album{}
	err = db.NewSelect().Model(album).Where("a.title_normalized = ?", "to pimp a butterfly").Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, "7ycBtnsMtyVbbwTfJwRjSP", album.Metadata.ProviderIDs["spotify"])
}

func TestUpsertTrack_CanonicalKeyRecomputedOnDurationChange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertTrack(ctx, trackRecord())
	require.NoError(t, err)

	rec := trackRecord()
	rec.DurationMs = 219000 + 30000
	updated, err := svc.UpsertTrack(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, first.ID, updated.ID)
	assert.NotEqual(t, first.CanonicalKey, updated.CanonicalKey)
	assert.Equal(t, CanonicalKey("alright", updated.PrimaryArtistID, 249000), updated.CanonicalKey)
}

func TestUpsertTrack_MissingPrimaryArtistIsMalformed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rec := trackRecord()
	rec.Artists = nil
	_, err := svc.UpsertTrack(ctx, rec)
	assert.Error(t, err)
}

func TestLinkAlbumTrack_Idempotent(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	track, err := svc.UpsertTrack(ctx, trackRecord())
	require.NoError(t, err)

	album, err := svc.albumService.UpsertAlbum(ctx, &providers.AlbumRecord{
		Title:         "To Pimp a Butterfly",
		PrimaryArtist: &providers.EmbeddedArtist{Name: "Kendrick Lamar"},
	})
	require.NoError(t, err)

	link, err := svc.LinkAlbumTrack(ctx, album.ID, track.ID, LinkOptions{TrackNumber: 7, DiscNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, 7, link.TrackNumber)

	// Re-linking does not duplicate; a new position updates in place.
	link, err = svc.LinkAlbumTrack(ctx, album.ID, track.ID, LinkOptions{TrackNumber: 8, DiscNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, 8, link.TrackNumber)

	count, err := db.NewSelect().Model((*models.AlbumTrack)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpdateLyricStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	track, err := svc.UpsertTrack(ctx, trackRecord())
	require.NoError(t, err)

	err = svc.UpdateLyricStatus(ctx, track.ID, models.LyricStatusFetching)
	require.NoError(t, err)

	reloaded, err := svc.RetrieveTrack(ctx, RetrieveTrackOptions{ID: &track.ID})
	require.NoError(t, err)
	assert.Equal(t, models.LyricStatusFetching, reloaded.LyricStatus)
}
