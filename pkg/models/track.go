package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	LyricStatusNotFetched = "not_fetched"
	LyricStatusFetching   = "fetching"
	LyricStatusFetched    = "fetched"
	LyricStatusFailed     = "failed"
)

type Track struct {
	bun.BaseModel `bun:"table:tracks,alias:t"`

	ID              int        `bun:",pk,nullzero" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Title           string     `bun:",nullzero" json:"title"`
	TitleNormalized string     `bun:",nullzero" json:"title_normalized"`
	ISRC            string     `json:"isrc"`
	ReleaseDate     string     `json:"release_date"`
	DurationMs      int        `json:"duration_ms"`
	ExplicitFlag    bool       `json:"explicit_flag"`
	EditionTag      string     `json:"edition_tag"`
	PrimaryArtistID int        `bun:",nullzero" json:"primary_artist_id"`
	PrimaryArtist   *Artist    `bun:"rel:belongs-to,join:primary_artist_id=id" json:"primary_artist,omitempty"`
	ArtistIDs       IntList    `bun:"artist_ids" json:"artist_ids"`
	LyricStatus     string     `bun:"lyric_status,nullzero" json:"lyric_status"`
	CanonicalKey    string     `bun:",nullzero" json:"canonical_key"`
	GenreTags       StringList `bun:"genre_tags" json:"genre_tags"`
	Metadata        Metadata   `bun:"metadata" json:"metadata"`

	LyricVariants []*LyricVariant `bun:"rel:has-many,join:id=track_id" json:"lyric_variants,omitempty"`
}

// AlbumTrack links a track to an album with its position on that release.
// A track can appear on several releases (original and deluxe, say).
type AlbumTrack struct {
	bun.BaseModel `bun:"table:album_tracks,alias:at"`

	ID          int       `bun:",pk,nullzero" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	AlbumID     int       `bun:",nullzero" json:"album_id"`
	TrackID     int       `bun:",nullzero" json:"track_id"`
	TrackNumber int       `json:"track_number"`
	DiscNumber  int       `json:"disc_number"`

	Track *Track `bun:"rel:belongs-to,join:track_id=id" json:"track,omitempty"`
}
