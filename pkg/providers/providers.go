// Package providers defines the record shapes and interfaces the catalog
// ingestion pipeline consumes from external metadata and lyric providers. It
// contains no HTTP clients; concrete implementations are injected at wiring
// time and faked in tests.
package providers

import "context"

// LyricSources is the fixed priority order lyric fetchers try.
var LyricSources = []string{"genius", "musixmatch"}

// EmbeddedArtist is a denormalized artist snapshot carried inside album and
// track records. The resolved artist rows remain the source of truth.
type EmbeddedArtist struct {
	ProviderID string `json:"provider_id,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Name       string `json:"name"`
	URL        string `json:"url,omitempty"`
}

// EmbeddedAlbum is a denormalized album snapshot carried inside track records.
type EmbeddedAlbum struct {
	ProviderID string `json:"provider_id,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Title      string `json:"title,omitempty"`
	URL        string `json:"url,omitempty"`
}

// EmbeddedTrack is a denormalized track snapshot carried inside album records.
type EmbeddedTrack struct {
	ProviderID    string          `json:"provider_id,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	Title         string          `json:"title"`
	DurationMs    int             `json:"duration_ms,omitempty"`
	ExplicitFlag  *bool           `json:"explicit_flag,omitempty"`
	URL           string          `json:"url,omitempty"`
	PrimaryArtist *EmbeddedArtist `json:"primary_artist,omitempty"`
	Album         *EmbeddedAlbum  `json:"album,omitempty"`
}

// ArtistRecord is a full artist payload fetched from a catalog provider.
type ArtistRecord struct {
	Name      string            `json:"name"`
	GenreTags []string          `json:"genre_tags,omitempty"`
	Metadata  map[string]any    `json:"-"`
	IDs       map[string]string `json:"ids,omitempty"`
	SourceURL string            `json:"source_url,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	ImageURLs []string          `json:"image_urls,omitempty"`
}

// TrackRecord is a full track payload fetched from a catalog provider.
type TrackRecord struct {
	Title         string            `json:"title"`
	ISRC          string            `json:"isrc,omitempty"`
	ReleaseDate   string            `json:"release_date,omitempty"`
	DurationMs    int               `json:"duration_ms,omitempty"`
	ExplicitFlag  *bool             `json:"explicit_flag,omitempty"`
	Album         *EmbeddedAlbum    `json:"album,omitempty"`
	PrimaryArtist *EmbeddedArtist   `json:"primary_artist,omitempty"`
	Artists       []EmbeddedArtist  `json:"artists,omitempty"`
	GenreTags     []string          `json:"genre_tags,omitempty"`
	IDs           map[string]string `json:"ids,omitempty"`
	SourceURL     string            `json:"source_url,omitempty"`
	Provider      string            `json:"provider,omitempty"`
	AudioURLs     []string          `json:"audio_urls,omitempty"`
}

// AlbumRecord is a full album payload fetched from a catalog provider.
type AlbumRecord struct {
	Title         string            `json:"title"`
	TotalTracks   int               `json:"total_tracks,omitempty"`
	PrimaryArtist *EmbeddedArtist   `json:"primary_artist,omitempty"`
	Artists       []EmbeddedArtist  `json:"artists,omitempty"`
	Tracks        []EmbeddedTrack   `json:"tracks,omitempty"`
	ReleaseDate   string            `json:"release_date,omitempty"`
	GenreTags     []string          `json:"genre_tags,omitempty"`
	ImageURLs     []string          `json:"image_urls,omitempty"`
	IDs           map[string]string `json:"ids,omitempty"`
	SourceURL     string            `json:"source_url,omitempty"`
	Provider      string            `json:"provider,omitempty"`
}

// LyricResult is a single lyric provider response.
type LyricResult struct {
	Provider string `json:"provider"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Lyrics   string `json:"lyrics,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Catalog fetches full records from a music metadata provider by its own ids.
type Catalog interface {
	GetAlbumByID(ctx context.Context, providerID string) (*AlbumRecord, error)
	GetArtistByID(ctx context.Context, providerID string) (*ArtistRecord, error)
	GetTrackByID(ctx context.Context, providerID string) (*TrackRecord, error)
}

// LyricSource fetches lyrics by title and artist from one named source.
type LyricSource interface {
	GetLyricsByTrack(ctx context.Context, source, title, artist string) (*LyricResult, error)
}
