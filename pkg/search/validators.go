package search

// GlobalSearchQuery represents the query parameters for global search.
type GlobalSearchQuery struct {
	Query string `query:"q" json:"q" validate:"required,min=1,max=100"`
}

// GlobalSearchResponse represents the response from global search.
// Returns up to 5 results per resource type for popover display.
type GlobalSearchResponse struct {
	Albums  []AlbumSearchResult  `json:"albums"`
	Artists []ArtistSearchResult `json:"artists"`
	Tracks  []TrackSearchResult  `json:"tracks"`
}

// AlbumSearchResult represents an album in search results.
type AlbumSearchResult struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	EditionTag    string `json:"edition_tag"`
	PrimaryArtist string `json:"primary_artist"`
}

// ArtistSearchResult represents an artist in search results.
type ArtistSearchResult struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	SortName string `json:"sort_name"`
}

// TrackSearchResult represents a track in search results.
type TrackSearchResult struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	ISRC          string `json:"isrc"`
	PrimaryArtist string `json:"primary_artist"`
}
