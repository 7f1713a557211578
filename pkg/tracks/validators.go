package tracks

type ListTracksQuery struct {
	Limit       int     `query:"limit" json:"limit,omitempty" default:"25" validate:"min=1,max=100"`
	Offset      int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	LyricStatus *string `query:"lyric_status" json:"lyric_status,omitempty" validate:"omitempty,oneof=not_fetched fetching fetched failed"`
	Search      *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100"`
}

// UpdateTrackPayload is the allow-listed patch for the review surface. Keys
// outside this set are rejected at bind time. track_number and disc_number
// apply to the link row named by album_id.
type UpdateTrackPayload struct {
	Title        *string            `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	AlbumID      *int               `json:"album_id,omitempty" validate:"omitempty,min=1"`
	TrackNumber  *int               `json:"track_number,omitempty" validate:"omitempty,min=0"`
	DiscNumber   *int               `json:"disc_number,omitempty" validate:"omitempty,min=0"`
	DurationMs   *int               `json:"duration_ms,omitempty" validate:"omitempty,min=0"`
	ExplicitFlag *bool              `json:"explicit_flag,omitempty"`
	ISRC         *string            `json:"isrc,omitempty" validate:"omitempty,max=20"`
	EditionTag   *string            `json:"edition_tag,omitempty" validate:"omitempty,max=200"`
	ReleaseDate  *string            `json:"release_date,omitempty" validate:"omitempty,max=40"`
	GenreTags    *[]string          `json:"genre_tags,omitempty"`
	Metadata     *map[string]string `json:"metadata,omitempty"`
}
