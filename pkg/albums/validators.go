package albums

type ListAlbumsQuery struct {
	Limit    int     `query:"limit" json:"limit,omitempty" default:"25" validate:"min=1,max=100"`
	Offset   int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Approved *bool   `query:"approved" json:"approved,omitempty"`
	Rejected *bool   `query:"rejected" json:"rejected,omitempty"`
	Search   *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100"`
}

// UpdateAlbumPayload is the allow-listed patch for the review surface. Keys
// outside this set are rejected at bind time.
type UpdateAlbumPayload struct {
	Title       *string            `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	EditionTag  *string            `json:"edition_tag,omitempty" validate:"omitempty,max=200"`
	ReleaseDate *string            `json:"release_date,omitempty" validate:"omitempty,max=40"`
	TotalTracks *int               `json:"total_tracks,omitempty" validate:"omitempty,min=0"`
	GenreTags   *[]string          `json:"genre_tags,omitempty"`
	Images      *[]string          `json:"images,omitempty" validate:"omitempty,dive,absurl"`
	Metadata    *map[string]string `json:"metadata,omitempty"`
}
