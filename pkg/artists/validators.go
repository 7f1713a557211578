package artists

type ListArtistsQuery struct {
	Limit  int     `query:"limit" json:"limit,omitempty" default:"25" validate:"min=1,max=100"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100"`
}

// UpdateArtistPayload is the allow-listed patch for the review surface. Keys
// outside this set are rejected at bind time.
type UpdateArtistPayload struct {
	Name      *string   `json:"name,omitempty" validate:"omitempty,min=1,max=300"`
	Aliases   *[]string `json:"aliases,omitempty"`
	GenreTags *[]string `json:"genre_tags,omitempty"`
}
