package lyricvariants

import "time"

type ListVariantsQuery struct {
	TrackID *int    `query:"track_id" json:"track_id,omitempty" validate:"omitempty,min=1"`
	Source  *string `query:"source" json:"source,omitempty" validate:"omitempty,max=50"`
}

// UpdateVariantPayload is the allow-listed patch for the review surface.
// Keys outside this set are rejected at bind time. Manual edits may set the
// hash and version directly; the versioner discipline applies only to
// pipeline upserts.
type UpdateVariantPayload struct {
	Lyrics        *string    `json:"lyrics,omitempty"`
	URL           *string    `json:"url,omitempty" validate:"omitempty,absurl"`
	TextHash      *string    `json:"text_hash,omitempty" validate:"omitempty,len=64"`
	Version       *int       `json:"version,omitempty" validate:"omitempty,min=1"`
	LastCrawledAt *time.Time `json:"last_crawled_at,omitempty"`
	Source        *string    `json:"source,omitempty" validate:"omitempty,min=1,max=50"`
}
