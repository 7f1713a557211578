package models

import (
	"time"

	"github.com/uptrace/bun"
)

// LyricVariant is one source's lyrics for a track. (track_id, source) is
// unique; version is bumped whenever the normalized text hash changes.
type LyricVariant struct {
	bun.BaseModel `bun:"table:lyric_variants,alias:lv"`

	ID            int       `bun:",pk,nullzero" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	TrackID       int       `bun:",nullzero" json:"track_id"`
	Source        string    `bun:",nullzero" json:"source"`
	Lyrics        string    `json:"lyrics"`
	URL           string    `json:"url"`
	TextHash      string    `bun:",nullzero" json:"text_hash"`
	Version       int       `json:"version"`
	LastCrawledAt time.Time `json:"last_crawled_at"`
	Processed     bool      `json:"processed"`
}
