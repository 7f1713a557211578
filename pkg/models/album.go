package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Album struct {
	bun.BaseModel `bun:"table:albums,alias:a"`

	ID              int        `bun:",pk,nullzero" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Title           string     `bun:",nullzero" json:"title"`
	TitleNormalized string     `bun:",nullzero" json:"title_normalized"`
	EditionTag      string     `json:"edition_tag"`
	PrimaryArtistID int        `bun:",nullzero" json:"primary_artist_id"`
	PrimaryArtist   *Artist    `bun:"rel:belongs-to,join:primary_artist_id=id" json:"primary_artist,omitempty"`
	ArtistIDs       IntList    `bun:"artist_ids" json:"artist_ids"`
	ReleaseDate     string     `json:"release_date"`
	TotalTracks     int        `json:"total_tracks"`
	GenreTags       StringList `bun:"genre_tags" json:"genre_tags"`
	Images          StringList `bun:"images" json:"images"`
	Metadata        Metadata   `bun:"metadata" json:"metadata"`

	// Review flags. An album is surfaced for human review once its
	// ingestion workflow completes.
	Approved   bool       `json:"approved"`
	Rejected   bool       `json:"rejected"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`

	// Pointer to the latest workflow that touched this album. Only ever
	// advanced by timestamp (see jobs.Service), never regressed.
	LatestWorkflowID        string     `json:"latest_workflow_id,omitempty"`
	LatestWorkflowStatus    string     `json:"latest_workflow_status,omitempty"`
	LatestWorkflowUpdatedAt *time.Time `json:"latest_workflow_updated_at,omitempty"`
}
