package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Artist struct {
	bun.BaseModel `bun:"table:artists,alias:ar"`

	ID             int        `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Name           string     `bun:",nullzero" json:"name"`
	NameNormalized string     `bun:",nullzero" json:"name_normalized"`
	SortName       string     `json:"sort_name"`
	Aliases        StringList `bun:"aliases" json:"aliases"`
	GenreTags      StringList `bun:"genre_tags" json:"genre_tags"`
	Metadata       Metadata   `bun:"metadata" json:"metadata"`
}
