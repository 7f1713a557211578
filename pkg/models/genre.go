package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Genre struct {
	bun.BaseModel `bun:"table:genres,alias:g"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `bun:",nullzero" json:"name"`
	Slug      string    `bun:",nullzero" json:"slug"`

	AlbumCount  int `bun:",scanonly" json:"album_count"`
	ArtistCount int `bun:",scanonly" json:"artist_count"`
}

type AlbumGenre struct {
	bun.BaseModel `bun:"table:album_genres,alias:ag"`

	ID      int `bun:",pk,nullzero" json:"id"`
	AlbumID int `bun:",nullzero" json:"album_id"`
	GenreID int `bun:",nullzero" json:"genre_id"`

	Genre *Genre `bun:"rel:belongs-to,join:genre_id=id" json:"genre,omitempty"`
}

type ArtistGenre struct {
	bun.BaseModel `bun:"table:artist_genres,alias:arg"`

	ID       int `bun:",pk,nullzero" json:"id"`
	ArtistID int `bun:",nullzero" json:"artist_id"`
	GenreID  int `bun:",nullzero" json:"genre_id"`

	Genre *Genre `bun:"rel:belongs-to,join:genre_id=id" json:"genre,omitempty"`
}
