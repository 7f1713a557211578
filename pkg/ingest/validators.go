package ingest

type StartAlbumIngestPayload struct {
	AlbumID string `json:"album_id" validate:"required,max=200"`
}

type StartLyricFetchPayload struct {
	TrackID int    `json:"track_id" validate:"required,min=1"`
	Title   string `json:"title,omitempty" validate:"omitempty,max=500"`
	Artist  string `json:"artist,omitempty" validate:"omitempty,max=500"`
	Force   bool   `json:"force,omitempty"`
}
