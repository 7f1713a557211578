package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		stmts := []string{
			`
			CREATE TABLE artists (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				name_normalized TEXT NOT NULL,
				sort_name TEXT NOT NULL DEFAULT '',
				aliases TEXT NOT NULL DEFAULT '[]',
				genre_tags TEXT NOT NULL DEFAULT '[]',
				metadata TEXT NOT NULL DEFAULT '{}'
			)`,
			`CREATE INDEX ix_artists_name_normalized ON artists (name_normalized)`,
			`CREATE INDEX ix_artists_sort_name ON artists (sort_name)`,

			`
			CREATE TABLE albums (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT NOT NULL,
				title_normalized TEXT NOT NULL,
				edition_tag TEXT NOT NULL DEFAULT '',
				primary_artist_id INTEGER REFERENCES artists (id) NOT NULL,
				artist_ids TEXT NOT NULL DEFAULT '[]',
				release_date TEXT NOT NULL DEFAULT '',
				total_tracks INTEGER NOT NULL DEFAULT 0,
				genre_tags TEXT NOT NULL DEFAULT '[]',
				images TEXT NOT NULL DEFAULT '[]',
				metadata TEXT NOT NULL DEFAULT '{}',
				approved BOOLEAN NOT NULL DEFAULT FALSE,
				rejected BOOLEAN NOT NULL DEFAULT FALSE,
				reviewed_at TIMESTAMPTZ,
				latest_workflow_id TEXT NOT NULL DEFAULT '',
				latest_workflow_status TEXT NOT NULL DEFAULT '',
				latest_workflow_updated_at TIMESTAMPTZ
			)`,
			`CREATE INDEX ix_albums_title_primary_edition ON albums (title_normalized, primary_artist_id, edition_tag)`,
			`CREATE INDEX ix_albums_title_artists_edition ON albums (title_normalized, artist_ids, edition_tag)`,
			`CREATE INDEX ix_albums_approved ON albums (approved)`,

			`
			CREATE TABLE tracks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT NOT NULL,
				title_normalized TEXT NOT NULL,
				isrc TEXT NOT NULL DEFAULT '',
				release_date TEXT NOT NULL DEFAULT '',
				duration_ms INTEGER NOT NULL DEFAULT 0,
				explicit_flag BOOLEAN NOT NULL DEFAULT FALSE,
				edition_tag TEXT NOT NULL DEFAULT '',
				primary_artist_id INTEGER REFERENCES artists (id) NOT NULL,
				artist_ids TEXT NOT NULL DEFAULT '[]',
				lyric_status TEXT NOT NULL DEFAULT 'not_fetched',
				canonical_key TEXT NOT NULL,
				genre_tags TEXT NOT NULL DEFAULT '[]',
				metadata TEXT NOT NULL DEFAULT '{}'
			)`,
			`CREATE INDEX ix_tracks_title_normalized ON tracks (title_normalized)`,
			`CREATE INDEX ix_tracks_canonical_key ON tracks (canonical_key)`,
			`CREATE INDEX ix_tracks_isrc ON tracks (isrc)`,

			`
			CREATE TABLE album_tracks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				album_id INTEGER REFERENCES albums (id) NOT NULL,
				track_id INTEGER REFERENCES tracks (id) NOT NULL,
				track_number INTEGER NOT NULL DEFAULT 0,
				disc_number INTEGER NOT NULL DEFAULT 0,
				UNIQUE (album_id, track_id)
			)`,

			`
			CREATE TABLE lyric_variants (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				track_id INTEGER REFERENCES tracks (id) NOT NULL,
				source TEXT NOT NULL,
				lyrics TEXT NOT NULL DEFAULT '',
				url TEXT NOT NULL DEFAULT '',
				text_hash TEXT NOT NULL,
				version INTEGER NOT NULL DEFAULT 1,
				last_crawled_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				processed BOOLEAN NOT NULL DEFAULT FALSE,
				UNIQUE (track_id, source)
			)`,

			`
			CREATE TABLE workflow_runs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				workflow_id TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL,
				args TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				error TEXT NOT NULL DEFAULT '',
				attempt INTEGER NOT NULL DEFAULT 0,
				process_id TEXT,
				started_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				completed_at TIMESTAMPTZ
			)`,
			`CREATE INDEX ix_workflow_runs_status ON workflow_runs (status)`,

			`
			CREATE TABLE workflow_steps (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				workflow_id TEXT NOT NULL,
				name TEXT NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0,
				ok BOOLEAN NOT NULL DEFAULT FALSE,
				error TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				completed_at TIMESTAMPTZ
			)`,
			`CREATE INDEX ix_workflow_steps_workflow_id ON workflow_steps (workflow_id)`,

			`
			CREATE TABLE workflow_jobs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				workflow_id TEXT NOT NULL UNIQUE,
				workflow_name TEXT NOT NULL,
				args TEXT NOT NULL DEFAULT '',
				context TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				progress INTEGER NOT NULL DEFAULT 0,
				error TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX ix_workflow_jobs_status ON workflow_jobs (status)`,
			`CREATE INDEX ix_workflow_jobs_workflow_name ON workflow_jobs (workflow_name)`,
			`CREATE INDEX ix_workflow_jobs_started_at ON workflow_jobs (started_at)`,

			`
			CREATE TABLE genres (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				slug TEXT NOT NULL UNIQUE
			)`,
			`
			CREATE TABLE album_genres (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				album_id INTEGER REFERENCES albums (id) NOT NULL,
				genre_id INTEGER REFERENCES genres (id) NOT NULL,
				UNIQUE (album_id, genre_id)
			)`,
			`
			CREATE TABLE artist_genres (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				artist_id INTEGER REFERENCES artists (id) NOT NULL,
				genre_id INTEGER REFERENCES genres (id) NOT NULL,
				UNIQUE (artist_id, genre_id)
			)`,
		}

		for _, stmt := range stmts {
			_, err := db.Exec(stmt)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		tables := []string{
			"artist_genres", "album_genres", "genres",
			"workflow_jobs", "workflow_steps", "workflow_runs",
			"lyric_variants", "album_tracks", "tracks", "albums", "artists",
		}
		for _, table := range tables {
			_, err := db.Exec(`DROP TABLE IF EXISTS ` + table)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
