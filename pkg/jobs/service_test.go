package jobs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/migrations"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/workflow"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// In-memory sqlite is per connection; keep the pool at one so every
	// goroutine sees the same database.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func seedAlbum(t *testing.T, db *bun.DB) *models.Album {
	t.Helper()
	ctx := context.Background()

	artist := &models.Artist{Name: "Artist", NameNormalized: "artist"}
	_, err := db.NewInsert().Model(artist).Returning("*").Exec(ctx)
	require.NoError(t, err)

	album := &models.Album{
		Title:           "Album",
		TitleNormalized: "album",
		PrimaryArtistID: artist.ID,
		ArtistIDs:       models.IntList{artist.ID},
	}
	_, err = db.NewInsert().Model(album).Returning("*").Exec(ctx)
	require.NoError(t, err)

	return album
}

func runWorkflow(t *testing.T, engine *workflow.Engine, name string, args interface{}) string {
	t.Helper()
	ctx := context.Background()

	id, err := engine.Start(ctx, name, args)
	require.NoError(t, err)

	runs, err := engine.Claim(ctx, "test0001", 10)
	require.NoError(t, err)
	for _, run := range runs {
		if run.WorkflowID == id {
			require.NoError(t, engine.Execute(ctx, run))
			return id
		}
	}
	t.Fatalf("run %s not claimed", id)
	return ""
}

func TestCreateJobIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, workflow.NewEngine(db))
	ctx := context.Background()

	first, err := svc.CreateJob(ctx, CreateJobOptions{
		WorkflowID:   "wf-1",
		WorkflowName: "album_ingest",
		Args:         `{"album_id":"sp1"}`,
		Context:      &models.JobContext{SourceAlbumID: "sp1"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, first.Status)
	assert.Equal(t, "sp1", first.ContextParsed.SourceAlbumID)

	second, err := svc.CreateJob(ctx, CreateJobOptions{
		WorkflowID:   "wf-1",
		WorkflowName: "album_ingest",
		Status:       models.JobStatusInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.JobStatusQueued, second.Status)

	count, err := db.NewSelect().Model((*models.WorkflowJob)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSyncJobDerivesStatusAndProgress(t *testing.T) {
	db := newTestDB(t)
	engine := workflow.NewEngine(db)
	svc := NewService(db, engine)
	ctx := context.Background()

	engine.Register("two_steps", workflow.Workflow{Handler: func(ctx context.Context, run *workflow.Run, args string) error {
		if err := run.Do(ctx, "first", workflow.NoRetry, func(ctx context.Context) error { return nil }); err != nil {
			return err
		}
		return run.Do(ctx, "second", workflow.NoRetry, func(ctx context.Context) error { return nil })
	}})

	id := runWorkflow(t, engine, "two_steps", nil)

	job, err := svc.SyncJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSuccess, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "two_steps", job.WorkflowName)
}

func TestSyncJobQueuedRunHasZeroProgress(t *testing.T) {
	db := newTestDB(t)
	engine := workflow.NewEngine(db)
	svc := NewService(db, engine)
	ctx := context.Background()

	engine.Register("noop", workflow.Workflow{Handler: func(ctx context.Context, run *workflow.Run, args string) error {
		return nil
	}})

	id, err := engine.Start(ctx, "noop", nil)
	require.NoError(t, err)

	job, err := svc.SyncJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, 0, job.Progress)
}

func TestSyncJobMissingRunCancelsJob(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, workflow.NewEngine(db))
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, CreateJobOptions{
		WorkflowID:   "wf-gone",
		WorkflowName: "album_ingest",
	})
	require.NoError(t, err)

	job, err := svc.SyncJob(ctx, "wf-gone")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCanceled, job.Status)
	assert.Equal(t, "workflow run no longer exists", job.Error)

	// No local job and no run at all is a straight not found.
	_, err = svc.SyncJob(ctx, "wf-never")
	assert.ErrorIs(t, err, errcodes.NotFound("Job"))
}

func TestSyncJobKeepsReviewStatuses(t *testing.T) {
	db := newTestDB(t)
	engine := workflow.NewEngine(db)
	svc := NewService(db, engine)
	ctx := context.Background()

	engine.Register("noop", workflow.Workflow{
		Handler:    func(ctx context.Context, run *workflow.Run, args string) error { return nil },
		OnComplete: svc.HandleCompletion,
	})

	id := runWorkflow(t, engine, "noop", nil)

	job, err := svc.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &id})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPendingReview, job.Status)
	assert.Equal(t, 100, job.Progress)

	// A later reconcile sees the engine's "success" but must not regress the
	// review lifecycle.
	job, err = svc.SyncJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPendingReview, job.Status)
}

func TestHandleCompletionFailureRecordsError(t *testing.T) {
	db := newTestDB(t)
	engine := workflow.NewEngine(db)
	svc := NewService(db, engine)
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, CreateJobOptions{WorkflowID: "wf-f", WorkflowName: "album_ingest"})
	require.NoError(t, err)

	svc.HandleCompletion(ctx, "wf-f", workflow.Result{Kind: workflow.ResultFailed, Error: "boom"})

	id := "wf-f"
	job, err := svc.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &id})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, "boom", job.Error)

	svc.HandleCompletion(ctx, "wf-c", workflow.Result{Kind: workflow.ResultCanceled})
	id = "wf-c"
	job, err = svc.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &id})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCanceled, job.Status)
}

func TestAlbumPointerNeverRegresses(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, workflow.NewEngine(db))
	ctx := context.Background()

	album := seedAlbum(t, db)
	now := time.Now()

	newer := &models.WorkflowJob{
		WorkflowID:    "wf-new",
		Status:        models.JobStatusPendingReview,
		UpdatedAt:     now,
		ContextParsed: &models.JobContext{AlbumID: album.ID},
	}
	older := &models.WorkflowJob{
		WorkflowID:    "wf-old",
		Status:        models.JobStatusFailed,
		UpdatedAt:     now.Add(-time.Minute),
		ContextParsed: &models.JobContext{AlbumID: album.ID},
	}

	require.NoError(t, svc.updateAlbumPointer(ctx, newer))
	require.NoError(t, svc.updateAlbumPointer(ctx, older))

	err := db.NewSelect().Model(album).WherePK().Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wf-new", album.LatestWorkflowID)
	assert.Equal(t, models.JobStatusPendingReview, album.LatestWorkflowStatus)
}

func TestPatchJobContextAdvancesPointer(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, workflow.NewEngine(db))
	ctx := context.Background()

	album := seedAlbum(t, db)

	_, err := svc.CreateJob(ctx, CreateJobOptions{
		WorkflowID:   "wf-p",
		WorkflowName: "album_ingest",
		Context:      &models.JobContext{SourceAlbumID: "sp1"},
	})
	require.NoError(t, err)

	require.NoError(t, svc.PatchJobContext(ctx, "wf-p", album.ID))

	id := "wf-p"
	job, err := svc.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &id})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusInProgress, job.Status)
	assert.Equal(t, album.ID, job.ContextParsed.AlbumID)
	assert.Equal(t, "sp1", job.ContextParsed.SourceAlbumID)

	err = db.NewSelect().Model(album).WherePK().Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wf-p", album.LatestWorkflowID)
	assert.Equal(t, models.JobStatusInProgress, album.LatestWorkflowStatus)
}

func TestRetryJob(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, workflow.NewEngine(db))
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, CreateJobOptions{
		WorkflowID:   "wf-r",
		WorkflowName: "album_ingest",
		Args:         `{"album_id":"sp1"}`,
	})
	require.NoError(t, err)

	_, err = svc.RetryJob(ctx, "wf-r")
	assert.ErrorIs(t, err, errcodes.RetryUnsupported("album_ingest"))

	var gotArgs string
	svc.RegisterRetryStarter("album_ingest", func(ctx context.Context, args string) (string, error) {
		gotArgs = args
		return "wf-r2", nil
	})

	newID, err := svc.RetryJob(ctx, "wf-r")
	require.NoError(t, err)
	assert.Equal(t, "wf-r2", newID)
	assert.Equal(t, `{"album_id":"sp1"}`, gotArgs)
}

func TestAlbumReviewedUpdatesLatestJob(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, workflow.NewEngine(db))
	ctx := context.Background()

	album := seedAlbum(t, db)

	_, err := svc.CreateJob(ctx, CreateJobOptions{
		WorkflowID:   "wf-a",
		WorkflowName: "album_ingest",
		Context:      &models.JobContext{AlbumID: album.ID},
		StartedAt:    time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	_, err = svc.CreateJob(ctx, CreateJobOptions{
		WorkflowID:   "wf-b",
		WorkflowName: "album_ingest",
		Context:      &models.JobContext{AlbumID: album.ID},
	})
	require.NoError(t, err)

	require.NoError(t, svc.AlbumReviewed(ctx, album.ID, true))

	id := "wf-b"
	job, err := svc.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &id})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusApproved, job.Status)

	id = "wf-a"
	job, err = svc.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &id})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, job.Status)

	require.NoError(t, svc.AlbumReviewed(ctx, album.ID, false))
	id = "wf-b"
	job, err = svc.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &id})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRejected, job.Status)
}
