package workflow

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/migrations"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/providers"
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

// fastRetry keeps test backoffs out of the wall clock.
var fastRetry = RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, Base: 2}

func claimOne(t *testing.T, engine *Engine, workflowID string) *models.WorkflowRun {
	t.Helper()

	runs, err := engine.Claim(context.Background(), "test0001", 10)
	require.NoError(t, err)
	for _, run := range runs {
		if run.WorkflowID == workflowID {
			return run
		}
	}
	t.Fatalf("run %s not claimed", workflowID)
	return nil
}

func TestStartInsertsQueuedRun(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db)
	ctx := context.Background()

	engine.Register("noop", Workflow{Handler: func(ctx context.Context, run *Run, args string) error {
		return nil
	}})

	id, err := engine.Start(ctx, "noop", map[string]string{"album_id": "sp1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	status, err := engine.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusQueued, status.Run.Status)
	assert.Equal(t, "noop", status.Run.Name)
	assert.Contains(t, status.Run.Args, "sp1")
	assert.Empty(t, status.InProgress)

	_, err = engine.Start(ctx, "unregistered", nil)
	assert.ErrorIs(t, err, errcodes.NotFound("Workflow"))
}

func TestStatusAndJournalNotFound(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db)
	ctx := context.Background()

	_, err := engine.Status(ctx, "missing")
	assert.ErrorIs(t, err, errcodes.NotFound("Workflow run"))

	_, err = engine.Journal(ctx, "missing")
	assert.ErrorIs(t, err, errcodes.NotFound("Workflow run"))

	err = engine.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, errcodes.NotFound("Workflow run"))
}

func TestExecuteJournalsStepsAndCompletes(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db)
	ctx := context.Background()

	var completed atomic.Value
	engine.Register("two_steps", Workflow{
		Handler: func(ctx context.Context, run *Run, args string) error {
			err := run.Do(ctx, "first", NoRetry, func(ctx context.Context) error {
				return nil
			})
			if err != nil {
				return err
			}
			value, err := Step(ctx, run, "second", NoRetry, func(ctx context.Context) (int, error) {
				return 42, nil
			})
			if err != nil {
				return err
			}
			assert.Equal(t, 42, value)
			return nil
		},
		OnComplete: func(ctx context.Context, workflowID string, result Result) {
			completed.Store(result)
		},
	})

	id, err := engine.Start(ctx, "two_steps", nil)
	require.NoError(t, err)

	run := claimOne(t, engine, id)
	require.NoError(t, engine.Execute(ctx, run))

	status, err := engine.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, status.Run.Status)
	assert.Empty(t, status.InProgress)
	require.NotNil(t, status.Run.CompletedAt)

	journal, err := engine.Journal(ctx, id)
	require.NoError(t, err)
	require.Len(t, journal, 2)
	assert.Equal(t, "first", journal[0].Name)
	assert.Equal(t, "second", journal[1].Name)
	for _, entry := range journal {
		assert.True(t, entry.OK)
		assert.Equal(t, 1, entry.Attempts)
		assert.NotNil(t, entry.CompletedAt)
	}

	result, ok := completed.Load().(Result)
	require.True(t, ok)
	assert.Equal(t, ResultSuccess, result.Kind)
}

func TestStepRetriesTransientErrors(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db)
	ctx := context.Background()

	var calls int32
	engine.Register("flaky", Workflow{Handler: func(ctx context.Context, run *Run, args string) error {
		return run.Do(ctx, "fetch", fastRetry, func(ctx context.Context) error {
			if atomic.AddInt32(&calls, 1) < 3 {
				return providers.Transient("spotify", errors.New("rate limited"))
			}
			return nil
		})
	}})

	id, err := engine.Start(ctx, "flaky", nil)
	require.NoError(t, err)
	require.NoError(t, engine.Execute(ctx, claimOne(t, engine, id)))

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	journal, err := engine.Journal(ctx, id)
	require.NoError(t, err)
	require.Len(t, journal, 1)
	assert.True(t, journal[0].OK)
	assert.Equal(t, 3, journal[0].Attempts)

	status, err := engine.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, status.Run.Status)
}

func TestStepDoesNotRetryTerminalErrors(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db)
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
	}{
		{"malformed_input", errcodes.MalformedInput("Track record requires a title.")},
		{"permanent_provider", providers.Permanent("genius", errors.New("track does not exist"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			name := "terminal_" + tt.name
			engine.Register(name, Workflow{Handler: func(ctx context.Context, run *Run, args string) error {
				return run.Do(ctx, "fetch", fastRetry, func(ctx context.Context) error {
					atomic.AddInt32(&calls, 1)
					return tt.err
				})
			}})

			id, err := engine.Start(ctx, name, nil)
			require.NoError(t, err)
			require.NoError(t, engine.Execute(ctx, claimOne(t, engine, id)))

			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

			status, err := engine.Status(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, models.RunStatusFailed, status.Run.Status)
			assert.Contains(t, status.Run.Error, tt.err.Error())
		})
	}
}

func TestStepExhaustsRetriesAndFailsRun(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db)
	ctx := context.Background()

	var calls int32
	engine.Register("always_down", Workflow{Handler: func(ctx context.Context, run *Run, args string) error {
		return run.Do(ctx, "fetch", fastRetry, func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return providers.Transient("musixmatch", errors.New("timeout"))
		})
	}})

	id, err := engine.Start(ctx, "always_down", nil)
	require.NoError(t, err)
	require.NoError(t, engine.Execute(ctx, claimOne(t, engine, id)))

	assert.Equal(t, int32(fastRetry.MaxAttempts), atomic.LoadInt32(&calls))

	journal, err := engine.Journal(ctx, id)
	require.NoError(t, err)
	require.Len(t, journal, 1)
	assert.False(t, journal[0].OK)
	assert.Contains(t, journal[0].Error, "timeout")

	status, err := engine.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, status.Run.Status)
}

func TestCancelQueuedRun(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db)
	ctx := context.Background()

	engine.Register("noop", Workflow{Handler: func(ctx context.Context, run *Run, args string) error {
		return nil
	}})

	id, err := engine.Start(ctx, "noop", nil)
	require.NoError(t, err)

	require.NoError(t, engine.Cancel(ctx, id))

	status, err := engine.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCanceled, status.Run.Status)

	// Canceled runs are no longer claimable.
	runs, err := engine.Claim(ctx, "test0001", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestCancelInFlightRun(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db)
	ctx := context.Background()

	started := make(chan struct{})
	var completed atomic.Value
	engine.Register("blocking", Workflow{
		Handler: func(ctx context.Context, run *Run, args string) error {
			return run.Do(ctx, "wait", NoRetry, func(ctx context.Context) error {
				close(started)
				<-ctx.Done()
				return errors.WithStack(ctx.Err())
			})
		},
		OnComplete: func(ctx context.Context, workflowID string, result Result) {
			completed.Store(result)
		},
	})

	id, err := engine.Start(ctx, "blocking", nil)
	require.NoError(t, err)
	run := claimOne(t, engine, id)

	done := make(chan error, 1)
	go func() {
		done <- engine.Execute(ctx, run)
	}()

	<-started
	require.NoError(t, engine.Cancel(ctx, id))
	require.NoError(t, <-done)

	status, err := engine.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCanceled, status.Run.Status)

	result, ok := completed.Load().(Result)
	require.True(t, ok)
	assert.Equal(t, ResultCanceled, result.Kind)
}

func TestClaimIsExclusive(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db)
	ctx := context.Background()

	engine.Register("noop", Workflow{Handler: func(ctx context.Context, run *Run, args string) error {
		return nil
	}})

	id, err := engine.Start(ctx, "noop", nil)
	require.NoError(t, err)

	first, err := engine.Claim(ctx, "proc0001", 10)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, id, first[0].WorkflowID)
	assert.Equal(t, 1, first[0].Attempt)
	require.NotNil(t, first[0].ProcessID)
	assert.Equal(t, "proc0001", *first[0].ProcessID)

	second, err := engine.Claim(ctx, "proc0002", 10)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestForEachBranchesAreIndependent(t *testing.T) {
	ctx := context.Background()

	var ran int32
	items := []int{1, 2, 3, 4, 5, 6}
	err := ForEach(ctx, 2, items, func(ctx context.Context, item int) error {
		atomic.AddInt32(&ran, 1)
		if item == 2 {
			return errors.New("branch failed")
		}
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, int32(len(items)), atomic.LoadInt32(&ran))
}
