package workflow

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Run is the handle a handler drives its steps through. Every step is
// journaled, so the tracker can derive progress and surface what a run is
// currently doing.
type Run struct {
	engine     *Engine
	WorkflowID string
}

// Do executes one journaled step under the given retry policy. The step entry
// is written before the first attempt and finalized after the last, whether
// the step succeeded or not.
func (r *Run) Do(ctx context.Context, name string, policy RetryPolicy, fn func(ctx context.Context) error) error {
	_, err := Step(ctx, r, name, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Step is Do for steps that produce a value.
func Step[T any](ctx context.Context, r *Run, name string, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	entry := &models.WorkflowStep{
		WorkflowID: r.WorkflowID,
		Name:       name,
		StartedAt:  time.Now(),
	}
	_, err := r.engine.db.
		NewInsert().
		Model(entry).
		Exec(ctx)
	if err != nil {
		return zero, errors.WithStack(err)
	}

	var value T
	var stepErr error
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		entry.Attempts = attempt
		value, stepErr = fn(ctx)
		if stepErr == nil {
			break
		}
		if terminal(stepErr) || attempt == attempts {
			break
		}
		log := logger.FromContext(ctx)
		log.Warn("step attempt failed", logger.Data{
			"workflow_id": r.WorkflowID,
			"step":        name,
			"attempt":     attempt,
			"error":       stepErr.Error(),
		})
		if err := sleep(ctx, policy.backoff(attempt)); err != nil {
			stepErr = err
			break
		}
	}

	now := time.Now()
	entry.OK = stepErr == nil
	entry.CompletedAt = &now
	if stepErr != nil {
		entry.Error = stepErr.Error()
	}
	_, err = r.engine.db.
		NewUpdate().
		Model(entry).
		Column("attempts", "ok", "error", "completed_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return zero, errors.WithStack(err)
	}

	if stepErr != nil {
		return zero, errors.Wrap(stepErr, name)
	}
	return value, nil
}

// ForEach runs fn over items with bounded parallelism and returns the first
// error, if any. Branches are independent: a failing branch does not cancel
// its siblings, they all run to completion.
func ForEach[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) error) error {
	g := errgroup.Group{}
	g.SetLimit(limit)

	for _, item := range items {
		item := item
		g.Go(func() error {
			return fn(ctx, item)
		})
	}

	return g.Wait()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case <-time.After(d):
		return nil
	}
}
