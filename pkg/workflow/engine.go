package workflow

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/uptrace/bun"
)

// DefaultConcurrency bounds fan-out within a single run when the caller
// doesn't ask for something else.
const DefaultConcurrency = 5

// HandlerFunc is the body of a workflow. It receives the raw args the run was
// started with and drives its steps through the Run.
type HandlerFunc func(ctx context.Context, run *Run, args string) error

// CompleteFunc is invoked after a run reaches a terminal state, whatever the
// outcome.
type CompleteFunc func(ctx context.Context, workflowID string, result Result)

// Workflow couples a handler with its optional completion callback.
type Workflow struct {
	Handler    HandlerFunc
	OnComplete CompleteFunc
}

// Engine runs durable workflows. Runs and their step journal live in the
// database, so a queued run survives a process restart; handlers must write
// idempotent steps because a reclaimed run re-executes from the top.
type Engine struct {
	db          *bun.DB
	concurrency int

	mu        sync.Mutex
	workflows map[string]Workflow
	cancels   map[string]context.CancelFunc
}

func NewEngine(db *bun.DB) *Engine {
	return &Engine{
		db:          db,
		concurrency: DefaultConcurrency,
		workflows:   map[string]Workflow{},
		cancels:     map[string]context.CancelFunc{},
	}
}

// Register makes a workflow startable under the given name.
func (e *Engine) Register(name string, wf Workflow) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[name] = wf
}

// Concurrency is the engine's fan-out bound for runs that don't choose their
// own.
func (e *Engine) Concurrency() int {
	return e.concurrency
}

// SetConcurrency overrides the fan-out bound. Non-positive values are
// ignored.
func (e *Engine) SetConcurrency(n int) {
	if n > 0 {
		e.concurrency = n
	}
}

// Start inserts a queued run and returns its workflow id. The run executes
// once a worker claims it.
func (e *Engine) Start(ctx context.Context, name string, args interface{}) (string, error) {
	e.mu.Lock()
	_, ok := e.workflows[name]
	e.mu.Unlock()
	if !ok {
		return "", errcodes.NotFound("Workflow")
	}

	data, err := json.Marshal(args)
	if err != nil {
		return "", errors.WithStack(err)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return "", errors.WithStack(err)
	}

	now := time.Now()
	run := &models.WorkflowRun{
		WorkflowID: id.String(),
		Name:       name,
		Args:       string(data),
		Status:     models.RunStatusQueued,
		StartedAt:  now,
		UpdatedAt:  now,
	}

	_, err = e.db.
		NewInsert().
		Model(run).
		Exec(ctx)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return run.WorkflowID, nil
}

// RunStatus is a point-in-time view of one run: the durable row plus the
// names of steps that have started but not completed.
type RunStatus struct {
	Run        *models.WorkflowRun
	InProgress []string
}

func (e *Engine) Status(ctx context.Context, workflowID string) (*RunStatus, error) {
	run := &models.WorkflowRun{}

	err := e.db.
		NewSelect().
		Model(run).
		Where("wr.workflow_id = ?", workflowID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Workflow run")
		}
		return nil, errors.WithStack(err)
	}

	var inProgress []string
	err = e.db.
		NewSelect().
		Model((*models.WorkflowStep)(nil)).
		Column("name").
		Where("ws.workflow_id = ?", workflowID).
		Where("ws.completed_at IS NULL").
		Order("ws.started_at ASC").
		Scan(ctx, &inProgress)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &RunStatus{Run: run, InProgress: inProgress}, nil
}

// Journal returns the run's step entries in execution order.
func (e *Engine) Journal(ctx context.Context, workflowID string) ([]*models.WorkflowStep, error) {
	exists, err := e.db.
		NewSelect().
		Model((*models.WorkflowRun)(nil)).
		Where("wr.workflow_id = ?", workflowID).
		Exists(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !exists {
		return nil, errcodes.NotFound("Workflow run")
	}

	var steps []*models.WorkflowStep
	err = e.db.
		NewSelect().
		Model(&steps).
		Where("ws.workflow_id = ?", workflowID).
		Order("ws.started_at ASC", "ws.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return steps, nil
}

// Cancel flips a non-terminal run to canceled and, if the run is executing in
// this process, cancels its context. Handlers in another process notice on
// their next step boundary at the latest when the tracker reconciles.
func (e *Engine) Cancel(ctx context.Context, workflowID string) error {
	now := time.Now()
	res, err := e.db.
		NewUpdate().
		Model((*models.WorkflowRun)(nil)).
		Set("status = ?", models.RunStatusCanceled).
		Set("updated_at = ?", now).
		Set("completed_at = ?", now).
		Where("workflow_id = ?", workflowID).
		Where("status IN (?)", bun.In([]string{models.RunStatusQueued, models.RunStatusInProgress})).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	e.mu.Lock()
	cancel, ok := e.cancels[workflowID]
	e.mu.Unlock()
	if ok {
		cancel()
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if affected == 0 && !ok {
		// Make sure the id exists at all so callers get a 404 for typos.
		exists, err := e.db.
			NewSelect().
			Model((*models.WorkflowRun)(nil)).
			Where("wr.workflow_id = ?", workflowID).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return errcodes.NotFound("Workflow run")
		}
	}

	return nil
}

// Claim marks up to limit queued runs as in progress under the given process
// id and returns the ones this process actually won. Two workers polling at
// once race on the guarded update, so a run is only returned when the flip
// from queued succeeded here.
func (e *Engine) Claim(ctx context.Context, processID string, limit int) ([]*models.WorkflowRun, error) {
	var candidates []*models.WorkflowRun

	err := e.db.
		NewSelect().
		Model(&candidates).
		Where("wr.status = ?", models.RunStatusQueued).
		Order("wr.started_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	claimed := make([]*models.WorkflowRun, 0, len(candidates))
	for _, run := range candidates {
		run.Status = models.RunStatusInProgress
		run.ProcessID = &processID
		run.Attempt++
		run.UpdatedAt = time.Now()

		res, err := e.db.
			NewUpdate().
			Model(run).
			Column("status", "process_id", "attempt", "updated_at").
			WherePK().
			Where("status = ?", models.RunStatusQueued).
			Exec(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if affected == 0 {
			continue
		}
		claimed = append(claimed, run)
	}

	return claimed, nil
}

// Execute runs a claimed run to a terminal state and fires its completion
// callback. The error return covers engine bookkeeping only; a failing
// handler is a failed result, not an Execute error.
func (e *Engine) Execute(ctx context.Context, run *models.WorkflowRun) error {
	e.mu.Lock()
	wf, ok := e.workflows[run.Name]
	e.mu.Unlock()

	var result Result
	if !ok {
		result = Result{Kind: ResultFailed, Error: "no workflow registered under " + run.Name}
	} else {
		runCtx, cancel := context.WithCancel(ctx)
		e.mu.Lock()
		e.cancels[run.WorkflowID] = cancel
		e.mu.Unlock()

		err := wf.Handler(runCtx, &Run{engine: e, WorkflowID: run.WorkflowID}, run.Args)

		cancel()
		e.mu.Lock()
		delete(e.cancels, run.WorkflowID)
		e.mu.Unlock()

		switch {
		case err == nil:
			result = Result{Kind: ResultSuccess}
		case errors.Is(err, context.Canceled):
			result = Result{Kind: ResultCanceled}
		default:
			result = Result{Kind: ResultFailed, Error: err.Error()}
		}
	}

	// A concurrent Cancel wins over whatever the handler returned.
	current := &models.WorkflowRun{}
	err := e.db.
		NewSelect().
		Model(current).
		Where("wr.workflow_id = ?", run.WorkflowID).
		Scan(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if current.Status == models.RunStatusCanceled {
		result = Result{Kind: ResultCanceled}
	}

	now := time.Now()
	var status string
	switch result.Kind {
	case ResultSuccess:
		status = models.RunStatusSuccess
	case ResultFailed:
		status = models.RunStatusFailed
	case ResultCanceled:
		status = models.RunStatusCanceled
	}

	_, err = e.db.
		NewUpdate().
		Model((*models.WorkflowRun)(nil)).
		Set("status = ?", status).
		Set("error = ?", result.Error).
		Set("updated_at = ?", now).
		Set("completed_at = ?", now).
		Where("workflow_id = ?", run.WorkflowID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	if ok && wf.OnComplete != nil {
		// The run context may already be canceled; the callback still has to
		// record the outcome.
		wf.OnComplete(ctx, run.WorkflowID, result)
	}

	log := logger.FromContext(ctx)
	log.Info("workflow run finished", logger.Data{
		"workflow_id": run.WorkflowID,
		"name":        run.Name,
		"result":      string(result.Kind),
	})

	return nil
}
