package jobs

import (
	"context"
	"database/sql"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/workflow"
	"github.com/uptrace/bun"
)

type RetrieveJobOptions struct {
	ID         *int
	WorkflowID *string
}

type ListJobsOptions struct {
	Limit        *int
	Offset       *int
	Status       *string
	WorkflowName *string
	Statuses     []string

	includeTotal bool
}

type CreateJobOptions struct {
	WorkflowID   string
	WorkflowName string
	Args         string
	Context      *models.JobContext
	Status       string
	StartedAt    time.Time
}

// RetryStarter launches a brand-new run for a named workflow, reusing the
// failed run's args. Registered by the package that owns the workflow.
type RetryStarter func(ctx context.Context, args string) (string, error)

// Service maintains workflow_jobs, the queryable projection of workflow runs.
// The orchestration engine owns the runs themselves; this service reconciles
// its rows from the engine's status and journal, and feeds every change into
// the album's latest-workflow pointer.
type Service struct {
	db     *bun.DB
	engine *workflow.Engine

	mu            sync.Mutex
	retryStarters map[string]RetryStarter
}

func NewService(db *bun.DB, engine *workflow.Engine) *Service {
	return &Service{
		db:            db,
		engine:        engine,
		retryStarters: map[string]RetryStarter{},
	}
}

// RegisterRetryStarter enables RetryJob for one workflow name.
func (svc *Service) RegisterRetryStarter(workflowName string, starter RetryStarter) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.retryStarters[workflowName] = starter
}

func (svc *Service) RetrieveJob(ctx context.Context, opts RetrieveJobOptions) (*models.WorkflowJob, error) {
	job := &models.WorkflowJob{}

	q := svc.db.
		NewSelect().
		Model(job)

	if opts.ID != nil {
		q = q.Where("j.id = ?", *opts.ID)
	}
	if opts.WorkflowID != nil {
		q = q.Where("j.workflow_id = ?", *opts.WorkflowID)
	}

	err := q.Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Job")
		}
		return nil, errors.WithStack(err)
	}

	if err := job.UnmarshalContext(); err != nil {
		return nil, err
	}
	return job, nil
}

func (svc *Service) ListJobs(ctx context.Context, opts ListJobsOptions) ([]*models.WorkflowJob, error) {
	jobs, _, err := svc.listJobsWithTotal(ctx, opts)
	return jobs, errors.WithStack(err)
}

func (svc *Service) ListJobsWithTotal(ctx context.Context, opts ListJobsOptions) ([]*models.WorkflowJob, int, error) {
	opts.includeTotal = true
	return svc.listJobsWithTotal(ctx, opts)
}

func (svc *Service) listJobsWithTotal(ctx context.Context, opts ListJobsOptions) ([]*models.WorkflowJob, int, error) {
	var jobs []*models.WorkflowJob
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&jobs).
		Order("j.started_at DESC", "j.id DESC")

	if opts.Status != nil {
		q = q.Where("j.status = ?", *opts.Status)
	}
	if len(opts.Statuses) > 0 {
		q = q.Where("j.status IN (?)", bun.In(opts.Statuses))
	}
	if opts.WorkflowName != nil {
		q = q.Where("j.workflow_name = ?", *opts.WorkflowName)
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	for _, job := range jobs {
		if err := job.UnmarshalContext(); err != nil {
			return nil, 0, err
		}
	}

	return jobs, total, nil
}

// CreateJob records a job for a freshly started workflow. Idempotent on the
// workflow id: a second create returns the existing row untouched. A job can
// be created before its album exists; the context is patched in later.
func (svc *Service) CreateJob(ctx context.Context, opts CreateJobOptions) (*models.WorkflowJob, error) {
	existing, err := svc.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &opts.WorkflowID})
	if err != nil && !errors.Is(err, errcodes.NotFound("Job")) {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	status := opts.Status
	if status == "" {
		status = models.JobStatusQueued
	}
	startedAt := opts.StartedAt
	if startedAt.IsZero() {
		startedAt = now
	}

	job := &models.WorkflowJob{
		WorkflowID:    opts.WorkflowID,
		WorkflowName:  opts.WorkflowName,
		Args:          opts.Args,
		ContextParsed: opts.Context,
		Status:        status,
		StartedAt:     startedAt,
		UpdatedAt:     now,
	}
	if job.ContextParsed == nil {
		job.ContextParsed = &models.JobContext{}
	}
	if err := job.MarshalContext(); err != nil {
		return nil, err
	}

	_, err = svc.db.
		NewInsert().
		Model(job).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := svc.updateAlbumPointer(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// PatchJobContext fills in the album id once the workflow has resolved it,
// and moves a still-queued job to in_progress.
func (svc *Service) PatchJobContext(ctx context.Context, workflowID string, albumID int) error {
	job, err := svc.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &workflowID})
	if err != nil {
		return err
	}

	job.ContextParsed.AlbumID = albumID
	if err := job.MarshalContext(); err != nil {
		return err
	}
	job.UpdatedAt = time.Now()
	columns := []string{"context", "updated_at"}

	if job.Status == models.JobStatusQueued {
		job.Status = models.JobStatusInProgress
		columns = append(columns, "status")
	}

	_, err = svc.db.
		NewUpdate().
		Model(job).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return svc.updateAlbumPointer(ctx, job)
}

// SyncJob reconciles one job from the engine's run row and step journal. A
// run the engine no longer knows about is recorded as canceled with a
// synthetic error, so the job never dangles as in_progress forever.
func (svc *Service) SyncJob(ctx context.Context, workflowID string) (*models.WorkflowJob, error) {
	now := time.Now()

	status, err := svc.engine.Status(ctx, workflowID)
	if errors.Is(err, errcodes.NotFound("Workflow run")) {
		job, err := svc.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &workflowID})
		if err != nil {
			return nil, err
		}
		if models.JobStatusTerminal(job.Status) {
			return job, nil
		}
		job.Status = models.JobStatusCanceled
		job.Error = "workflow run no longer exists"
		job.UpdatedAt = now
		_, err = svc.db.
			NewUpdate().
			Model(job).
			Column("status", "error", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return job, svc.updateAlbumPointer(ctx, job)
	}
	if err != nil {
		return nil, err
	}

	run := status.Run
	derived := deriveJobStatus(run.Status)

	journal, err := svc.engine.Journal(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	progress := deriveProgress(journal, derived)

	job, err := svc.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &workflowID})
	if err != nil && !errors.Is(err, errcodes.NotFound("Job")) {
		return nil, err
	}

	if job == nil {
		job = &models.WorkflowJob{
			WorkflowID:    workflowID,
			WorkflowName:  run.Name,
			Args:          run.Args,
			ContextParsed: &models.JobContext{},
			Status:        derived,
			Progress:      progress,
			Error:         run.Error,
			StartedAt:     run.StartedAt,
			UpdatedAt:     now,
		}
		if err := job.MarshalContext(); err != nil {
			return nil, err
		}
		_, err = svc.db.
			NewInsert().
			Model(job).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return job, svc.updateAlbumPointer(ctx, job)
	}

	// The review lifecycle extends a successful run; don't regress it.
	if derived == models.JobStatusSuccess && reviewStatus(job.Status) {
		derived = job.Status
	}

	job.Status = derived
	job.Progress = progress
	job.Error = run.Error
	job.UpdatedAt = now
	columns := []string{"status", "progress", "error", "updated_at"}

	if job.WorkflowName == "" {
		job.WorkflowName = run.Name
		columns = append(columns, "workflow_name")
	}
	if job.Args == "" {
		job.Args = run.Args
		columns = append(columns, "args")
	}

	_, err = svc.db.
		NewUpdate().
		Model(job).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return job, svc.updateAlbumPointer(ctx, job)
}

// SyncJobs reconciles a batch, skipping ids that resolve to nothing at all.
func (svc *Service) SyncJobs(ctx context.Context, workflowIDs []string) ([]*models.WorkflowJob, error) {
	jobs := make([]*models.WorkflowJob, 0, len(workflowIDs))
	for _, id := range workflowIDs {
		job, err := svc.SyncJob(ctx, id)
		if err != nil {
			if errors.Is(err, errcodes.NotFound("Job")) {
				continue
			}
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// SyncStale reconciles every job still marked queued or in progress. The
// worker calls this on a timer to catch runs that finished in another
// process.
func (svc *Service) SyncStale(ctx context.Context) error {
	jobs, err := svc.ListJobs(ctx, ListJobsOptions{
		Statuses: []string{models.JobStatusQueued, models.JobStatusInProgress},
	})
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	for _, job := range jobs {
		if _, err := svc.SyncJob(ctx, job.WorkflowID); err != nil {
			log.Warn("sync job error", logger.Data{
				"workflow_id": job.WorkflowID,
				"error":       err.Error(),
			})
		}
	}
	return nil
}

// HandleCompletion is the workflow completion callback: a successful run
// parks the job in pending_review for a human, failures and cancellations are
// recorded as such. Best-effort; the run outcome itself is already durable.
func (svc *Service) HandleCompletion(ctx context.Context, workflowID string, result workflow.Result) {
	log := logger.FromContext(ctx)

	job, err := svc.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &workflowID})
	if err != nil {
		if !errors.Is(err, errcodes.NotFound("Job")) {
			log.Warn("retrieve job on completion error", logger.Data{"workflow_id": workflowID, "error": err.Error()})
			return
		}
		job = nil
	}

	now := time.Now()
	var status string
	var progress *int
	errMsg := ""
	switch result.Kind {
	case workflow.ResultSuccess:
		status = models.JobStatusPendingReview
		full := 100
		progress = &full
	case workflow.ResultFailed:
		status = models.JobStatusFailed
		errMsg = result.Error
		if errMsg == "" {
			errMsg = "Unknown error"
		}
	case workflow.ResultCanceled:
		status = models.JobStatusCanceled
	}

	if job == nil {
		job = &models.WorkflowJob{
			WorkflowID:    workflowID,
			WorkflowName:  "unknown",
			ContextParsed: &models.JobContext{},
			Status:        status,
			Error:         errMsg,
			StartedAt:     now,
			UpdatedAt:     now,
		}
		if progress != nil {
			job.Progress = *progress
		}
		if err := job.MarshalContext(); err != nil {
			log.Warn("marshal job context error", logger.Data{"workflow_id": workflowID, "error": err.Error()})
			return
		}
		if _, err := svc.db.NewInsert().Model(job).Returning("*").Exec(ctx); err != nil {
			log.Warn("insert job on completion error", logger.Data{"workflow_id": workflowID, "error": err.Error()})
			return
		}
	} else {
		job.Status = status
		job.Error = errMsg
		job.UpdatedAt = now
		columns := []string{"status", "error", "updated_at"}
		if progress != nil {
			job.Progress = *progress
			columns = append(columns, "progress")
		}
		_, err = svc.db.
			NewUpdate().
			Model(job).
			Column(columns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			log.Warn("update job on completion error", logger.Data{"workflow_id": workflowID, "error": err.Error()})
			return
		}
	}

	if err := svc.updateAlbumPointer(ctx, job); err != nil {
		log.Warn("album pointer update error", logger.Data{"workflow_id": workflowID, "error": err.Error()})
	}
}

// CancelJob cancels the run in the engine (best-effort; it may already be
// done) and marks the local record canceled.
func (svc *Service) CancelJob(ctx context.Context, workflowID string) (*models.WorkflowJob, error) {
	if err := svc.engine.Cancel(ctx, workflowID); err != nil && !errors.Is(err, errcodes.NotFound("Workflow run")) {
		log := logger.FromContext(ctx)
		log.Warn("engine cancel error", logger.Data{"workflow_id": workflowID, "error": err.Error()})
	}

	job, err := svc.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &workflowID})
	if err != nil {
		return nil, err
	}

	if !models.JobStatusTerminal(job.Status) {
		job.Status = models.JobStatusCanceled
		job.UpdatedAt = time.Now()
		_, err = svc.db.
			NewUpdate().
			Model(job).
			Column("status", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if err := svc.updateAlbumPointer(ctx, job); err != nil {
			return nil, err
		}
	}

	return job, nil
}

// RetryJob starts a brand-new run with the failed job's args. Only workflows
// with a registered starter support it.
func (svc *Service) RetryJob(ctx context.Context, workflowID string) (string, error) {
	job, err := svc.RetrieveJob(ctx, RetrieveJobOptions{WorkflowID: &workflowID})
	if err != nil {
		return "", err
	}

	svc.mu.Lock()
	starter, ok := svc.retryStarters[job.WorkflowName]
	svc.mu.Unlock()
	if !ok {
		return "", errcodes.RetryUnsupported(job.WorkflowName)
	}

	return starter(ctx, job.Args)
}

// AlbumReviewed implements the album review notification: the review verdict
// is reflected onto the album's most recent job.
func (svc *Service) AlbumReviewed(ctx context.Context, albumID int, approved bool) error {
	job := &models.WorkflowJob{}
	err := svc.db.
		NewSelect().
		Model(job).
		Where("json_extract(j.context, '$.album_id') = ?", albumID).
		Order("j.started_at DESC", "j.id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Job")
		}
		return errors.WithStack(err)
	}
	if err := job.UnmarshalContext(); err != nil {
		return err
	}

	job.Status = models.JobStatusApproved
	if !approved {
		job.Status = models.JobStatusRejected
	}
	job.UpdatedAt = time.Now()

	_, err = svc.db.
		NewUpdate().
		Model(job).
		Column("status", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return svc.updateAlbumPointer(ctx, job)
}

// updateAlbumPointer advances the album's latest-workflow pointer from a job
// change. Guarded by timestamp so an out-of-order reconcile can never regress
// the pointer to an older run's state.
func (svc *Service) updateAlbumPointer(ctx context.Context, job *models.WorkflowJob) error {
	if job.ContextParsed == nil || job.ContextParsed.AlbumID == 0 {
		return nil
	}

	_, err := svc.db.
		NewUpdate().
		Model((*models.Album)(nil)).
		Set("latest_workflow_id = ?", job.WorkflowID).
		Set("latest_workflow_status = ?", job.Status).
		Set("latest_workflow_updated_at = ?", job.UpdatedAt).
		Where("id = ?", job.ContextParsed.AlbumID).
		Where("latest_workflow_updated_at IS NULL OR latest_workflow_updated_at <= ?", job.UpdatedAt).
		Exec(ctx)
	return errors.WithStack(err)
}

func deriveJobStatus(runStatus string) string {
	switch runStatus {
	case models.RunStatusSuccess:
		return models.JobStatusSuccess
	case models.RunStatusFailed:
		return models.JobStatusFailed
	case models.RunStatusCanceled:
		return models.JobStatusCanceled
	case models.RunStatusInProgress:
		return models.JobStatusInProgress
	}
	return models.JobStatusQueued
}

func reviewStatus(status string) bool {
	switch status {
	case models.JobStatusPendingReview, models.JobStatusApproved, models.JobStatusRejected:
		return true
	}
	return false
}

// deriveProgress is the completed-over-total ratio of journal entries. A
// finished run with an empty journal reads as 100, anything else as 0.
func deriveProgress(journal []*models.WorkflowStep, status string) int {
	total := len(journal)
	if total == 0 {
		if status == models.JobStatusSuccess {
			return 100
		}
		return 0
	}

	completed := 0
	for _, entry := range journal {
		if entry.CompletedAt != nil {
			completed++
		}
	}

	progress := int(math.Round(float64(completed) / float64(total) * 100))
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return progress
}
