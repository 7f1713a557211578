package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tonearmlabs/tonearm/pkg/config"
	"github.com/tonearmlabs/tonearm/pkg/jobs"
	"github.com/tonearmlabs/tonearm/pkg/models"
	"github.com/tonearmlabs/tonearm/pkg/workflow"
)

var processID = randStringBytes(8)

type Worker struct {
	config *config.Config
	log    logger.Logger

	engine     *workflow.Engine
	jobService *jobs.Service

	queue          chan *models.WorkflowRun
	shutdown       chan struct{}
	doneFetching   chan struct{}
	doneSyncing    chan struct{}
	doneProcessing chan struct{}
}

func New(cfg *config.Config, engine *workflow.Engine, jobService *jobs.Service) *Worker {
	return &Worker{
		config: cfg,
		log:    logger.New(),

		engine:     engine,
		jobService: jobService,

		queue:          make(chan *models.WorkflowRun, cfg.WorkerProcesses),
		shutdown:       make(chan struct{}),
		doneFetching:   make(chan struct{}),
		doneSyncing:    make(chan struct{}),
		doneProcessing: make(chan struct{}, cfg.WorkerProcesses),
	}
}

func (w *Worker) Start() {
	go w.fetchRuns()
	go w.syncJobs()
	for i := 0; i < w.config.WorkerProcesses; i++ {
		go w.processRuns()
	}
}

func (w *Worker) fetchRuns() {
	duration := 5 * time.Second
	timer := time.NewTimer(duration)

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop claiming more runs.
			w.doneFetching <- struct{}{}
			return
		case <-timer.C:
			runs, err := w.engine.Claim(context.Background(), processID, w.config.WorkerProcesses)
			if err != nil {
				w.log.Err(err).Error("claim workflow runs error")
				timer.Reset(duration)
				continue
			}
			for _, run := range runs {
				w.queue <- run
			}
			timer.Reset(duration)
		}
	}
}

// syncJobs periodically reconciles the job tracker with the workflow journal
// so that runs executed by other processes still surface progress here.
func (w *Worker) syncJobs() {
	timer := time.NewTimer(w.config.JobSyncInterval)

	for {
		select {
		case <-w.shutdown:
			w.doneSyncing <- struct{}{}
			return
		case <-timer.C:
			err := w.jobService.SyncStale(context.Background())
			if err != nil {
				w.log.Err(err).Error("sync stale jobs error")
			}
			timer.Reset(w.config.JobSyncInterval)
		}
	}
}

func (w *Worker) processRuns() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case run := <-w.queue:
			// Prep the context to be passed down to the workflow handler.
			id, err := uuid.NewRandom()
			if err != nil {
				w.log.Err(err).Error("new uuid error")
				continue
			}
			log := w.log.ID(id.String()).Root(logger.Data{"workflow_id": run.WorkflowID, "workflow": run.Name, "process_id": processID})
			ctx := log.WithContext(context.Background())

			err = w.engine.Execute(ctx, run)
			if err != nil {
				log.Err(err).Error("execute workflow run error")
				continue
			}
		}
	}
}

func (w *Worker) Shutdown() {
	close(w.shutdown)

	<-w.doneFetching
	<-w.doneSyncing
	for i := 0; i < w.config.WorkerProcesses; i++ {
		<-w.doneProcessing
	}
}

const letterBytes = "abcdef0123456789"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
