package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RunStatusQueued     = "queued"
	RunStatusInProgress = "in_progress"
	RunStatusSuccess    = "success"
	RunStatusFailed     = "failed"
	RunStatusCanceled   = "canceled"
)

// WorkflowRun is the orchestration engine's durable record of one workflow
// execution. Queued runs are picked up by the worker, so a run survives a
// process restart; steps are re-executed at least once and must be
// idempotent.
type WorkflowRun struct {
	bun.BaseModel `bun:"table:workflow_runs,alias:wr"`

	ID          int        `bun:",pk,nullzero" json:"id"`
	WorkflowID  string     `bun:",nullzero" json:"workflow_id"`
	Name        string     `bun:",nullzero" json:"name"`
	Args        string     `json:"args"`
	Status      string     `bun:",nullzero" json:"status"`
	Error       string     `json:"error"`
	Attempt     int        `json:"attempt"`
	ProcessID   *string    `json:"process_id,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// WorkflowStep is one journal entry of a run. The job tracker derives
// progress from the ratio of completed entries.
type WorkflowStep struct {
	bun.BaseModel `bun:"table:workflow_steps,alias:ws"`

	ID          int        `bun:",pk,nullzero" json:"id"`
	WorkflowID  string     `bun:",nullzero" json:"workflow_id"`
	Name        string     `bun:",nullzero" json:"name"`
	Attempts    int        `json:"attempts"`
	OK          bool       `json:"ok"`
	Error       string     `json:"error"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
