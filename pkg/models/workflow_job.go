package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	JobStatusQueued        = "queued"
	JobStatusInProgress    = "in_progress"
	JobStatusSuccess       = "success"
	JobStatusFailed        = "failed"
	JobStatusCanceled      = "canceled"
	JobStatusPendingReview = "pending_review"
	JobStatusApproved      = "approved"
	JobStatusRejected      = "rejected"
)

// JobStatusTerminal reports whether a status will never change again on its
// own (a reviewer can still move pending_review to approved/rejected).
func JobStatusTerminal(status string) bool {
	switch status {
	case JobStatusSuccess, JobStatusFailed, JobStatusCanceled, JobStatusApproved, JobStatusRejected:
		return true
	}
	return false
}

// JobContext is the context bag carried on a workflow job. The album id is
// patched in once the ingestion workflow has resolved it; until then only
// the source-side id is known.
type JobContext struct {
	AlbumID       int    `json:"album_id,omitempty"`
	SourceAlbumID string `json:"source_album_id,omitempty"`
}

// WorkflowJob is the queryable projection of one workflow run, reconciled
// against the orchestration engine's own journal. It references the album
// it concerns but does not own it.
type WorkflowJob struct {
	bun.BaseModel `bun:"table:workflow_jobs,alias:j"`

	ID            int         `bun:",pk,nullzero" json:"id"`
	WorkflowID    string      `bun:",nullzero" json:"workflow_id"`
	WorkflowName  string      `bun:",nullzero" json:"workflow_name"`
	Args          string      `bun:",nullzero,default:''" json:"-"`
	Context       string      `json:"-"`
	ContextParsed *JobContext `bun:"-" json:"context"`
	Status        string      `bun:",nullzero" json:"status"`
	Progress      int         `json:"progress"`
	Error         string      `json:"error"`
	StartedAt     time.Time   `json:"started_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// UnmarshalContext parses the context bag into ContextParsed.
func (j *WorkflowJob) UnmarshalContext() error {
	j.ContextParsed = &JobContext{}
	if j.Context == "" {
		return nil
	}
	return errors.WithStack(json.Unmarshal([]byte(j.Context), j.ContextParsed))
}

// MarshalContext serializes ContextParsed back into the stored column.
func (j *WorkflowJob) MarshalContext() error {
	if j.ContextParsed == nil {
		j.Context = ""
		return nil
	}
	data, err := json.Marshal(j.ContextParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	j.Context = string(data)
	return nil
}
