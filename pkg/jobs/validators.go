package jobs

type ListJobsQuery struct {
	Limit        int     `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=200"`
	Offset       int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Status       *string `query:"status" json:"status,omitempty" validate:"omitempty,oneof=queued in_progress success failed canceled pending_review approved rejected"`
	WorkflowName *string `query:"workflow_name" json:"workflow_name,omitempty" validate:"omitempty,max=100"`
}

type SyncJobsPayload struct {
	WorkflowIDs []string `json:"workflow_ids" validate:"required,min=1,max=200,dive,required"`
}
