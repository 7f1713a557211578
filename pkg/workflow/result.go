package workflow

// ResultKind is the terminal outcome of a workflow run.
type ResultKind string

const (
	ResultSuccess  ResultKind = "success"
	ResultFailed   ResultKind = "failed"
	ResultCanceled ResultKind = "canceled"
)

// Result is the outcome handed to a workflow's completion callback. Error is
// only set for failed runs.
type Result struct {
	Kind  ResultKind
	Error string
}
