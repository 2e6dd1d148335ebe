package domain

import "time"

// StepStatus is the lifecycle state of one node within a run.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// IsTerminal reports whether the status can no longer change.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusSucceeded || s == StepStatusFailed || s == StepStatusSkipped
}

// SkippedByCancellation is the SkippedBy value of nodes that never started
// because the run was cancelled.
const SkippedByCancellation = "cancelled"

// ErrorDetail describes why a node failed.
type ErrorDetail struct {
	Kind    StepErrorKind `json:"kind"`
	Message string        `json:"message"`
}

// StepResult is the outcome of one node. Error is set iff Status is failed.
type StepResult struct {
	NodeID     string                 `json:"node_id"`
	Type       string                 `json:"type"`
	Status     StepStatus             `json:"status"`
	Output     map[string]interface{} `json:"output,omitempty"`
	Logs       []string               `json:"logs,omitempty"`
	Error      *ErrorDetail           `json:"error,omitempty"`
	SkippedBy  string                 `json:"skipped_by,omitempty"`
	StartedAt  *time.Time             `json:"started_at,omitempty"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
}

// RunReport is the aggregated result of one execution of a graph.
type RunReport struct {
	RunID      string                 `json:"run_id,omitempty"`
	Success    bool                   `json:"success"`
	Message    string                 `json:"message"`
	Logs       []string               `json:"logs"`
	Results    map[string]*StepResult `json:"results"`
	Stages     []Stage                `json:"stages"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	DurationMs int64                  `json:"duration_ms"`
}

// Counts returns how many nodes ended in each status.
func (r *RunReport) Counts() map[StepStatus]int {
	counts := make(map[StepStatus]int)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// RunStatus is the lifecycle state of a run record.
type RunStatus string

const (
	RunStatusSubmitted RunStatus = "submitted"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the run has finished.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// RunRecord is what state storage keeps for a run.
type RunRecord struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	Graph       *Graph     `json:"graph"`
	Report      *RunReport `json:"report,omitempty"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
