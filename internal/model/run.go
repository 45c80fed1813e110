package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusNormalizing RunStatus = "normalizing"
	RunStatusScoring     RunStatus = "scoring"
	RunStatusPlanning    RunStatus = "planning"
	RunStatusAggregating RunStatus = "aggregating"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// RunKey identifies the owner of a pipeline run. A new run for the same
// key wholesale-replaces all snapshots the previous run produced.
type RunKey struct {
	UserID       string `json:"user_id"`
	ConferenceID string `json:"conference_id"`
}

// Run records one execution of the triage pipeline.
type Run struct {
	ID        string     `json:"id"`
	Key       RunKey     `json:"key"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	ContactsAccepted int            `json:"contacts_accepted"`
	ContactsRejected int            `json:"contacts_rejected"`
	HighPriority     int            `json:"high_priority"`
	Suggestions      int            `json:"suggestions"`
	Stats            DashboardStats `json:"stats"`
	Stages           []StageResult  `json:"stages"`
	Warnings         []string       `json:"warnings,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// StageStatus represents the current state of a pipeline stage.
type StageStatus string

const (
	StageStatusRunning  StageStatus = "running"
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
)

// RunStage is the persisted record of a stage within a run.
type RunStage struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    StageStatus  `json:"status"`
	Result    *StageResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// StageResult holds the outcome of a pipeline stage.
type StageResult struct {
	Name     string         `json:"name"`
	Status   StageStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// WarningCapacityExceeded is reported when more qualified contacts exist
// than schedulable slots; the plan is truncated, not failed.
const WarningCapacityExceeded = "capacity_exceeded"
