// Package store persists profiles, triage snapshots, and run records.
// Two backends are provided: SQLite for single-user CLI use and
// Postgres for the served API.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medahead/targeting-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	UserID       string          `json:"user_id,omitempty"`
	ConferenceID string          `json:"conference_id,omitempty"`
	Status       model.RunStatus `json:"status,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the triage pipeline.
// Snapshot writes are wholesale: replacing contacts for a key also
// discards that key's scored set and meeting plan, so downstream reads
// never mix data from different uploads.
type Store interface {
	// Profiles
	UpsertProfile(ctx context.Context, profile model.UserProfile) error
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)

	// Snapshots, keyed by (user_id, conference_id)
	ReplaceContacts(ctx context.Context, key model.RunKey, contacts []model.Contact) error
	GetContacts(ctx context.Context, key model.RunKey) ([]model.Contact, error)
	ReplaceScored(ctx context.Context, key model.RunKey, scored []model.ScoredContact) error
	GetScored(ctx context.Context, key model.RunKey) ([]model.ScoredContact, error)
	ReplacePlan(ctx context.Context, key model.RunKey, plan []model.MeetingSuggestion) error
	GetPlan(ctx context.Context, key model.RunKey) ([]model.MeetingSuggestion, error)

	// Runs
	CreateRun(ctx context.Context, key model.RunKey) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	LatestRun(ctx context.Context, key model.RunKey) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Stages
	CreateStage(ctx context.Context, runID string, name string) (*model.RunStage, error)
	CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Pool is the subset of *pgxpool.Pool the Postgres store needs. Keeping
// it an interface lets tests substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Snapshot kinds.
const (
	snapshotContacts = "contacts"
	snapshotScored   = "scored"
	snapshotPlan     = "plan"
)
