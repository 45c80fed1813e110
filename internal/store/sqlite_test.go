package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medahead/targeting-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "targeting.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testKey() model.RunKey {
	return model.RunKey{UserID: "user-1", ConferenceID: "himss-2025"}
}

func TestSQLiteProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	profile := model.UserProfile{
		ID:       "user-1",
		Name:     "Jordan",
		Company:  "MedAhead",
		Industry: "Digital Health",
		Goals:    []string{"finding integration partners"},
	}
	require.NoError(t, s.UpsertProfile(ctx, profile))

	got, err = s.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, profile, *got)

	profile.Company = "MedAhead Health"
	require.NoError(t, s.UpsertProfile(ctx, profile))

	got, err = s.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "MedAhead Health", got.Company)
}

func TestSQLiteSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := testKey()

	contacts := []model.Contact{
		{ID: "c1", Name: "Alice", Email: "alice@medcorp.com", Company: "MedCorp", Industry: "Digital Health"},
		{ID: "c2", Name: "Bob", Email: "bob@retail.com", Company: "RetailCo", Industry: "Unknown"},
	}
	require.NoError(t, s.ReplaceContacts(ctx, key, contacts))

	got, err := s.GetContacts(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, contacts, got)

	// Replacement is wholesale, not merge.
	require.NoError(t, s.ReplaceContacts(ctx, key, contacts[:1]))
	got, err = s.GetContacts(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, contacts[:1], got)

	// Other keys are untouched.
	other, err := s.GetContacts(ctx, model.RunKey{UserID: "user-2", ConferenceID: "bio-2025"})
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestSQLiteSnapshotCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := testKey()

	contacts := []model.Contact{{ID: "c1", Name: "Alice", Email: "alice@medcorp.com", Company: "MedCorp"}}
	scored := []model.ScoredContact{{Contact: contacts[0], Score: 90, Priority: model.PriorityHigh}}
	plan := []model.MeetingSuggestion{{ID: "m1", ContactID: "c1", SuggestedTime: "Day 1, 9:00 AM"}}

	require.NoError(t, s.ReplaceContacts(ctx, key, contacts))
	require.NoError(t, s.ReplaceScored(ctx, key, scored))
	require.NoError(t, s.ReplacePlan(ctx, key, plan))

	// Re-scoring discards the derived plan.
	require.NoError(t, s.ReplaceScored(ctx, key, scored))
	gotPlan, err := s.GetPlan(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, gotPlan)

	// A fresh upload discards both scored contacts and the plan.
	require.NoError(t, s.ReplacePlan(ctx, key, plan))
	require.NoError(t, s.ReplaceContacts(ctx, key, contacts))

	gotScored, err := s.GetScored(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, gotScored)
	gotPlan, err = s.GetPlan(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, gotPlan)
}

func TestSQLiteRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := testKey()

	run, err := s.CreateRun(ctx, key)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusScoring))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusScoring, got.Status)
	assert.Nil(t, got.Result)

	result := &model.RunResult{
		ContactsAccepted: 2,
		ContactsRejected: 1,
		HighPriority:     1,
		Suggestions:      2,
		Stats:            model.DashboardStats{TotalContacts: 2, ROIProjection: "30% increase in qualified leads"},
	}
	require.NoError(t, s.UpdateRunResult(ctx, run.ID, model.RunStatusComplete, result))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, *result, *got.Result)
}

func TestSQLiteRunFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testKey())
	require.NoError(t, err)

	result := &model.RunResult{Error: "parse upload: bad quoting"}
	require.NoError(t, s.UpdateRunResult(ctx, run.ID, model.RunStatusFailed, result))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "parse upload: bad quoting", got.Result.Error)
}

func TestSQLiteRunNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpdateRunStatus(ctx, "missing", model.RunStatusComplete)
	assert.Error(t, err)

	_, err = s.GetRun(ctx, "missing")
	assert.Error(t, err)
}

func TestSQLiteLatestRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := testKey()

	got, err := s.LatestRun(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	first, err := s.CreateRun(ctx, key)
	require.NoError(t, err)
	second, err := s.CreateRun(ctx, key)
	require.NoError(t, err)

	got, err = s.LatestRun(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	// created_at ties resolve arbitrarily; either of the two runs is the
	// latest, never a run from another key.
	assert.Contains(t, []string{first.ID, second.ID}, got.ID)
}

func TestSQLiteListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	keyA := model.RunKey{UserID: "user-1", ConferenceID: "himss-2025"}
	keyB := model.RunKey{UserID: "user-2", ConferenceID: "bio-2025"}

	runA, err := s.CreateRun(ctx, keyA)
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, keyB)
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, runA.ID, model.RunStatusComplete))

	runs, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = s.ListRuns(ctx, RunFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runA.ID, runs[0].ID)

	runs, err = s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runA.ID, runs[0].ID)

	runs, err = s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLiteStages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, testKey())
	require.NoError(t, err)

	stage, err := s.CreateStage(ctx, run.ID, "normalize")
	require.NoError(t, err)
	assert.NotEmpty(t, stage.ID)
	assert.Equal(t, model.StageStatusRunning, stage.Status)

	result := &model.StageResult{
		Name:     "normalize",
		Status:   model.StageStatusComplete,
		Duration: 12,
	}
	require.NoError(t, s.CompleteStage(ctx, stage.ID, result))

	err = s.CompleteStage(ctx, "missing", result)
	assert.Error(t, err)
}
