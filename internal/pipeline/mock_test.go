package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/medahead/targeting-cli/internal/model"
	"github.com/medahead/targeting-cli/internal/store"
	"github.com/medahead/targeting-cli/pkg/anthropic"
	"github.com/medahead/targeting-cli/pkg/research"
)

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func (m *mockAnthropicClient) CreateBatch(ctx context.Context, req anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockAnthropicClient) GetBatch(ctx context.Context, batchID string) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockAnthropicClient) GetBatchResults(ctx context.Context, batchID string) (anthropic.BatchResultIterator, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(anthropic.BatchResultIterator), args.Error(1)
}

// --- Research Mock ---

type mockResearchClient struct {
	mock.Mock
}

func (m *mockResearchClient) ChatCompletion(ctx context.Context, req research.ChatCompletionRequest) (*research.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*research.ChatCompletionResponse), args.Error(1)
}

// --- Oracle stub ---

// stubOracle returns a fixed score per contact email, erroring for
// emails listed in fail.
type stubOracle struct {
	scores map[string]Evaluation
	fail   map[string]error
}

func (s *stubOracle) Evaluate(_ context.Context, c model.Contact, _ model.UserProfile) (Evaluation, error) {
	if err, ok := s.fail[c.Email]; ok {
		return Evaluation{}, err
	}
	if ev, ok := s.scores[c.Email]; ok {
		return ev, nil
	}
	return Evaluation{Score: 50}, nil
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) UpsertProfile(ctx context.Context, profile model.UserProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *mockStore) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProfile), args.Error(1)
}

func (m *mockStore) ReplaceContacts(ctx context.Context, key model.RunKey, contacts []model.Contact) error {
	args := m.Called(ctx, key, contacts)
	return args.Error(0)
}

func (m *mockStore) GetContacts(ctx context.Context, key model.RunKey) ([]model.Contact, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

func (m *mockStore) ReplaceScored(ctx context.Context, key model.RunKey, scored []model.ScoredContact) error {
	args := m.Called(ctx, key, scored)
	return args.Error(0)
}

func (m *mockStore) GetScored(ctx context.Context, key model.RunKey) ([]model.ScoredContact, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ScoredContact), args.Error(1)
}

func (m *mockStore) ReplacePlan(ctx context.Context, key model.RunKey, plan []model.MeetingSuggestion) error {
	args := m.Called(ctx, key, plan)
	return args.Error(0)
}

func (m *mockStore) GetPlan(ctx context.Context, key model.RunKey) ([]model.MeetingSuggestion, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MeetingSuggestion), args.Error(1)
}

func (m *mockStore) CreateRun(ctx context.Context, key model.RunKey) (*model.Run, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	args := m.Called(ctx, runID, status)
	return args.Error(0)
}

func (m *mockStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	args := m.Called(ctx, runID, status, result)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) LatestRun(ctx context.Context, key model.RunKey) (*model.Run, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) CreateStage(ctx context.Context, runID string, name string) (*model.RunStage, error) {
	args := m.Called(ctx, runID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RunStage), args.Error(1)
}

func (m *mockStore) CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error {
	args := m.Called(ctx, stageID, result)
	return args.Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Batch Result Iterator Mock ---

type mockBatchResultIterator struct {
	items []anthropic.BatchResultItem
	idx   int
}

func newMockBatchIterator(items []anthropic.BatchResultItem) *mockBatchResultIterator {
	return &mockBatchResultIterator{items: items, idx: -1}
}

func (m *mockBatchResultIterator) Next() bool {
	m.idx++
	return m.idx < len(m.items)
}

func (m *mockBatchResultIterator) Item() anthropic.BatchResultItem {
	return m.items[m.idx]
}

func (m *mockBatchResultIterator) Err() error {
	return nil
}

func (m *mockBatchResultIterator) Close() error {
	return nil
}

// --- Ensure interface compliance ---
var (
	_ anthropic.Client              = (*mockAnthropicClient)(nil)
	_ research.Client               = (*mockResearchClient)(nil)
	_ Oracle                        = (*stubOracle)(nil)
	_ store.Store                   = (*mockStore)(nil)
	_ anthropic.BatchResultIterator = (*mockBatchResultIterator)(nil)
)
