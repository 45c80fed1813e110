package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medahead/targeting-cli/internal/model"
	"github.com/medahead/targeting-cli/internal/policy"
)

func scoredContact(name, email string, score int, pri model.Priority) model.ScoredContact {
	return model.ScoredContact{
		Contact:  contact(name, email, name+" Corp", "", "Digital Health"),
		Score:    score,
		Priority: pri,
	}
}

func TestPlan_SelectsTopByScore(t *testing.T) {
	scored := []model.ScoredContact{
		scoredContact("Low", "low@x.com", 20, model.PriorityLow),
		scoredContact("High", "high@x.com", 95, model.PriorityHigh),
		scoredContact("Mid", "mid@x.com", 60, model.PriorityMedium),
	}

	res := Plan(scored, testProfile(), "HIMSS 2025", 2, policy.Default())

	require.Len(t, res.Suggestions, 2)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "High", res.Suggestions[0].ContactName)
	assert.Equal(t, "Mid", res.Suggestions[1].ContactName)
}

func TestPlan_SlotsAreUnique(t *testing.T) {
	pol := policy.Default()
	scored := make([]model.ScoredContact, 0, 20)
	for i := 0; i < 20; i++ {
		email := fmt.Sprintf("c%02d@x.com", i)
		scored = append(scored, scoredContact(email, email, 50, model.PriorityMedium))
	}

	res := Plan(scored, testProfile(), "HIMSS 2025", len(pol.Slots), pol)

	require.Len(t, res.Suggestions, len(pol.Slots))
	seen := make(map[string]struct{})
	for i, s := range res.Suggestions {
		_, dup := seen[s.SuggestedTime]
		assert.False(t, dup, "slot %q assigned twice", s.SuggestedTime)
		seen[s.SuggestedTime] = struct{}{}
		assert.Equal(t, pol.Slots[i], s.SuggestedTime)
	}
}

func TestPlan_CapacityExceeded(t *testing.T) {
	pol := policy.Default()
	scored := make([]model.ScoredContact, 0, 20)
	for i := 0; i < 20; i++ {
		email := fmt.Sprintf("c%02d@x.com", i)
		scored = append(scored, scoredContact(email, email, 50, model.PriorityMedium))
	}

	res := Plan(scored, testProfile(), "HIMSS 2025", 20, pol)

	assert.Len(t, res.Suggestions, len(pol.Slots))
	assert.Contains(t, res.Warnings, model.WarningCapacityExceeded)
}

func TestPlan_FewerContactsThanRequested(t *testing.T) {
	scored := []model.ScoredContact{
		scoredContact("Only", "only@x.com", 80, model.PriorityHigh),
	}

	res := Plan(scored, testProfile(), "HIMSS 2025", 5, policy.Default())

	assert.Len(t, res.Suggestions, 1)
	assert.Empty(t, res.Warnings)
}

func TestPlan_TieBreakByContactID(t *testing.T) {
	a := scoredContact("A", "a@x.com", 70, model.PriorityMedium)
	b := scoredContact("B", "b@x.com", 70, model.PriorityMedium)

	// Same scores regardless of input order: selection order follows
	// contact ID, so both orderings produce the same plan.
	res1 := Plan([]model.ScoredContact{a, b}, testProfile(), "HIMSS 2025", 1, policy.Default())
	res2 := Plan([]model.ScoredContact{b, a}, testProfile(), "HIMSS 2025", 1, policy.Default())

	require.Len(t, res1.Suggestions, 1)
	require.Len(t, res2.Suggestions, 1)
	assert.Equal(t, res1.Suggestions[0].ContactID, res2.Suggestions[0].ContactID)
}

func TestPlan_EmptyAndZeroInputs(t *testing.T) {
	res := Plan(nil, testProfile(), "HIMSS 2025", 5, policy.Default())
	assert.NotNil(t, res.Suggestions)
	assert.Empty(t, res.Suggestions)

	res = Plan([]model.ScoredContact{scoredContact("A", "a@x.com", 80, model.PriorityHigh)},
		testProfile(), "HIMSS 2025", 0, policy.Default())
	assert.Empty(t, res.Suggestions)
}

func TestMeetingReason(t *testing.T) {
	pol := policy.Default()

	high := scoredContact("A", "a@x.com", 90, model.PriorityHigh)
	assert.Equal(t,
		"Strategic partnership opportunity with A Corp in Digital Health",
		meetingReason(high, pol.Templates))

	low := scoredContact("B", "b@x.com", 40, model.PriorityLow)
	assert.Equal(t,
		"Networking opportunity with B Corp in Digital Health",
		meetingReason(low, pol.Templates))

	high.AINotes = "shared interest in remote monitoring"
	assert.Equal(t, "shared interest in remote monitoring", meetingReason(high, pol.Templates))
}

func TestOutreachMessage_TemplateSelection(t *testing.T) {
	pol := policy.Default()
	profile := testProfile()

	exec := scoredContact("Dana", "dana@x.com", 90, model.PriorityHigh)
	exec.Title = "VP of Partnerships"
	msg := outreachMessage(exec, profile, "HIMSS 2025", pol.Slots[0], pol)
	assert.Contains(t, msg, "I'd value 30 minutes of your time")
	assert.Contains(t, msg, "Dana")
	assert.Contains(t, msg, "MedAhead")
	assert.Contains(t, msg, "finding integration partners")
	assert.Contains(t, msg, "HIMSS 2025")

	general := scoredContact("Sam", "sam@x.com", 55, model.PriorityMedium)
	general.Title = "Product Manager"
	msg = outreachMessage(general, profile, "HIMSS 2025", pol.Slots[0], pol)
	assert.Contains(t, msg, "Available for coffee at HIMSS 2025?")
}

func TestPlan_MessagesAndReasonsPopulated(t *testing.T) {
	scored := []model.ScoredContact{
		scoredContact("High", "high@x.com", 95, model.PriorityHigh),
	}

	res := Plan(scored, testProfile(), "HIMSS 2025", 1, policy.Default())

	require.Len(t, res.Suggestions, 1)
	s := res.Suggestions[0]
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, scored[0].ID, s.ContactID)
	assert.NotEmpty(t, s.Reason)
	assert.NotEmpty(t, s.PersonalizedMessage)
	assert.Equal(t, model.PriorityHigh, s.Priority)
}
