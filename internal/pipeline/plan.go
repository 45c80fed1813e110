package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/medahead/targeting-cli/internal/model"
	"github.com/medahead/targeting-cli/internal/policy"
)

// PlanResult is a meeting plan plus any non-fatal conditions hit while
// building it.
type PlanResult struct {
	Suggestions []model.MeetingSuggestion
	Warnings    []string
}

// Plan selects the top maxMeetings contacts and assigns each a distinct
// schedule slot in policy order. Requesting more meetings than slots
// truncates the plan and reports capacity_exceeded instead of
// double-booking. Each contact appears at most once.
func Plan(scored []model.ScoredContact, profile model.UserProfile, conference string, maxMeetings int, pol *policy.Policy) PlanResult {
	var res PlanResult

	if maxMeetings <= 0 || len(scored) == 0 {
		res.Suggestions = []model.MeetingSuggestion{}
		return res
	}

	// Deterministic selection order: score descending, contact ID
	// ascending on ties.
	ranked := make([]model.ScoredContact, len(scored))
	copy(ranked, scored)
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].Score != ranked[b].Score {
			return ranked[a].Score > ranked[b].Score
		}
		return ranked[a].ID < ranked[b].ID
	})

	want := maxMeetings
	if want > len(ranked) {
		want = len(ranked)
	}
	if want > len(pol.Slots) {
		want = len(pol.Slots)
		res.Warnings = append(res.Warnings, model.WarningCapacityExceeded)
	}

	res.Suggestions = make([]model.MeetingSuggestion, 0, want)
	seen := make(map[string]struct{}, want)
	for _, sc := range ranked {
		if len(res.Suggestions) == want {
			break
		}
		if _, dup := seen[sc.ID]; dup {
			continue
		}
		seen[sc.ID] = struct{}{}

		slot := pol.Slots[len(res.Suggestions)]
		res.Suggestions = append(res.Suggestions, model.MeetingSuggestion{
			ID:                  uuid.NewString(),
			ContactID:           sc.ID,
			ContactName:         sc.Name,
			ContactCompany:      sc.Company,
			SuggestedTime:       slot,
			Reason:              meetingReason(sc, pol.Templates),
			PersonalizedMessage: outreachMessage(sc, profile, conference, slot, pol),
			Priority:            sc.Priority,
		})
	}

	return res
}

// meetingReason frames the meeting by priority: high-priority contacts
// get a strategic-partnership pitch, everyone else general networking.
// The oracle's rationale wins when present.
func meetingReason(sc model.ScoredContact, t policy.Templates) string {
	if strings.TrimSpace(sc.AINotes) != "" {
		return sc.AINotes
	}
	if sc.Priority == model.PriorityHigh {
		return fmt.Sprintf(t.HighPriorityReason, sc.Company, sc.Industry)
	}
	return fmt.Sprintf(t.GeneralReason, sc.Company, sc.Industry)
}

// outreachMessage picks the executive or general template by title
// keywords and fills it from the profile and slot.
func outreachMessage(sc model.ScoredContact, profile model.UserProfile, conference, slot string, pol *policy.Policy) string {
	tmpl := pol.Templates.GeneralMessage
	if isExecutiveTitle(sc.Title, pol.Fallback.ExecTitleKeywords) {
		tmpl = pol.Templates.ExecutiveMessage
	}
	return fmt.Sprintf(tmpl, sc.Name, profile.Company, sc.Company, profile.PrimaryGoal(), conference)
}

func isExecutiveTitle(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
