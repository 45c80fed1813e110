package model

import (
	"strings"

	"github.com/google/uuid"
)

// contactNamespace is the UUIDv5 namespace for deterministic contact IDs.
// Deriving IDs from the email keeps re-uploads of the same list stable.
var contactNamespace = uuid.MustParse("9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d")

// RawContactRow is a single uploaded row, keyed by lowercased header name.
type RawContactRow map[string]string

// Contact is a normalized attendee/vendor record eligible for scoring.
type Contact struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Company    string `json:"company"`
	Title      string `json:"title"`
	Industry   string `json:"industry"`
	Conference string `json:"conference,omitempty"`
}

// ContactID derives a deterministic contact ID from an email address.
func ContactID(email string) string {
	return uuid.NewSHA1(contactNamespace, []byte(strings.ToLower(strings.TrimSpace(email)))).String()
}

// RejectReason describes why a row was dropped during normalization.
type RejectReason string

const (
	RejectMissingField RejectReason = "missing_field"
	RejectInvalidEmail RejectReason = "invalid_email"
	RejectDuplicate    RejectReason = "duplicate"
)

// RejectedRow reports a dropped upload row back to the caller.
type RejectedRow struct {
	Index  int           `json:"index"`
	Reason RejectReason  `json:"reason"`
	Raw    RawContactRow `json:"raw,omitempty"`
}

// Priority is the discrete tier derived from a contact's score.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ScoredContact is a Contact plus the outcome of relevance scoring.
// Re-scoring produces a new value; ScoredContacts are never mutated.
type ScoredContact struct {
	Contact
	Score    int      `json:"score"`
	Priority Priority `json:"priority"`
	AINotes  string   `json:"ai_notes,omitempty"`
}

// MeetingSuggestion is one entry in a meeting plan. It references its
// ScoredContact by ID; the plan as a whole is replaced on regeneration.
type MeetingSuggestion struct {
	ID                  string   `json:"id"`
	ContactID           string   `json:"contact_id"`
	ContactName         string   `json:"contact_name"`
	ContactCompany      string   `json:"contact_company"`
	SuggestedTime       string   `json:"suggested_time"`
	Reason              string   `json:"reason"`
	PersonalizedMessage string   `json:"personalized_message"`
	Priority            Priority `json:"priority"`
}

// DashboardStats is recomputed on demand from the latest scored set and
// meeting plan. ROIProjection is descriptive text, not a verified metric.
type DashboardStats struct {
	TotalContacts        int    `json:"total_contacts"`
	HighPriorityContacts int    `json:"high_priority_contacts"`
	MeetingSuggestions   int    `json:"meeting_suggestions"`
	ROIProjection        string `json:"roi_projection"`
}

// UserProfile holds the attendee's own identity and goals. Goal order is
// meaningful: the first goal leads outreach messages and breaks ties.
type UserProfile struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Company           string   `json:"company"`
	Industry          string   `json:"industry"`
	Role              string   `json:"role"`
	Goals             []string `json:"goals"`
	TargetConferences []string `json:"target_conferences,omitempty"`
}

// PrimaryGoal returns the first stated goal, or a generic default.
func (p UserProfile) PrimaryGoal() string {
	if len(p.Goals) > 0 && strings.TrimSpace(p.Goals[0]) != "" {
		return p.Goals[0]
	}
	return "potential collaboration"
}

// Industries is the fixed set of industries a profile may declare.
var Industries = []string{
	"Healthcare Technology",
	"Digital Health",
	"Biotech",
	"Pharmaceutical",
	"Medical Devices",
	"Hospital Administration",
	"Healthcare Finance",
	"Health Insurance",
}

// ValidIndustry reports whether s is one of the known industries.
func ValidIndustry(s string) bool {
	for _, ind := range Industries {
		if strings.EqualFold(ind, s) {
			return true
		}
	}
	return false
}
