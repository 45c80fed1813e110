package pipeline

import (
	"fmt"

	"github.com/medahead/targeting-cli/internal/model"
)

// Aggregate folds the scored set and meeting plan into dashboard stats.
// Pure function; recomputed whenever either input changes. The ROI
// projection is descriptive text, not a verified metric.
func Aggregate(scored []model.ScoredContact, plan []model.MeetingSuggestion) model.DashboardStats {
	high := 0
	for _, sc := range scored {
		if sc.Priority == model.PriorityHigh {
			high++
		}
	}
	return model.DashboardStats{
		TotalContacts:        len(scored),
		HighPriorityContacts: high,
		MeetingSuggestions:   len(plan),
		ROIProjection:        fmt.Sprintf("%d%% increase in qualified leads", len(plan)*15),
	}
}
