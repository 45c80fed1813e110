package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/medahead/targeting-cli/internal/model"
	"github.com/medahead/targeting-cli/pkg/research"
)

const conferenceRankPrompt = `An attendee works in this industry: %s

Available conferences:
%s

Rank these conferences by relevance to someone in that industry. Respond with a JSON object mapping conference ID to a relevance score from 0 to 100, for example: {"himss-2025": 90, "bio-2025": 60}`

// RecommendConferences scores the catalog for an industry, most relevant
// first. The research oracle does the ranking; if it is unavailable or
// returns garbage, a keyword heuristic fills in the scores instead.
// An empty industry returns the catalog unscored.
func RecommendConferences(ctx context.Context, client research.Client, industry string) []model.Conference {
	conferences := model.BuiltinConferences()
	if strings.TrimSpace(industry) == "" {
		return conferences
	}

	scores := rankByOracle(ctx, client, conferences, industry)
	if scores == nil {
		scores = rankByKeyword(conferences, industry)
	}

	for i := range conferences {
		conferences[i].RelevanceScore = scores[conferences[i].ID]
	}
	sort.SliceStable(conferences, func(a, b int) bool {
		return conferences[a].RelevanceScore > conferences[b].RelevanceScore
	})
	return conferences
}

func rankByOracle(ctx context.Context, client research.Client, conferences []model.Conference, industry string) map[string]int {
	if client == nil {
		return nil
	}

	var catalog strings.Builder
	for _, c := range conferences {
		fmt.Fprintf(&catalog, "- %s: %s (%s)\n", c.ID, c.Name, c.Focus)
	}

	resp, err := client.ChatCompletion(ctx, research.ChatCompletionRequest{
		Messages: []research.Message{
			{Role: "system", Content: "You are a healthcare conference expert. Recommend the most relevant conferences based on the attendee's industry."},
			{Role: "user", Content: fmt.Sprintf(conferenceRankPrompt, industry, catalog.String())},
		},
	})
	if err != nil {
		zap.L().Warn("research: conference ranking failed",
			zap.String("industry", industry),
			zap.Error(err),
		)
		return nil
	}

	var scores map[string]int
	if err := json.Unmarshal([]byte(cleanJSON(resp.Content())), &scores); err != nil {
		zap.L().Warn("research: unparseable ranking response", zap.Error(err))
		return nil
	}
	if len(scores) == 0 {
		return nil
	}
	for id, s := range scores {
		if s < 0 || s > 100 {
			zap.L().Warn("research: ranking score out of range",
				zap.String("conference_id", id),
				zap.Int("score", s),
			)
			return nil
		}
	}
	return scores
}

// rankByKeyword reproduces the deterministic fallback ranking: a best-fit
// conference per industry family, middling scores for the rest.
func rankByKeyword(conferences []model.Conference, industry string) map[string]int {
	lower := strings.ToLower(industry)

	bestID, bestScore, restScore := "", 0, 75
	switch {
	case containsAny(lower, "technology", "it", "digital"):
		bestID, bestScore, restScore = "himss-2025", 90, 70
	case containsAny(lower, "pharma", "biotech", "pharmaceutical"):
		bestID, bestScore, restScore = "bio-2025", 90, 60
	case containsAny(lower, "finance", "investment"):
		bestID, bestScore, restScore = "jp-morgan-2025", 90, 50
	}

	scores := make(map[string]int, len(conferences))
	for _, c := range conferences {
		if c.ID == bestID {
			scores[c.ID] = bestScore
		} else {
			scores[c.ID] = restScore
		}
	}
	return scores
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
