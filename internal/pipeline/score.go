package pipeline

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/medahead/targeting-cli/internal/model"
	"github.com/medahead/targeting-cli/internal/policy"
)

// ScoreOptions controls oracle fan-out.
type ScoreOptions struct {
	// Concurrency bounds direct oracle calls in flight. Default: 5.
	Concurrency int

	// NoBatch forces direct calls even for large contact sets.
	NoBatch bool

	// SmallBatchThreshold is the contact count at or below which direct
	// calls are used instead of the batch API. Default: 8.
	SmallBatchThreshold int
}

func (o ScoreOptions) withDefaults() ScoreOptions {
	if o.Concurrency <= 0 {
		o.Concurrency = 5
	}
	if o.SmallBatchThreshold <= 0 {
		o.SmallBatchThreshold = 8
	}
	return o
}

// Score evaluates every contact against the profile and returns the set
// ordered by score descending, ties keeping input order. Oracle failure
// on one contact never discards results for others: the failing contact
// gets a deterministic heuristic score instead.
func Score(ctx context.Context, contacts []model.Contact, profile model.UserProfile, oracle Oracle, pol *policy.Policy, opts ScoreOptions) []model.ScoredContact {
	opts = opts.withDefaults()

	if len(contacts) == 0 {
		return []model.ScoredContact{}
	}

	evals := make([]Evaluation, len(contacts))
	resolved := make([]bool, len(contacts))

	// Large uploads go through the batch API when the oracle supports it;
	// contacts the batch fails to cover fall through to the heuristic.
	// A nil oracle means heuristic-only scoring.
	if bo, ok := oracle.(BatchOracle); ok && !opts.NoBatch && len(contacts) > opts.SmallBatchThreshold {
		batchEvals, err := bo.EvaluateBatch(ctx, contacts, profile)
		if err != nil {
			zap.L().Warn("score: batch evaluation failed, falling back to heuristic",
				zap.Int("contacts", len(contacts)),
				zap.Error(err),
			)
		}
		for i, c := range contacts {
			if ev, found := batchEvals[c.ID]; found {
				evals[i] = ev
				resolved[i] = true
			}
		}
	} else if oracle != nil {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for i, c := range contacts {
			g.Go(func() error {
				ev, err := oracle.Evaluate(gCtx, c, profile)
				if err != nil {
					zap.L().Warn("score: oracle failed for contact",
						zap.String("contact_id", c.ID),
						zap.String("company", c.Company),
						zap.Error(err),
					)
					return nil
				}
				evals[i] = ev
				resolved[i] = true
				return nil
			})
		}
		_ = g.Wait()
	}

	scored := make([]model.ScoredContact, len(contacts))
	fallbacks := 0
	for i, c := range contacts {
		ev := evals[i]
		if resolved[i] && (ev.Score < 0 || ev.Score > 100) {
			zap.L().Warn("score: oracle score out of range, falling back",
				zap.String("contact_id", c.ID),
				zap.Int("score", ev.Score),
			)
			resolved[i] = false
		}
		if !resolved[i] {
			ev = Evaluation{Score: fallbackScore(c, profile, pol.Fallback)}
			fallbacks++
		}
		scored[i] = model.ScoredContact{
			Contact:  c,
			Score:    ev.Score,
			Priority: priorityFor(ev.Score, pol.Thresholds),
			AINotes:  ev.Notes,
		}
	}

	if fallbacks > 0 {
		zap.L().Info("score: applied heuristic fallback",
			zap.Int("contacts", len(contacts)),
			zap.Int("fallbacks", fallbacks),
		)
	}

	// Stable: ties keep input order.
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	return scored
}

// priorityFor maps a score onto a priority tier.
func priorityFor(score int, t policy.Thresholds) model.Priority {
	switch {
	case score >= t.High:
		return model.PriorityHigh
	case score >= t.Medium:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// fallbackScore is the deterministic heuristic used when the oracle
// cannot judge a contact: industry match sets the base, executive
// titles and provider organizations add bonuses, capped at 100.
func fallbackScore(c model.Contact, profile model.UserProfile, f policy.Fallback) int {
	score := f.Base
	if strings.EqualFold(c.Industry, profile.Industry) {
		score = f.IndustryMatch
	}

	title := strings.ToLower(c.Title)
	for _, kw := range f.ExecTitleKeywords {
		if strings.Contains(title, kw) {
			score += f.ExecTitleBonus
			break
		}
	}

	company := strings.ToLower(c.Company)
	for _, kw := range f.ProviderOrgKeywords {
		if strings.Contains(company, kw) {
			score += f.ProviderOrgBonus
			break
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}
