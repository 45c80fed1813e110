package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/medahead/targeting-cli/internal/config"
	"github.com/medahead/targeting-cli/internal/fetcher"
	"github.com/medahead/targeting-cli/internal/model"
	"github.com/medahead/targeting-cli/internal/policy"
	"github.com/medahead/targeting-cli/internal/store"
)

// Pipeline orchestrates the triage stages: normalize, score, plan,
// aggregate. One run per (user_id, conference_id) key; a new run for
// the same key wholesale-replaces the previous run's snapshots.
type Pipeline struct {
	cfg    *config.Config
	store  store.Store
	oracle Oracle
	policy *policy.Policy
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, oracle Oracle, pol *policy.Policy) *Pipeline {
	if pol == nil {
		pol = policy.Default()
	}
	return &Pipeline{
		cfg:    cfg,
		store:  st,
		oracle: oracle,
		policy: pol,
	}
}

// Oracle exposes the configured scoring oracle, nil when scoring runs
// heuristic-only.
func (p *Pipeline) Oracle() Oracle {
	return p.oracle
}

// RunCSV parses a raw CSV upload and executes the pipeline. A stream
// that is not tabular data at all fails the run outright; no snapshots
// are committed for that key.
func (p *Pipeline) RunCSV(ctx context.Context, key model.RunKey, profile model.UserProfile, conference model.Conference, r io.Reader) (*model.RunResult, error) {
	rows, err := fetcher.ReadContactRows(ctx, r)
	if err != nil {
		run, createErr := p.store.CreateRun(ctx, key)
		if createErr != nil {
			return nil, eris.Wrap(createErr, "pipeline: create run")
		}
		result := &model.RunResult{Error: err.Error()}
		if saveErr := p.store.UpdateRunResult(ctx, run.ID, model.RunStatusFailed, result); saveErr != nil {
			zap.L().Warn("pipeline: failed to save failed run", zap.Error(saveErr))
		}
		return result, eris.Wrap(err, "pipeline: parse upload")
	}
	return p.Run(ctx, key, profile, conference, rows)
}

// Run executes the full triage pipeline over the raw upload rows.
// Individual-record failures (bad rows, oracle errors) never abort the
// run; only a structurally unparseable upload reaches the caller as an
// error, with the run marked failed and no snapshots committed.
func (p *Pipeline) Run(ctx context.Context, key model.RunKey, profile model.UserProfile, conference model.Conference, rows []model.RawContactRow) (*model.RunResult, error) {
	log := zap.L().With(
		zap.String("user_id", key.UserID),
		zap.String("conference_id", key.ConferenceID),
	)
	log.Info("pipeline: starting triage run", zap.Int("rows", len(rows)))

	run, err := p.store.CreateRun(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	result := &model.RunResult{}

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	trackStage := func(name string, fn func() (*model.StageResult, error)) error {
		stage, stageErr := p.store.CreateStage(ctx, run.ID, name)
		if stageErr != nil {
			log.Warn("pipeline: failed to create stage", zap.String("stage", name), zap.Error(stageErr))
		}

		start := time.Now()
		stageResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if stageResult == nil {
			stageResult = &model.StageResult{}
		}
		stageResult.Name = name
		stageResult.Duration = duration

		if fnErr != nil {
			stageResult.Status = model.StageStatusFailed
			stageResult.Error = fnErr.Error()
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			stageResult.Status = model.StageStatusComplete
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if stage != nil {
			_ = p.store.CompleteStage(ctx, stage.ID, stageResult)
		}
		result.Stages = append(result.Stages, *stageResult)
		return fnErr
	}

	fail := func(stageErr error) (*model.RunResult, error) {
		result.Error = stageErr.Error()
		if saveErr := p.store.UpdateRunResult(ctx, run.ID, model.RunStatusFailed, result); saveErr != nil {
			log.Warn("pipeline: failed to save failed run", zap.Error(saveErr))
		}
		return result, stageErr
	}

	// Stage 1: normalize. The only fatal condition in the whole run is
	// input that is not tabular data at all; row-level problems are
	// reported, not raised.
	setStatus(model.RunStatusNormalizing)
	var contacts []model.Contact
	err = trackStage("normalize", func() (*model.StageResult, error) {
		nr := Normalize(rows)
		contacts = nr.Accepted
		result.ContactsAccepted = len(nr.Accepted)
		result.ContactsRejected = len(nr.Rejected)

		if err := p.store.ReplaceContacts(ctx, key, contacts); err != nil {
			return nil, err
		}
		return &model.StageResult{
			Metadata: map[string]any{
				"accepted": len(nr.Accepted),
				"rejected": len(nr.Rejected),
			},
		}, nil
	})
	if err != nil {
		return fail(err)
	}

	// Stage 2: score.
	setStatus(model.RunStatusScoring)
	var scored []model.ScoredContact
	err = trackStage("score", func() (*model.StageResult, error) {
		scored = Score(ctx, contacts, profile, p.oracle, p.policy, ScoreOptions{
			Concurrency:         p.cfg.Pipeline.ScoreConcurrency,
			NoBatch:             p.cfg.Anthropic.NoBatch,
			SmallBatchThreshold: p.cfg.Anthropic.SmallBatchThreshold,
		})
		for _, sc := range scored {
			if sc.Priority == model.PriorityHigh {
				result.HighPriority++
			}
		}

		if err := p.store.ReplaceScored(ctx, key, scored); err != nil {
			return nil, err
		}
		return &model.StageResult{
			Metadata: map[string]any{
				"scored":        len(scored),
				"high_priority": result.HighPriority,
			},
		}, nil
	})
	if err != nil {
		return fail(err)
	}

	// Stage 3: plan.
	setStatus(model.RunStatusPlanning)
	var plan PlanResult
	err = trackStage("plan", func() (*model.StageResult, error) {
		plan = Plan(scored, profile, conference.Name, p.cfg.Pipeline.MaxMeetings, p.policy)
		result.Suggestions = len(plan.Suggestions)
		result.Warnings = append(result.Warnings, plan.Warnings...)

		if err := p.store.ReplacePlan(ctx, key, plan.Suggestions); err != nil {
			return nil, err
		}
		return &model.StageResult{
			Metadata: map[string]any{
				"suggestions": len(plan.Suggestions),
				"warnings":    plan.Warnings,
			},
		}, nil
	})
	if err != nil {
		return fail(err)
	}

	// Stage 4: aggregate.
	setStatus(model.RunStatusAggregating)
	_ = trackStage("aggregate", func() (*model.StageResult, error) {
		result.Stats = Aggregate(scored, plan.Suggestions)
		return &model.StageResult{
			Metadata: map[string]any{
				"total_contacts": result.Stats.TotalContacts,
			},
		}, nil
	})

	if err := p.store.UpdateRunResult(ctx, run.ID, model.RunStatusComplete, result); err != nil {
		log.Warn("pipeline: failed to save run result", zap.Error(err))
	}

	if usageOracle, ok := p.oracle.(*AnthropicOracle); ok {
		usageOracle.Usage().LogCost(p.cfg.Anthropic.Model, "score")
	}

	log.Info("pipeline: triage complete",
		zap.String("run_id", run.ID),
		zap.Int("accepted", result.ContactsAccepted),
		zap.Int("rejected", result.ContactsRejected),
		zap.Int("high_priority", result.HighPriority),
		zap.Int("suggestions", result.Suggestions),
	)

	return result, nil
}
