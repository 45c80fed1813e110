package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/medahead/targeting-cli/internal/model"
	"github.com/medahead/targeting-cli/internal/pipeline"
	"github.com/medahead/targeting-cli/internal/policy"
	"github.com/medahead/targeting-cli/internal/store"
	anthropicpkg "github.com/medahead/targeting-cli/pkg/anthropic"
	"github.com/medahead/targeting-cli/pkg/research"
)

// pipelineEnv holds the initialized store, clients, and pipeline shared
// by the run/serve/export commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Policy   *policy.Policy
	Research research.Client // nil when not configured
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "targeting.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func loadPolicy() (*policy.Policy, error) {
	if cfg.Pipeline.PolicyPath == "" {
		return policy.Default(), nil
	}
	return policy.Load(cfg.Pipeline.PolicyPath)
}

func initResearch() research.Client {
	if cfg.Research.Key == "" {
		zap.L().Debug("TARGETING_RESEARCH_KEY not set, conference ranking uses keyword fallback")
		return nil
	}
	opts := []research.Option{research.WithModel(cfg.Research.Model)}
	if cfg.Research.BaseURL != "" {
		opts = append(opts, research.WithBaseURL(cfg.Research.BaseURL))
	}
	return research.NewClient(cfg.Research.Key, opts...)
}

// initPipeline sets up the store, the scoring oracle, the policy, and the
// pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	pol, err := loadPolicy()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var oracle pipeline.Oracle
	if cfg.Anthropic.Key != "" {
		oracle = pipeline.NewAnthropicOracle(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic)
	} else {
		zap.L().Warn("TARGETING_ANTHROPIC_KEY not set, scoring uses the heuristic fallback only")
	}

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, st, oracle, pol),
		Policy:   pol,
		Research: initResearch(),
	}, nil
}

// resolveConference matches an ID against the built-in catalog, falling
// back to a bare conference so unknown events still run.
func resolveConference(id string) model.Conference {
	for _, c := range model.BuiltinConferences() {
		if strings.EqualFold(c.ID, id) {
			return c
		}
	}
	return model.Conference{ID: id, Name: id}
}

// loadProfile fetches the stored profile for a user, or a minimal stand-in
// when none exists yet.
func loadProfile(ctx context.Context, st store.Store, userID string) (model.UserProfile, error) {
	p, err := st.GetProfile(ctx, userID)
	if err != nil {
		return model.UserProfile{}, eris.Wrap(err, "load profile")
	}
	if p == nil {
		zap.L().Warn("no stored profile, scoring without attendee context",
			zap.String("user_id", userID),
		)
		return model.UserProfile{ID: userID}, nil
	}
	return *p, nil
}
