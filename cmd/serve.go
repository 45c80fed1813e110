package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/medahead/targeting-cli/internal/fetcher"
	"github.com/medahead/targeting-cli/internal/model"
	"github.com/medahead/targeting-cli/internal/pipeline"
	"github.com/medahead/targeting-cli/internal/policy"
	"github.com/medahead/targeting-cli/internal/store"
	"github.com/medahead/targeting-cli/pkg/research"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the triage HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		a := &api{
			store:    env.Store,
			pipeline: env.Pipeline,
			research: env.Research,
			policy:   env.Policy,
			scoreOpts: pipeline.ScoreOptions{
				Concurrency:         cfg.Pipeline.ScoreConcurrency,
				NoBatch:             cfg.Anthropic.NoBatch,
				SmallBatchThreshold: cfg.Anthropic.SmallBatchThreshold,
			},
			maxMeetings: cfg.Pipeline.MaxMeetings,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(a, cfg.Server.AllowedOrigins),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// api carries the dependencies the HTTP handlers need. The pipeline's
// oracle lives inside api.pipeline; scoring from handlers reuses it
// through the same stage functions the CLI run path uses.
type api struct {
	store       store.Store
	pipeline    *pipeline.Pipeline
	research    research.Client
	policy      *policy.Policy
	scoreOpts   pipeline.ScoreOptions
	maxMeetings int
}

func (a *api) pol() *policy.Policy {
	if a.policy == nil {
		return policy.Default()
	}
	return a.policy
}

// buildRouter assembles the API routes with CORS and request logging.
func buildRouter(a *api, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Post("/user/profile", a.handleUpsertProfile)
		r.Get("/user/profile/{id}", a.handleGetProfile)
		r.Get("/conferences", a.handleConferences)
		r.Post("/contacts/upload", a.handleUpload)
		r.Post("/contacts/analyze", a.handleAnalyze)
		r.Get("/contacts", a.handleGetContacts)
		r.Post("/meetings/suggest", a.handleSuggest)
		r.Get("/meetings/plan", a.handleGetPlan)
		r.Get("/dashboard/stats", a.handleStats)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// keyFromQuery reads the (user_id, conference_id) run key from query
// parameters, defaulting the user.
func keyFromQuery(r *http.Request) (model.RunKey, error) {
	key := model.RunKey{
		UserID:       r.URL.Query().Get("user_id"),
		ConferenceID: r.URL.Query().Get("conference_id"),
	}
	if key.UserID == "" {
		key.UserID = "default"
	}
	if key.ConferenceID == "" {
		return key, eris.New("conference_id is required")
	}
	return key, nil
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var profile model.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if profile.ID == "" {
		profile.ID = "default"
	}
	if profile.Industry != "" && !model.ValidIndustry(profile.Industry) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown industry %q", profile.Industry))
		return
	}

	if err := a.store.UpsertProfile(r.Context(), profile); err != nil {
		zap.L().Error("api: upsert profile failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *api) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := a.store.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		zap.L().Error("api: get profile failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *api) handleConferences(w http.ResponseWriter, r *http.Request) {
	industry := r.URL.Query().Get("industry")
	conferences := pipeline.RecommendConferences(r.Context(), a.research, industry)
	writeJSON(w, http.StatusOK, map[string]any{"conferences": conferences})
}

// handleUpload ingests a multipart contact list, normalizes it, and
// replaces the stored contacts for the run key. Derived scores and plans
// for that key are discarded with them.
func (a *api) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	key := model.RunKey{
		UserID:       r.FormValue("user_id"),
		ConferenceID: r.FormValue("conference_id"),
	}
	if key.UserID == "" {
		key.UserID = "default"
	}
	if key.ConferenceID == "" {
		writeError(w, http.StatusBadRequest, "conference_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	rows, err := readUploadRows(r.Context(), file, header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not parse upload: "+err.Error())
		return
	}

	res := pipeline.Normalize(rows)
	if err := a.store.ReplaceContacts(r.Context(), key, res.Accepted); err != nil {
		zap.L().Error("api: save contacts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save contacts")
		return
	}

	zap.L().Info("api: contacts uploaded",
		zap.String("user_id", key.UserID),
		zap.String("conference_id", key.ConferenceID),
		zap.Int("accepted", len(res.Accepted)),
		zap.Int("rejected", len(res.Rejected)),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": len(res.Accepted),
		"rejected": res.Rejected,
	})
}

// readUploadRows parses an uploaded contact list by extension. XLSX
// uploads go through a temp file since the parser needs random access.
func readUploadRows(ctx context.Context, file io.Reader, filename string) ([]model.RawContactRow, error) {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		tmp, err := os.CreateTemp("", "upload-*.xlsx")
		if err != nil {
			return nil, eris.Wrap(err, "create temp upload")
		}
		defer os.Remove(tmp.Name())
		defer tmp.Close()

		if _, err := io.Copy(tmp, file); err != nil {
			return nil, eris.Wrap(err, "buffer upload")
		}
		return fetcher.ReadContactRowsXLSX(tmp.Name(), fetcher.XLSXOptions{})
	}
	return fetcher.ReadContactRows(ctx, file)
}

// handleAnalyze scores the stored contacts for a run key. Scoring runs
// in the background; poll the dashboard or plan endpoints for results.
func (a *api) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string `json:"user_id"`
		ConferenceID string `json:"conference_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		req.UserID = "default"
	}
	if req.ConferenceID == "" {
		writeError(w, http.StatusBadRequest, "conference_id is required")
		return
	}
	key := model.RunKey{UserID: req.UserID, ConferenceID: req.ConferenceID}

	contacts, err := a.store.GetContacts(r.Context(), key)
	if err != nil {
		zap.L().Error("api: load contacts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load contacts")
		return
	}
	if len(contacts) == 0 {
		writeError(w, http.StatusNotFound, "no contacts uploaded for this conference")
		return
	}

	profile, err := loadProfileOrDefault(r.Context(), a.store, key.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	go func() {
		ctx := context.Background()
		scored := a.score(ctx, contacts, profile)
		if err := a.store.ReplaceScored(ctx, key, scored); err != nil {
			zap.L().Error("api: save scores failed",
				zap.String("conference_id", key.ConferenceID),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("api: analysis complete",
			zap.String("user_id", key.UserID),
			zap.String("conference_id", key.ConferenceID),
			zap.Int("scored", len(scored)),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "accepted",
		"contacts": len(contacts),
	})
}

// score runs the scoring stage with the pipeline's oracle when one is
// configured.
func (a *api) score(ctx context.Context, contacts []model.Contact, profile model.UserProfile) []model.ScoredContact {
	var oracle pipeline.Oracle
	if a.pipeline != nil {
		oracle = a.pipeline.Oracle()
	}
	return pipeline.Score(ctx, contacts, profile, oracle, a.pol(), a.scoreOpts)
}

func (a *api) handleGetContacts(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scored, err := a.store.GetScored(r.Context(), key)
	if err != nil {
		zap.L().Error("api: load scored contacts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load contacts")
		return
	}
	if scored == nil {
		scored = []model.ScoredContact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": scored})
}

// handleSuggest builds a meeting plan from the stored scores and
// replaces the previous plan for the key.
func (a *api) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string `json:"user_id"`
		ConferenceID string `json:"conference_id"`
		MaxMeetings  int    `json:"max_meetings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		req.UserID = "default"
	}
	if req.ConferenceID == "" {
		writeError(w, http.StatusBadRequest, "conference_id is required")
		return
	}
	key := model.RunKey{UserID: req.UserID, ConferenceID: req.ConferenceID}

	scored, err := a.store.GetScored(r.Context(), key)
	if err != nil {
		zap.L().Error("api: load scores failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load scores")
		return
	}
	if len(scored) == 0 {
		writeError(w, http.StatusNotFound, "no scored contacts for this conference, run analyze first")
		return
	}

	profile, err := loadProfileOrDefault(r.Context(), a.store, key.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	maxMeetings := req.MaxMeetings
	if maxMeetings <= 0 {
		maxMeetings = a.maxMeetings
	}
	if maxMeetings <= 0 {
		maxMeetings = 10
	}

	plan := pipeline.Plan(scored, profile, resolveConference(key.ConferenceID).Name, maxMeetings, a.pol())
	if err := a.store.ReplacePlan(r.Context(), key, plan.Suggestions); err != nil {
		zap.L().Error("api: save plan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save plan")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": plan.Suggestions,
		"warnings":    plan.Warnings,
	})
}

func (a *api) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := a.store.GetPlan(r.Context(), key)
	if err != nil {
		zap.L().Error("api: load plan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load plan")
		return
	}
	if plan == nil {
		plan = []model.MeetingSuggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": plan})
}

func (a *api) handleStats(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scored, err := a.store.GetScored(r.Context(), key)
	if err != nil {
		zap.L().Error("api: load scores failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load scores")
		return
	}
	plan, err := a.store.GetPlan(r.Context(), key)
	if err != nil {
		zap.L().Error("api: load plan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load plan")
		return
	}

	writeJSON(w, http.StatusOK, pipeline.Aggregate(scored, plan))
}

// loadProfileOrDefault mirrors loadProfile but without the CLI warning,
// since API callers may legitimately score before saving a profile.
func loadProfileOrDefault(ctx context.Context, st store.Store, userID string) (model.UserProfile, error) {
	p, err := st.GetProfile(ctx, userID)
	if err != nil {
		return model.UserProfile{}, err
	}
	if p == nil {
		return model.UserProfile{ID: userID}, nil
	}
	return *p, nil
}
