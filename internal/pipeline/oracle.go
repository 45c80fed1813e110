package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/medahead/targeting-cli/internal/config"
	"github.com/medahead/targeting-cli/internal/model"
	"github.com/medahead/targeting-cli/internal/resilience"
	"github.com/medahead/targeting-cli/pkg/anthropic"
)

// Evaluation is the scoring oracle's judgment for one contact.
type Evaluation struct {
	Score int
	Notes string
}

// Oracle judges a contact's relevance against the user profile. The
// pipeline treats it as a black box: any error or malformed response
// triggers a deterministic local fallback, never a run failure.
type Oracle interface {
	Evaluate(ctx context.Context, contact model.Contact, profile model.UserProfile) (Evaluation, error)
}

// BatchOracle scores many contacts in one round trip. Contacts missing
// from the result map fall back to heuristic scoring.
type BatchOracle interface {
	Oracle
	EvaluateBatch(ctx context.Context, contacts []model.Contact, profile model.UserProfile) (map[string]Evaluation, error)
}

const scoreSystemPrompt = `You evaluate how valuable a conference contact is for an attendee's networking goals. Consider the contact's title, company, and industry against the attendee's industry and goals. Respond with a valid JSON object: {"score": <integer 0-100>, "notes": "<one-sentence rationale>"}`

const scoreUserPrompt = `Attendee profile:
Industry: %s
Role: %s
Goals: %s

Contact:
Name: %s
Title: %s
Company: %s
Industry: %s`

// AnthropicOracle implements Oracle and BatchOracle on the Anthropic
// Messages API. Safe for concurrent use.
type AnthropicOracle struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
	retry  resilience.RetryConfig

	mu    sync.Mutex
	usage anthropic.TokenUsage
}

// NewAnthropicOracle creates a scoring oracle backed by the Anthropic API.
func NewAnthropicOracle(client anthropic.Client, cfg config.AnthropicConfig) *AnthropicOracle {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("anthropic", "score")
	return &AnthropicOracle{
		client: client,
		cfg:    cfg,
		retry:  retry,
	}
}

// Usage returns the tokens consumed so far.
func (o *AnthropicOracle) Usage() anthropic.TokenUsage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.usage
}

func (o *AnthropicOracle) addUsage(u anthropic.TokenUsage) {
	o.mu.Lock()
	o.usage.Add(u)
	o.mu.Unlock()
}

func (o *AnthropicOracle) request(contact model.Contact, profile model.UserProfile) anthropic.MessageRequest {
	prompt := fmt.Sprintf(scoreUserPrompt,
		profile.Industry, profile.Role, strings.Join(profile.Goals, "; "),
		contact.Name, contact.Title, contact.Company, contact.Industry,
	)
	return anthropic.MessageRequest{
		Model:     o.cfg.Model,
		MaxTokens: int64(o.cfg.MaxTokens),
		System:    anthropic.BuildCachedSystemBlocks(scoreSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	}
}

// Evaluate scores a single contact with a direct message call.
func (o *AnthropicOracle) Evaluate(ctx context.Context, contact model.Contact, profile model.UserProfile) (Evaluation, error) {
	resp, err := resilience.Do(ctx, o.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return o.client.CreateMessage(ctx, o.request(contact, profile))
	})
	if err != nil {
		return Evaluation{}, eris.Wrap(err, "oracle: evaluate contact")
	}
	o.addUsage(resp.Usage)
	return parseEvaluation(resp.Text())
}

// EvaluateBatch scores contacts through the Message Batches API. The
// returned map is keyed by contact ID; failed or expired items are
// simply absent.
func (o *AnthropicOracle) EvaluateBatch(ctx context.Context, contacts []model.Contact, profile model.UserProfile) (map[string]Evaluation, error) {
	items := make([]anthropic.BatchRequestItem, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, anthropic.BatchRequestItem{
			CustomID: c.ID,
			Params:   o.request(c, profile),
		})
	}

	batch, err := o.client.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		return nil, eris.Wrap(err, "oracle: create batch")
	}

	batch, err = anthropic.PollBatch(ctx, o.client, batch.ID)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: poll batch")
	}

	iter, err := o.client.GetBatchResults(ctx, batch.ID)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: get batch results")
	}
	results, err := anthropic.CollectBatchResults(iter)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: collect batch results")
	}

	evals := make(map[string]Evaluation, len(results))
	for id, resp := range results {
		if resp == nil {
			continue
		}
		o.addUsage(resp.Usage)
		ev, parseErr := parseEvaluation(resp.Text())
		if parseErr != nil {
			zap.L().Warn("oracle: unparseable batch result",
				zap.String("contact_id", id),
				zap.Error(parseErr),
			)
			continue
		}
		evals[id] = ev
	}
	return evals, nil
}

// parseEvaluation extracts a {score, notes} judgment from oracle output.
// Out-of-range scores are treated as malformed.
func parseEvaluation(text string) (Evaluation, error) {
	var result struct {
		Score int    `json:"score"`
		Notes string `json:"notes"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &result); err != nil {
		return Evaluation{}, eris.Wrap(err, "oracle: parse evaluation")
	}
	if result.Score < 0 || result.Score > 100 {
		return Evaluation{}, eris.Errorf("oracle: score %d out of range", result.Score)
	}
	return Evaluation{Score: result.Score, Notes: result.Notes}, nil
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
