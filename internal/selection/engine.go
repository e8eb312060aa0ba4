package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"NewsAnalyst/internal/apperr"
	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/ports"
	"NewsAnalyst/internal/sources"
)

// Config bounds the engine's windows and inference calls.
type Config struct {
	CandidateWindow  int
	ShortlistSize    int
	BrowseSize       int
	BrowseWindow     int
	USShare          float64
	MaxArticleChars  int
	FallbackLimit    int
	ShortlistTimeout time.Duration
	ComposeTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.CandidateWindow <= 0 {
		c.CandidateWindow = 60
	}
	if c.ShortlistSize <= 0 {
		c.ShortlistSize = 10
	}
	if c.BrowseSize <= 0 {
		c.BrowseSize = 9
	}
	if c.BrowseWindow <= 0 {
		c.BrowseWindow = 100
	}
	if c.USShare <= 0 {
		c.USShare = 0.7
	}
	if c.FallbackLimit <= 0 || c.FallbackLimit > c.ShortlistSize {
		c.FallbackLimit = c.ShortlistSize
	}
	return c
}

// Engine picks stored articles for a question and composes a cited answer.
type Engine struct {
	store     ports.ArticleStore
	completer ports.Completer
	registry  *sources.Registry
	fallback  *Fallback
	cfg       Config
	now       func() time.Time
	logger    *slog.Logger
}

// NewEngine wires the engine. A nil completer sends every question
// straight to keyword search and fails composition.
func NewEngine(store ports.ArticleStore, completer ports.Completer, registry *sources.Registry, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		completer: completer,
		registry:  registry,
		fallback:  NewFallback(store),
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		logger:    logger,
	}
}

// SetClock replaces the time source used for the date given to the model.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Fallback exposes the keyword search.
func (e *Engine) Fallback() *Fallback {
	return e.fallback
}

// AnswerQuestion runs the shortlist, falls back to keyword search when the
// shortlist is unusable, and composes the answer.
func (e *Engine) AnswerQuestion(ctx context.Context, question string) (domain.SelectionResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.SelectionResult{}, apperr.NewValidation("question is required")
	}

	usFocused := IsUSFocused(question)
	result := domain.SelectionResult{USFocused: usFocused}

	articles, err := e.shortlist(ctx, question, usFocused)
	if err != nil {
		var sf *apperr.ShortlistFailure
		if !errors.As(err, &sf) {
			return result, err
		}
		e.logger.Warn("shortlist unusable, using keyword search", "reason", sf.Reason, "error", sf.Err, "fallback", true)

		articles, err = e.fallback.KeywordSelect(ctx, question, e.cfg.FallbackLimit)
		if err != nil {
			return result, err
		}
		result.FallbackUsed = true
	}

	if len(articles) == 0 {
		result.Outcome = domain.OutcomeNoRelevant
		result.ArticleIDs = []int64{}
		result.CitedSources = []string{}
		return result, nil
	}

	return e.compose(ctx, question, articles, result)
}

// Compose answers question from the given article ids, in their order.
// Used for confirmed manual selections; an empty question asks for an
// overview of the articles.
func (e *Engine) Compose(ctx context.Context, question string, ids []int64) (domain.SelectionResult, error) {
	result := domain.SelectionResult{
		USFocused:    IsUSFocused(question),
		ArticleIDs:   []int64{},
		CitedSources: []string{},
	}
	if len(ids) == 0 {
		result.Outcome = domain.OutcomeNoneSelected
		return result, nil
	}

	articles, err := e.store.GetByIDs(ctx, ids)
	if err != nil {
		return result, err
	}
	if len(articles) == 0 {
		result.Outcome = domain.OutcomeNoRelevant
		return result, nil
	}

	return e.compose(ctx, question, articles, result)
}

// SelectForBrowsing lists the newest articles for the pick flow. A source
// is matched exactly first, then as a substring of recent sources.
func (e *Engine) SelectForBrowsing(ctx context.Context, source string) ([]domain.Article, error) {
	source = strings.TrimSpace(source)
	articles, err := e.store.GetRecent(ctx, e.cfg.BrowseSize, source)
	if err != nil || source == "" || len(articles) > 0 {
		return articles, err
	}

	recent, err := e.store.GetRecent(ctx, e.cfg.BrowseWindow, "")
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(source)
	var matched []domain.Article
	for _, a := range recent {
		if strings.Contains(strings.ToLower(a.Source), needle) {
			matched = append(matched, a)
			if len(matched) == e.cfg.BrowseSize {
				break
			}
		}
	}
	return matched, nil
}

// shortlist returns the validated articles picked by the model. Store
// errors come back as is; everything else is a ShortlistFailure.
func (e *Engine) shortlist(ctx context.Context, question string, usFocused bool) ([]domain.Article, error) {
	recent, err := e.store.GetRecent(ctx, e.cfg.CandidateWindow, "")
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, &apperr.ShortlistFailure{Reason: "no stored articles"}
	}
	if e.completer == nil {
		return nil, &apperr.ShortlistFailure{Reason: "no inference client"}
	}

	byID := make(map[int64]domain.Article, len(recent))
	lines := make([]candidateLine, 0, len(recent))
	for _, a := range recent {
		byID[a.ID] = a
		lines = append(lines, candidateLine{
			id:     a.ID,
			region: e.registry.Tag(a.Source),
			source: a.Source,
			title:  a.Title,
		})
	}

	callCtx, cancel := e.inferenceContext(ctx, e.cfg.ShortlistTimeout)
	defer cancel()

	raw, err := e.completer.Complete(callCtx, ports.CompletionRequest{
		System:      shortlistSystemPrompt,
		Prompt:      buildShortlistPrompt(question, usFocused, e.cfg.ShortlistSize, e.cfg.USShare, lines),
		Shape:       shortlistShape,
		MaxTokens:   300,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, &apperr.ShortlistFailure{Reason: "inference failed", Err: err}
	}

	ids, err := parseArticleIDs(raw)
	if err != nil {
		return nil, &apperr.ShortlistFailure{Reason: "malformed response", Err: err}
	}

	ids = e.validateIDs(ids, byID, usFocused)
	if len(ids) == 0 {
		return nil, &apperr.ShortlistFailure{Reason: "no valid ids"}
	}

	// full text comes from the store, the window only carried what the prompt needed
	articles, err := e.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return articles, nil
}

// validateIDs drops ids outside the candidate window and duplicates, puts
// US-tagged picks first for US-focused questions and caps the list.
func (e *Engine) validateIDs(ids []int64, candidates map[int64]domain.Article, usFocused bool) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	valid := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := candidates[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		valid = append(valid, id)
	}

	if usFocused {
		sort.SliceStable(valid, func(i, j int) bool {
			ri := e.registry.Tag(candidates[valid[i]].Source)
			rj := e.registry.Tag(candidates[valid[j]].Source)
			return ri == domain.RegionUS && rj != domain.RegionUS
		})
	}

	if len(valid) > e.cfg.ShortlistSize {
		valid = valid[:e.cfg.ShortlistSize]
	}
	return valid
}

func (e *Engine) compose(ctx context.Context, question string, articles []domain.Article, result domain.SelectionResult) (domain.SelectionResult, error) {
	if e.completer == nil {
		return result, apperr.NewComposition(errors.New("no inference client configured"))
	}

	callCtx, cancel := e.inferenceContext(ctx, e.cfg.ComposeTimeout)
	defer cancel()

	text, err := e.completer.Complete(callCtx, ports.CompletionRequest{
		System:      composeSystemPrompt,
		Prompt:      buildComposePrompt(question, e.now(), articles, e.cfg.MaxArticleChars),
		MaxTokens:   1200,
		Temperature: 0.3,
	})
	if err != nil {
		e.logger.Error("compose failed", "articles", len(articles), "error", err)
		return result, apperr.NewComposition(err)
	}

	result.Outcome = domain.OutcomeAnswered
	result.ComposedText = strings.TrimSpace(text)
	result.Articles = articles
	result.ArticleIDs = make([]int64, 0, len(articles))
	result.CitedSources = []string{}
	cited := map[string]struct{}{}
	for _, a := range articles {
		result.ArticleIDs = append(result.ArticleIDs, a.ID)
		if _, ok := cited[a.Source]; !ok {
			cited[a.Source] = struct{}{}
			result.CitedSources = append(result.CitedSources, a.Source)
		}
	}
	return result, nil
}

// inferenceContext detaches from the caller's cancellation so an issued
// call runs to completion, but still bounds it by timeout.
func (e *Engine) inferenceContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, timeout)
}

// parseArticleIDs reads {"article_ids": [...]} where ids may be numbers or
// numeric strings. Entries that are neither are skipped.
func parseArticleIDs(raw string) ([]int64, error) {
	var parsed struct {
		ArticleIDs []json.RawMessage `json:"article_ids"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("decode ids: %w", err)
	}
	if parsed.ArticleIDs == nil {
		return nil, errors.New("article_ids missing")
	}

	ids := make([]int64, 0, len(parsed.ArticleIDs))
	for _, item := range parsed.ArticleIDs {
		var n json.Number
		if err := json.Unmarshal(item, &n); err == nil {
			if id, err := n.Int64(); err == nil {
				ids = append(ids, id)
			}
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}
