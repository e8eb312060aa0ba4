package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"NewsAnalyst/internal/apperr"
	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/ports"
	"NewsAnalyst/internal/selection"
	"NewsAnalyst/internal/session"
	"NewsAnalyst/internal/sources"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// ServiceDeps wires the command-facing service.
type ServiceDeps struct {
	Fetch    *FetchOrchestrator
	Engine   *selection.Engine
	Sessions *session.Manager
	Store    ports.ArticleStore
	Registry *sources.Registry
	Analyzer *Analyzer
	// AnalyzeAfterFetch runs the analysis pass after cycles that inserted.
	AnalyzeAfterFetch bool
	Logger            *slog.Logger
}

// Service is the single entry point for the command surface.
type Service struct {
	fetch    *FetchOrchestrator
	engine   *selection.Engine
	sessions *session.Manager
	store    ports.ArticleStore
	registry *sources.Registry
	analyzer *Analyzer
	analyze  bool
	logger   *slog.Logger
}

// NewService constructs the facade.
func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		fetch:    deps.Fetch,
		engine:   deps.Engine,
		sessions: deps.Sessions,
		store:    deps.Store,
		registry: deps.Registry,
		analyzer: deps.Analyzer,
		analyze:  deps.AnalyzeAfterFetch && deps.Analyzer != nil,
		logger:   logger,
	}
}

// RunFetchCycle runs one fetch cycle and then analyses new articles.
func (s *Service) RunFetchCycle(ctx context.Context, trigger domain.FetchTrigger) (domain.FetchReport, error) {
	report, err := s.fetch.RunFetchCycle(ctx, trigger)
	if err != nil || report.AlreadyRunning {
		return report, err
	}

	if s.analyze && report.TotalInserted > 0 {
		if _, err := s.analyzer.AnalyzePending(ctx); err != nil {
			s.logger.Warn("analysis pass failed", "run_id", report.RunID, "error", err)
		}
	}
	return report, nil
}

// FetchInfo reports when the last scheduled and manual cycles completed.
func (s *Service) FetchInfo() domain.FetchInfo {
	return s.fetch.Info()
}

// AnswerQuestion answers question for scope. The scope is busy until the
// answer is composed.
func (s *Service) AnswerQuestion(ctx context.Context, scope session.Scope, question string) (domain.SelectionResult, error) {
	if strings.TrimSpace(question) == "" {
		return domain.SelectionResult{}, apperr.NewValidation("question is required")
	}
	release, err := s.sessions.Acquire(scope)
	if err != nil {
		return domain.SelectionResult{}, err
	}
	defer release()

	return s.engine.AnswerQuestion(ctx, question)
}

// Browse lists the newest articles, optionally for one source.
func (s *Service) Browse(ctx context.Context, source string) ([]domain.Article, error) {
	return s.engine.SelectForBrowsing(ctx, source)
}

// StartSelection opens a pick session over the newest articles.
func (s *Service) StartSelection(ctx context.Context, scope session.Scope, source string) (session.View, error) {
	articles, err := s.engine.SelectForBrowsing(ctx, source)
	if err != nil {
		return session.View{}, err
	}
	if len(articles) == 0 {
		if source != "" {
			return session.View{}, apperr.NewValidation("no articles found for source " + source)
		}
		return session.View{}, apperr.NewValidation("no articles stored yet")
	}
	return s.sessions.Start(scope, articles)
}

// Toggle flips the pick at the 0-based index.
func (s *Service) Toggle(scope session.Scope, index int) (session.View, error) {
	return s.sessions.Toggle(scope, index)
}

// SelectAll picks every candidate of the open session.
func (s *Service) SelectAll(scope session.Scope) (session.View, error) {
	return s.sessions.SelectAll(scope)
}

// Selection returns the open session for scope.
func (s *Service) Selection(scope session.Scope) (session.View, error) {
	return s.sessions.View(scope)
}

// Confirm consumes the session and composes an answer over the picks. An
// empty question asks for an overview of the picked articles.
func (s *Service) Confirm(ctx context.Context, scope session.Scope, question string) (domain.SelectionResult, error) {
	ids, release, err := s.sessions.Confirm(scope)
	if err != nil {
		return domain.SelectionResult{}, err
	}
	defer release()

	return s.engine.Compose(ctx, question, ids)
}

// KeywordSelect runs the deterministic keyword search directly.
func (s *Service) KeywordSelect(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.NewValidation("query is required")
	}
	switch {
	case limit <= 0:
		limit = defaultSearchLimit
	case limit > maxSearchLimit:
		limit = maxSearchLimit
	}
	return s.engine.Fallback().KeywordSelect(ctx, query, limit)
}

// Stats summarises the store.
func (s *Service) Stats(ctx context.Context) (domain.StoreStats, error) {
	return s.store.Stats(ctx)
}

// SourceSummary is a source with its classification and stored count.
type SourceSummary struct {
	domain.SourceProfile
	Configured bool `json:"configured"`
	Articles   int  `json:"articles"`
}

// Sources lists configured sources in configuration order, followed by
// any other source found in the store, by count.
func (s *Service) Sources(ctx context.Context) ([]SourceSummary, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(stats.PerSourceCounts))
	for _, sc := range stats.PerSourceCounts {
		counts[strings.ToLower(sc.Source)] += sc.Count
	}

	var out []SourceSummary
	seen := map[string]struct{}{}
	for _, p := range s.registry.Profiles() {
		key := strings.ToLower(p.Name)
		seen[key] = struct{}{}
		out = append(out, SourceSummary{SourceProfile: p, Configured: true, Articles: counts[key]})
	}

	var extra []SourceSummary
	for _, sc := range stats.PerSourceCounts {
		key := strings.ToLower(sc.Source)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		extra = append(extra, SourceSummary{SourceProfile: s.registry.Classify(sc.Source), Articles: counts[key]})
	}
	sort.SliceStable(extra, func(i, j int) bool { return extra[i].Articles > extra[j].Articles })
	return append(out, extra...), nil
}

// AnalyzeURL analyses a single article url without storing it.
func (s *Service) AnalyzeURL(ctx context.Context, url string) (PageAnalysis, error) {
	if s.analyzer == nil {
		return PageAnalysis{}, apperr.NewValidation("url analysis is not available")
	}
	return s.analyzer.AnalyzeURL(ctx, url)
}
