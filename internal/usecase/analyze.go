package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"NewsAnalyst/internal/apperr"
	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/ports"
	"NewsAnalyst/internal/sources"
)

const analysisSystemPrompt = "You are a news analyst that provides objective, concise analysis of news articles."

const analysisShape = `{"summary": "<2-3 sentence summary>", "intent": "<author intent: inform, persuade, entertain, warn, ...>", "emotion": "<likely reader emotion: neutral, concerned, optimistic, angry, ...>"}`

const pageAnalysisSystemPrompt = `You are a news analyst. Given one article, list its key points and the people and organisations it mentions, then note the author's apparent intent. Stay neutral and factual. Keep it under 300 words.`

// AnalyzerConfig bounds the analysis pass.
type AnalyzerConfig struct {
	BatchSize     int
	MaxInputChars int
	Timeout       time.Duration
	// MaxAttempts is how many failed passes an article gets before it is
	// left unanalysed for the life of the process.
	MaxAttempts   int
}

// Analyzer fills summary, intent and emotion for stored articles and
// analyses arbitrary article urls on request.
type Analyzer struct {
	store     ports.ArticleStore
	completer ports.Completer
	pages     ports.PageReader
	cfg       AnalyzerConfig
	logger    *slog.Logger

	mu       sync.Mutex
	failures map[int64]int
}

// NewAnalyzer wires the analysis pass. pages may be nil when url analysis
// is not offered.
func NewAnalyzer(store ports.ArticleStore, completer ports.Completer, pages ports.PageReader, cfg AnalyzerConfig, logger *slog.Logger) *Analyzer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = 3000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		store:     store,
		completer: completer,
		pages:     pages,
		cfg:       cfg,
		logger:    logger,
		failures:  map[int64]int{},
	}
}

// AnalyzePending analyses up to one batch of articles that still miss
// derived fields. Inference failures skip the article and count against it;
// an article that used up its attempts is paged past so newer ones still get
// analysed. Store failures stop the pass.
func (a *Analyzer) AnalyzePending(ctx context.Context) (int, error) {
	if a.completer == nil {
		return 0, nil
	}

	var (
		done, attempted int
		afterID         int64
	)
	for attempted < a.cfg.BatchSize && ctx.Err() == nil {
		pending, err := a.store.PendingAnalysis(ctx, afterID, a.cfg.BatchSize)
		if err != nil {
			return done, err
		}
		if len(pending) == 0 {
			break
		}

		for _, article := range pending {
			afterID = article.ID
			if a.exhausted(article.ID) {
				continue
			}
			if attempted == a.cfg.BatchSize || ctx.Err() != nil {
				break
			}
			attempted++

			analysis, err := a.analyze(ctx, article)
			if err != nil {
				a.recordFailure(article.ID)
				a.logger.Warn("article analysis failed", "article_id", article.ID, "error", err)
				continue
			}
			if err := a.store.UpdateAnalysis(ctx, article.ID, analysis); err != nil {
				return done, err
			}
			a.clearFailures(article.ID)
			done++
		}
	}

	if attempted > 0 {
		a.logger.Info("articles analysed", "count", done, "failed", attempted-done)
	}
	return done, nil
}

func (a *Analyzer) exhausted(id int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failures[id] >= a.cfg.MaxAttempts
}

func (a *Analyzer) recordFailure(id int64) {
	a.mu.Lock()
	a.failures[id]++
	a.mu.Unlock()
}

func (a *Analyzer) clearFailures(id int64) {
	a.mu.Lock()
	delete(a.failures, id)
	a.mu.Unlock()
}

func (a *Analyzer) analyze(ctx context.Context, article domain.Article) (domain.Analysis, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nSource: %s\n", article.Title, article.Source)
	if article.Summary != "" {
		fmt.Fprintf(&b, "Original summary: %s\n", article.Summary)
	}
	fmt.Fprintf(&b, "Full text: %s\n", truncateRunes(article.FullText, a.cfg.MaxInputChars))

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Timeout)
	defer cancel()

	raw, err := a.completer.Complete(callCtx, ports.CompletionRequest{
		System:      analysisSystemPrompt,
		Prompt:      "Analyze this news article.\n\n" + b.String(),
		Shape:       analysisShape,
		MaxTokens:   300,
		Temperature: 0.3,
	})
	if err != nil {
		return domain.Analysis{}, err
	}

	var parsed struct {
		Summary string `json:"summary"`
		Intent  string `json:"intent"`
		Emotion string `json:"emotion"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return domain.Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}

	analysis := domain.Analysis{
		Summary: strings.TrimSpace(parsed.Summary),
		Intent:  strings.TrimSpace(parsed.Intent),
		Emotion: strings.TrimSpace(parsed.Emotion),
	}
	if analysis.Summary == "" {
		analysis.Summary = article.Summary
	}
	if analysis.Summary == "" {
		return domain.Analysis{}, errors.New("analysis without summary")
	}
	if analysis.Intent == "" {
		analysis.Intent = "Unknown"
	}
	if analysis.Emotion == "" {
		analysis.Emotion = "Neutral"
	}
	return analysis, nil
}

// PageAnalysis is the result of analysing one article url.
type PageAnalysis struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Source   string `json:"source"`
	Analysis string `json:"analysis"`
}

// minPageChars is the least text worth sending for analysis.
const minPageChars = 50

// AnalyzeURL extracts the article at rawURL and asks for its key points.
// The article is not stored.
func (a *Analyzer) AnalyzeURL(ctx context.Context, rawURL string) (PageAnalysis, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return PageAnalysis{}, apperr.NewValidation("url is required")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}
	if u, err := url.Parse(rawURL); err != nil || u.Hostname() == "" {
		return PageAnalysis{}, apperr.NewValidationWrap("url is not valid", err)
	}
	if a.pages == nil || a.completer == nil {
		return PageAnalysis{}, apperr.NewComposition(errors.New("url analysis is not configured"))
	}

	title, text, err := a.pages.ReadPage(ctx, rawURL)
	if err != nil {
		return PageAnalysis{}, apperr.NewValidationWrap("could not read the article", err)
	}
	if len([]rune(text)) < minPageChars {
		return PageAnalysis{}, apperr.NewValidation("no readable content at url")
	}
	if title == "" {
		title = "No title found"
	}

	result := PageAnalysis{URL: rawURL, Title: title, Source: sources.SourceForURL(rawURL)}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Timeout)
	defer cancel()

	prompt := fmt.Sprintf("Title: %s\nSource: %s\nURL: %s\n\n%s",
		title, result.Source, rawURL, truncateRunes(text, a.cfg.MaxInputChars))
	out, err := a.completer.Complete(callCtx, ports.CompletionRequest{
		System:      pageAnalysisSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   800,
		Temperature: 0.3,
	})
	if err != nil {
		return PageAnalysis{}, apperr.NewComposition(err)
	}
	result.Analysis = strings.TrimSpace(out)
	return result, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
