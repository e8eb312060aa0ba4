package api

import (
	"time"

	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/render"
)

const (
	noRelevantText   = "I couldn't find any stored articles relevant to that. Try rephrasing, or run a fetch first."
	noneSelectedText = "No articles were selected."
)

// AskRequest is the body of POST /ask.
type AskRequest struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	Question  string `json:"question"`
	// Form is "short" (default) or "long".
	Form string `json:"form"`
}

// StartSelectionRequest is the body of POST /selections/:user/:channel.
type StartSelectionRequest struct {
	Source string `json:"source"`
}

// ConfirmRequest is the body of POST /selections/:user/:channel/confirm.
type ConfirmRequest struct {
	Question string `json:"question"`
	Form     string `json:"form"`
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	URL  string `json:"url"`
	Form string `json:"form"`
}

// ArticleDTO is an article without its full text.
type ArticleDTO struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Source      string     `json:"source"`
	Region      string     `json:"region,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Intent      string     `json:"intent,omitempty"`
	Emotion     string     `json:"emotion,omitempty"`
}

// AnswerResponse is a rendered SelectionResult.
type AnswerResponse struct {
	Outcome      domain.Outcome `json:"outcome"`
	Text         string         `json:"text"`
	Truncated    bool           `json:"truncated"`
	CitedSources []string       `json:"cited_sources"`
	Articles     []ArticleDTO   `json:"articles"`
	FallbackUsed bool           `json:"fallback_used"`
	USFocused    bool           `json:"us_focused"`
}

// ArticlesResponse lists articles.
type ArticlesResponse struct {
	Count    int          `json:"count"`
	Articles []ArticleDTO `json:"articles"`
}

func toArticleDTO(a domain.Article, region domain.Region) ArticleDTO {
	return ArticleDTO{
		ID:          a.ID,
		Title:       a.Title,
		URL:         a.URL,
		Source:      a.Source,
		Region:      string(region),
		PublishedAt: a.PublishedAt,
		Summary:     a.Summary,
		Intent:      a.Intent,
		Emotion:     a.Emotion,
	}
}

func toAnswerResponse(result domain.SelectionResult, tier render.Tier, regionOf func(string) domain.Region) AnswerResponse {
	text := result.ComposedText
	switch result.Outcome {
	case domain.OutcomeNoRelevant:
		text = noRelevantText
	case domain.OutcomeNoneSelected:
		text = noneSelectedText
	}
	text, truncated := render.Truncate(text, tier)

	articles := make([]ArticleDTO, 0, len(result.Articles))
	for _, a := range result.Articles {
		articles = append(articles, toArticleDTO(a, regionOf(a.Source)))
	}
	cited := result.CitedSources
	if cited == nil {
		cited = []string{}
	}

	return AnswerResponse{
		Outcome:      result.Outcome,
		Text:         text,
		Truncated:    truncated,
		CitedSources: cited,
		Articles:     articles,
		FallbackUsed: result.FallbackUsed,
		USFocused:    result.USFocused,
	}
}
