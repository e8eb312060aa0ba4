package domain

// Outcome classifies a SelectionResult.
type Outcome string

const (
	OutcomeAnswered     Outcome = "answered"
	OutcomeNoRelevant   Outcome = "no_relevant_articles"
	OutcomeNoneSelected Outcome = "none_selected"
)

// SelectionResult is the answer produced for a question or a confirmed
// selection. It is never persisted.
type SelectionResult struct {
	ArticleIDs   []int64   `json:"article_ids"`
	Articles     []Article `json:"articles,omitempty"`
	ComposedText string    `json:"composed_text"`
	CitedSources []string  `json:"cited_sources"`
	Outcome      Outcome   `json:"outcome"`
	FallbackUsed bool      `json:"fallback_used"`
	USFocused    bool      `json:"us_focused"`
}
