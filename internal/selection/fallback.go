package selection

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/ports"
)

const (
	maxSearchTerms       = 5
	minTermLength        = 3
	defaultPerTermSearch = 50
)

var wordExpr = regexp.MustCompile(`[\p{L}\p{N}]+`)

var stopWords = map[string]struct{}{
	"what": {}, "is": {}, "the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"are": {}, "was": {}, "were": {}, "about": {}, "how": {}, "why": {}, "who": {},
	"when": {}, "where": {}, "which": {}, "does": {}, "did": {}, "doing": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "tell": {}, "news": {}, "latest": {}, "any": {},
	"from": {}, "has": {}, "have": {}, "been": {}, "there": {}, "their": {}, "you": {},
	"can": {}, "give": {}, "some": {}, "happening": {}, "today": {}, "recent": {},
}

// Fallback is the deterministic keyword search used when the model-driven
// shortlist is unusable. It only reads from the store.
type Fallback struct {
	store         ports.ArticleStore
	perTermSearch int
}

func NewFallback(store ports.ArticleStore) *Fallback {
	return &Fallback{store: store, perTermSearch: defaultPerTermSearch}
}

// KeywordSelect ranks stored articles by how many question terms they
// contain, then by recency. Zero matches is an empty result, not an error.
func (f *Fallback) KeywordSelect(ctx context.Context, question string, limit int) ([]domain.Article, error) {
	terms := SearchTerms(question)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	candidates := map[int64]domain.Article{}
	for _, term := range terms {
		hits, err := f.store.SearchText(ctx, term, f.perTermSearch)
		if err != nil {
			return nil, err
		}
		for _, a := range hits {
			candidates[a.ID] = a
		}
	}

	type scored struct {
		article domain.Article
		score   int
	}
	ranked := make([]scored, 0, len(candidates))
	for _, a := range candidates {
		haystack := strings.ToLower(a.Title + " " + a.FullText)
		score := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{article: a, score: score})
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score != b.score {
			return a.score > b.score
		}
		ta, tb := a.article.Recency(), b.article.Recency()
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a.article.ID > b.article.ID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]domain.Article, len(ranked))
	for i, r := range ranked {
		out[i] = r.article
	}
	return out, nil
}

// SearchTerms lowercases question, drops stop words and short tokens and
// keeps the first few distinct terms.
func SearchTerms(question string) []string {
	var terms []string
	seen := map[string]struct{}{}
	for _, word := range wordExpr.FindAllString(strings.ToLower(question), -1) {
		if len([]rune(word)) < minTermLength {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		terms = append(terms, word)
		if len(terms) == maxSearchTerms {
			break
		}
	}
	return terms
}
