package selection

import (
	"fmt"
	"math"
	"strings"
	"time"

	"NewsAnalyst/internal/domain"
)

const shortlistSystemPrompt = `You are a news research assistant. From a numbered list of stored articles,
pick the ones that best help answer the user's question.

Rules:
1. Use only ids that appear in the list. Never invent ids.
2. Rank the ids from most to least relevant.
3. Each candidate is tagged [US] or [INTL] by the region of its source.
4. Skip articles that are clearly unrelated, even if that leaves fewer picks.`

const shortlistShape = `{"article_ids": [<id>, <id>, ...]}`

const composeSystemPrompt = `You are an objective news analyst. Answer the user's question using only the
articles provided.

Rules:
1. Attribute every claim to its source by name, e.g. "According to Reuters, ...".
2. Finish with a "Sources:" list giving the title and url of every article you used.
3. Present facts neutrally; do not take political sides.
4. If the articles do not answer the question, say so plainly.
5. Keep the answer under 400 words.`

const defaultCollectionQuestion = "Give an objective overview of what these selected articles report, and how the sources agree or differ."

type candidateLine struct {
	id     int64
	region domain.Region
	source string
	title  string
}

func buildShortlistPrompt(question string, usFocused bool, size int, usShare float64, candidates []candidateLine) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Return at most %d article ids.\n", size)
	if usFocused {
		usPicks := int(math.Round(float64(size) * usShare))
		fmt.Fprintf(&sb, "This question is about US politics: aim for roughly %d%% [US] articles (about %d of %d), filling the rest with [INTL] coverage.\n",
			int(math.Round(usShare*100)), usPicks, size)
	} else {
		sb.WriteString("Prefer a mix of sources; do not take every pick from the same source.\n")
	}

	sb.WriteString("\nCandidates:\n")
	for _, c := range candidates {
		fmt.Fprintf(&sb, "[%d] [%s] %s | %s\n", c.id, c.region, c.source, c.title)
	}
	return sb.String()
}

func buildComposePrompt(question string, now time.Time, articles []domain.Article, maxChars int) string {
	if strings.TrimSpace(question) == "" {
		question = defaultCollectionQuestion
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Today's date: %s\n", now.Format("Monday, 2 January 2006"))
	fmt.Fprintf(&sb, "Question: %s\n\n", question)
	sb.WriteString("Articles:\n")

	for i, a := range articles {
		fmt.Fprintf(&sb, "\n--- Article %d ---\n", i+1)
		fmt.Fprintf(&sb, "Source: %s\n", a.Source)
		fmt.Fprintf(&sb, "Title: %s\n", a.Title)
		fmt.Fprintf(&sb, "URL: %s\n", a.URL)
		if a.PublishedAt != nil {
			fmt.Fprintf(&sb, "Published: %s\n", a.PublishedAt.Format("2006-01-02 15:04 MST"))
		}
		sb.WriteString("Text:\n")
		sb.WriteString(articleBody(a, maxChars))
		sb.WriteString("\n")
	}
	return sb.String()
}

// articleBody prefers the full text, then the summary, then the title.
func articleBody(a domain.Article, maxChars int) string {
	body := strings.TrimSpace(a.FullText)
	if body == "" {
		body = strings.TrimSpace(a.Summary)
	}
	if body == "" {
		body = a.Title
	}
	return clip(body, maxChars)
}

func clip(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars]) + "..."
}
