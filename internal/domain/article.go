package domain

import "time"

// Article is a stored news item. Everything except the analysis fields is
// fixed once the row is written.
type Article struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Source      string     `json:"source"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	FullText    string     `json:"full_text,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Intent      string     `json:"intent,omitempty"`
	Emotion     string     `json:"emotion,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Recency returns the publication time, or the insert time when the feed
// did not carry one.
func (a Article) Recency() time.Time {
	if a.PublishedAt != nil && !a.PublishedAt.IsZero() {
		return *a.PublishedAt
	}
	return a.CreatedAt
}

// Analyzed reports whether the derived fields were already filled.
func (a Article) Analyzed() bool {
	return a.Summary != "" && a.Intent != "" && a.Emotion != ""
}

// RawArticle is what a feed fetch yields before it is stored.
type RawArticle struct {
	Title       string
	URL         string
	Source      string
	PublishedAt *time.Time
	FullText    string
}

// ToArticle converts a fetched item into an unsaved Article.
func (r RawArticle) ToArticle(now time.Time) Article {
	return Article{
		Title:       r.Title,
		URL:         r.URL,
		Source:      r.Source,
		PublishedAt: r.PublishedAt,
		FullText:    r.FullText,
		CreatedAt:   now,
	}
}

// Analysis holds the derived fields written back by the analysis pass.
type Analysis struct {
	Summary string
	Intent  string
	Emotion string
}

// SourceCount is one row of the per-source article breakdown.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// StoreStats summarizes the contents of the article store.
type StoreStats struct {
	TotalArticles   int           `json:"total_articles"`
	UniqueSources   int           `json:"unique_sources"`
	PerSourceCounts []SourceCount `json:"per_source"`
	Earliest        *time.Time    `json:"earliest,omitempty"`
	Latest          *time.Time    `json:"latest,omitempty"`
}
