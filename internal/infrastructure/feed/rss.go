package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/ports"
)

// RSSFetcher reads a source's RSS/Atom feed and optionally pulls the full
// text of every kept item.
type RSSFetcher struct {
	client    *http.Client
	userAgent string
	extractor *Extractor
	logger    *slog.Logger
}

var _ ports.FeedFetcher = (*RSSFetcher)(nil)

// NewRSSFetcher builds a fetcher. A nil extractor keeps feed descriptions
// as the article text.
func NewRSSFetcher(client *http.Client, userAgent string, extractor *Extractor, logger *slog.Logger) *RSSFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RSSFetcher{client: client, userAgent: userAgent, extractor: extractor, logger: logger}
}

// Fetch returns up to limit newest items of the profile's feed.
func (f *RSSFetcher) Fetch(ctx context.Context, profile domain.SourceProfile, limit int) ([]domain.RawArticle, error) {
	if profile.Feed == "" {
		return nil, fmt.Errorf("source %s has no feed url", profile.Name)
	}
	if limit <= 0 {
		return nil, nil
	}

	parsed, err := f.fetchFeed(ctx, profile.Feed)
	if err != nil {
		return nil, err
	}

	items := make([]domain.RawArticle, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if it == nil {
			continue
		}
		link := strings.TrimSpace(it.Link)
		title := strings.TrimSpace(it.Title)
		if link == "" || title == "" {
			continue
		}

		raw := domain.RawArticle{
			Title:       title,
			URL:         link,
			Source:      profile.Name,
			PublishedAt: itemTime(it),
		}
		if it.Content != "" {
			raw.FullText = plainText(it.Content)
		} else {
			raw.FullText = plainText(it.Description)
		}
		items = append(items, raw)
	}

	sortNewestFirst(items)
	if len(items) > limit {
		items = items[:limit]
	}

	if f.extractor != nil {
		for i := range items {
			text, err := f.extractor.Extract(ctx, items[i].URL)
			if err != nil {
				f.logger.Debug("full text extraction failed", "source", profile.Name, "url", items[i].URL, "error", err)
				continue
			}
			if len(text) > len(items[i].FullText) {
				items[i].FullText = text
			}
		}
	}

	return items, nil
}

func (f *RSSFetcher) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return parsed, nil
}

func itemTime(it *gofeed.Item) *time.Time {
	switch {
	case it.PublishedParsed != nil:
		t := it.PublishedParsed.UTC()
		return &t
	case it.UpdatedParsed != nil:
		t := it.UpdatedParsed.UTC()
		return &t
	default:
		return nil
	}
}

// sortNewestFirst orders dated items newest first; undated items keep
// their feed order after them.
func sortNewestFirst(items []domain.RawArticle) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PublishedAt, items[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
