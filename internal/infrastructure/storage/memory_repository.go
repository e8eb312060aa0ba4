package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"NewsAnalyst/internal/apperr"
	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/ports"
)

// MemoryRepository keeps articles in process memory. Used for the "memory"
// driver and in tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]domain.Article
	byURL  map[string]int64
}

var _ ports.ArticleStore = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  map[int64]domain.Article{},
		byURL: map[string]int64{},
	}
}

// Close is a no-op.
func (m *MemoryRepository) Close() error {
	return nil
}

func (m *MemoryRepository) Insert(_ context.Context, article domain.Article) (int64, bool, error) {
	if strings.TrimSpace(article.URL) == "" {
		return 0, false, apperr.NewStore("insert", errors.New("article url is empty"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byURL[article.URL]; ok {
		return id, false, nil
	}

	m.nextID++
	article.ID = m.nextID
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now()
	}
	m.byID[article.ID] = article
	m.byURL[article.URL] = article.ID
	return article.ID, true, nil
}

func (m *MemoryRepository) GetRecent(_ context.Context, limit int, source string) ([]domain.Article, error) {
	source = strings.TrimSpace(source)
	return m.collect(limit, func(a domain.Article) bool {
		return source == "" || strings.EqualFold(a.Source, source)
	}), nil
}

func (m *MemoryRepository) GetByIDs(_ context.Context, ids []int64) ([]domain.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]domain.Article, 0, len(ids))
	for _, id := range ids {
		if a, ok := m.byID[id]; ok {
			all = append(all, a)
		}
	}
	return orderByIDs(all, ids), nil
}

func (m *MemoryRepository) SearchText(_ context.Context, query string, limit int) ([]domain.Article, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}
	return m.collect(limit, func(a domain.Article) bool {
		return strings.Contains(strings.ToLower(a.Title), needle) ||
			strings.Contains(strings.ToLower(a.FullText), needle)
	}), nil
}

func (m *MemoryRepository) Stats(_ context.Context) (domain.StoreStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats domain.StoreStats
	counts := map[string]int{}
	for _, a := range m.byID {
		counts[a.Source]++
		t := a.Recency()
		if stats.Earliest == nil || t.Before(*stats.Earliest) {
			stats.Earliest = &t
		}
		if stats.Latest == nil || t.After(*stats.Latest) {
			latest := t
			stats.Latest = &latest
		}
	}

	for source, n := range counts {
		stats.PerSourceCounts = append(stats.PerSourceCounts, domain.SourceCount{Source: source, Count: n})
	}
	sort.Slice(stats.PerSourceCounts, func(i, j int) bool {
		a, b := stats.PerSourceCounts[i], stats.PerSourceCounts[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Source < b.Source
	})
	stats.TotalArticles = len(m.byID)
	stats.UniqueSources = len(counts)
	return stats, nil
}

func (m *MemoryRepository) PendingAnalysis(_ context.Context, afterID int64, limit int) ([]domain.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Article
	for _, a := range m.byID {
		if a.ID > afterID && !a.Analyzed() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) UpdateAnalysis(_ context.Context, id int64, analysis domain.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return nil
	}
	a.Summary = analysis.Summary
	a.Intent = analysis.Intent
	a.Emotion = analysis.Emotion
	m.byID[id] = a
	return nil
}

func (m *MemoryRepository) collect(limit int, keep func(domain.Article) bool) []domain.Article {
	if limit <= 0 {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Article
	for _, a := range m.byID {
		if keep(a) {
			out = append(out, a)
		}
	}
	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortNewestFirst(articles []domain.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		ti, tj := articles[i].Recency(), articles[j].Recency()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return articles[i].ID > articles[j].ID
	})
}
