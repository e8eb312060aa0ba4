package search

import (
	"context"
	"log/slog"

	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/ports"
)

// IndexedStore keeps a text index in step with an ArticleStore and answers
// SearchText from it. Index failures are logged and never fail a write.
type IndexedStore struct {
	ports.ArticleStore
	index  *Index
	logger *slog.Logger
}

var _ ports.ArticleStore = (*IndexedStore)(nil)

// NewIndexedStore decorates store with index.
func NewIndexedStore(store ports.ArticleStore, index *Index, logger *slog.Logger) *IndexedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexedStore{ArticleStore: store, index: index, logger: logger}
}

func (s *IndexedStore) Insert(ctx context.Context, article domain.Article) (int64, bool, error) {
	id, created, err := s.ArticleStore.Insert(ctx, article)
	if err != nil || !created {
		return id, created, err
	}

	article.ID = id
	if err := s.index.Add(article); err != nil {
		s.logger.Warn("index article failed", "article_id", id, "error", err)
	}
	return id, created, nil
}

func (s *IndexedStore) UpdateAnalysis(ctx context.Context, id int64, analysis domain.Analysis) error {
	if err := s.ArticleStore.UpdateAnalysis(ctx, id, analysis); err != nil {
		return err
	}

	articles, err := s.ArticleStore.GetByIDs(ctx, []int64{id})
	if err != nil || len(articles) == 0 {
		return nil
	}
	if err := s.index.Add(articles[0]); err != nil {
		s.logger.Warn("reindex article failed", "article_id", id, "error", err)
	}
	return nil
}

// SearchText returns the store's own substring matches, newest first, and
// tops the list up with index hits, so stemmed forms still match without
// crowding out recent exact matches.
func (s *IndexedStore) SearchText(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	hits, err := s.ArticleStore.SearchText(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) >= limit {
		return hits[:limit], nil
	}

	ids, err := s.index.Search(query, limit)
	if err != nil {
		s.logger.Warn("index search failed, using store matches only", "error", err)
		return hits, nil
	}

	seen := make(map[int64]struct{}, len(hits))
	for _, a := range hits {
		seen[a.ID] = struct{}{}
	}
	missing := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return hits, nil
	}

	extra, err := s.ArticleStore.GetByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, a := range extra {
		if len(hits) == limit {
			break
		}
		hits = append(hits, a)
	}
	return hits, nil
}

// Backfill indexes the newest window articles of the underlying store,
// used at start-up when the index is empty or kept in memory.
func (s *IndexedStore) Backfill(ctx context.Context, window int) (int, error) {
	articles, err := s.ArticleStore.GetRecent(ctx, window, "")
	if err != nil {
		return 0, err
	}
	if len(articles) == 0 {
		return 0, nil
	}
	if err := s.index.AddBatch(articles); err != nil {
		return 0, err
	}
	return len(articles), nil
}
