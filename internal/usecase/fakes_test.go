package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/infrastructure/lock"
	"NewsAnalyst/internal/infrastructure/storage"
	"NewsAnalyst/internal/ports"
	"NewsAnalyst/internal/selection"
	"NewsAnalyst/internal/session"
	"NewsAnalyst/internal/sources"
)

// fakeFetcher serves a fixed number of items per source, ignoring limit so
// the orchestrator's own cap is exercised.
type fakeFetcher struct {
	mu     sync.Mutex
	items  map[string]int
	fail   map[string]error
	calls  map[string]int
	block  chan struct{}
	urlTag string
}

func (f *fakeFetcher) Fetch(ctx context.Context, profile domain.SourceProfile, _ int) ([]domain.RawArticle, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[profile.Name]++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := f.fail[profile.Name]; err != nil {
		return nil, err
	}
	n := f.items[profile.Name]
	out := make([]domain.RawArticle, 0, n)
	for i := 0; i < n; i++ {
		slug := strings.ReplaceAll(strings.ToLower(profile.Name), " ", "-")
		out = append(out, domain.RawArticle{
			Title: fmt.Sprintf("%s story %d", profile.Name, i),
			URL:   fmt.Sprintf("https://%s.example/%s%d", slug, f.urlTag, i),
		})
	}
	return out, nil
}

func (f *fakeFetcher) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// brokenStore fails every insert.
type brokenStore struct {
	*storage.MemoryRepository
}

func (brokenStore) Insert(context.Context, domain.Article) (int64, bool, error) {
	return 0, false, errors.New("database is locked")
}

// stubCompleter returns the same reply to every call.
type stubCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []ports.CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return s.reply, s.err
}

func (s *stubCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func testRegistry(t *testing.T) *sources.Registry {
	t.Helper()
	reg, err := sources.NewRegistry([]domain.SourceProfile{
		{Name: "Reuters", Region: domain.RegionUS, Feed: "https://reuters.example/rss"},
		{Name: "Al Jazeera", Region: domain.RegionINTL, Feed: "https://aljazeera.example/rss"},
		{Name: "Offline", Region: domain.RegionINTL},
	})
	require.NoError(t, err)
	return reg
}

func newOrchestrator(reg *sources.Registry, fetcher ports.FeedFetcher, store ports.ArticleStore) *FetchOrchestrator {
	return NewFetchOrchestrator(FetchDeps{
		Registry:    reg,
		Fetcher:     fetcher,
		Store:       store,
		Locker:      lock.NewLocalLocker(),
		Concurrency: 2,
	})
}

func seedArticles(t *testing.T, store ports.ArticleStore, n int, source string, at time.Time) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		published := at.Add(-time.Duration(i) * time.Minute)
		id, _, err := store.Insert(context.Background(), domain.Article{
			Title:       fmt.Sprintf("%s budget story %d", source, i),
			URL:         fmt.Sprintf("https://seed.example/%s/%d", source, i),
			Source:      source,
			PublishedAt: &published,
			FullText:    "Lawmakers debated the federal budget.",
			CreatedAt:   at,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

type fixture struct {
	store     *storage.MemoryRepository
	completer *stubCompleter
	sessions  *session.Manager
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := testRegistry(t)
	store := storage.NewMemoryRepository()
	completer := &stubCompleter{}
	engine := selection.NewEngine(store, completer, reg, selection.Config{
		ShortlistTimeout: time.Second,
		ComposeTimeout:   time.Second,
	}, nil)
	sessions := session.NewManager(time.Minute, time.Minute, nil)

	svc := NewService(ServiceDeps{
		Fetch:    newOrchestrator(reg, &fakeFetcher{}, store),
		Engine:   engine,
		Sessions: sessions,
		Store:    store,
		Registry: reg,
		Analyzer: NewAnalyzer(store, completer, nil, AnalyzerConfig{Timeout: time.Second}, nil),
	})
	return &fixture{store: store, completer: completer, sessions: sessions, service: svc}
}
