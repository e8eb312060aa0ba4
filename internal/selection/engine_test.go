package selection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAnalyst/internal/apperr"
	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/infrastructure/storage"
	"NewsAnalyst/internal/ports"
	"NewsAnalyst/internal/sources"
)

type reply struct {
	text string
	err  error
}

// scriptedCompleter answers calls in order and records every request.
type scriptedCompleter struct {
	mu       sync.Mutex
	replies  []reply
	requests []ports.CompletionRequest
	deadline []bool
}

func (s *scriptedCompleter) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, hasDeadline := ctx.Deadline()
	s.deadline = append(s.deadline, hasDeadline)
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return "", errors.New("unexpected call")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.text, r.err
}

func (s *scriptedCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

var fixedNow = time.Date(2025, time.March, 6, 9, 30, 0, 0, time.UTC)

func newRegistry(t *testing.T) *sources.Registry {
	t.Helper()
	reg, err := sources.NewRegistry([]domain.SourceProfile{
		{Name: "Reuters", Region: domain.RegionUS},
		{Name: "CNN", Region: domain.RegionUS},
		{Name: "NPR", Region: domain.RegionUS},
		{Name: "Al Jazeera", Region: domain.RegionINTL},
		{Name: "BBC", Region: domain.RegionINTL},
	})
	require.NoError(t, err)
	return reg
}

type seed struct {
	source string
	title  string
	body   string
}

func seedStore(t *testing.T, items []seed) (*storage.MemoryRepository, []int64) {
	t.Helper()
	store := storage.NewMemoryRepository()
	ids := make([]int64, 0, len(items))
	for i, it := range items {
		published := fixedNow.Add(-time.Duration(len(items)-i) * time.Hour)
		id, created, err := store.Insert(context.Background(), domain.Article{
			Title:       it.title,
			URL:         fmt.Sprintf("https://news.example/%d", i),
			Source:      it.source,
			PublishedAt: &published,
			FullText:    it.body,
		})
		require.NoError(t, err)
		require.True(t, created)
		ids = append(ids, id)
	}
	return store, ids
}

func newEngine(store ports.ArticleStore, completer ports.Completer, reg *sources.Registry) *Engine {
	e := NewEngine(store, completer, reg, Config{
		ShortlistTimeout: time.Second,
		ComposeTimeout:   time.Second,
		MaxArticleChars:  200,
	}, nil)
	e.SetClock(func() time.Time { return fixedNow })
	return e
}

func idsJSON(ids ...int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return `{"article_ids": [` + strings.Join(parts, ", ") + `]}`
}

func TestAnswerQuestionUsesShortlist(t *testing.T) {
	store, ids := seedStore(t, []seed{
		{"Reuters", "Budget talks stall", "Congress failed to agree on the budget."},
		{"BBC", "Storm hits coast", "Heavy rain."},
		{"CNN", "Senate schedules vote", "The senate will vote on the budget."},
	})
	completer := &scriptedCompleter{replies: []reply{
		{text: idsJSON(ids[2], 9999, ids[0], ids[2])},
		{text: "According to CNN, the senate will vote. Sources: ..."},
	}}
	engine := newEngine(store, completer, newRegistry(t))

	result, err := engine.AnswerQuestion(context.Background(), "what is congress doing about the budget")
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeAnswered, result.Outcome)
	assert.False(t, result.FallbackUsed)
	assert.True(t, result.USFocused)
	assert.Equal(t, []int64{ids[2], ids[0]}, result.ArticleIDs, "unknown and duplicate ids are dropped")
	assert.Equal(t, []string{"CNN", "Reuters"}, result.CitedSources)
	assert.Contains(t, result.ComposedText, "According to CNN")

	require.Equal(t, 2, completer.calls())
	shortlistReq := completer.requests[0]
	assert.Contains(t, shortlistReq.Prompt, fmt.Sprintf("[%d] [US] Reuters | Budget talks stall", ids[0]))
	assert.Contains(t, shortlistReq.Prompt, fmt.Sprintf("[%d] [INTL] BBC | Storm hits coast", ids[1]))
	assert.Contains(t, shortlistReq.Prompt, "70%")
	assert.NotEmpty(t, shortlistReq.Shape)
	assert.NotContains(t, shortlistReq.Prompt, "Congress failed to agree", "full text stays out of the shortlist prompt")

	composeReq := completer.requests[1]
	assert.Contains(t, composeReq.Prompt, "Thursday, 6 March 2025")
	assert.Contains(t, composeReq.Prompt, "https://news.example/2")
	assert.Contains(t, composeReq.Prompt, "The senate will vote on the budget.")
	assert.Equal(t, []bool{true, true}, completer.deadline)
}

func TestAnswerQuestionPrioritizesUSWhenFocused(t *testing.T) {
	var items []seed
	for i := 0; i < 7; i++ {
		items = append(items, seed{"Reuters", fmt.Sprintf("US story %d", i), "congress"})
	}
	for i := 0; i < 6; i++ {
		items = append(items, seed{"Al Jazeera", fmt.Sprintf("World story %d", i), "congress"})
	}
	store, ids := seedStore(t, items)

	// model interleaves and returns more than the budget
	var picked []int64
	for i := 0; i < 6; i++ {
		picked = append(picked, ids[7+i], ids[i])
	}
	picked = append(picked, ids[6])

	completer := &scriptedCompleter{replies: []reply{{text: idsJSON(picked...)}, {text: "answer"}}}
	engine := newEngine(store, completer, newRegistry(t))

	result, err := engine.AnswerQuestion(context.Background(), "what is congress doing about the budget")
	require.NoError(t, err)
	require.Len(t, result.ArticleIDs, 10)

	us := 0
	for _, a := range result.Articles {
		if a.Source == "Reuters" {
			us++
		}
	}
	assert.Equal(t, 7, us)
	assert.Equal(t, "Reuters", result.Articles[0].Source)
}

func TestAnswerQuestionNonFocusedAsksForDiversity(t *testing.T) {
	store, ids := seedStore(t, []seed{{"BBC", "Football final", "match"}})
	completer := &scriptedCompleter{replies: []reply{{text: idsJSON(ids[0])}, {text: "answer"}}}
	engine := newEngine(store, completer, newRegistry(t))

	result, err := engine.AnswerQuestion(context.Background(), "who won the football final")
	require.NoError(t, err)
	assert.False(t, result.USFocused)
	assert.Contains(t, completer.requests[0].Prompt, "mix of sources")
}

func TestAnswerQuestionFallsBackOnShortlistFailure(t *testing.T) {
	tests := []struct {
		name  string
		reply reply
	}{
		{name: "inference error", reply: reply{err: context.DeadlineExceeded}},
		{name: "malformed", reply: reply{text: "I think article 3 is best"}},
		{name: "only invented ids", reply: reply{text: idsJSON(4242, 4343)}},
		{name: "empty list", reply: reply{text: `{"article_ids": []}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, ids := seedStore(t, []seed{
				{"Reuters", "Budget deal reached", "Lawmakers agree on budget."},
				{"BBC", "Weather", "Sunny."},
			})
			completer := &scriptedCompleter{replies: []reply{tt.reply, {text: "composed"}}}
			engine := newEngine(store, completer, newRegistry(t))

			result, err := engine.AnswerQuestion(context.Background(), "latest on the budget deal")
			require.NoError(t, err)

			assert.True(t, result.FallbackUsed)
			assert.Equal(t, domain.OutcomeAnswered, result.Outcome)
			assert.Equal(t, []int64{ids[0]}, result.ArticleIDs)
			assert.NotContains(t, result.ArticleIDs, int64(4242))
		})
	}
}

func TestAnswerQuestionNoRelevantArticles(t *testing.T) {
	store, _ := seedStore(t, []seed{{"BBC", "Weather", "Sunny."}})
	completer := &scriptedCompleter{replies: []reply{{text: `{"article_ids": []}`}}}
	engine := newEngine(store, completer, newRegistry(t))

	result, err := engine.AnswerQuestion(context.Background(), "quantum computing breakthroughs")
	require.NoError(t, err)

	assert.True(t, result.FallbackUsed)
	assert.Equal(t, domain.OutcomeNoRelevant, result.Outcome)
	assert.Empty(t, result.ArticleIDs)
	assert.Equal(t, 1, completer.calls(), "compose is skipped")
}

func TestAnswerQuestionCompositionError(t *testing.T) {
	store, ids := seedStore(t, []seed{{"Reuters", "Budget", "budget"}})
	completer := &scriptedCompleter{replies: []reply{
		{text: idsJSON(ids[0])},
		{err: context.DeadlineExceeded},
	}}
	engine := newEngine(store, completer, newRegistry(t))

	_, err := engine.AnswerQuestion(context.Background(), "budget")
	var ce *apperr.CompositionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, completer.calls(), "no retry")
}

func TestAnswerQuestionRejectsEmptyQuestion(t *testing.T) {
	engine := newEngine(storage.NewMemoryRepository(), &scriptedCompleter{}, newRegistry(t))

	_, err := engine.AnswerQuestion(context.Background(), "   ")
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestInferenceSurvivesCallerCancellation(t *testing.T) {
	store, ids := seedStore(t, []seed{{"Reuters", "Budget", "budget"}})
	completer := &scriptedCompleter{replies: []reply{{text: idsJSON(ids[0])}, {text: "done"}}}
	engine := newEngine(store, completer, newRegistry(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	compose := &ctxCheckingCompleter{inner: completer}
	engine.completer = compose

	_, _ = engine.Compose(ctx, "", ids)
	assert.NoError(t, compose.seen)
}

type ctxCheckingCompleter struct {
	inner ports.Completer
	seen  error
}

func (c *ctxCheckingCompleter) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	c.seen = ctx.Err()
	return c.inner.Complete(ctx, req)
}

func TestComposeSelected(t *testing.T) {
	store, ids := seedStore(t, []seed{
		{"Reuters", "A", "alpha"},
		{"BBC", "B", "beta"},
	})
	completer := &scriptedCompleter{replies: []reply{{text: "overview"}}}
	engine := newEngine(store, completer, newRegistry(t))

	result, err := engine.Compose(context.Background(), "", []int64{ids[1], ids[0]})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[1], ids[0]}, result.ArticleIDs)
	assert.Equal(t, []string{"BBC", "Reuters"}, result.CitedSources)
	assert.Contains(t, completer.requests[0].Prompt, defaultCollectionQuestion)

	empty, err := engine.Compose(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoneSelected, empty.Outcome)
	assert.Equal(t, 1, completer.calls())
}

func TestSelectForBrowsing(t *testing.T) {
	var items []seed
	for i := 0; i < 12; i++ {
		items = append(items, seed{"South China Morning Post", fmt.Sprintf("Story %d", i), ""})
	}
	items = append(items, seed{"BBC", "Latest BBC", ""})
	store, _ := seedStore(t, items)
	engine := newEngine(store, nil, newRegistry(t))

	all, err := engine.SelectForBrowsing(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 9)
	assert.Equal(t, "Latest BBC", all[0].Title)

	exact, err := engine.SelectForBrowsing(context.Background(), "bbc")
	require.NoError(t, err)
	require.Len(t, exact, 1)

	partial, err := engine.SelectForBrowsing(context.Background(), "china")
	require.NoError(t, err)
	require.Len(t, partial, 9)
	assert.Equal(t, "Story 11", partial[0].Title)

	none, err := engine.SelectForBrowsing(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParseArticleIDs(t *testing.T) {
	ids, err := parseArticleIDs(`{"article_ids": [3, "7", " 9 ", "x", 2.5, null]}`)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7, 9}, ids)

	_, err = parseArticleIDs(`{"ids": [1]}`)
	assert.Error(t, err)

	_, err = parseArticleIDs(`not json`)
	assert.Error(t, err)
}
