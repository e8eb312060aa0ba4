package selection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAnalyst/internal/apperr"
	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/infrastructure/storage"
)

func TestSearchTerms(t *testing.T) {
	assert.Equal(t, []string{"congress", "budget"}, SearchTerms("What is Congress doing about the budget?"))
	assert.Equal(t, []string{"iran", "israel", "talks", "geneva", "nuclear"},
		SearchTerms("Iran Israel talks in Geneva, nuclear deal and sanctions"))
	assert.Empty(t, SearchTerms("is it on?"))
}

func TestKeywordSelectRanksByMatchesThenRecency(t *testing.T) {
	store, ids := seedStore(t, []seed{
		{"Reuters", "Budget vote delayed", "The senate postponed."},
		{"BBC", "Senate budget showdown", "Both chambers."},
		{"CNN", "Budget outlook", "Economists weigh in."},
		{"NPR", "Gardening tips", "Tomatoes."},
	})

	got, err := NewFallback(store).KeywordSelect(context.Background(), "senate budget", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// ids[0] and ids[1] match both terms, ids[1] is newer; ids[2] matches one
	assert.Equal(t, ids[1], got[0].ID)
	assert.Equal(t, ids[0], got[1].ID)
	assert.Equal(t, ids[2], got[2].ID)

	limited, err := NewFallback(store).KeywordSelect(context.Background(), "senate budget", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestKeywordSelectNoMatches(t *testing.T) {
	store, _ := seedStore(t, []seed{{"BBC", "Weather", "Sunny."}})

	got, err := NewFallback(store).KeywordSelect(context.Background(), "cryptocurrency regulation", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

type failingStore struct {
	*storage.MemoryRepository
}

func (failingStore) SearchText(context.Context, string, int) ([]domain.Article, error) {
	return nil, apperr.NewStore("search", errors.New("disk full"))
}

func TestKeywordSelectPropagatesStoreErrors(t *testing.T) {
	_, err := NewFallback(failingStore{storage.NewMemoryRepository()}).KeywordSelect(context.Background(), "budget", 5)

	var se *apperr.StoreError
	assert.ErrorAs(t, err, &se)
}

func TestIsUSFocused(t *testing.T) {
	tests := []struct {
		question string
		want     bool
	}{
		{"what is congress doing about the budget", true},
		{"Latest on the White House press briefing", true},
		{"How are Democrats reacting?", true},
		{"What did the U.S. say about tariffs", true},
		{"Has the advance of the army slowed in Ukraine", false},
		{"Thousands protest in Paris", false},
		{"football results", false},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUSFocused(tt.question))
		})
	}
}
