package ports

import (
	"context"
	"time"

	"NewsAnalyst/internal/domain"
)

// ArticleStore persists articles. Writes go by primary key or unique url only.
type ArticleStore interface {
	// Insert stores a new article. A duplicate url is not an error: the
	// existing id is returned with created == false.
	Insert(ctx context.Context, article domain.Article) (id int64, created bool, err error)
	// GetRecent returns up to limit articles, newest first. An empty source
	// means every source; otherwise the source name must match ignoring case.
	GetRecent(ctx context.Context, limit int, source string) ([]domain.Article, error)
	// GetByIDs returns the articles in the order of ids, skipping unknown ones.
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Article, error)
	// SearchText matches query case-insensitively against title and full text.
	SearchText(ctx context.Context, query string, limit int) ([]domain.Article, error)
	Stats(ctx context.Context) (domain.StoreStats, error)
	// PendingAnalysis lists articles with id > afterID whose derived fields
	// are still empty, lowest id first.
	PendingAnalysis(ctx context.Context, afterID int64, limit int) ([]domain.Article, error)
	UpdateAnalysis(ctx context.Context, id int64, analysis domain.Analysis) error
}

// FeedFetcher pulls the newest raw items for one source.
type FeedFetcher interface {
	Fetch(ctx context.Context, profile domain.SourceProfile, limit int) ([]domain.RawArticle, error)
}

// PageReader loads the readable title and text of an arbitrary article url.
type PageReader interface {
	ReadPage(ctx context.Context, url string) (title, text string, err error)
}

// CompletionRequest is a single inference round-trip.
type CompletionRequest struct {
	System string
	Prompt string
	// Shape describes the JSON document expected back. Empty means free text.
	Shape       string
	MaxTokens   int
	Temperature float64
}

// Completer runs one inference call. Implementations must not retry on
// their own unless configured to.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Locker provides the process-wide (or cluster-wide) fetch cycle lock.
type Locker interface {
	// TryLock never blocks. When acquired is false the lock is held elsewhere.
	TryLock(ctx context.Context, key string) (unlock func(), acquired bool, err error)
}

// Notifier streams fetch digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when fetch cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
