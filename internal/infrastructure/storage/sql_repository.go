package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsAnalyst/internal/apperr"
	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/ports"
)

const articlesTable = "articles"

var articleColumns = []string{
	"id", "title", "url", "source", "published_at", "full_text",
	"summary", "intent", "emotion", "created_at",
}

// SQLRepository is the ArticleStore over database/sql. The dialect only
// changes the placeholder format and the schema.
type SQLRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.ArticleStore = (*SQLRepository)(nil)

func newSQLRepository(db *sql.DB, placeholder sq.PlaceholderFormat) *SQLRepository {
	return &SQLRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// DB exposes the underlying handle for health checks.
func (r *SQLRepository) DB() *sql.DB {
	return r.db
}

// Close releases the connection pool.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// Insert adds the article unless its url already exists, in which case the
// stored id is returned.
func (r *SQLRepository) Insert(ctx context.Context, article domain.Article) (int64, bool, error) {
	if strings.TrimSpace(article.URL) == "" {
		return 0, false, apperr.NewStore("insert", errors.New("article url is empty"))
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now()
	}

	query, args, err := r.sb.Insert(articlesTable).
		Columns("title", "url", "source", "published_at", "full_text", "created_at").
		Values(
			article.Title,
			article.URL,
			article.Source,
			nullTime(article.PublishedAt),
			nullString(article.FullText),
			article.CreatedAt.UTC(),
		).
		Suffix("ON CONFLICT (url) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return 0, false, apperr.NewStore("insert", fmt.Errorf("build insert: %w", err))
	}

	var id int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, apperr.NewStore("insert", err)
	}

	query, args, err = r.sb.Select("id").From(articlesTable).Where(sq.Eq{"url": article.URL}).ToSql()
	if err != nil {
		return 0, false, apperr.NewStore("insert", fmt.Errorf("build lookup: %w", err))
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, false, apperr.NewStore("insert", fmt.Errorf("lookup existing url: %w", err))
	}
	return id, false, nil
}

// GetRecent returns up to limit articles, newest first.
func (r *SQLRepository) GetRecent(ctx context.Context, limit int, source string) ([]domain.Article, error) {
	if limit <= 0 {
		return nil, nil
	}

	q := r.sb.Select(articleColumns...).From(articlesTable).
		OrderBy("COALESCE(published_at, created_at) DESC", "id DESC").
		Limit(uint64(limit))
	if source = strings.TrimSpace(source); source != "" {
		q = q.Where(sq.Expr("LOWER(source) = LOWER(?)", source))
	}

	return r.queryArticles(ctx, "recent", q)
}

// GetByIDs returns the articles in the order of ids.
func (r *SQLRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := r.sb.Select(articleColumns...).From(articlesTable).Where(sq.Eq{"id": ids})
	found, err := r.queryArticles(ctx, "by ids", q)
	if err != nil {
		return nil, err
	}
	return orderByIDs(found, ids), nil
}

// SearchText matches query against title and full text ignoring case.
func (r *SQLRepository) SearchText(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	q := r.sb.Select(articleColumns...).From(articlesTable).
		Where(sq.Or{
			sq.Expr(`LOWER(title) LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`LOWER(COALESCE(full_text, '')) LIKE ? ESCAPE '\'`, pattern),
		}).
		OrderBy("COALESCE(published_at, created_at) DESC", "id DESC").
		Limit(uint64(limit))

	return r.queryArticles(ctx, "search", q)
}

// Stats summarizes the article table.
func (r *SQLRepository) Stats(ctx context.Context) (domain.StoreStats, error) {
	var stats domain.StoreStats

	query, args, err := r.sb.Select("source", "COUNT(*)").From(articlesTable).
		GroupBy("source").
		OrderBy("COUNT(*) DESC", "source ASC").
		ToSql()
	if err != nil {
		return stats, apperr.NewStore("stats", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return stats, apperr.NewStore("stats", err)
	}
	for rows.Next() {
		var sc domain.SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			_ = rows.Close()
			return stats, apperr.NewStore("stats", fmt.Errorf("scan source count: %w", err))
		}
		stats.PerSourceCounts = append(stats.PerSourceCounts, sc)
		stats.TotalArticles += sc.Count
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return stats, apperr.NewStore("stats", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return stats, apperr.NewStore("stats", closeErr)
	}
	stats.UniqueSources = len(stats.PerSourceCounts)

	if stats.TotalArticles == 0 {
		return stats, nil
	}

	// COALESCE loses the column type in sqlite, so the bounds are picked in Go.
	earliest, err := r.boundary(ctx, "ASC")
	if err != nil {
		return stats, err
	}
	latest, err := r.boundary(ctx, "DESC")
	if err != nil {
		return stats, err
	}
	stats.Earliest = &earliest
	stats.Latest = &latest

	return stats, nil
}

func (r *SQLRepository) boundary(ctx context.Context, direction string) (time.Time, error) {
	query, args, err := r.sb.Select("published_at", "created_at").From(articlesTable).
		OrderBy("COALESCE(published_at, created_at) " + direction).
		Limit(1).
		ToSql()
	if err != nil {
		return time.Time{}, apperr.NewStore("stats", err)
	}

	var published sql.NullTime
	var created time.Time
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&published, &created); err != nil {
		return time.Time{}, apperr.NewStore("stats", fmt.Errorf("date range: %w", err))
	}
	if published.Valid {
		return published.Time, nil
	}
	return created, nil
}

// PendingAnalysis lists the oldest articles after afterID still missing
// derived fields.
func (r *SQLRepository) PendingAnalysis(ctx context.Context, afterID int64, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		return nil, nil
	}

	q := r.sb.Select(articleColumns...).From(articlesTable).
		Where(sq.Gt{"id": afterID}).
		Where(sq.Or{
			sq.Eq{"summary": nil},
			sq.Eq{"intent": nil},
			sq.Eq{"emotion": nil},
		}).
		OrderBy("id ASC").
		Limit(uint64(limit))

	return r.queryArticles(ctx, "pending analysis", q)
}

// UpdateAnalysis writes the derived fields for one article by id.
func (r *SQLRepository) UpdateAnalysis(ctx context.Context, id int64, analysis domain.Analysis) error {
	query, args, err := r.sb.Update(articlesTable).
		Set("summary", analysis.Summary).
		Set("intent", analysis.Intent).
		Set("emotion", analysis.Emotion).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return apperr.NewStore("update analysis", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return apperr.NewStore("update analysis", err)
	}
	return nil
}

func (r *SQLRepository) queryArticles(ctx context.Context, op string, q sq.SelectBuilder) ([]domain.Article, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, apperr.NewStore(op, fmt.Errorf("build query: %w", err))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.NewStore(op, err)
	}

	var result []domain.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			_ = rows.Close()
			return nil, apperr.NewStore(op, fmt.Errorf("scan article: %w", err))
		}
		result = append(result, article)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, apperr.NewStore(op, fmt.Errorf("rows iteration: %w", rowsErr))
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, apperr.NewStore(op, fmt.Errorf("close rows: %w", closeErr))
	}

	return result, nil
}

func scanArticle(rows *sql.Rows) (domain.Article, error) {
	var (
		a         domain.Article
		published sql.NullTime
		fullText  sql.NullString
		summary   sql.NullString
		intent    sql.NullString
		emotion   sql.NullString
	)
	err := rows.Scan(&a.ID, &a.Title, &a.URL, &a.Source, &published, &fullText,
		&summary, &intent, &emotion, &a.CreatedAt)
	if err != nil {
		return a, err
	}

	if published.Valid {
		t := published.Time
		a.PublishedAt = &t
	}
	a.FullText = fullText.String
	a.Summary = summary.String
	a.Intent = intent.String
	a.Emotion = emotion.String
	return a, nil
}

func orderByIDs(articles []domain.Article, ids []int64) []domain.Article {
	byID := make(map[int64]domain.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}

	out := make([]domain.Article, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		if a, ok := byID[id]; ok {
			out = append(out, a)
			seen[id] = struct{}{}
		}
	}
	return out
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
