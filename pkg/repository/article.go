package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/feedtide/feedtide/pkg/domain"
)

// ArticleRepository handles article-related database operations
type ArticleRepository struct {
	db *sqlx.DB
}

// articleSQL represents an article row for SQL operations
type articleSQL struct {
	ID            int64      `db:"id"`
	FeedID        int64      `db:"feed_id"`
	GUID          string     `db:"guid"`
	Title         string     `db:"title"`
	URL           string     `db:"url"`
	Content       string     `db:"content"`
	Summary       string     `db:"summary"`
	Author        string     `db:"author"`
	PublishedAt   *time.Time `db:"published_at"`
	IsRead        bool       `db:"is_read"`
	IsStarred     bool       `db:"is_starred"`
	OGImage       string     `db:"og_image"`
	OGDescription string     `db:"og_description"`
	OGSiteName    string     `db:"og_site_name"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

func (a *articleSQL) toDomain() domain.Article {
	return domain.Article{
		ID:            a.ID,
		FeedID:        a.FeedID,
		GUID:          a.GUID,
		Title:         a.Title,
		URL:           a.URL,
		Content:       a.Content,
		Summary:       a.Summary,
		Author:        a.Author,
		PublishedAt:   a.PublishedAt,
		IsRead:        a.IsRead,
		IsStarred:     a.IsStarred,
		OGImage:       a.OGImage,
		OGDescription: a.OGDescription,
		OGSiteName:    a.OGSiteName,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(database *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: database}
}

// InsertIfNew inserts an article unless the (feed_id, guid) pair already
// exists. First write wins: a duplicate is silently skipped and (nil, nil)
// is returned, the stored row keeps whatever the first fetch saw.
func (r *ArticleRepository) InsertIfNew(ctx context.Context, article *domain.Article) (*domain.Article, error) {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	var inserted *domain.Article
	err := retrier.Do(ctx, func() error {
		query := `
			INSERT INTO articles (feed_id, guid, title, url, content, summary, author, published_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (feed_id, guid) DO NOTHING
			RETURNING id
		`
		var id int64
		err := r.db.QueryRowxContext(ctx, query, article.FeedID, article.GUID, article.Title,
			article.URL, article.Content, article.Summary, article.Author, article.PublishedAt).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			inserted = nil // duplicate, skipped
			return nil
		}
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("insert article: %w", err)}
		}
		cp := *article
		cp.ID = id
		inserted = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// GetArticle returns a single article by ID
func (r *ArticleRepository) GetArticle(ctx context.Context, id int64) (*domain.Article, error) {
	var a articleSQL
	if err := r.db.GetContext(ctx, &a, "SELECT * FROM articles WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("get article %d: %w", id, err)
	}
	article := a.toDomain()
	return &article, nil
}

// ListArticles returns articles matching the filter, newest first. Articles
// without a published date sort by stored time.
func (r *ArticleRepository) ListArticles(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, error) {
	conditions := []string{"1=1"}
	args := []any{}

	if filter.FeedID > 0 {
		conditions = append(conditions, "feed_id = ?")
		args = append(args, filter.FeedID)
	}
	if filter.UnreadOnly {
		conditions = append(conditions, "is_read = 0")
	}
	if filter.StarredOnly {
		conditions = append(conditions, "is_starred = 1")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT * FROM articles
		WHERE %s
		ORDER BY COALESCE(published_at, created_at) DESC, id DESC
		LIMIT ? OFFSET ?
	`, strings.Join(conditions, " AND "))
	args = append(args, limit, filter.Offset)

	var rows []articleSQL
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	articles := make([]domain.Article, len(rows))
	for i := range rows {
		articles[i] = rows[i].toDomain()
	}
	return articles, nil
}

// UpdateReadStatus marks an article read or unread
func (r *ArticleRepository) UpdateReadStatus(ctx context.Context, id int64, read bool) error {
	return r.setFlag(ctx, id, "is_read", read)
}

// UpdateStarredStatus stars or unstars an article
func (r *ArticleRepository) UpdateStarredStatus(ctx context.Context, id int64, starred bool) error {
	return r.setFlag(ctx, id, "is_starred", starred)
}

func (r *ArticleRepository) setFlag(ctx context.Context, id int64, column string, value bool) error {
	query := fmt.Sprintf("UPDATE articles SET %s = ?, updated_at = datetime('now') WHERE id = ?", column)
	result, err := r.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("update article %s: %w", column, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update article %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// MarkAllRead marks all unread articles read, optionally scoped to one feed.
// Returns the number of articles affected.
func (r *ArticleRepository) MarkAllRead(ctx context.Context, feedID int64) (int64, error) {
	query := "UPDATE articles SET is_read = 1, updated_at = datetime('now') WHERE is_read = 0"
	args := []any{}
	if feedID > 0 {
		query += " AND feed_id = ?"
		args = append(args, feedID)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// UpdateEnrichment stores OpenGraph metadata collected after ingestion
func (r *ArticleRepository) UpdateEnrichment(ctx context.Context, id int64, ogImage, ogDescription, ogSiteName string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `UPDATE articles SET og_image = ?, og_description = ?, og_site_name = ?, updated_at = datetime('now') WHERE id = ?`
		_, err := r.db.ExecContext(ctx, query, ogImage, ogDescription, ogSiteName, id)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update enrichment: %w", err)}
		}
		return nil
	})
}
