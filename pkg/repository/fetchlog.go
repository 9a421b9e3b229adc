package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/feedtide/feedtide/pkg/domain"
)

// LogRepository handles the fetch audit trail
type LogRepository struct {
	db *sqlx.DB
}

// fetchLogSQL represents a fetch log row, feed columns come from the listing join
type fetchLogSQL struct {
	ID           int64     `db:"id"`
	FeedID       int64     `db:"feed_id"`
	LogType      string    `db:"log_type"`
	StatusCode   int       `db:"status_code"`
	NewArticles  int       `db:"new_articles"`
	ErrorMessage string    `db:"error_message"`
	RetryAfter   string    `db:"retry_after"`
	FetchedAt    time.Time `db:"fetched_at"`
	FeedTitle    string    `db:"feed_title"`
	FeedURL      string    `db:"feed_url"`
}

func (l *fetchLogSQL) toDomain() domain.FetchLog {
	return domain.FetchLog{
		ID:           l.ID,
		FeedID:       l.FeedID,
		LogType:      l.LogType,
		StatusCode:   l.StatusCode,
		NewArticles:  l.NewArticles,
		ErrorMessage: l.ErrorMessage,
		RetryAfter:   l.RetryAfter,
		FetchedAt:    l.FetchedAt,
		FeedTitle:    l.FeedTitle,
		FeedURL:      l.FeedURL,
	}
}

// NewLogRepository creates a new fetch log repository
func NewLogRepository(database *sqlx.DB) *LogRepository {
	return &LogRepository{db: database}
}

// Insert appends one fetch attempt record. Failures here must not abort the
// fetch that produced them, callers log and move on.
func (r *LogRepository) Insert(ctx context.Context, entry *domain.FetchLog) error {
	query := `INSERT INTO fetch_logs (feed_id, log_type, status_code, new_articles, error_message, retry_after)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, entry.FeedID, entry.LogType, entry.StatusCode,
		entry.NewArticles, entry.ErrorMessage, entry.RetryAfter)
	if err != nil {
		return fmt.Errorf("insert fetch log: %w", err)
	}
	return nil
}

// LogFilter narrows fetch log listings
type LogFilter struct {
	FeedID  int64  // 0 means all feeds
	LogType string // empty means all types
	Limit   int
	Offset  int
}

// List returns fetch log entries newest first, joined with feed identity
func (r *LogRepository) List(ctx context.Context, filter LogFilter) ([]domain.FetchLog, error) {
	conditions := []string{"1=1"}
	args := []any{}

	if filter.FeedID > 0 {
		conditions = append(conditions, "l.feed_id = ?")
		args = append(args, filter.FeedID)
	}
	if filter.LogType != "" {
		conditions = append(conditions, "l.log_type = ?")
		args = append(args, filter.LogType)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT l.id, l.feed_id, l.log_type, l.status_code, l.new_articles,
		       l.error_message, l.retry_after, l.fetched_at,
		       f.title AS feed_title, f.url AS feed_url
		FROM fetch_logs l
		JOIN feeds f ON f.id = l.feed_id
		WHERE %s
		ORDER BY l.fetched_at DESC, l.id DESC
		LIMIT ? OFFSET ?
	`, strings.Join(conditions, " AND "))
	args = append(args, limit, filter.Offset)

	var rows []fetchLogSQL
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list fetch logs: %w", err)
	}
	logs := make([]domain.FetchLog, len(rows))
	for i := range rows {
		logs[i] = rows[i].toDomain()
	}
	return logs, nil
}
