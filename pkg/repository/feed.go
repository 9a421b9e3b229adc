package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/feedtide/feedtide/pkg/domain"
)

// FeedRepository handles feed-related database operations
type FeedRepository struct {
	db *sqlx.DB
}

// feedSQL represents a feed row for SQL operations
type feedSQL struct {
	ID                     int64      `db:"id"`
	URL                    string     `db:"url"`
	Title                  string     `db:"title"`
	Description            string     `db:"description"`
	SiteURL                string     `db:"site_url"`
	ETag                   string     `db:"etag"`
	LastModified           string     `db:"last_modified"`
	LastFetchedAt          *time.Time `db:"last_fetched_at"`
	FetchIntervalMinutes   int        `db:"fetch_interval_minutes"`
	FetchFrequency         string     `db:"fetch_frequency"`
	TTLMinutes             int        `db:"ttl_minutes"`
	ConsecutiveNewArticles int        `db:"consecutive_new_articles"`
	CreatedAt              time.Time  `db:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at"`
}

func (f *feedSQL) toDomain() domain.Feed {
	return domain.Feed{
		ID:                     f.ID,
		URL:                    f.URL,
		Title:                  f.Title,
		Description:            f.Description,
		SiteURL:                f.SiteURL,
		ETag:                   f.ETag,
		LastModified:           f.LastModified,
		LastFetchedAt:          f.LastFetchedAt,
		FetchIntervalMinutes:   f.FetchIntervalMinutes,
		FetchFrequency:         f.FetchFrequency,
		TTLMinutes:             f.TTLMinutes,
		ConsecutiveNewArticles: f.ConsecutiveNewArticles,
		CreatedAt:              f.CreatedAt,
		UpdatedAt:              f.UpdatedAt,
	}
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(database *sqlx.DB) *FeedRepository {
	return &FeedRepository{db: database}
}

// CreateFeed inserts a new feed and returns its ID
func (r *FeedRepository) CreateFeed(ctx context.Context, feed *domain.Feed) (int64, error) {
	interval := feed.FetchIntervalMinutes
	if interval <= 0 {
		interval = 60
	}
	frequency := feed.FetchFrequency
	if frequency == "" {
		frequency = domain.FrequencyAdaptive
	}

	query := `INSERT INTO feeds (url, title, description, site_url, fetch_interval_minutes, fetch_frequency)
		VALUES (?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, feed.URL, feed.Title, feed.Description, feed.SiteURL, interval, frequency)
	if err != nil {
		return 0, fmt.Errorf("create feed: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get insert id: %w", err)
	}
	return id, nil
}

// GetFeed returns a single feed by ID
func (r *FeedRepository) GetFeed(ctx context.Context, id int64) (*domain.Feed, error) {
	var f feedSQL
	if err := r.db.GetContext(ctx, &f, "SELECT * FROM feeds WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("get feed %d: %w", id, err)
	}
	feed := f.toDomain()
	return &feed, nil
}

// ListFeeds returns all feeds ordered by creation time
func (r *FeedRepository) ListFeeds(ctx context.Context) ([]domain.Feed, error) {
	var rows []feedSQL
	if err := r.db.SelectContext(ctx, &rows, "SELECT * FROM feeds ORDER BY created_at, id"); err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	feeds := make([]domain.Feed, len(rows))
	for i := range rows {
		feeds[i] = rows[i].toDomain()
	}
	return feeds, nil
}

// DeleteFeed removes a feed; articles and fetch logs go with it via cascade
func (r *FeedRepository) DeleteFeed(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM feeds WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete feed %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// FeedsDueForFetch returns feeds whose polling interval has elapsed, never
// fetched ones included
func (r *FeedRepository) FeedsDueForFetch(ctx context.Context) ([]domain.Feed, error) {
	query := `
		SELECT * FROM feeds
		WHERE last_fetched_at IS NULL
		   OR datetime(last_fetched_at, '+' || fetch_interval_minutes || ' minutes') <= datetime('now')
		ORDER BY id
	`
	var rows []feedSQL
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("feeds due for fetch: %w", err)
	}
	feeds := make([]domain.Feed, len(rows))
	for i := range rows {
		feeds[i] = rows[i].toDomain()
	}
	return feeds, nil
}

// Touch stamps last_fetched_at without changing anything else. Used after
// feed-side failures so a broken feed keeps its place in the schedule
// instead of being retried every cycle.
func (r *FeedRepository) Touch(ctx context.Context, id int64) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `UPDATE feeds SET last_fetched_at = datetime('now'), updated_at = datetime('now') WHERE id = ?`
		_, err := r.db.ExecContext(ctx, query, id)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("touch feed: %w", err)}
		}
		return nil
	})
}

// UpdateFeedDetails records a successful fetch: stamps last_fetched_at,
// stores the new cache validators and refreshes feed metadata. Empty
// incoming metadata keeps the stored value so a feed that stops sending a
// title does not wipe the one we have.
func (r *FeedRepository) UpdateFeedDetails(ctx context.Context, id int64, title, description, siteURL, etag, lastModified string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			UPDATE feeds
			SET last_fetched_at = datetime('now'),
			    etag = ?,
			    last_modified = ?,
			    title = CASE WHEN ? = '' THEN title ELSE ? END,
			    description = CASE WHEN ? = '' THEN description ELSE ? END,
			    site_url = CASE WHEN ? = '' THEN site_url ELSE ? END,
			    updated_at = datetime('now')
			WHERE id = ?
		`
		_, err := r.db.ExecContext(ctx, query, etag, lastModified,
			title, title, description, description, siteURL, siteURL, id)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update feed details: %w", err)}
		}
		return nil
	})
}

// UpdateAdaptiveState stores the recalculated polling interval and the
// consecutive new-content counter
func (r *FeedRepository) UpdateAdaptiveState(ctx context.Context, id int64, intervalMinutes, consecutiveNew int) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `UPDATE feeds SET fetch_interval_minutes = ?, consecutive_new_articles = ?, updated_at = datetime('now') WHERE id = ?`
		_, err := r.db.ExecContext(ctx, query, intervalMinutes, consecutiveNew, id)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update adaptive state: %w", err)}
		}
		return nil
	})
}

// UpdateTTL stores the feed-advertised ttl value
func (r *FeedRepository) UpdateTTL(ctx context.Context, id int64, ttlMinutes int) error {
	query := `UPDATE feeds SET ttl_minutes = ?, updated_at = datetime('now') WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, ttlMinutes, id); err != nil {
		return fmt.Errorf("update feed ttl: %w", err)
	}
	return nil
}

// UpdateFeedProperties stores user-editable feed properties
func (r *FeedRepository) UpdateFeedProperties(ctx context.Context, feed *domain.Feed) error {
	query := `
		UPDATE feeds
		SET title = ?,
		    site_url = ?,
		    fetch_interval_minutes = ?,
		    fetch_frequency = ?,
		    consecutive_new_articles = ?,
		    updated_at = datetime('now')
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, feed.Title, feed.SiteURL,
		feed.FetchIntervalMinutes, feed.FetchFrequency, feed.ConsecutiveNewArticles, feed.ID)
	if err != nil {
		return fmt.Errorf("update feed properties: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update feed %d: %w", feed.ID, sql.ErrNoRows)
	}
	return nil
}
