package domain

import "time"

// fetch log types
const (
	LogSuccess     = "success"
	LogNotModified = "not_modified"
	LogError       = "error"
	LogRateLimited = "rate_limited"
)

// FetchLog is an append-only audit record of one fetch attempt
type FetchLog struct {
	ID           int64     `json:"id"`
	FeedID       int64     `json:"feed_id"`
	LogType      string    `json:"log_type"`
	StatusCode   int       `json:"status_code,omitempty"` // 0 when the failure never produced an HTTP status
	NewArticles  int       `json:"new_articles"`
	ErrorMessage string    `json:"error_message,omitempty"`
	RetryAfter   string    `json:"retry_after,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`

	// joined data, populated by log listing queries
	FeedTitle string `json:"feed_title,omitempty"`
	FeedURL   string `json:"feed_url,omitempty"`
}
