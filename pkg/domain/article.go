package domain

import "time"

// Article represents a stored feed entry. The (FeedID, GUID) pair is the
// dedup identity; a row is written once and never overwritten by later
// fetches of the same guid.
type Article struct {
	ID            int64      `json:"id"`
	FeedID        int64      `json:"feed_id"`
	GUID          string     `json:"guid"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Content       string     `json:"content,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	Author        string     `json:"author,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	IsRead        bool       `json:"is_read"`
	IsStarred     bool       `json:"is_starred"`
	OGImage       string     `json:"og_image,omitempty"`
	OGDescription string     `json:"og_description,omitempty"`
	OGSiteName    string     `json:"og_site_name,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ArticleFilter represents filtering criteria for article listings
type ArticleFilter struct {
	FeedID      int64 // 0 means all feeds
	UnreadOnly  bool
	StarredOnly bool
	Limit       int
	Offset      int
}
