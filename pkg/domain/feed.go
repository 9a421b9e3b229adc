package domain

import "time"

// fetch frequency modes
const (
	FrequencyAdaptive = "adaptive"
)

// Feed represents a subscribed feed source
type Feed struct {
	ID                     int64      `json:"id"`
	URL                    string     `json:"url"`
	Title                  string     `json:"title"`
	Description            string     `json:"description"`
	SiteURL                string     `json:"site_url"`
	ETag                   string     `json:"-"`
	LastModified           string     `json:"-"`
	LastFetchedAt          *time.Time `json:"last_fetched_at,omitempty"`
	FetchIntervalMinutes   int        `json:"fetch_interval_minutes"`
	FetchFrequency         string     `json:"fetch_frequency"` // "adaptive" or fixed hours as decimal string
	TTLMinutes             int        `json:"ttl_minutes,omitempty"` // advisory value from the feed itself, 0 when absent
	ConsecutiveNewArticles int        `json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Adaptive reports whether the feed's polling interval self-adjusts
func (f *Feed) Adaptive() bool {
	return f.FetchFrequency == FrequencyAdaptive
}
