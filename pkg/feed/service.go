package feed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/feedtide/feedtide/pkg/domain"
	"github.com/feedtide/feedtide/pkg/safeurl"
)

// default polling interval for newly registered feeds, minutes
const defaultIntervalMinutes = 60

// ErrDuplicateFeed indicates the URL is already subscribed
var ErrDuplicateFeed = errors.New("feed already exists")

// Store provides feed persistence for the registration service
type Store interface {
	CreateFeed(ctx context.Context, feed *domain.Feed) (int64, error)
	GetFeed(ctx context.Context, id int64) (*domain.Feed, error)
	ListFeeds(ctx context.Context) ([]domain.Feed, error)
	DeleteFeed(ctx context.Context, id int64) error
	UpdateFeedProperties(ctx context.Context, feed *domain.Feed) error
}

// Refresher triggers an immediate fetch of a single feed
type Refresher interface {
	RefreshFeed(ctx context.Context, feed *domain.Feed) error
}

// Service handles feed registration and management. URL safety is checked
// once here, at subscription time; the scheduler trusts stored URLs.
type Service struct {
	store     Store
	refresher Refresher
}

// NewService creates a feed service. The refresher may be nil, in which case
// new feeds wait for the next scheduler cycle instead of fetching right away.
func NewService(store Store, refresher Refresher) *Service {
	return &Service{store: store, refresher: refresher}
}

// Create validates and registers a new subscription, then attempts an
// immediate first fetch. The fetch is best-effort: a dead or misbehaving
// feed is still subscribed and will be retried on schedule.
func (s *Service) Create(ctx context.Context, url, frequency string) (*domain.Feed, error) {
	if err := safeurl.Validate(url); err != nil {
		return nil, fmt.Errorf("validate url: %w", err)
	}

	interval, freq, err := ParseFetchFrequency(frequency)
	if err != nil {
		return nil, err
	}

	feed := &domain.Feed{URL: url, FetchIntervalMinutes: interval, FetchFrequency: freq}
	id, err := s.store.CreateFeed(ctx, feed)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateFeed
		}
		return nil, fmt.Errorf("create feed: %w", err)
	}
	feed.ID = id
	lgr.Printf("[INFO] subscribed to feed %s (id %d, every %d min)", url, id, interval)

	if s.refresher != nil {
		if err := s.refresher.RefreshFeed(ctx, feed); err != nil {
			lgr.Printf("[WARN] initial fetch of %s failed: %v", url, err)
		}
	}

	return s.store.GetFeed(ctx, id)
}

// Get returns a single feed by ID
func (s *Service) Get(ctx context.Context, id int64) (*domain.Feed, error) {
	return s.store.GetFeed(ctx, id)
}

// List returns all subscribed feeds
func (s *Service) List(ctx context.Context) ([]domain.Feed, error) {
	return s.store.ListFeeds(ctx)
}

// Delete removes a subscription along with its articles and fetch history
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteFeed(ctx, id); err != nil {
		return fmt.Errorf("delete feed %d: %w", id, err)
	}
	lgr.Printf("[INFO] deleted feed %d", id)
	return nil
}

// UpdateRequest carries optional feed property changes, nil fields are left untouched
type UpdateRequest struct {
	Title          *string `json:"title,omitempty"`
	SiteURL        *string `json:"site_url,omitempty"`
	FetchFrequency *string `json:"fetch_frequency,omitempty"`
}

// Update applies property changes to an existing feed. Changing the fetch
// frequency resets the polling interval accordingly.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*domain.Feed, error) {
	feed, err := s.store.GetFeed(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get feed %d: %w", id, err)
	}

	if req.Title != nil {
		feed.Title = *req.Title
	}
	if req.SiteURL != nil {
		feed.SiteURL = *req.SiteURL
	}
	if req.FetchFrequency != nil {
		interval, freq, err := ParseFetchFrequency(*req.FetchFrequency)
		if err != nil {
			return nil, err
		}
		feed.FetchIntervalMinutes = interval
		feed.FetchFrequency = freq
		feed.ConsecutiveNewArticles = 0
	}

	if err := s.store.UpdateFeedProperties(ctx, feed); err != nil {
		return nil, fmt.Errorf("update feed %d: %w", id, err)
	}
	return s.store.GetFeed(ctx, id)
}

// ImportResult reports the outcome of one URL in a bulk import
type ImportResult struct {
	URL    string `json:"url"`
	FeedID int64  `json:"feed_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Import subscribes to multiple URLs concurrently. Individual failures are
// reported per URL and never abort the batch.
func (s *Service) Import(ctx context.Context, urls []string) []ImportResult {
	results := make([]ImportResult, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, url := range urls {
		g.Go(func() error {
			feed, err := s.Create(gctx, url, "")
			if err != nil {
				results[i] = ImportResult{URL: url, Error: err.Error()}
				return nil
			}
			results[i] = ImportResult{URL: url, FeedID: feed.ID}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors, failures live in results

	return results
}

// ParseFetchFrequency maps a user-supplied frequency to a polling interval.
// Accepted values are "adaptive" (also the default for empty input) or a
// fixed number of hours between 1 and 168.
func ParseFetchFrequency(s string) (intervalMinutes int, frequency string, err error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == domain.FrequencyAdaptive {
		return defaultIntervalMinutes, domain.FrequencyAdaptive, nil
	}
	hours, convErr := strconv.Atoi(s)
	if convErr != nil || hours < 1 || hours > 168 {
		return 0, "", fmt.Errorf("invalid fetch frequency %q: expected \"adaptive\" or hours between 1 and 168", s)
	}
	return hours * 60, s, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
