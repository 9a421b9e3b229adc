// Package scheduler drives periodic feed polling: it decides which feeds
// are due, fetches them one by one, ingests new entries and adapts each
// feed's polling interval to its publishing rhythm.
package scheduler

import (
	"context"
	"errors"

	"github.com/go-pkgz/lgr"

	"github.com/feedtide/feedtide/pkg/domain"
	"github.com/feedtide/feedtide/pkg/feed"
)

// FeedStore provides feed persistence for the poller
type FeedStore interface {
	FeedsDueForFetch(ctx context.Context) ([]domain.Feed, error)
	Touch(ctx context.Context, id int64) error
	UpdateFeedDetails(ctx context.Context, id int64, title, description, siteURL, etag, lastModified string) error
	UpdateAdaptiveState(ctx context.Context, id int64, intervalMinutes, consecutiveNew int) error
	UpdateTTL(ctx context.Context, id int64, ttlMinutes int) error
}

// ArticleStore ingests normalized entries
type ArticleStore interface {
	InsertIfNew(ctx context.Context, article *domain.Article) (*domain.Article, error)
}

// LogStore records fetch attempts
type LogStore interface {
	Insert(ctx context.Context, entry *domain.FetchLog) error
}

// Fetcher performs one conditional fetch of a feed URL
type Fetcher interface {
	Fetch(ctx context.Context, url, etag, lastModified string) (*feed.FetchResult, error)
}

// Enricher collects OpenGraph metadata for freshly ingested articles
type Enricher interface {
	EnrichArticles(ctx context.Context, articles []domain.Article)
}

// Result is the outcome of fetching a single feed
type Result struct {
	NotModified bool
	NewArticles int
}

// Processor fetches one feed and applies all resulting state changes
type Processor struct {
	feeds    FeedStore
	articles ArticleStore
	logs     LogStore
	fetcher  Fetcher
	enricher Enricher // optional, nil disables enrichment
}

// NewProcessor creates a feed processor
func NewProcessor(feeds FeedStore, articles ArticleStore, logs LogStore, fetcher Fetcher, enricher Enricher) *Processor {
	return &Processor{feeds: feeds, articles: articles, logs: logs, fetcher: fetcher, enricher: enricher}
}

// RefreshFeed fetches a single feed immediately, outside the regular cycle
func (p *Processor) RefreshFeed(ctx context.Context, f *domain.Feed) error {
	_, err := p.FetchSingleFeed(ctx, f)
	return err
}

// FetchSingleFeed performs one conditional fetch and folds the outcome into
// the store: feed metadata, new articles, the audit log and the adaptive
// interval. Fetch failures are classified: connection, DNS and TLS failures
// stamp last_fetched_at so a dead feed waits out its interval, everything
// else leaves the feed due for the next cycle.
func (p *Processor) FetchSingleFeed(ctx context.Context, f *domain.Feed) (Result, error) {
	res, err := p.fetcher.Fetch(ctx, f.URL, f.ETag, f.LastModified)
	if err != nil {
		p.handleFetchError(ctx, f, err)
		return Result{}, err
	}

	if res.NotModified {
		p.handleNotModified(ctx, f)
		return Result{NotModified: true}, nil
	}

	newArticles := p.handleUpdate(ctx, f, res)
	return Result{NewArticles: newArticles}, nil
}

func (p *Processor) handleFetchError(ctx context.Context, f *domain.Feed, err error) {
	entry := &domain.FetchLog{FeedID: f.ID, LogType: domain.LogError, ErrorMessage: err.Error()}
	feedSide := false

	var reqErr *feed.RequestFailedError
	var netErr *feed.NetworkError
	switch {
	case errors.As(err, &reqErr):
		entry.StatusCode = reqErr.StatusCode
		entry.RetryAfter = reqErr.RetryAfter
		if reqErr.StatusCode == 429 {
			entry.LogType = domain.LogRateLimited
			// Retry-After is recorded for the audit trail but does not
			// reschedule the feed, the regular interval applies
			lgr.Printf("[WARN] feed %s rate limited, retry-after %q", f.URL, reqErr.RetryAfter)
		}
	case errors.As(err, &netErr):
		feedSide = isFeedSideError(netErr.Err)
	}

	// the log row is written regardless of how the failure is classified
	p.logAttempt(ctx, entry)

	if feedSide {
		if touchErr := p.feeds.Touch(ctx, f.ID); touchErr != nil {
			lgr.Printf("[ERROR] failed to touch feed %d: %v", f.ID, touchErr)
		}
		lgr.Printf("[WARN] fetch of %s failed on feed side: %v", f.URL, err)
	} else {
		lgr.Printf("[WARN] fetch of %s failed, will retry next cycle: %v", f.URL, err)
	}
}

func (p *Processor) handleNotModified(ctx context.Context, f *domain.Feed) {
	if err := p.feeds.Touch(ctx, f.ID); err != nil {
		lgr.Printf("[ERROR] failed to touch feed %d: %v", f.ID, err)
	}
	p.applyAdaptive(ctx, f, 0)
	p.logAttempt(ctx, &domain.FetchLog{FeedID: f.ID, LogType: domain.LogNotModified, StatusCode: 304})
	lgr.Printf("[DEBUG] feed %s not modified", f.URL)
}

func (p *Processor) handleUpdate(ctx context.Context, f *domain.Feed, res *feed.FetchResult) int {
	// description is filled once and kept; the feed title and then the feed
	// URL stand in for feeds that never send one
	description := ""
	if f.Description == "" {
		description = res.Feed.Description
		if description == "" {
			description = res.Feed.Title
		}
		if description == "" {
			description = f.URL
		}
	}

	if err := p.feeds.UpdateFeedDetails(ctx, f.ID, res.Feed.Title, description,
		res.Feed.SiteURL, res.ETag, res.LastModified); err != nil {
		lgr.Printf("[ERROR] failed to update feed %d details: %v", f.ID, err)
	}

	if res.TTLMinutes > 0 && res.TTLMinutes != f.TTLMinutes {
		// advisory only, stored for display and never applied to the interval
		if err := p.feeds.UpdateTTL(ctx, f.ID, res.TTLMinutes); err != nil {
			lgr.Printf("[ERROR] failed to update feed %d ttl: %v", f.ID, err)
		}
	}

	newArticles := 0
	var queue []domain.Article
	for i := range res.Feed.Entries {
		inserted, err := p.articles.InsertIfNew(ctx, entryToArticle(f, &res.Feed.Entries[i]))
		if err != nil {
			lgr.Printf("[ERROR] failed to insert article %q for feed %d: %v", res.Feed.Entries[i].GUID, f.ID, err)
			continue
		}
		if inserted != nil {
			newArticles++
			queue = append(queue, *inserted)
		}
	}

	p.applyAdaptive(ctx, f, newArticles)
	p.logAttempt(ctx, &domain.FetchLog{FeedID: f.ID, LogType: domain.LogSuccess, StatusCode: 200, NewArticles: newArticles})
	lgr.Printf("[INFO] fetched %s: %d entries, %d new", f.URL, len(res.Feed.Entries), newArticles)

	if p.enricher != nil && len(queue) > 0 {
		// fire and forget, outlives the fetch that queued it
		go p.enricher.EnrichArticles(context.WithoutCancel(ctx), queue)
	}
	return newArticles
}

func (p *Processor) applyAdaptive(ctx context.Context, f *domain.Feed, newArticles int) {
	if !f.Adaptive() {
		return
	}
	interval, consecutive := nextAdaptiveState(f.FetchIntervalMinutes, f.ConsecutiveNewArticles, newArticles)
	if interval == f.FetchIntervalMinutes && consecutive == f.ConsecutiveNewArticles {
		return
	}
	if err := p.feeds.UpdateAdaptiveState(ctx, f.ID, interval, consecutive); err != nil {
		lgr.Printf("[ERROR] failed to update adaptive state for feed %d: %v", f.ID, err)
		return
	}
	if interval != f.FetchIntervalMinutes {
		lgr.Printf("[DEBUG] feed %s interval %d -> %d min", f.URL, f.FetchIntervalMinutes, interval)
	}
}

func (p *Processor) logAttempt(ctx context.Context, entry *domain.FetchLog) {
	if err := p.logs.Insert(ctx, entry); err != nil {
		lgr.Printf("[ERROR] failed to record fetch log for feed %d: %v", entry.FeedID, err)
	}
}

// entryToArticle maps a normalized entry onto a storable article
func entryToArticle(f *domain.Feed, entry *domain.ParsedEntry) *domain.Article {
	return &domain.Article{
		FeedID:      f.ID,
		GUID:        entry.GUID,
		Title:       entry.Title,
		URL:         entry.URL,
		Content:     entry.Content,
		Summary:     entry.Summary,
		Author:      entry.Author,
		PublishedAt: entry.PublishedAt,
	}
}
