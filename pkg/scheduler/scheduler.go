package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/feedtide/feedtide/pkg/domain"
)

// FeedProcessor fetches one feed and applies the outcome
type FeedProcessor interface {
	FetchSingleFeed(ctx context.Context, f *domain.Feed) (Result, error)
}

// Config holds scheduler timing configuration
type Config struct {
	PollInterval time.Duration // how often the due-feeds check runs
	FetchPacing  time.Duration // delay between consecutive feeds in one cycle
}

// Scheduler runs the polling loop: every tick it collects due feeds and
// fetches them strictly one after another with a small pacing delay, so a
// large subscription list never bursts against the network.
type Scheduler struct {
	feeds        FeedStore
	processor    FeedProcessor
	pollInterval time.Duration
	fetchPacing  time.Duration
	wg           sync.WaitGroup
	cancel       context.CancelFunc
}

// NewScheduler creates a scheduler instance
func NewScheduler(feeds FeedStore, processor FeedProcessor, cfg Config) *Scheduler {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	if cfg.FetchPacing == 0 {
		cfg.FetchPacing = 500 * time.Millisecond
	}
	return &Scheduler{
		feeds:        feeds,
		processor:    processor,
		pollInterval: cfg.PollInterval,
		fetchPacing:  cfg.FetchPacing,
	}
}

// Start begins the polling loop, the first cycle runs immediately
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.pollWorker(ctx)

	lgr.Printf("[INFO] scheduler started, poll interval %v, pacing %v", s.pollInterval, s.fetchPacing)
}

// Stop gracefully stops the scheduler and waits for the current cycle
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

func (s *Scheduler) pollWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// run immediately on start
	if _, _, err := s.FetchAllDue(ctx); err != nil {
		lgr.Printf("[ERROR] initial poll cycle failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := s.FetchAllDue(ctx); err != nil {
				lgr.Printf("[ERROR] poll cycle failed: %v", err)
			}
		}
	}
}

// FetchAllDue runs one polling cycle over every due feed, sequentially.
// Per-feed failures are already classified and recorded by the processor,
// they never abort the cycle. Returns how many feeds were fetched and how
// many new articles arrived.
func (s *Scheduler) FetchAllDue(ctx context.Context) (feedsFetched, newArticles int, err error) {
	due, err := s.feeds.FeedsDueForFetch(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(due) == 0 {
		lgr.Printf("[DEBUG] no feeds due for fetch")
		return 0, 0, nil
	}

	lgr.Printf("[INFO] fetching %d due feeds", len(due))
	for i := range due {
		if i > 0 {
			select {
			case <-ctx.Done():
				return feedsFetched, newArticles, ctx.Err()
			case <-time.After(s.fetchPacing):
			}
		}
		if ctx.Err() != nil {
			return feedsFetched, newArticles, ctx.Err()
		}

		res, fetchErr := s.processor.FetchSingleFeed(ctx, &due[i])
		if fetchErr != nil {
			continue // classified and logged by the processor
		}
		feedsFetched++
		newArticles += res.NewArticles
	}

	lgr.Printf("[INFO] poll cycle done: %d fetched, %d new articles", feedsFetched, newArticles)
	return feedsFetched, newArticles, nil
}
