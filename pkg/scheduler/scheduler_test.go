package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedtide/feedtide/pkg/domain"
)

type processorMock struct {
	FetchSingleFeedFunc func(ctx context.Context, f *domain.Feed) (Result, error)

	mu    sync.Mutex
	calls []int64
	times []time.Time
}

func (m *processorMock) FetchSingleFeed(ctx context.Context, f *domain.Feed) (Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, f.ID)
	m.times = append(m.times, time.Now())
	m.mu.Unlock()
	return m.FetchSingleFeedFunc(ctx, f)
}

func (m *processorMock) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestScheduler_FetchAllDue(t *testing.T) {
	feeds := &feedStoreMock{FeedsDueForFetchFunc: func(ctx context.Context) ([]domain.Feed, error) {
		return []domain.Feed{{ID: 1}, {ID: 2}, {ID: 3}}, nil
	}}
	processor := &processorMock{FetchSingleFeedFunc: func(ctx context.Context, f *domain.Feed) (Result, error) {
		if f.ID == 2 {
			return Result{}, errors.New("boom")
		}
		return Result{NewArticles: int(f.ID)}, nil
	}}

	s := NewScheduler(feeds, processor, Config{FetchPacing: 10 * time.Millisecond})
	fetched, newArticles, err := s.FetchAllDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, fetched, "failed feed is skipped from the counts")
	assert.Equal(t, 4, newArticles)
	assert.Equal(t, []int64{1, 2, 3}, processor.calls, "strictly sequential in due order")
}

func TestScheduler_FetchAllDue_Pacing(t *testing.T) {
	feeds := &feedStoreMock{FeedsDueForFetchFunc: func(ctx context.Context) ([]domain.Feed, error) {
		return []domain.Feed{{ID: 1}, {ID: 2}, {ID: 3}}, nil
	}}
	processor := &processorMock{FetchSingleFeedFunc: func(ctx context.Context, f *domain.Feed) (Result, error) {
		return Result{}, nil
	}}

	s := NewScheduler(feeds, processor, Config{FetchPacing: 50 * time.Millisecond})
	start := time.Now()
	_, _, err := s.FetchAllDue(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond, "two pacing gaps for three feeds")
	require.Len(t, processor.times, 3)
	assert.GreaterOrEqual(t, processor.times[1].Sub(processor.times[0]), 50*time.Millisecond)
}

func TestScheduler_FetchAllDue_Empty(t *testing.T) {
	feeds := &feedStoreMock{FeedsDueForFetchFunc: func(ctx context.Context) ([]domain.Feed, error) {
		return nil, nil
	}}
	processor := &processorMock{FetchSingleFeedFunc: func(ctx context.Context, f *domain.Feed) (Result, error) {
		t.Fatal("no feed should be fetched")
		return Result{}, nil
	}}

	s := NewScheduler(feeds, processor, Config{})
	fetched, newArticles, err := s.FetchAllDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fetched)
	assert.Zero(t, newArticles)
}

func TestScheduler_FetchAllDue_StoreError(t *testing.T) {
	feeds := &feedStoreMock{FeedsDueForFetchFunc: func(ctx context.Context) ([]domain.Feed, error) {
		return nil, errors.New("db gone")
	}}
	s := NewScheduler(feeds, &processorMock{}, Config{})
	_, _, err := s.FetchAllDue(context.Background())
	assert.Error(t, err)
}

func TestScheduler_FetchAllDue_ContextCancel(t *testing.T) {
	feeds := &feedStoreMock{FeedsDueForFetchFunc: func(ctx context.Context) ([]domain.Feed, error) {
		return []domain.Feed{{ID: 1}, {ID: 2}, {ID: 3}}, nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	processor := &processorMock{FetchSingleFeedFunc: func(ctx context.Context, f *domain.Feed) (Result, error) {
		cancel() // cancel after the first fetch
		return Result{}, nil
	}}

	s := NewScheduler(feeds, processor, Config{FetchPacing: 10 * time.Millisecond})
	_, _, err := s.FetchAllDue(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, processor.callCount())
}

func TestScheduler_StartStop(t *testing.T) {
	feeds := &feedStoreMock{FeedsDueForFetchFunc: func(ctx context.Context) ([]domain.Feed, error) {
		return []domain.Feed{{ID: 1}}, nil
	}}
	processor := &processorMock{FetchSingleFeedFunc: func(ctx context.Context, f *domain.Feed) (Result, error) {
		return Result{}, nil
	}}

	s := NewScheduler(feeds, processor, Config{PollInterval: 30 * time.Millisecond})
	s.Start(context.Background())

	assert.Eventually(t, func() bool { return processor.callCount() >= 2 },
		time.Second, 10*time.Millisecond, "immediate cycle plus at least one tick")

	s.Stop()
	after := processor.callCount()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, after, processor.callCount(), "no cycles after stop")
}

func TestScheduler_Defaults(t *testing.T) {
	s := NewScheduler(&feedStoreMock{}, &processorMock{}, Config{})
	assert.Equal(t, 5*time.Minute, s.pollInterval)
	assert.Equal(t, 500*time.Millisecond, s.fetchPacing)
}
