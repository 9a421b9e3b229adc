package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedtide/feedtide/pkg/domain"
)

type storeMock struct {
	CreateFeedFunc           func(ctx context.Context, feed *domain.Feed) (int64, error)
	GetFeedFunc              func(ctx context.Context, id int64) (*domain.Feed, error)
	ListFeedsFunc            func(ctx context.Context) ([]domain.Feed, error)
	DeleteFeedFunc           func(ctx context.Context, id int64) error
	UpdateFeedPropertiesFunc func(ctx context.Context, feed *domain.Feed) error
}

func (m *storeMock) CreateFeed(ctx context.Context, feed *domain.Feed) (int64, error) {
	return m.CreateFeedFunc(ctx, feed)
}
func (m *storeMock) GetFeed(ctx context.Context, id int64) (*domain.Feed, error) {
	return m.GetFeedFunc(ctx, id)
}
func (m *storeMock) ListFeeds(ctx context.Context) ([]domain.Feed, error) {
	return m.ListFeedsFunc(ctx)
}
func (m *storeMock) DeleteFeed(ctx context.Context, id int64) error {
	return m.DeleteFeedFunc(ctx, id)
}
func (m *storeMock) UpdateFeedProperties(ctx context.Context, feed *domain.Feed) error {
	return m.UpdateFeedPropertiesFunc(ctx, feed)
}

type refresherMock struct {
	RefreshFeedFunc func(ctx context.Context, feed *domain.Feed) error
	calls           int
}

func (m *refresherMock) RefreshFeed(ctx context.Context, feed *domain.Feed) error {
	m.calls++
	return m.RefreshFeedFunc(ctx, feed)
}

func TestService_Create(t *testing.T) {
	t.Run("valid url registers and refreshes", func(t *testing.T) {
		store := &storeMock{
			CreateFeedFunc: func(ctx context.Context, feed *domain.Feed) (int64, error) {
				assert.Equal(t, "http://8.8.8.8/feed.xml", feed.URL)
				assert.Equal(t, 60, feed.FetchIntervalMinutes)
				assert.Equal(t, domain.FrequencyAdaptive, feed.FetchFrequency)
				return 42, nil
			},
			GetFeedFunc: func(ctx context.Context, id int64) (*domain.Feed, error) {
				return &domain.Feed{ID: id, URL: "http://8.8.8.8/feed.xml"}, nil
			},
		}
		refresher := &refresherMock{RefreshFeedFunc: func(ctx context.Context, feed *domain.Feed) error {
			assert.Equal(t, int64(42), feed.ID)
			return nil
		}}

		svc := NewService(store, refresher)
		feed, err := svc.Create(context.Background(), "http://8.8.8.8/feed.xml", "")
		require.NoError(t, err)
		assert.Equal(t, int64(42), feed.ID)
		assert.Equal(t, 1, refresher.calls)
	})

	t.Run("failed initial fetch does not fail creation", func(t *testing.T) {
		store := &storeMock{
			CreateFeedFunc: func(ctx context.Context, feed *domain.Feed) (int64, error) { return 1, nil },
			GetFeedFunc: func(ctx context.Context, id int64) (*domain.Feed, error) {
				return &domain.Feed{ID: id}, nil
			},
		}
		refresher := &refresherMock{RefreshFeedFunc: func(ctx context.Context, feed *domain.Feed) error {
			return errors.New("connection refused")
		}}

		svc := NewService(store, refresher)
		feed, err := svc.Create(context.Background(), "http://8.8.8.8/feed.xml", "")
		require.NoError(t, err)
		assert.Equal(t, int64(1), feed.ID)
	})

	t.Run("duplicate url", func(t *testing.T) {
		store := &storeMock{
			CreateFeedFunc: func(ctx context.Context, feed *domain.Feed) (int64, error) {
				return 0, errors.New("constraint failed: UNIQUE constraint failed: feeds.url (2067)")
			},
		}
		svc := NewService(store, nil)
		_, err := svc.Create(context.Background(), "http://8.8.8.8/feed.xml", "")
		assert.ErrorIs(t, err, ErrDuplicateFeed)
	})

	t.Run("unsafe url rejected before storage", func(t *testing.T) {
		store := &storeMock{
			CreateFeedFunc: func(ctx context.Context, feed *domain.Feed) (int64, error) {
				t.Fatal("store should not be called")
				return 0, nil
			},
		}
		svc := NewService(store, nil)
		_, err := svc.Create(context.Background(), "http://127.0.0.1/feed.xml", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsafe url")
	})

	t.Run("invalid frequency rejected", func(t *testing.T) {
		svc := NewService(&storeMock{}, nil)
		_, err := svc.Create(context.Background(), "http://8.8.8.8/feed.xml", "500")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid fetch frequency")
	})

	t.Run("fixed frequency sets interval", func(t *testing.T) {
		store := &storeMock{
			CreateFeedFunc: func(ctx context.Context, feed *domain.Feed) (int64, error) {
				assert.Equal(t, 720, feed.FetchIntervalMinutes)
				assert.Equal(t, "12", feed.FetchFrequency)
				return 7, nil
			},
			GetFeedFunc: func(ctx context.Context, id int64) (*domain.Feed, error) {
				return &domain.Feed{ID: id}, nil
			},
		}
		svc := NewService(store, nil)
		_, err := svc.Create(context.Background(), "http://8.8.8.8/feed.xml", "12")
		require.NoError(t, err)
	})
}

func TestService_Update(t *testing.T) {
	t.Run("frequency change resets interval and counter", func(t *testing.T) {
		stored := &domain.Feed{
			ID:                     5,
			Title:                  "Old",
			FetchIntervalMinutes:   480,
			FetchFrequency:         domain.FrequencyAdaptive,
			ConsecutiveNewArticles: 1,
		}
		var updated *domain.Feed
		store := &storeMock{
			GetFeedFunc: func(ctx context.Context, id int64) (*domain.Feed, error) {
				if updated != nil {
					return updated, nil
				}
				cp := *stored
				return &cp, nil
			},
			UpdateFeedPropertiesFunc: func(ctx context.Context, feed *domain.Feed) error {
				updated = feed
				return nil
			},
		}

		svc := NewService(store, nil)
		freq := "2"
		res, err := svc.Update(context.Background(), 5, UpdateRequest{FetchFrequency: &freq})
		require.NoError(t, err)
		assert.Equal(t, 120, res.FetchIntervalMinutes)
		assert.Equal(t, "2", res.FetchFrequency)
		assert.Equal(t, 0, res.ConsecutiveNewArticles)
		assert.Equal(t, "Old", res.Title)
	})

	t.Run("nil fields untouched", func(t *testing.T) {
		var updated *domain.Feed
		store := &storeMock{
			GetFeedFunc: func(ctx context.Context, id int64) (*domain.Feed, error) {
				if updated != nil {
					return updated, nil
				}
				return &domain.Feed{ID: 5, Title: "Old", SiteURL: "https://old.example.com"}, nil
			},
			UpdateFeedPropertiesFunc: func(ctx context.Context, feed *domain.Feed) error {
				updated = feed
				return nil
			},
		}

		svc := NewService(store, nil)
		title := "New"
		res, err := svc.Update(context.Background(), 5, UpdateRequest{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "New", res.Title)
		assert.Equal(t, "https://old.example.com", res.SiteURL)
	})
}

func TestService_Import(t *testing.T) {
	store := &storeMock{
		CreateFeedFunc: func(ctx context.Context, feed *domain.Feed) (int64, error) {
			if feed.URL == "http://8.8.8.8/dup.xml" {
				return 0, errors.New("UNIQUE constraint failed: feeds.url")
			}
			return 10, nil
		},
		GetFeedFunc: func(ctx context.Context, id int64) (*domain.Feed, error) {
			return &domain.Feed{ID: id}, nil
		},
	}
	svc := NewService(store, nil)

	results := svc.Import(context.Background(), []string{
		"http://8.8.8.8/a.xml",
		"http://8.8.8.8/dup.xml",
		"http://127.0.0.1/internal.xml",
	})
	require.Len(t, results, 3)

	assert.Equal(t, int64(10), results[0].FeedID)
	assert.Empty(t, results[0].Error)

	assert.Zero(t, results[1].FeedID)
	assert.Contains(t, results[1].Error, "feed already exists")

	assert.Zero(t, results[2].FeedID)
	assert.Contains(t, results[2].Error, "unsafe url")
}

func TestParseFetchFrequency(t *testing.T) {
	tests := []struct {
		in           string
		wantInterval int
		wantFreq     string
		wantErr      bool
	}{
		{"", 60, "adaptive", false},
		{"adaptive", 60, "adaptive", false},
		{"ADAPTIVE", 60, "adaptive", false},
		{"1", 60, "1", false},
		{"24", 1440, "24", false},
		{"168", 10080, "168", false},
		{"0", 0, "", true},
		{"169", 0, "", true},
		{"-1", 0, "", true},
		{"hourly", 0, "", true},
	}
	for _, tt := range tests {
		t.Run("freq "+tt.in, func(t *testing.T) {
			interval, freq, err := ParseFetchFrequency(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantInterval, interval)
			assert.Equal(t, tt.wantFreq, freq)
		})
	}
}
