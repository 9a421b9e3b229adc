package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Tech News</title>
    <link>https://example.com</link>
    <description>Latest tech news</description>
    <ttl>90</ttl>
    <item>
      <guid>https://example.com/post-1</guid>
      <title>First Post</title>
      <link>https://example.com/post-1</link>
      <description>Summary of the first post</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
    <item>
      <guid>https://example.com/post-2</guid>
      <title>Second Post</title>
      <link>https://example.com/post-2</link>
      <description>Summary of the second post</description>
    </item>
  </channel>
</rss>`

func TestHTTPFetcher_Fetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("If-None-Match"))
		assert.Empty(t, r.Header.Get("If-Modified-Since"))
		assert.Equal(t, "feedtide-test/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer ts.Close()

	fetcher := NewHTTPFetcher(5*time.Second, "feedtide-test/1.0")
	res, err := fetcher.Fetch(context.Background(), ts.URL, "", "")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.False(t, res.NotModified)
	assert.Equal(t, `"v1"`, res.ETag)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", res.LastModified)
	assert.Equal(t, 90, res.TTLMinutes)

	require.NotNil(t, res.Feed)
	assert.Equal(t, "Tech News", res.Feed.Title)
	assert.Equal(t, "Latest tech news", res.Feed.Description)
	assert.Equal(t, "https://example.com", res.Feed.SiteURL)
	require.Len(t, res.Feed.Entries, 2)
	assert.Equal(t, "https://example.com/post-1", res.Feed.Entries[0].GUID)
	assert.Equal(t, "First Post", res.Feed.Entries[0].Title)
	require.NotNil(t, res.Feed.Entries[0].PublishedAt)
	assert.Nil(t, res.Feed.Entries[1].PublishedAt)
}

func TestHTTPFetcher_ConditionalHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"v1"`, r.Header.Get("If-None-Match"))
		assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", r.Header.Get("If-Modified-Since"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer ts.Close()

	fetcher := NewHTTPFetcher(5*time.Second, "feedtide-test/1.0")
	res, err := fetcher.Fetch(context.Background(), ts.URL, `"v1"`, "Mon, 02 Jan 2006 15:04:05 GMT")
	require.NoError(t, err)
	assert.True(t, res.NotModified)
	assert.Nil(t, res.Feed)
}

func TestHTTPFetcher_RateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	fetcher := NewHTTPFetcher(5*time.Second, "feedtide-test/1.0")
	_, err := fetcher.Fetch(context.Background(), ts.URL, "", "")
	require.Error(t, err)

	var reqErr *RequestFailedError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusTooManyRequests, reqErr.StatusCode)
	assert.Equal(t, "120", reqErr.RetryAfter)
}

func TestHTTPFetcher_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	fetcher := NewHTTPFetcher(5*time.Second, "feedtide-test/1.0")
	_, err := fetcher.Fetch(context.Background(), ts.URL, "", "")
	require.Error(t, err)

	var reqErr *RequestFailedError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
	assert.Empty(t, reqErr.RetryAfter)
}

func TestHTTPFetcher_ParseError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>not a feed</body></html>"))
	}))
	defer ts.Close()

	fetcher := NewHTTPFetcher(5*time.Second, "feedtide-test/1.0")
	_, err := fetcher.Fetch(context.Background(), ts.URL, "", "")
	require.Error(t, err)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestHTTPFetcher_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // refuse connections from now on

	fetcher := NewHTTPFetcher(5*time.Second, "feedtide-test/1.0")
	_, err := fetcher.Fetch(context.Background(), ts.URL, "", "")
	require.Error(t, err)

	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer ts.Close()

	fetcher := NewHTTPFetcher(50*time.Millisecond, "feedtide-test/1.0")
	_, err := fetcher.Fetch(context.Background(), ts.URL, "", "")
	require.Error(t, err)

	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}
