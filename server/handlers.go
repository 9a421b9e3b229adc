package server

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/feedtide/feedtide/pkg/domain"
	"github.com/feedtide/feedtide/pkg/feed"
	"github.com/feedtide/feedtide/pkg/repository"
	"github.com/feedtide/feedtide/pkg/safeurl"
)

type createFeedRequest struct {
	URL            string `json:"url"`
	FetchFrequency string `json:"fetch_frequency"`
}

// createFeedHandler subscribes to a new feed
func (s *Server) createFeedHandler(w http.ResponseWriter, r *http.Request) {
	var req createFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		renderError(w, r, fmt.Errorf("url is required"), http.StatusBadRequest)
		return
	}

	created, err := s.feeds.Create(r.Context(), strings.TrimSpace(req.URL), req.FetchFrequency)
	if err != nil {
		var unsafeErr *safeurl.ErrUnsafe
		switch {
		case errors.Is(err, feed.ErrDuplicateFeed):
			renderError(w, r, err, http.StatusConflict)
		case errors.As(err, &unsafeErr):
			renderError(w, r, unsafeErr, http.StatusBadRequest)
		case strings.Contains(err.Error(), "invalid fetch frequency"):
			renderError(w, r, err, http.StatusBadRequest)
		default:
			log.Printf("[ERROR] failed to create feed: %v", err)
			renderError(w, r, fmt.Errorf("failed to create feed"), http.StatusInternalServerError)
		}
		return
	}

	renderJSON(w, r, http.StatusCreated, created)
}

// listFeedsHandler returns all subscribed feeds
func (s *Server) listFeedsHandler(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.feeds.List(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to list feeds: %v", err)
		renderError(w, r, fmt.Errorf("failed to list feeds"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, feeds)
}

// getFeedHandler returns a single feed
func (s *Server) getFeedHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	f, err := s.feeds.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			renderError(w, r, fmt.Errorf("feed not found"), http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] failed to get feed %d: %v", id, err)
		renderError(w, r, fmt.Errorf("failed to get feed"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, f)
}

// updateFeedHandler changes feed properties
func (s *Server) updateFeedHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req feed.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	updated, err := s.feeds.Update(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			renderError(w, r, fmt.Errorf("feed not found"), http.StatusNotFound)
		case strings.Contains(err.Error(), "invalid fetch frequency"):
			renderError(w, r, err, http.StatusBadRequest)
		default:
			log.Printf("[ERROR] failed to update feed %d: %v", id, err)
			renderError(w, r, fmt.Errorf("failed to update feed"), http.StatusInternalServerError)
		}
		return
	}
	renderJSON(w, r, http.StatusOK, updated)
}

// deleteFeedHandler removes a subscription
func (s *Server) deleteFeedHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.feeds.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			renderError(w, r, fmt.Errorf("feed not found"), http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] failed to delete feed %d: %v", id, err)
		renderError(w, r, fmt.Errorf("failed to delete feed"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

// fetchFeedNowHandler fetches one feed immediately, outside the schedule
func (s *Server) fetchFeedNowHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	f, err := s.feeds.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			renderError(w, r, fmt.Errorf("feed not found"), http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] failed to get feed %d: %v", id, err)
		renderError(w, r, fmt.Errorf("failed to get feed"), http.StatusInternalServerError)
		return
	}

	if err := s.refresher.RefreshFeed(r.Context(), f); err != nil {
		// details are in the fetch log, clients get a generic answer
		log.Printf("[WARN] manual fetch of feed %d failed: %v", id, err)
		renderError(w, r, fmt.Errorf("failed to fetch feed"), http.StatusBadGateway)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]string{"status": "fetched"})
}

// fetchAllNowHandler runs one polling cycle over all due feeds immediately
func (s *Server) fetchAllNowHandler(w http.ResponseWriter, r *http.Request) {
	fetched, newArticles, err := s.poller.FetchAllDue(r.Context())
	if err != nil {
		log.Printf("[ERROR] manual poll cycle failed: %v", err)
		renderError(w, r, fmt.Errorf("fetch cycle failed"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]int{"feeds_fetched": fetched, "new_articles": newArticles})
}

// importFeedsHandler subscribes to a newline-separated list of URLs.
// Blank lines and #-comments are skipped.
func (s *Server) importFeedsHandler(w http.ResponseWriter, r *http.Request) {
	var urls []string
	scanner := bufio.NewScanner(r.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		renderError(w, r, fmt.Errorf("failed to read request body"), http.StatusBadRequest)
		return
	}
	if len(urls) == 0 {
		renderError(w, r, fmt.Errorf("no feed urls in request body"), http.StatusBadRequest)
		return
	}

	results := s.feeds.Import(r.Context(), urls)
	renderJSON(w, r, http.StatusOK, results)
}

// listArticlesHandler returns articles, filterable by feed and flags
func (s *Server) listArticlesHandler(w http.ResponseWriter, r *http.Request) {
	filter := domain.ArticleFilter{
		UnreadOnly:  r.URL.Query().Get("unread") == "true",
		StarredOnly: r.URL.Query().Get("starred") == "true",
		Limit:       queryInt(r, "limit"),
		Offset:      queryInt(r, "offset"),
	}
	filter.FeedID = int64(queryInt(r, "feed_id"))

	articles, err := s.articles.ListArticles(r.Context(), filter)
	if err != nil {
		log.Printf("[ERROR] failed to list articles: %v", err)
		renderError(w, r, fmt.Errorf("failed to list articles"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, articles)
}

// getArticleHandler returns a single article with full content
func (s *Server) getArticleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	article, err := s.articles.GetArticle(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			renderError(w, r, fmt.Errorf("article not found"), http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] failed to get article %d: %v", id, err)
		renderError(w, r, fmt.Errorf("failed to get article"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, article)
}

// articleActionHandler flips read/starred flags, action is one of
// read, unread, star, unstar
func (s *Server) articleActionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var err error
	switch action := r.PathValue("action"); action {
	case "read":
		err = s.articles.UpdateReadStatus(r.Context(), id, true)
	case "unread":
		err = s.articles.UpdateReadStatus(r.Context(), id, false)
	case "star":
		err = s.articles.UpdateStarredStatus(r.Context(), id, true)
	case "unstar":
		err = s.articles.UpdateStarredStatus(r.Context(), id, false)
	default:
		renderError(w, r, fmt.Errorf("invalid action %q", action), http.StatusBadRequest)
		return
	}

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			renderError(w, r, fmt.Errorf("article not found"), http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] failed to update article %d: %v", id, err)
		renderError(w, r, fmt.Errorf("failed to update article"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// markAllReadHandler marks all unread articles read, optionally for one feed
func (s *Server) markAllReadHandler(w http.ResponseWriter, r *http.Request) {
	feedID := int64(queryInt(r, "feed_id"))

	affected, err := s.articles.MarkAllRead(r.Context(), feedID)
	if err != nil {
		log.Printf("[ERROR] failed to mark articles read: %v", err)
		renderError(w, r, fmt.Errorf("failed to mark articles read"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]int64{"marked_read": affected})
}

// listLogsHandler returns the fetch audit trail
func (s *Server) listLogsHandler(w http.ResponseWriter, r *http.Request) {
	filter := repository.LogFilter{
		FeedID:  int64(queryInt(r, "feed_id")),
		LogType: r.URL.Query().Get("type"),
		Limit:   queryInt(r, "limit"),
		Offset:  queryInt(r, "offset"),
	}

	logs, err := s.logs.List(r.Context(), filter)
	if err != nil {
		log.Printf("[ERROR] failed to list fetch logs: %v", err)
		renderError(w, r, fmt.Errorf("failed to list fetch logs"), http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, logs)
}

// pathID parses the {id} path segment, responding with 400 on garbage
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		renderError(w, r, fmt.Errorf("invalid id"), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

// renderJSON sends data as json and enforces json content type
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
