// Package server exposes the REST API for managing feeds, browsing
// articles and inspecting the fetch audit trail.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/feedtide/feedtide/pkg/domain"
	"github.com/feedtide/feedtide/pkg/feed"
	"github.com/feedtide/feedtide/pkg/repository"
)

// FeedService manages feed subscriptions
type FeedService interface {
	Create(ctx context.Context, url, frequency string) (*domain.Feed, error)
	Get(ctx context.Context, id int64) (*domain.Feed, error)
	List(ctx context.Context) ([]domain.Feed, error)
	Delete(ctx context.Context, id int64) error
	Update(ctx context.Context, id int64, req feed.UpdateRequest) (*domain.Feed, error)
	Import(ctx context.Context, urls []string) []feed.ImportResult
}

// ArticleStore provides article reads and flag updates
type ArticleStore interface {
	GetArticle(ctx context.Context, id int64) (*domain.Article, error)
	ListArticles(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, error)
	UpdateReadStatus(ctx context.Context, id int64, read bool) error
	UpdateStarredStatus(ctx context.Context, id int64, starred bool) error
	MarkAllRead(ctx context.Context, feedID int64) (int64, error)
}

// LogStore provides the fetch audit trail
type LogStore interface {
	List(ctx context.Context, filter repository.LogFilter) ([]domain.FetchLog, error)
}

// Poller triggers fetch cycles on demand
type Poller interface {
	FetchAllDue(ctx context.Context) (feedsFetched, newArticles int, err error)
}

// Refresher fetches a single feed immediately
type Refresher interface {
	RefreshFeed(ctx context.Context, f *domain.Feed) error
}

// Config holds server settings
type Config struct {
	Listen  string
	Timeout time.Duration
	Version string
	Debug   bool
}

// Server represents HTTP server instance
type Server struct {
	config    Config
	feeds     FeedService
	articles  ArticleStore
	logs      LogStore
	poller    Poller
	refresher Refresher

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// New initializes a new server instance
func New(cfg Config, feeds FeedService, articles ArticleStore, logs LogStore, poller Poller, refresher Refresher) *Server {
	s := &Server{
		config:    cfg,
		feeds:     feeds,
		articles:  articles,
		logs:      logs,
		poller:    poller,
		refresher: refresher,
		router:    routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	log.Printf("[INFO] starting server on %s", s.config.Listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.router,
		ReadTimeout:  s.config.Timeout,
		WriteTimeout: s.config.Timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("feedtide", "feedtide", s.config.Version))
	s.router.Use(rest.Ping)

	if s.config.Debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)

		r.HandleFunc("POST /feeds", s.createFeedHandler)
		r.HandleFunc("GET /feeds", s.listFeedsHandler)
		r.HandleFunc("POST /feeds/import", s.importFeedsHandler)
		r.HandleFunc("GET /feeds/{id}", s.getFeedHandler)
		r.HandleFunc("PATCH /feeds/{id}", s.updateFeedHandler)
		r.HandleFunc("DELETE /feeds/{id}", s.deleteFeedHandler)
		r.HandleFunc("POST /feeds/{id}/fetch", s.fetchFeedNowHandler)
		r.HandleFunc("POST /fetch", s.fetchAllNowHandler)

		r.HandleFunc("GET /articles", s.listArticlesHandler)
		r.HandleFunc("POST /articles/read-all", s.markAllReadHandler)
		r.HandleFunc("GET /articles/{id}", s.getArticleHandler)
		r.HandleFunc("POST /articles/{id}/{action}", s.articleActionHandler)

		r.HandleFunc("GET /logs", s.listLogsHandler)
	})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.config.Version,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, r, http.StatusOK, status)
}
