// Package enrich collects OpenGraph metadata for ingested articles by
// visiting their pages. Enrichment is strictly best-effort: it runs after
// ingestion, updates articles in place and never blocks or fails a fetch.
package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"
	"github.com/microcosm-cc/bluemonday"

	"github.com/feedtide/feedtide/pkg/domain"
)

// page bodies past this point are cut off, og tags live in <head>
const maxBodySize = 1 << 20 // 1MB

// ArticleStore persists collected metadata
type ArticleStore interface {
	UpdateEnrichment(ctx context.Context, id int64, ogImage, ogDescription, ogSiteName string) error
}

// Enricher fetches article pages and extracts og:image, og:description and
// og:site_name
type Enricher struct {
	store     ArticleStore
	client    *http.Client
	pacing    time.Duration
	userAgent string
	strict    *bluemonday.Policy
}

// New creates an enricher. Pacing is the delay between consecutive article
// pages in one batch.
func New(store ArticleStore, timeout, pacing time.Duration, userAgent string) *Enricher {
	return &Enricher{
		store:     store,
		client:    &http.Client{Timeout: timeout},
		pacing:    pacing,
		userAgent: userAgent,
		strict:    bluemonday.StrictPolicy(),
	}
}

// EnrichArticles processes a batch sequentially with pacing between pages.
// Failures are logged and swallowed, the batch always runs to the end.
func (e *Enricher) EnrichArticles(ctx context.Context, articles []domain.Article) {
	for i := range articles {
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.pacing):
			}
		}
		if err := e.enrichOne(ctx, &articles[i]); err != nil {
			lgr.Printf("[DEBUG] enrichment of %s skipped: %v", articles[i].URL, err)
		}
	}
}

func (e *Enricher) enrichOne(ctx context.Context, article *domain.Article) error {
	pageURL := strings.TrimSpace(article.URL)
	if pageURL == "" {
		return fmt.Errorf("no url")
	}
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return fmt.Errorf("unsupported scheme in %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("parse page: %w", err)
	}

	image := validImageURL(metaProperty(doc, "og:image"))
	description := e.strict.Sanitize(metaProperty(doc, "og:description"))
	siteName := e.strict.Sanitize(metaProperty(doc, "og:site_name"))

	if image == "" && description == "" && siteName == "" {
		return nil // nothing to store
	}

	if err := e.store.UpdateEnrichment(ctx, article.ID, image, description, siteName); err != nil {
		return fmt.Errorf("store enrichment: %w", err)
	}
	lgr.Printf("[DEBUG] enriched article %d from %s", article.ID, pageURL)
	return nil
}

func metaProperty(doc *goquery.Document, property string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First().Attr("content")
	return strings.TrimSpace(content)
}

// validImageURL keeps only absolute http(s) image URLs, anything else is
// dropped rather than served to clients
func validImageURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return raw
}
